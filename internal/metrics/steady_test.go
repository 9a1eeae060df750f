package metrics_test

import (
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/queuesim/internal/dynamo"
	"github.com/san-kum/queuesim/internal/metrics"
	"github.com/san-kum/queuesim/internal/models"
)

func scenario(lambda, mu float64, c, k int) models.Scenario {
	s, err := models.NewScenario(lambda, mu, c, k, 1, 100, 0.01)
	Expect(err).NotTo(HaveOccurred())
	return s
}

var _ = Describe("Analyze", func() {
	Context("three channels with three queue places at ρ=6", func() {
		var ss *metrics.SteadyState

		BeforeEach(func() {
			var err error
			ss, err = metrics.Analyze(scenario(30, 5, 3, 3))
			Expect(err).NotTo(HaveOccurred())
		})

		It("computes the load factor and idle probability", func() {
			Expect(ss.Load).To(Equal(6.0))
			Expect(ss.IdleProbability).To(BeNumerically("~", 1.0/565, 1e-12))
		})

		It("weights every state by its birth-death product", func() {
			weights := []float64{1, 6, 18, 36, 72, 144, 288}
			p := ss.Probabilities()
			Expect(p).To(HaveLen(7))
			for i, w := range weights {
				Expect(p[i]).To(BeNumerically("~", w/565, 1e-12), "state %d", i)
			}
			Expect(p.Sum()).To(BeNumerically("~", 1.0, 1e-12))
			Expect(ss.ChannelProbabilities).To(HaveLen(4))
			Expect(ss.QueueProbabilities).To(HaveLen(3))
		})

		It("reports queue and system times", func() {
			lq := 72.0 / 565
			Expect(ss.RejectionProbability).To(BeNumerically("~", 288.0/565, 1e-12))
			Expect(ss.MeanQueueLength).To(BeNumerically("~", lq, 1e-12))
			Expect(ss.MeanQueueWait).To(BeNumerically("~", lq/30, 1e-12))
			Expect(ss.MeanInSystem).To(BeNumerically("~", lq+6, 1e-12))
			Expect(ss.MeanSystemTime).To(BeNumerically("~", (lq+6)/30, 1e-12))
		})

		It("reports horizon and channel figures", func() {
			Expect(ss.MeanArrivals).To(BeNumerically("~", 30, 1e-12))
			Expect(ss.MeanServiceTime).To(BeNumerically("~", 0.2, 1e-12))
			Expect(ss.MeanChannelServiceTime).To(BeNumerically("~", 6, 1e-12))
			Expect(ss.MeanBusyChannels).To(BeNumerically("~", 1662.0/565, 1e-12))
			Expect(ss.ChannelUtilization).To(BeNumerically("~", 1662.0/565/3, 1e-12))
			Expect(ss.EffectiveArrivalRate).To(BeNumerically("~", 30*(1-288.0/565), 1e-9))
		})

		It("is idempotent", func() {
			again, err := metrics.Analyze(scenario(30, 5, 3, 3))
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(Equal(ss))
		})

		It("flattens into named metrics", func() {
			m := ss.Map()
			Expect(m).To(HaveKeyWithValue(metrics.KeyLoadFactor, 6.0))
			Expect(m).To(HaveKey(metrics.ChannelKey(0)))
			Expect(m).To(HaveKey(metrics.ChannelKey(3)))
			Expect(m).To(HaveKey(metrics.QueueKey(1)))
			Expect(m).To(HaveKey(metrics.QueueKey(3)))
			Expect(m).NotTo(HaveKey(metrics.QueueKey(0)))
			Expect(m[metrics.QueueKey(3)]).To(Equal(ss.RejectionProbability))

			keys := m.Keys()
			Expect(keys).To(HaveLen(13 + 4 + 3))
			Expect(keys[len(keys)-4:]).To(Equal([]string{
				metrics.ChannelKey(3), metrics.QueueKey(1), metrics.QueueKey(2), metrics.QueueKey(3),
			}))
		})
	})

	Context("a single-channel loss system", func() {
		It("splits mass between idle and busy", func() {
			ss, err := metrics.Analyze(scenario(2, 5, 1, 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(ss.IdleProbability).To(BeNumerically("~", 5.0/7, 1e-12))
			Expect(ss.ChannelProbabilities[1]).To(BeNumerically("~", 2.0/7, 1e-12))
			Expect(ss.QueueProbabilities).To(BeEmpty())
			Expect(ss.MeanQueueLength).To(BeZero())
		})
	})

	DescribeTable("loss systems reject with exactly the all-busy probability",
		func(lambda, mu float64, c int) {
			ss, err := metrics.Analyze(scenario(lambda, mu, c, 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(ss.RejectionProbability).To(Equal(ss.ChannelProbabilities[c]))
		},
		Entry("mm11", 2.0, 5.0, 1),
		Entry("heavy load", 30.0, 5.0, 3),
		Entry("load at channel count", 15.0, 5.0, 3),
		Entry("many channels", 40.0, 3.0, 12),
	)

	It("refuses a load factor equal to the channel count", func() {
		_, err := metrics.Analyze(scenario(15, 5, 3, 2))
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, dynamo.ErrUndefinedResult)).To(BeTrue())

		var de *dynamo.DomainError
		Expect(errors.As(err, &de)).To(BeTrue())
		Expect(de.Metric).To(Equal(metrics.KeyMeanQueueLength))
	})

	DescribeTable("stays finite when c^c and c! overflow",
		func(c int) {
			ss, err := metrics.Analyze(scenario(10, 1, c, 5))
			Expect(err).NotTo(HaveOccurred())
			Expect(ss.IdleProbability).To(BeNumerically("~", math.Exp(-10), 1e-15))
			Expect(ss.Probabilities().Sum()).To(BeNumerically("~", 1.0, 1e-12))
			Expect(ss.MeanQueueLength).To(BeNumerically(">=", 0))
			Expect(ss.MeanInSystem).To(BeNumerically("~", 10, 1e-9))
		},
		Entry("c=144", 144),
		Entry("c=150", 150),
		Entry("c=200", 200),
		Entry("c=400", 400),
	)

	It("handles loads far beyond the exponent range", func() {
		ss, err := metrics.Analyze(scenario(2000, 1, 1000, 10))
		Expect(err).NotTo(HaveOccurred())
		Expect(ss.Probabilities().Sum()).To(BeNumerically("~", 1.0, 1e-9))
		Expect(ss.RejectionProbability).To(BeNumerically(">", 0.4))
	})

	It("rejects a zero scenario", func() {
		_, err := metrics.Analyze(models.Scenario{})
		Expect(errors.Is(err, dynamo.ErrParameterBounds)).To(BeTrue())
	})

	It("never returns non-finite values", func() {
		for _, c := range []int{1, 2, 5, 20} {
			for _, k := range []int{0, 1, 10} {
				ss, err := metrics.Analyze(scenario(7.5, 2, c, k))
				if err != nil {
					Expect(errors.Is(err, dynamo.ErrUndefinedResult)).To(BeTrue())
					continue
				}
				for name, v := range ss.Map() {
					Expect(math.IsNaN(v) || math.IsInf(v, 0)).To(BeFalse(), name)
				}
			}
		}
	})
})
