package main

import (
	"errors"
	"fmt"
	"math"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/queuesim/internal/analysis"
	"github.com/san-kum/queuesim/internal/config"
	"github.com/san-kum/queuesim/internal/dynamo"
	"github.com/san-kum/queuesim/internal/experiment"
	"github.com/san-kum/queuesim/internal/metrics"
	"github.com/san-kum/queuesim/internal/models"
	"github.com/san-kum/queuesim/internal/sim"
	"github.com/san-kum/queuesim/internal/viz"
)

func runSimulation(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	exp := experiment.New(cfg, registry)
	var lr *viz.LiveRenderer
	if live {
		lr = viz.NewLiveRenderer(out, scenarioTitle(cfg), frameRate, true)
		exp.AddObserver(lr)
	}

	start := time.Now()
	res, err := exp.Run()
	if lr != nil {
		lr.Close()
	}
	if err != nil {
		return err
	}
	logger.Info("run complete",
		"elapsed", time.Since(start),
		"vectors", res.Trajectory.Len(),
		"mass_drift", res.Trajectory.MassDrift)

	fmt.Fprintln(out, viz.RenderMetrics(scenarioTitle(cfg), res.Metrics()))
	if showMatrix {
		fmt.Fprintln(out, viz.RenderMatrix(res.Generator.Rows()))
	}
	fmt.Fprintf(out, "distribution at t=%g\n", res.Trajectory.Times[res.Trajectory.Len()-1])
	fmt.Fprintln(out, viz.RenderDistribution(res.Trajectory.Final(), 40, 0.5))

	if res.SteadyErr != nil {
		logger.Warn("steady state undefined", "err", res.SteadyErr)
	} else {
		rep := analysis.Convergence(res.Trajectory, res.Steady.Probabilities(), tolerance)
		fmt.Fprintf(out, "steady-state gap: %.3e  relaxation rate: %.4g\n", rep.FinalGap, rep.RelaxationRate)
		if rep.Settled {
			fmt.Fprintf(out, "settled (tol %g) at t=%g\n", tolerance, rep.SettlingTime)
		}
	}

	if noSave {
		return nil
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	runID, err := st.Save(res)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "run id: %s\n", runID)
	return nil
}

func compareIntegrators(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	names := args
	if len(names) == 0 {
		names = registry.ListIntegrators()
	}

	sc, err := cfg.Scenario()
	if err != nil {
		return err
	}
	ss, err := metrics.Analyze(sc)
	if err != nil {
		return fmt.Errorf("compare needs a defined steady state: %w", err)
	}
	ref := ss.Probabilities()
	gen, err := models.NewGenerator(sc)
	if err != nil {
		return err
	}
	p0, err := cfg.InitialVector(sc)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "comparing integrators for %s (h=%g, T=%g)\n\n", scenarioTitle(cfg), sc.StepSize(), sc.Horizon())
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INTEGRATOR\tFINAL_GAP\tMASS_DRIFT\tSETTLED_AT\tTIME_MS")
	for _, name := range names {
		run := cfg.Clone()
		run.Integrator = name
		start := time.Now()
		res, err := experiment.New(run, registry).Run()
		if err != nil {
			fmt.Fprintf(w, "%s\terror: %v\n", name, err)
			continue
		}
		elapsed := time.Since(start)

		integ, err := registry.GetIntegrator(name)
		if err != nil {
			return err
		}
		settle, ok, err := analysis.SettlingTime(sim.New(models.NewKolmogorov(gen), integ), p0, sim.ConfigFor(sc), ref, tolerance)
		if err != nil {
			return err
		}
		settled := "-"
		if ok {
			settled = fmt.Sprintf("%g", settle)
		}

		fmt.Fprintf(w, "%s\t%.3e\t%.2e\t%s\t%.2f\n", name,
			res.Trajectory.Final().MaxAbsDiff(ref),
			res.Trajectory.MassDrift,
			settled,
			float64(elapsed.Microseconds())/1000)
	}
	return w.Flush()
}

func printMatrix(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		st, err := openStore()
		if err != nil {
			return err
		}
		rows, err := st.LoadGenerator(args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), viz.RenderMatrix(rows))
		return nil
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sc, err := cfg.Scenario()
	if err != nil {
		return err
	}
	gen, err := models.NewGenerator(sc)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), viz.RenderMatrix(gen.Rows()))
	return nil
}

func printMetrics(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		st, err := openStore()
		if err != nil {
			return err
		}
		meta, err := st.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), viz.RenderMetrics(meta.ID, metrics.Map(meta.Metrics)))
		if meta.SteadyError != "" {
			logger.Warn("steady state undefined", "err", meta.SteadyError)
		}
		return nil
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sc, err := cfg.Scenario()
	if err != nil {
		return err
	}
	ss, err := metrics.Analyze(sc)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), viz.RenderMetrics(scenarioTitle(cfg), ss.Map()))
	return nil
}

func responsePlot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sc, err := cfg.Scenario()
	if err != nil {
		return err
	}
	curve, err := analysis.ResponseCurve(sc, metricName, respMin, respMax, respPoints)
	if err != nil {
		return err
	}

	undefined := 0
	for _, p := range curve {
		if !p.Defined {
			undefined++
		}
	}
	if undefined > 0 {
		logger.Warn("metric undefined at some arrival rates", "metric", metricName, "points", undefined)
	}

	if plain {
		fmt.Fprintf(cmd.OutOrStdout(), "%s vs arrival rate %g..%g (%d points)\n",
			metricName, curve[0].ArrivalRate, curve[len(curve)-1].ArrivalRate, len(curve))
		fmt.Fprint(cmd.OutOrStdout(), analysis.ResponseToASCII(curve, 60, 15))
		return nil
	}
	chart, err := viz.PlotResponse(curve, metricName, viz.ChartOptions{Width: 70, Height: 15})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), chart)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tλ\tμ\tc\tK\tT\tN\tINTEG")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%g\t%g\t%d\t%d\t%g\t%d\t%s\n", name,
			p.ArrivalRate, p.ServiceRate, p.ChannelCount, p.QueueCapacity,
			p.HorizonTime, p.Steps(), p.Integrator)
	}
	return w.Flush()
}

// finiteOr formats v, or dash when it is missing or not finite.
func finiteOr(m metrics.Map, key string) string {
	v, ok := m[key]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return fmt.Sprintf("%.6g", v)
}

func undefinedNote(err error) string {
	if errors.Is(err, dynamo.ErrUndefinedResult) {
		return "steady state undefined"
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
