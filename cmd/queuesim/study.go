package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/queuesim/internal/automation"
	"github.com/san-kum/queuesim/internal/metrics"
	"github.com/san-kum/queuesim/internal/optim"
	"github.com/san-kum/queuesim/internal/storage"
	"github.com/san-kum/queuesim/internal/viz"
)

func runBatch(cmd *cobra.Command, args []string) error {
	batch, err := automation.LoadBatch(args[0])
	if err != nil {
		return err
	}
	logger.Info("batch loaded", "name", batch.Name, "runs", len(batch.Runs))

	results, err := automation.NewRunner(registry, logger).RunBatch(cmd.Context(), batch)
	if err != nil {
		return err
	}

	var store *storage.Store
	if !noSave {
		if store, err = openStore(); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tREJECTION\tLq\tW\tGAP\tRUN_ID\tNOTE")
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\t%v\n", r.Name, r.Err)
			continue
		}
		m := r.Result.Metrics()
		runID := "-"
		if store != nil {
			if runID, err = store.Save(r.Result); err != nil {
				return err
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", r.Name,
			finiteOr(m, metrics.KeyRejectionProbability),
			finiteOr(m, metrics.KeyMeanQueueLength),
			finiteOr(m, metrics.KeyMeanSystemTime),
			finiteOr(m, "steady_state_gap"),
			runID,
			undefinedNote(r.Result.SteadyErr))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(results))
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	results, err := automation.NewRunner(registry, logger).RunSweep(cmd.Context(), &automation.Sweep{
		Base:  cfg,
		Param: sweepParam,
		Min:   rangeMin,
		Max:   rangeMax,
		Steps: points,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\tP_BLOCK(T)\tNOTE\n", sweepParam, metricName)
	for _, r := range results {
		fmt.Fprintf(w, "%g\t%s\t%.6g\t%s\n", r.ParamValue,
			finiteOr(r.Metrics, metricName),
			r.Final[len(r.Final)-1],
			undefinedNote(r.SteadyErr))
	}
	return w.Flush()
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	results, err := automation.NewRunner(registry, logger).RunMonteCarlo(cmd.Context(), &automation.MonteCarloConfig{
		Base:      cfg,
		Trials:    trials,
		Seed:      seed,
		Tolerance: tolerance,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	worst := 0.0
	for _, r := range results {
		worst = max(worst, r.FinalGap)
	}
	settled, unsettled := automation.MonteCarloStats(results)
	fmt.Fprintf(out, "%s: %d trials, %d settled, %d not settled (tol %g)\n",
		scenarioTitle(cfg), len(results), settled, unsettled, tolerance)
	fmt.Fprintf(out, "largest final gap: %.3e\n", worst)
	if unsettled > 0 {
		logger.Warn("horizon too short for every start to settle", "horizon", cfg.HorizonTime)
	}
	return nil
}

func planCapacity(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sc, err := cfg.Scenario()
	if err != nil {
		return err
	}

	planner := &optim.CapacityPlanner{
		MaxChannels: maxChannels,
		MaxCapacity: maxCapacity,
		Costs:       optim.Costs{Channel: channelCost, Place: placeCost},
		Log:         logger,
	}
	plan, err := planner.Plan(cmd.Context(), sc, optim.Requirement{MaxRejection: maxRejection, MaxQueueWait: maxWait})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "cheapest shape: %d channels, %d queue places (cost %g)\n\n", plan.Channels, plan.Capacity, plan.Cost)
	title := fmt.Sprintf("M/M/%d/%d  λ=%g μ=%g", plan.Channels, plan.Capacity, sc.ArrivalRate(), sc.ServiceRate())
	fmt.Fprintln(out, viz.RenderMetrics(title, plan.Steady.Map()))
	return nil
}
