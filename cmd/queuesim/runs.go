package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/queuesim/internal/analysis"
	"github.com/san-kum/queuesim/internal/storage"
	"github.com/san-kum/queuesim/internal/viz"
)

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	runs, err := st.List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tλ\tμ\tc\tK\tT\tINTEG\tDRIFT")
	for _, run := range runs {
		sc := run.Scenario
		fmt.Fprintf(w, "%s\t%s\t%g\t%g\t%d\t%d\t%g\t%s\t%.1e\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			sc.ArrivalRate, sc.ServiceRate, sc.Channels, sc.Capacity, sc.Horizon,
			run.Integrator,
			run.MassDrift,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	tr, err := st.LoadTrajectory(args[0])
	if err != nil {
		return err
	}

	chart, err := viz.PlotTrajectory(tr, plotStates, viz.ChartOptions{Width: 80, Height: 12})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "run: %s\nsamples: %d\n\n%s\n", args[0], tr.Len(), chart)
	if svgFile == "" {
		return nil
	}
	return writeSVG(svgFile, func(w io.Writer) error { return viz.WriteTrajectorySVG(w, tr, 800, 400) })
}

func writeSVG(path string, draw func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := draw(f); err != nil {
		return err
	}
	logger.Info("svg written", "path", path)
	return f.Close()
}

func replayRun(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	res, err := st.LoadResult(args[0])
	if err != nil {
		return err
	}

	var steady []float64
	if res.Steady != nil {
		steady = res.Steady.Probabilities()
	}
	return viz.RunReplay(scenarioTitle(res.Config), res.Trajectory, steady)
}

func phasePlot(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	tr, err := st.LoadTrajectory(args[0])
	if err != nil {
		return err
	}

	y := yAxis
	if y < 0 && tr.Len() > 0 {
		y = len(tr.States[0]) - 1
	}
	portrait, err := analysis.NewPortrait(tr, xAxis, y)
	if err != nil {
		return err
	}

	if svgFile != "" {
		if err := writeSVG(svgFile, func(w io.Writer) error { return viz.WritePortraitSVG(w, portrait, 600, 600) }); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run: %s\nx: P%d  y: P%d\n\n", args[0], xAxis, y)
	if plain {
		fmt.Fprint(out, analysis.PortraitToASCII(portrait, 60, 20))
		return nil
	}
	fmt.Fprint(out, viz.PlotPortrait(portrait, 40, 12))
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	res, err := st.LoadResult(args[0])
	if err != nil {
		return err
	}

	if outFile == "" {
		return storage.WriteJSON(cmd.OutOrStdout(), res)
	}
	if err := storage.ExportJSON(outFile, res); err != nil {
		return err
	}
	logger.Info("exported", "run", args[0], "path", outFile)
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	if generator {
		rows, err := st.LoadGenerator(args[0])
		if err != nil {
			return err
		}
		return storage.WriteMatrixCSV(cmd.OutOrStdout(), rows)
	}

	tr, err := st.LoadTrajectory(args[0])
	if err != nil {
		return err
	}
	return storage.WriteTrajectoryCSV(cmd.OutOrStdout(), tr)
}
