package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"slices"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/san-kum/queuesim/internal/config"
	"github.com/san-kum/queuesim/internal/experiment"
	"github.com/san-kum/queuesim/internal/storage"
	"github.com/san-kum/queuesim/internal/viz"
)

var (
	dataDir    string
	configFile string
	preset     string
	integrator string
	verbose    bool
	theme      string

	// scenario overrides
	arrivalRate float64
	serviceRate float64
	channels    int
	capacity    int
	horizon     float64
	stepSize    float64
	steps       int

	live       bool
	frameRate  int
	noSave     bool
	showMatrix bool
	tolerance  float64

	xAxis      int
	yAxis      int
	plotStates []int
	plain      bool
	outFile    string
	svgFile    string
	generator  bool

	metricName string
	sweepParam string
	rangeMin   float64
	rangeMax   float64
	points     int
	respMin    float64
	respMax    float64
	respPoints int
	trials     int
	seed       int64

	maxRejection float64
	maxWait      float64
	channelCost  float64
	placeCost    float64
	maxChannels  int
	maxCapacity  int

	logger   = slog.Default()
	registry = experiment.NewRegistry()
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		color.New(color.FgYellow).Fprintf(os.Stderr, "warning: .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "error: ")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "queuesim",
		Short:         "M/M/c/K queuing system lab",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger = slog.New(NewPrettyHandler(os.Stderr, PrettyHandlerOptions{
				SlogOpts: slog.HandlerOptions{Level: level},
			}))
			slog.SetDefault(logger)

			if !slices.Contains(viz.ThemeNames(), theme) {
				return fmt.Errorf("unknown theme %q (available: %v)", theme, viz.ThemeNames())
			}
			viz.SetTheme(theme)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return viz.RunInteractive(registry)
		},
	}

	defaultData := os.Getenv("QUEUESIM_DATA")
	if defaultData == "" {
		defaultData = ".queuesim"
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", defaultData, "data directory ($QUEUESIM_DATA)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&theme, "theme", viz.CurrentTheme.Name, "color theme")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "integrate the master equation and report the characteristics",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addScenarioFlags(runCmd)
	runCmd.Flags().BoolVar(&live, "live", false, "redraw the distribution while integrating")
	runCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate for --live")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().BoolVar(&showMatrix, "matrix", false, "print the generator")
	runCmd.Flags().Float64Var(&tolerance, "tol", 1e-6, "steady-state gap counted as settled")

	compareCmd := &cobra.Command{
		Use:   "compare [integrator...]",
		Short: "compare integrators against the closed-form steady state",
		RunE:  compareIntegrators,
	}
	addScenarioFlags(compareCmd)

	matrixCmd := &cobra.Command{
		Use:   "matrix [run_id]",
		Short: "print the generator of a stored run or of a configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE:  printMatrix,
	}
	addScenarioFlags(matrixCmd)

	metricsCmd := &cobra.Command{
		Use:   "metrics [run_id]",
		Short: "print the characteristics of a stored run or of a configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE:  printMetrics,
	}
	addScenarioFlags(metricsCmd)

	responseCmd := &cobra.Command{
		Use:   "response",
		Short: "plot a characteristic against the arrival rate",
		Args:  cobra.NoArgs,
		RunE:  responsePlot,
	}
	addScenarioFlags(responseCmd)
	responseCmd.Flags().StringVar(&metricName, "metric", "rejection_probability", "characteristic to plot")
	responseCmd.Flags().Float64Var(&respMin, "min", 1, "lowest arrival rate")
	responseCmd.Flags().Float64Var(&respMax, "max", 60, "highest arrival rate")
	responseCmd.Flags().IntVar(&respPoints, "points", 60, "number of arrival rates")
	responseCmd.Flags().BoolVar(&plain, "plain", false, "plain dot plot instead of a line chart")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot state probabilities over time",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntSliceVar(&plotStates, "states", nil, "state indices to plot (default all)")
	plotCmd.Flags().StringVar(&svgFile, "svg", "", "also write every state to an SVG file")

	replayCmd := &cobra.Command{
		Use:   "replay [run_id]",
		Short: "replay a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  replayRun,
	}

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "trace one state probability against another",
		Args:  cobra.ExactArgs(1),
		RunE:  phasePlot,
	}
	phaseCmd.Flags().IntVar(&xAxis, "x-axis", 0, "state index for the x-axis")
	phaseCmd.Flags().IntVar(&yAxis, "y-axis", -1, "state index for the y-axis (-1 is the blocking state)")
	phaseCmd.Flags().BoolVar(&plain, "plain", false, "plain dot plot instead of braille")
	phaseCmd.Flags().StringVar(&svgFile, "svg", "", "also write the portrait to an SVG file")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "output", "o", "", "write to file instead of stdout")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export a run trajectory as CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().BoolVar(&generator, "generator", false, "export the generator instead")

	batchCmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "run every configuration of a batch file",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	batchCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the runs")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "vary one parameter over a range",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addScenarioFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "arrival_rate", "parameter to vary")
	sweepCmd.Flags().Float64Var(&rangeMin, "min", 10, "first value")
	sweepCmd.Flags().Float64Var(&rangeMax, "max", 50, "last value")
	sweepCmd.Flags().IntVar(&points, "points", 5, "number of values")
	sweepCmd.Flags().StringVar(&metricName, "metric", "rejection_probability", "characteristic to report")

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "integrate from random initial distributions",
		Args:  cobra.NoArgs,
		RunE:  runMonteCarlo,
	}
	addScenarioFlags(monteCarloCmd)
	monteCarloCmd.Flags().IntVar(&trials, "trials", 20, "number of initial distributions")
	monteCarloCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 picks one)")
	monteCarloCmd.Flags().Float64Var(&tolerance, "tol", 1e-6, "steady-state gap counted as settled")

	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "find the cheapest channel count and queue capacity meeting a target",
		Args:  cobra.NoArgs,
		RunE:  planCapacity,
	}
	addScenarioFlags(planCmd)
	planCmd.Flags().Float64Var(&maxRejection, "max-rejection", 0.05, "highest acceptable rejection probability")
	planCmd.Flags().Float64Var(&maxWait, "max-wait", 0, "highest acceptable mean queue wait (0 ignores it)")
	planCmd.Flags().Float64Var(&channelCost, "channel-cost", 10, "cost of one channel")
	planCmd.Flags().Float64Var(&placeCost, "place-cost", 1, "cost of one queue place")
	planCmd.Flags().IntVar(&maxChannels, "max-channels", 20, "largest channel count tried")
	planCmd.Flags().IntVar(&maxCapacity, "max-capacity", 20, "largest queue capacity tried")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	initConfigCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := config.Save(args[0], cfg); err != nil {
				return err
			}
			logger.Info("configuration written", "path", args[0])
			return nil
		},
	}
	addScenarioFlags(initConfigCmd)

	interactiveCmd := &cobra.Command{
		Use:   "interactive",
		Short: "browse presets and replay runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return viz.RunInteractive(registry)
		},
	}

	rootCmd.AddCommand(runCmd, compareCmd, matrixCmd, metricsCmd, responseCmd,
		listCmd, plotCmd, replayCmd, phaseCmd, exportJSONCmd, exportCSVCmd,
		batchCmd, sweepCmd, monteCarloCmd, planCmd, presetsCmd, initConfigCmd, interactiveCmd)
	return rootCmd
}

func addScenarioFlags(cmd *cobra.Command) {
	defaultConfig := os.Getenv("QUEUESIM_CONFIG")
	cmd.Flags().StringVar(&configFile, "config", defaultConfig, "config file path (yaml, $QUEUESIM_CONFIG)")
	cmd.Flags().StringVar(&preset, "preset", "", "start from a preset")
	cmd.Flags().StringVar(&integrator, "integrator", config.DefaultIntegrator, "integrator")
	cmd.Flags().Float64Var(&arrivalRate, "lambda", 0, "arrival rate λ")
	cmd.Flags().Float64Var(&serviceRate, "mu", 0, "service rate μ")
	cmd.Flags().IntVar(&channels, "channels", 0, "channel count c")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "queue capacity K")
	cmd.Flags().Float64Var(&horizon, "horizon", 0, "horizon time T")
	cmd.Flags().Float64Var(&stepSize, "dt", 0, "integration step h")
	cmd.Flags().IntVar(&steps, "steps", 0, "iteration count N (0 derives T/h)")
}

// loadConfig builds the configuration for a command: preset or config file
// first, then any scenario flag given on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("integrator") || cfg.Integrator == "" {
		cfg.Integrator = integrator
	}
	if flags.Changed("lambda") {
		cfg.ArrivalRate = arrivalRate
	}
	if flags.Changed("mu") {
		cfg.ServiceRate = serviceRate
	}
	if flags.Changed("channels") {
		cfg.ChannelCount = channels
	}
	if flags.Changed("capacity") {
		cfg.QueueCapacity = capacity
	}
	if flags.Changed("channels") || flags.Changed("capacity") {
		if len(cfg.InitialState) != cfg.ChannelCount+cfg.QueueCapacity+1 {
			cfg.InitialState = nil
		}
	}
	if flags.Changed("horizon") {
		cfg.HorizonTime = horizon
	}
	if flags.Changed("dt") {
		cfg.StepSize = stepSize
	}
	switch {
	case flags.Changed("steps"):
		cfg.IterationCount = steps
	case flags.Changed("horizon") || flags.Changed("dt"):
		cfg.IterationCount = 0
	}

	logger.Debug("configuration",
		"lambda", cfg.ArrivalRate, "mu", cfg.ServiceRate,
		"channels", cfg.ChannelCount, "capacity", cfg.QueueCapacity,
		"horizon", cfg.HorizonTime, "steps", cfg.Steps(), "dt", cfg.StepSize,
		"integrator", cfg.Integrator)
	return cfg, nil
}

func openStore() (*storage.Store, error) {
	st := storage.New(dataDir).WithLogger(logger)
	if err := st.Init(); err != nil {
		return nil, err
	}
	return st, nil
}

func scenarioTitle(cfg *config.Config) string {
	return fmt.Sprintf("M/M/%d/%d  λ=%g μ=%g", cfg.ChannelCount, cfg.QueueCapacity, cfg.ArrivalRate, cfg.ServiceRate)
}
