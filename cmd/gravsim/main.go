package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/gravsim/internal/config"
	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/export"
	"github.com/san-kum/gravsim/internal/metrics"
	"github.com/san-kum/gravsim/internal/sim"
	"github.com/san-kum/gravsim/internal/storage"
	"github.com/san-kum/gravsim/internal/viz"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	verbosity  int
	configFile string
	intervalMs int
	step       float64
	minSep     float64
	stopOnNaN  bool
	ticks      uint64
	save       bool
	plot       bool
	logFile    string
	outFile    string
	svgWidth   int
	svgHeight  int

	log = logr.Discard()
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "gravsim",
		Short:        "n-body gravity simulator",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log = newLogger(os.Stderr, verbosity)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".gravsim", "data directory")
	rootCmd.PersistentFlags().IntVarP(&verbosity, "verbose", "v", 0, "log verbosity (2 logs every tick)")

	runCmd := &cobra.Command{
		Use:   "run [scenario]",
		Short: "run simulation headless",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addSimFlags(runCmd)
	runCmd.Flags().Uint64Var(&ticks, "ticks", 1000, "ticks to run, 0 runs until interrupted")
	runCmd.Flags().BoolVar(&save, "save", false, "store the final snapshot")
	runCmd.Flags().BoolVar(&plot, "plot", false, "plot energy drift")

	liveCmd := &cobra.Command{
		Use:   "live [scenario]",
		Short: "run simulation with live visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addSimFlags(liveCmd)
	liveCmd.Flags().StringVar(&logFile, "log", "", "write logs to this file")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available scenarios",
		RunE:  listPresets,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show the final state of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "render the final state of a run to SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default <run_id>.svg)")
	exportSVGCmd.Flags().IntVar(&svgWidth, "width", 800, "image width")
	exportSVGCmd.Flags().IntVar(&svgHeight, "height", 800, "image height")

	dumpConfigCmd := &cobra.Command{
		Use:   "dump-config [scenario]",
		Short: "write a scenario and its settings to a yaml config file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  dumpConfig,
	}
	addSimFlags(dumpConfigCmd)
	dumpConfigCmd.Flags().StringVarP(&outFile, "out", "o", "gravsim.yaml", "output file")

	rootCmd.AddCommand(runCmd, liveCmd, presetsCmd, dumpConfigCmd, listCmd, showCmd, exportJSONCmd, exportSVGCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSimFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().IntVar(&intervalMs, "interval-ms", config.DefaultIntervalMs, "real time between ticks")
	cmd.Flags().Float64Var(&step, "step", config.DefaultStepSeconds, "simulated seconds per tick")
	cmd.Flags().Float64Var(&minSep, "min-sep", 0, "minimum separation in force evaluation (m)")
	cmd.Flags().BoolVar(&stopOnNaN, "stop-on-invalid", false, "stop once a body state becomes NaN or Inf")
}

func newLogger(w *os.File, v int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintln(w, prefix, args)
			return
		}
		fmt.Fprintln(w, args)
	}, funcr.Options{Verbosity: v, LogTimestamp: true})
}

// loadConfig resolves the scenario: the named preset or config file, then
// any flags set on the command line.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.GetPreset(config.DefaultScenario)
	if configFile != "" {
		c, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c
	}

	if len(args) > 0 {
		preset := config.GetPreset(args[0])
		if preset == nil {
			return nil, fmt.Errorf("unknown scenario: %s (available: %v)", args[0], config.ListPresets())
		}
		if configFile == "" {
			cfg = preset
		} else {
			cfg.Scenario = preset.Scenario
			cfg.Bodies = preset.Bodies
		}
	}

	if cmd.Flags().Changed("interval-ms") {
		cfg.IntervalMs = intervalMs
	}
	if cmd.Flags().Changed("step") {
		cfg.StepSeconds = step
	}
	if cmd.Flags().Changed("min-sep") {
		cfg.MinSeparation = minSep
	}
	if cmd.Flags().Changed("stop-on-invalid") {
		cfg.StopOnInvalid = stopOnNaN
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	bodies, err := cfg.GetBodies()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("running %s simulation (%d bodies, %gs per tick)...\n", cfg.Scenario, len(bodies), cfg.StepSeconds)
	start := time.Now()

	res, err := simulate(ctx, cfg, bodies, ticks, log)
	if err != nil {
		return err
	}
	last := res.Final

	fmt.Printf("completed in %v\n", time.Since(start))
	fmt.Printf("session: %s\n", last.Session)
	fmt.Printf("ticks: %d\n", last.Tick)
	fmt.Printf("simulated: %.4gs (%.2f days)\n\n", last.Time, last.Time/86400)
	if err := last.Err(); err != nil {
		fmt.Printf("warning: %v\n\n", err)
	}

	if err := printBodies(last.Bodies); err != nil {
		return err
	}

	values := res.Metrics
	fmt.Println("\nmetrics:")
	for _, name := range sortedKeys(values) {
		fmt.Printf("  %s: %.6e\n", name, values[name])
	}

	if plot {
		if hist := res.Monitor.History("energy_drift"); len(hist) > 1 {
			fmt.Println()
			fmt.Println(asciigraph.Plot(hist,
				asciigraph.Height(10),
				asciigraph.Width(80),
				asciigraph.Caption("energy drift"),
			))
		}
	}

	if save {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(cfg.Scenario, cfg.Settings().Interval, last, values)
		if err != nil {
			return err
		}
		fmt.Printf("\nrun id: %s\n", runID)
	}

	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	bodies, err := cfg.GetBodies()
	if err != nil {
		return err
	}

	// stderr belongs to the terminal UI.
	liveLog := logr.Discard()
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		defer f.Close()
		liveLog = newLogger(f, verbosity)
	}

	feed := sim.NewChannelPublisher(1)
	mon := metrics.NewMonitor()
	sched := sim.New(bodies, sim.Fanout{feed, mon},
		sim.WithLogger(liveLog.WithName("scheduler")),
		sim.WithEngineOptions(cfg.EngineOptions()...))
	defer sched.Close()

	ctx := context.Background()
	if err := sched.Start(ctx, cfg.Settings()); err != nil {
		return err
	}

	m := viz.NewModel(ctx, cfg.Scenario, sched, cfg.Settings(), feed.C(), mon)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return sched.Stop(ctx)
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCENARIO\tBODIES\tSTEP\tINTERVAL")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%d\t%gs\t%dms\n", name, len(p.Bodies), p.StepSeconds, p.IntervalMs)
	}
	return w.Flush()
}

// dumpConfig writes the resolved config, bodies included, so it can be
// edited and passed back with --config.
func dumpConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if len(cfg.Bodies) == 0 {
		preset := config.GetPreset(cfg.Scenario)
		if preset == nil {
			return fmt.Errorf("unknown scenario: %s", cfg.Scenario)
		}
		cfg.Bodies = preset.Bodies
	}
	if err := config.Save(outFile, cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%s, %d bodies)\n", outFile, cfg.Scenario, len(cfg.Bodies))
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tTICKS\tSIMULATED\tBODIES\tVALID")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.4gs\t%d\t%v\n",
			run.ID,
			run.Scenario,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Ticks,
			run.Time,
			run.Bodies,
			run.Valid,
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	snap, err := st.LoadSnapshot(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n", meta.Scenario)
	fmt.Printf("session: %s\n", meta.Session)
	fmt.Printf("ticks: %d (step %gs, interval %dms)\n", meta.Ticks, meta.Step, meta.IntervalMs)
	fmt.Printf("simulated: %.4gs\n\n", meta.Time)

	if err := printBodies(snap.Bodies); err != nil {
		return err
	}

	if len(meta.Metrics) > 0 {
		fmt.Println("\nmetrics:")
		for _, name := range sortedKeys(meta.Metrics) {
			fmt.Printf("  %s: %.6e\n", name, meta.Metrics[name])
		}
	}
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	snap, err := st.LoadSnapshot(args[0])
	if err != nil {
		return err
	}

	if outFile == "" {
		return export.WriteJSON(os.Stdout, *meta, snap)
	}

	file, err := os.Create(outFile)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := export.WriteJSON(file, *meta, snap); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", outFile)
	return nil
}

func exportSVG(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	snap, err := st.LoadSnapshot(args[0])
	if err != nil {
		return err
	}

	path := outFile
	if path == "" {
		path = args[0] + ".svg"
	}
	if err := os.WriteFile(path, []byte(export.SnapshotToSVG(snap, svgWidth, svgHeight)), 0644); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", path)
	return nil
}

func printBodies(bodies []dynamo.Body) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMASS\tX\tY\tVX\tVY")
	for _, b := range bodies {
		fmt.Fprintf(w, "%s\t%.4g\t%.6e\t%.6e\t%.4e\t%.4e\n", b.Name, b.Mass, b.Pos.X, b.Pos.Y, b.Vel.X, b.Vel.Y)
	}
	return w.Flush()
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
