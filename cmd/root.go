package cmd

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rvegen/rvegen/rve"
	"github.com/rvegen/rvegen/rve/export"
	"github.com/rvegen/rvegen/rve/input"
	"github.com/rvegen/rvegen/rve/report"
	"github.com/rvegen/rvegen/rve/store"
	"github.com/rvegen/rvegen/rve/trace"
)

var (
	// Config sources
	configPath   string // YAML generator config
	inputPath    string // YAML input spec (grain statistics)
	presetName   string // named preset in defaults.yaml
	defaultsPath string // path to defaults.yaml
	logLevel     string // log verbosity level

	// Generator overrides (applied only when the flag is set)
	seed            int64   // master seed
	boxSize         float64 // RVE edge length
	points          int     // voxels per edge
	bandCount       int     // number of martensite bands
	bandWidth       float64 // band thickness
	bandAxis        string  // band normal
	mergeBandGrains bool    // collapse band grains into one
	ferriteRatio    float64 // matrix ferrite fraction
	inclusions      bool    // place inclusions
	inclusionRatio  float64 // inclusion volume fraction
	shrinkFactor    float64 // RSA volume shrink target
	workers         int     // goroutines computing growth shells

	// Outputs
	outDir     string // output root; each run writes <out>/<run-id>/
	dbPath     string // SQLite run registry ("" disables)
	traceLevel string // growth trace verbosity
	plotFigs   bool   // render figures
	voxelTable bool   // write the per-voxel table
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "rvegen",
	Short: "Representative volume element generator for polycrystalline steel",
}

// runCmd generates one RVE using a preset or config file plus flag overrides
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate an RVE",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level: %s", traceLevel)
		}

		cfg, spec, baseDir, err := resolveRun(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("%v", err)
		}

		rng := rve.NewPartitionedRNG(rve.NewRunKey(cfg.Seed))
		source, err := input.NewSpecSource(spec, baseDir, rng.ForSubsystem(rve.SubsystemSampler))
		if err != nil {
			logrus.Fatalf("Invalid input spec: %v", err)
		}

		logrus.Infof("Starting generation: box=%v points=%d bands=%d seed=%d",
			cfg.Geometry.BoxSize, cfg.Geometry.Points, cfg.Bands.Count, cfg.Seed)
		startTime := time.Now()

		gen, err := rve.NewGenerator(cfg, source, rve.WithTraceLevel(trace.TraceLevel(traceLevel)))
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		res, err := gen.Run()
		if err != nil {
			logrus.Fatalf("Generation failed: %v", err)
		}

		runID := uuid.New().String()
		dir, err := writeOutputs(res, runID, startTime)
		if err != nil {
			logrus.Fatalf("Writing outputs failed: %v", err)
		}
		if dbPath != "" {
			if err := registerRun(res, runID, dir, startTime); err != nil {
				logrus.Fatalf("Registering run failed: %v", err)
			}
		}
		if res.Trace != nil {
			ts := trace.Summarize(res.Trace)
			logrus.Infof("Trace: %d seeds (mean %.1f, max %d attempts), %d filled, %d stalled",
				ts.SeededGrains, ts.MeanSeedAttempts, ts.MaxSeedAttempts, ts.Filled, ts.Stalled)
		}
		fmt.Printf("run %s: %d grains written to %s in %v\n",
			runID, len(res.Labeling.Grains), dir, time.Since(startTime).Round(time.Millisecond))
	},
}

// setLogLevel applies the --log flag.
func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// resolveRun builds the generator config and input spec from the preset or
// files, then applies the flags the user set. baseDir anchors relative
// grain table paths in the input spec.
func resolveRun(cmd *cobra.Command) (rve.Config, *input.InputSpec, string, error) {
	cfg := rve.DefaultConfig()
	var spec *input.InputSpec
	baseDir := "."

	if presetName != "" {
		d, err := loadDefaults(defaultsPath)
		if err != nil {
			return cfg, nil, "", err
		}
		if cfg, spec, err = d.Resolve(presetName); err != nil {
			return cfg, nil, "", err
		}
		baseDir = filepath.Dir(defaultsPath)
	}
	if configPath != "" {
		var err error
		if cfg, err = rve.LoadConfig(configPath); err != nil {
			return cfg, nil, "", err
		}
	}
	if inputPath != "" {
		var err error
		if spec, err = input.LoadInputSpec(inputPath); err != nil {
			return cfg, nil, "", err
		}
		baseDir = filepath.Dir(inputPath)
	}
	if spec == nil {
		return cfg, nil, "", fmt.Errorf("no grain statistics: pass --input or --preset")
	}

	// Flags override file values only when set explicitly.
	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("box-size") {
		cfg.Geometry.BoxSize = boxSize
	}
	if flags.Changed("points") {
		cfg.Geometry.Points = points
	}
	if flags.Changed("bands") {
		cfg.Bands.Count = bandCount
	}
	if flags.Changed("band-width") {
		cfg.Bands.Width = bandWidth
	}
	if flags.Changed("band-axis") {
		cfg.Bands.Axis = bandAxis
	}
	if flags.Changed("merge-band-grains") {
		cfg.Bands.MergeGrains = mergeBandGrains
	}
	if flags.Changed("ferrite-ratio") {
		cfg.Phases.FerriteRatio = ferriteRatio
	}
	if flags.Changed("inclusions") {
		cfg.Inclusions.Enabled = inclusions
	}
	if flags.Changed("inclusion-ratio") {
		cfg.Inclusions.Ratio = inclusionRatio
	}
	if flags.Changed("shrink-factor") {
		cfg.Growth.ShrinkFactor = shrinkFactor
	}
	if flags.Changed("workers") {
		cfg.Growth.Workers = workers
	}
	return cfg, spec, baseDir, nil
}

// writeOutputs writes the grain table, voxel table, run header and figures
// into <out>/<runID>/ and returns that directory.
func writeOutputs(res *rve.Result, runID string, started time.Time) (string, error) {
	dir := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	if err := export.WriteGrainTable(filepath.Join(dir, "grains.csv"), res.Labeling.Grains); err != nil {
		return dir, err
	}
	if voxelTable {
		if err := export.WriteVoxelTable(filepath.Join(dir, "voxels.csv"), res.Labeling.Voxels); err != nil {
			return dir, err
		}
	}
	header := &export.RunHeader{
		Version:   export.HeaderVersion,
		RunID:     runID,
		CreatedAt: started.UTC().Format(time.RFC3339),
		Seed:      res.Config.Seed,
		Status:    res.Status,
		Input:     inputPath,
		Config:    res.Config,
		Summary:   export.Summarize(res),
	}
	if err := export.WriteRunHeader(filepath.Join(dir, "header.yaml"), header); err != nil {
		return dir, err
	}

	if plotFigs {
		figs := filepath.Join(dir, "figs")
		if err := os.MkdirAll(figs, 0755); err != nil {
			return dir, fmt.Errorf("creating figure directory: %w", err)
		}
		if err := report.VolumeHistogram(res.Labeling.Grains, 20, filepath.Join(figs, "volumes.png")); err != nil {
			return dir, err
		}
		if err := report.SliceHeatMap(res.Grid, res.Labeling.Grains, false, filepath.Join(figs, "grains_z_mid.png")); err != nil {
			return dir, err
		}
		if err := report.SliceHeatMap(res.Grid, res.Labeling.Grains, true, filepath.Join(figs, "phases_z_mid.png")); err != nil {
			return dir, err
		}
	}
	logrus.Infof("Outputs written to %s", dir)
	return dir, nil
}

// registerRun records the run and its grain table in the SQLite registry.
func registerRun(res *rve.Result, runID, dir string, started time.Time) error {
	db, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	cfgYAML, err := yaml.Marshal(res.Config)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return db.InsertRun(&store.Run{
		RunID:     runID,
		CreatedAt: started.UnixNano(),
		Seed:      res.Config.Seed,
		BoxSize:   res.Config.Geometry.BoxSize,
		Points:    res.Config.Geometry.Points,
		Status:    res.Status,
		OutDir:    dir,
		Config:    string(cfgYAML),
	}, export.GrainRows(res.Labeling.Grains))
}

// samplerRNG returns the sampling stream for seed, the one `run` uses.
func samplerRNG(seed int64) *rand.Rand {
	return rve.NewPartitionedRNG(rve.NewRunKey(seed)).ForSubsystem(rve.SubsystemSampler)
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&defaultsPath, "defaults-filepath", "defaults.yaml", "Path to defaults.yaml")

	addRunFlags(runCmd)

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}

// addRunFlags registers the `run` flags on cmd, bound to the package-level
// variables resolveRun reads.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configPath, "config", "", "Generator config YAML (overrides the preset config)")
	cmd.Flags().StringVar(&inputPath, "input", "", "Input spec YAML with grain statistics (overrides the preset input)")
	cmd.Flags().StringVar(&presetName, "preset", "", "Named preset from defaults.yaml")

	defaults := rve.DefaultConfig()
	cmd.Flags().Int64Var(&seed, "seed", defaults.Seed, "Seed for grain sampling and placement")
	cmd.Flags().Float64Var(&boxSize, "box-size", defaults.Geometry.BoxSize, "RVE edge length")
	cmd.Flags().IntVar(&points, "points", defaults.Geometry.Points, "Voxels per edge (even)")
	cmd.Flags().IntVar(&bandCount, "bands", defaults.Bands.Count, "Number of martensite bands")
	cmd.Flags().Float64Var(&bandWidth, "band-width", defaults.Bands.Width, "Band thickness")
	cmd.Flags().StringVar(&bandAxis, "band-axis", defaults.Bands.Axis, "Band normal (x, y, z)")
	cmd.Flags().BoolVar(&mergeBandGrains, "merge-band-grains", false, "Collapse all band grains into one grain")
	cmd.Flags().Float64Var(&ferriteRatio, "ferrite-ratio", defaults.Phases.FerriteRatio, "Ferrite fraction of the matrix volume")
	cmd.Flags().BoolVar(&inclusions, "inclusions", false, "Place non-growing inclusions")
	cmd.Flags().Float64Var(&inclusionRatio, "inclusion-ratio", defaults.Inclusions.Ratio, "Inclusion volume fraction")
	cmd.Flags().Float64Var(&shrinkFactor, "shrink-factor", defaults.Growth.ShrinkFactor, "RSA volume shrink target in (0, 1]")
	cmd.Flags().IntVar(&workers, "workers", defaults.Growth.Workers, "Goroutines computing growth shells")

	cmd.Flags().StringVar(&outDir, "out", "output", "Output root directory")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite run registry path (empty disables)")
	cmd.Flags().StringVar(&traceLevel, "trace-level", "none", "Growth trace level (none, stages, grains)")
	cmd.Flags().BoolVar(&plotFigs, "plot", false, "Render figures into <out>/<run-id>/figs")
	cmd.Flags().BoolVar(&voxelTable, "voxels", true, "Write the per-voxel table for the mesher")
}
