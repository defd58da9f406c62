package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rvegen/rvegen/rve/store"
)

// --- rvegen presets ---

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the steel presets in defaults.yaml",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		d, err := loadDefaults(defaultsPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, name := range d.PresetNames() {
			fmt.Fprintf(tw, "%s\t%s\n", name, d.Presets[name].Description)
		}
		_ = tw.Flush()
	},
}

// --- rvegen runs ---

var runsDBPath string

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List runs recorded in a run registry",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		db, err := store.Open(runsDBPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		defer func() { _ = db.Close() }()
		runs, err := db.ListRuns()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN ID\tCREATED\tSEED\tBOX\tPOINTS\tGRAINS\tSTATUS\tOUTPUT")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%g\t%d\t%d\t%s\t%s\n",
				r.RunID, time.Unix(0, r.CreatedAt).UTC().Format(time.RFC3339),
				r.Seed, r.BoxSize, r.Points, r.Grains, r.Status, r.OutDir)
		}
		_ = tw.Flush()
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsDBPath, "db", "runs.db", "SQLite run registry path")

	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(runsCmd)
}
