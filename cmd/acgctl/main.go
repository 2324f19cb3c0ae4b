package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harshasoftware/halohome-sub007/internal/ephemeris"
	"github.com/harshasoftware/halohome-sub007/internal/transform"
)

var validFormats = []string{"json", "text"}

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	format  string
	vsopDir string
	verbose bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "acgctl",
		Short:         "Astrocartography lines, charts and location scouting",
		Long:          "acgctl computes planetary positions, astrocartography lines and natal charts, scores catalog cities and runs catalog migrations.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateFormat(g.format)
		},
	}

	root.PersistentFlags().StringVar(&g.format, "format", "text", "output format: json|text")
	root.PersistentFlags().StringVar(&g.vsopDir, "vsop87-dir", os.Getenv("ACG_VSOP87_DIR"), "VSOP87 data directory for the precision tier")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log progress to stderr")

	root.AddCommand(
		newPositionsCmd(g),
		newLinesCmd(g),
		newChartCmd(g),
		newScoutCmd(g),
		newMigrateCmd(g),
	)
	return root
}

func validateFormat(format string) error {
	if slices.Contains(validFormats, format) {
		return nil
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}

func (g *globalFlags) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// provider returns the tiered provider, or the baseline alone when tier is
// baseline.
func (g *globalFlags) provider(cmd *cobra.Command, tier ephemeris.Tier) ephemeris.Provider {
	base := ephemeris.NewBaseline()
	if tier == ephemeris.TierBaseline {
		return base
	}
	logger := g.logger(cmd)
	precision := ephemeris.NewPrecision(g.vsopDir, logger)
	if g.vsopDir != "" {
		if err := precision.Warm(); err != nil {
			logger.Warn("precision tier limited to the Moon", "error", err)
		}
	}
	return ephemeris.NewTiered(precision, base, logger)
}

// output writes v as indented JSON, or calls text in text mode.
func (g *globalFlags) output(cmd *cobra.Command, v any, text func(io.Writer)) error {
	w := cmd.OutOrStdout()
	if g.format == "text" {
		text(w)
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseInstant reads an RFC3339 time, defaulting to now.
func parseInstant(value string) (transform.Instant, error) {
	if value == "" {
		return transform.NewInstant(time.Now().UTC()), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return transform.Instant{}, fmt.Errorf("invalid --time %q: want RFC3339", value)
	}
	return transform.NewInstant(t.UTC()), nil
}

func parseBodyList(value string) ([]ephemeris.Body, error) {
	var names []string
	for _, s := range strings.Split(value, ",") {
		if s = strings.TrimSpace(s); s != "" {
			names = append(names, s)
		}
	}
	return ephemeris.ParseBodies(names)
}
