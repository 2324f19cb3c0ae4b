package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/harshasoftware/halohome-sub007/internal/catalog"
	"github.com/harshasoftware/halohome-sub007/internal/chart"
	"github.com/harshasoftware/halohome-sub007/internal/ephemeris"
	"github.com/harshasoftware/halohome-sub007/internal/geo"
	"github.com/harshasoftware/halohome-sub007/internal/lines"
	"github.com/harshasoftware/halohome-sub007/internal/scout"
)

func newPositionsCmd(g *globalFlags) *cobra.Command {
	var timeStr, tierStr, bodies string
	cmd := &cobra.Command{
		Use:   "positions",
		Short: "Print apparent geocentric positions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := parseInstant(timeStr)
			if err != nil {
				return err
			}
			tier, err := ephemeris.ParseTier(tierStr)
			if err != nil {
				return err
			}
			bs, err := parseBodyList(bodies)
			if err != nil {
				return err
			}
			pos, err := g.provider(cmd, tier).Positions(cmd.Context(), inst, bs)
			if err != nil {
				return fmt.Errorf("computing positions: %w", err)
			}
			return g.output(cmd, positionsOutput{Instant: inst, Positions: pos}, func(w io.Writer) {
				formatPositionsText(w, pos)
			})
		},
	}
	cmd.Flags().StringVar(&timeStr, "time", "", "instant, RFC3339 (default: now)")
	cmd.Flags().StringVar(&tierStr, "tier", "baseline", "accuracy tier: baseline|precision")
	cmd.Flags().StringVar(&bodies, "bodies", "", "comma-separated bodies (default: all)")
	return cmd
}

func newLinesCmd(g *globalFlags) *cobra.Command {
	var (
		timeStr, bodies, aspectMode string
		step                        float64
		noParans, noAspects         bool
	)
	cmd := &cobra.Command{
		Use:   "lines",
		Short: "Generate astrocartography lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := parseInstant(timeStr)
			if err != nil {
				return err
			}
			opts := lines.DefaultOptions()
			if opts.Bodies, err = parseBodyList(bodies); err != nil {
				return err
			}
			if step > 0 {
				opts.LongitudeStep = step
			}
			if aspectMode != "" {
				if opts.AspectMode, err = lines.ParseAspectMode(aspectMode); err != nil {
					return err
				}
			}
			opts.NoParans = noParans
			opts.NoAspects = noAspects

			res, err := lines.Generate(cmd.Context(), g.provider(cmd, ephemeris.TierPrecision), inst, opts)
			if err != nil {
				return fmt.Errorf("generating lines: %w", err)
			}
			return g.output(cmd, res, func(w io.Writer) { formatLinesText(w, res) })
		},
	}
	cmd.Flags().StringVar(&timeStr, "time", "", "instant, RFC3339 (default: now)")
	cmd.Flags().StringVar(&bodies, "bodies", "", "comma-separated bodies (default: all)")
	cmd.Flags().Float64Var(&step, "step", 0, "longitude sampling step in degrees for horizon lines")
	cmd.Flags().StringVar(&aspectMode, "aspect-mode", "", "aspect projection: ra|ecliptic")
	cmd.Flags().BoolVar(&noParans, "no-parans", false, "skip paran latitudes")
	cmd.Flags().BoolVar(&noAspects, "no-aspects", false, "skip aspect lines")
	return cmd
}

func newChartCmd(g *globalFlags) *cobra.Command {
	var (
		timeStr, houseSystem string
		lat, lng             float64
		sidereal             bool
	)
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Compute a natal chart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := parseInstant(timeStr)
			if err != nil {
				return err
			}
			if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
				return fmt.Errorf("site %v, %v out of range", lat, lng)
			}
			site := geo.Point{Lat: lat, Lng: lng}
			hs, err := chart.ParseHouseSystem(houseSystem)
			if err != nil {
				return err
			}
			c, err := chart.Natal(cmd.Context(), g.provider(cmd, ephemeris.TierPrecision), inst, site,
				chart.Options{HouseSystem: hs, Sidereal: sidereal})
			if err != nil {
				return fmt.Errorf("computing chart: %w", err)
			}
			return g.output(cmd, c, func(w io.Writer) { formatChartText(w, c) })
		},
	}
	cmd.Flags().StringVar(&timeStr, "time", "", "instant, RFC3339 (default: now)")
	cmd.Flags().Float64Var(&lat, "lat", 0, "site latitude in degrees")
	cmd.Flags().Float64Var(&lng, "lng", 0, "site longitude in degrees")
	cmd.Flags().StringVar(&houseSystem, "house-system", "placidus", "placidus|koch|equal|whole_sign|campanus|regiomontanus|porphyry")
	cmd.Flags().BoolVar(&sidereal, "sidereal", false, "report sidereal longitudes (Lahiri)")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")
	return cmd
}

func newScoutCmd(g *globalFlags) *cobra.Command {
	var (
		timeStr, catalogFile, category, sortMode, preset string
		limit, workers                                   int
	)
	cmd := &cobra.Command{
		Use:   "scout",
		Short: "Rank catalog cities for a life category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := parseInstant(timeStr)
			if err != nil {
				return err
			}
			cat, err := scout.ParseCategory(category)
			if err != nil {
				return err
			}
			mode, err := scout.ParseSortMode(sortMode)
			if err != nil {
				return err
			}
			cfg, err := scout.Preset(preset)
			if err != nil {
				return err
			}

			candidates, err := loadCandidates(catalogFile, g.logger(cmd))
			if err != nil {
				return err
			}

			opts := lines.DefaultOptions()
			opts.NoParans = true
			res, err := lines.Generate(cmd.Context(), g.provider(cmd, ephemeris.TierPrecision), inst, opts)
			if err != nil {
				return fmt.Errorf("generating lines: %w", err)
			}
			prepared := scout.Prepare(append(res.Lines, res.AspectLines...), cfg.MaxKm, 0)

			rs, err := scout.NewPool(workers, g.logger(cmd)).Rank(cmd.Context(), candidates, prepared, cat, mode, cfg)
			if err != nil {
				return fmt.Errorf("ranking: %w", err)
			}
			if limit > 0 && len(rs) > limit {
				rs = rs[:limit]
			}
			out := scoutOutput{Category: cat, Sort: mode, Config: cfg, Candidates: len(candidates), Rankings: rs}
			return g.output(cmd, out, func(w io.Writer) { formatRankingsText(w, rs) })
		},
	}
	cmd.Flags().StringVar(&timeStr, "time", "", "instant, RFC3339 (default: now)")
	cmd.Flags().StringVar(&catalogFile, "catalog", "", "CSV catalog with name, country, lat and lng columns")
	cmd.Flags().StringVar(&category, "category", "", "career|love|health|home|wellbeing|wealth")
	cmd.Flags().StringVar(&sortMode, "sort", "benefit_first", "benefit_first|intensity_first|balanced")
	cmd.Flags().StringVar(&preset, "preset", "balanced", "scoring preset: balanced|high_precision|relaxed")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rankings to print (0 for all)")
	cmd.Flags().IntVar(&workers, "workers", 0, "scoring workers (default: number of CPUs)")
	_ = cmd.MarkFlagRequired("catalog")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func newMigrateCmd(g *globalFlags) *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the catalog schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				return errors.New("--database-url or ACG_DATABASE_URL is required")
			}
			if err := catalog.Migrate(cmd.Context(), url, g.logger(cmd)); err != nil {
				return err
			}
			return g.output(cmd, map[string]string{"status": "ok"}, func(w io.Writer) {
				fmt.Fprintln(w, "migrations applied")
			})
		},
	}
	cmd.Flags().StringVar(&url, "database-url", os.Getenv("ACG_DATABASE_URL"), "Postgres connection URL")
	return cmd
}
