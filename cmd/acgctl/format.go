package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/harshasoftware/halohome-sub007/internal/catalog"
	"github.com/harshasoftware/halohome-sub007/internal/chart"
	"github.com/harshasoftware/halohome-sub007/internal/ephemeris"
	"github.com/harshasoftware/halohome-sub007/internal/lines"
	"github.com/harshasoftware/halohome-sub007/internal/scout"
	"github.com/harshasoftware/halohome-sub007/internal/transform"
)

type positionsOutput struct {
	Instant   transform.Instant    `json:"instant"`
	Positions []ephemeris.Position `json:"positions"`
}

type scoutOutput struct {
	Category   scout.Category  `json:"category"`
	Sort       scout.SortMode  `json:"sort"`
	Config     scout.Config    `json:"config"`
	Candidates int             `json:"candidates"`
	Rankings   []scout.Ranking `json:"rankings"`
}

// loadCandidates reads a CSV catalog file into scoring candidates.
func loadCandidates(path string, logger *slog.Logger) ([]scout.Candidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()

	cities, err := catalog.Parse(f, logger)
	if err != nil {
		return nil, err
	}
	if len(cities) == 0 {
		return nil, fmt.Errorf("catalog %s: %w", path, catalog.ErrEmpty)
	}
	out := make([]scout.Candidate, len(cities))
	for i, c := range cities {
		out[i] = scout.Candidate{ID: c.ID, Name: c.Name, Country: c.Country, Point: c.Point(), Population: c.Population}
	}
	return out, nil
}

// formatPositionsText prints RA and Dec in degrees next to the ecliptic
// coordinates.
func formatPositionsText(w io.Writer, pos []ephemeris.Position) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BODY\tRA\tDEC\tLON\tLAT\tTIER")
	for _, p := range pos {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\t%.4f\t%s\n",
			p.Body, transform.NormalizeDegrees(p.RA*transform.Rad2Deg), p.Dec*transform.Rad2Deg, p.Lon, p.Lat, p.Tier)
	}
	tw.Flush()
}

func formatLinesText(w io.Writer, res *lines.Result) {
	fmt.Fprintf(w, "JD %.6f  GMST %.4f°  tiers: %d baseline, %d precision\n",
		res.Instant.JD, res.GMST, res.Tiers.Baseline, res.Tiers.Precision)
	fmt.Fprintf(w, "%d angular lines, %d aspect lines, %d parans\n\n",
		len(res.Lines), len(res.AspectLines), len(res.Parans))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BODY\tANGLE\tASPECT\tPOINTS\tSEGMENTS\tRATING")
	for _, group := range [][]lines.Line{res.Lines, res.AspectLines} {
		for _, l := range group {
			aspect := "-"
			if l.Aspect != nil {
				aspect = fmt.Sprintf("%s %s", l.Aspect.Kind, l.Aspect.Direction)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n",
				l.Body, l.Angle, aspect, len(l.Points), len(l.Breaks)+1, l.Rating)
		}
	}
	tw.Flush()

	if len(res.Parans) > 0 {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "PARAN\t\tLAT")
		for _, p := range res.Parans {
			fmt.Fprintf(tw, "%s %s\t%s %s\t%.3f\n", p.Body1, p.Angle1, p.Body2, p.Angle2, p.Lat)
		}
		tw.Flush()
	}
}

func formatChartText(w io.Writer, c *chart.Chart) {
	fmt.Fprintf(w, "Site %.4f, %.4f  JD %.6f  %s houses", c.Site.Lat, c.Site.Lng, c.Instant.JD, c.HouseSystem)
	if c.HouseSystem != c.Requested {
		fmt.Fprintf(w, " (requested %s)", c.Requested)
	}
	fmt.Fprintf(w, "  %s zodiac\n", c.Zodiac)
	fmt.Fprintf(w, "ASC %.4f  MC %.4f  DSC %.4f  IC %.4f\n\n", c.Angles.ASC, c.Angles.MC, c.Angles.DSC, c.Angles.IC)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BODY\tLONGITUDE\tSIGN\tHOUSE\tSPEED")
	for _, p := range c.Placements {
		lon := p.Longitude
		if p.SiderealLongitude != nil {
			lon = *p.SiderealLongitude
		}
		speed := fmt.Sprintf("%.4f", p.Speed)
		if p.Retrograde {
			speed += " R"
		}
		fmt.Fprintf(tw, "%s\t%.4f\t%s %.2f\t%d\t%s\n", p.Body, lon, p.Sign, p.DegreeInSign, p.House, speed)
	}
	tw.Flush()

	fmt.Fprintln(w)
	for i, cusp := range c.Cusps {
		fmt.Fprintf(w, "house %2d  %.4f\n", i+1, cusp)
	}
}

func formatRankingsText(w io.Writer, rs []scout.Ranking) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tCITY\tCOUNTRY\tBENEFIT\tINTENSITY\tNATURE\tNEAREST")
	for i, r := range rs {
		nearest := "-"
		if len(r.TopInfluences) > 0 {
			inf := r.TopInfluences[0]
			nearest = fmt.Sprintf("%s %s %.0f km", inf.Body, inf.Angle, inf.DistanceKm)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f\t%.1f\t%s\t%s\n",
			i+1, r.Candidate.Name, r.Candidate.Country, r.Benefit, r.Intensity, r.Nature, nearest)
	}
	tw.Flush()
}
