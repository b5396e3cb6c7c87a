package main

import (
	"flag"
	"fmt"
	"image/color"
	"os"

	"github.com/b3nn0/lidarlite/datalog"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// series splits logged samples into raw and filtered distance lines, with
// time in seconds since the first sample. Failed reads and frames with no
// object are left out.
func series(rows []datalog.SampleRow) (raw, filtered plotter.XYs) {
	if len(rows) == 0 {
		return nil, nil
	}
	t0 := rows[0].Timestamp
	for _, r := range rows {
		x := float64(r.Timestamp-t0) / 1000.0
		if r.Error == "" && r.Distance >= 0 {
			raw = append(raw, plotter.XY{X: x, Y: float64(r.Distance)})
		}
		if r.Filtered >= 0 {
			filtered = append(filtered, plotter.XY{X: x, Y: r.Filtered})
		}
	}
	return raw, filtered
}

func render(rows []datalog.SampleRow, out string) error {
	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = "LIDAR-Lite range"
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Distance (cm)"

	raw, filtered := series(rows)
	if len(raw) > 0 {
		s, err := plotter.NewScatter(raw)
		if err != nil {
			return err
		}
		s.GlyphStyle.Color = color.RGBA{R: 180, G: 180, B: 180, A: 255}
		s.GlyphStyle.Radius = vg.Points(1)
		p.Add(s)
		p.Legend.Add("raw", s)
	}
	if len(filtered) > 0 {
		l, err := plotter.NewLine(filtered)
		if err != nil {
			return err
		}
		l.Color = color.RGBA{B: 200, A: 255}
		l.Width = vg.Points(1)
		p.Add(l)
		p.Legend.Add("filtered", l)
	}

	return p.Save(14*vg.Inch, 6*vg.Inch, out)
}

func main() {
	dbPath := flag.String("db", "/var/log/lidarlite.sqlite", "sample log written by lidard")
	out := flag.String("out", "range.png", "output image")
	flag.Parse()

	rows, err := datalog.ReadSamples(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "can't read %s: %s\n", *dbPath, err)
		os.Exit(1)
	}
	if err := render(rows, *out); err != nil {
		fmt.Fprintf(os.Stderr, "can't plot: %s\n", err)
		os.Exit(1)
	}
	fmt.Printf("plotted %d samples to %s\n", len(rows), *out)
}
