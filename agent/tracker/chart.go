package tracker

import (
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/teranos/warden/errors"
)

const (
	chartWidth  = 8 * vg.Inch
	chartHeight = 5 * vg.Inch
)

// RenderChart draws every non-empty series in history onto one chart and
// saves it at outputPath, appending a .png extension when outputPath has
// none. Series with two or more points draw as lines; a single point draws
// as a scatter mark so it stays visible. Returns the path written, or ""
// when history holds no points at all.
func RenderChart(history History, outputPath string, title string) (string, error) {
	names := make([]string, 0, len(history))
	for name, entries := range history {
		if len(entries) > 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", nil
	}
	sort.Strings(names)

	p := plot.New()
	if title != "" {
		p.Title.Text = title
	}
	p.X.Label.Text = "round"
	p.Legend.Top = true

	for i, name := range names {
		entries := history[name]
		xys := make(plotter.XYs, len(entries))
		for j, entry := range entries {
			xys[j].X = float64(entry.Round)
			xys[j].Y = entry.Value
		}
		if len(xys) > 1 {
			line, err := plotter.NewLine(xys)
			if err != nil {
				return "", errors.Wrapf(err, "plot series %s", name)
			}
			line.LineStyle.Color = plotutil.Color(i)
			p.Add(line)
			p.Legend.Add(name, line)
		} else {
			scatter, err := plotter.NewScatter(xys)
			if err != nil {
				return "", errors.Wrapf(err, "plot point %s", name)
			}
			scatter.GlyphStyle.Color = plotutil.Color(i)
			scatter.GlyphStyle.Shape = plotutil.Shape(i)
			p.Add(scatter)
			p.Legend.Add(name, scatter)
		}
	}

	if filepath.Ext(outputPath) == "" {
		outputPath += ".png"
	}
	if err := p.Save(chartWidth, chartHeight, outputPath); err != nil {
		return "", errors.Wrapf(err, "save chart to %s", outputPath)
	}
	return outputPath, nil
}

// renderTempChart renders history to a fresh temp file and returns its path.
// The empty-history case removes the temp file again and returns "".
func renderTempChart(history History, title string) (string, error) {
	f, err := os.CreateTemp("", "warden-scalars-*.png")
	if err != nil {
		return "", errors.Wrap(err, "create temp chart file")
	}
	path := f.Name()
	f.Close()

	rendered, err := RenderChart(history, path, title)
	if err != nil {
		os.Remove(path)
		return "", err
	}
	if rendered == "" {
		os.Remove(path)
	}
	return rendered, nil
}
