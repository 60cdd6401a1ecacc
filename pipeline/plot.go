package pipeline

import (
	"bytes"
	"fmt"
	"math"

	"github.com/jung-kurt/gofpdf"
	traceenergy "github.com/lucasjlepore/trace-analyzer"
	"gonum.org/v1/gonum/floats"
)

const (
	plotMaxPoints = 4000
	pageW         = 297.0
	marginMM      = 12.0
)

type plotPanel struct {
	x, y, w, h float64
}

// RenderPlotPDF draws the sync pattern and the normalized aligned power of a
// report, with the case markers overlaid so boundaries can be checked by eye.
// The report must have been produced with Options.KeepAligned.
func RenderPlotPDF(report *traceenergy.FileReport, exp *traceenergy.Experiment) ([]byte, error) {
	if report == nil || len(report.Aligned) == 0 {
		return nil, fmt.Errorf("%w: no aligned samples to plot", traceenergy.ErrEmptyTrace)
	}
	powers := report.Aligned.Powers()
	normalized, err := traceenergy.NormalizeMinMax(powers, floats.Min(powers), floats.Max(powers))
	if err != nil {
		return nil, err
	}
	markers := traceenergy.VisualMarkers(exp.Plot.FirstCase, exp.Cases, report.CaseRows, exp.Plot.MarkerLevels)
	markerStart := int(float64(exp.Plot.FirstCase-1) * report.CaseRows)

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "B", 12)
	pdf.AddPage()
	title := fmt.Sprintf("%s | node %d", report.Experiment, report.Node)
	if report.Label != "" {
		title += " (" + report.Label + ")"
	}
	pdf.Cell(0, 8, title)
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 5, fmt.Sprintf("interval %.3f ms | %.2f rows/case | sync offset %d | %d samples", report.IntervalS*1000, report.CaseRows, report.Alignment.Offset, len(report.Aligned)))
	pdf.Ln(6)

	width := pageW - 2*marginMM
	syncPanel := plotPanel{x: marginMM, y: 30, w: width, h: 35}
	tracePanel := plotPanel{x: marginMM, y: 75, w: width, h: 115}

	pdf.SetFont("Arial", "", 8)
	drawFrame(pdf, syncPanel, "sync pattern")
	pdf.SetDrawColor(0, 110, 40)
	drawSeries(pdf, syncPanel, report.Pattern.Levels, 0, len(report.Pattern.Levels))

	drawFrame(pdf, tracePanel, "normalized power with case markers")
	pdf.SetDrawColor(30, 60, 160)
	drawSeries(pdf, tracePanel, normalized, 0, len(normalized))
	if len(markers) > 0 {
		pdf.SetDrawColor(200, 30, 30)
		drawSeries(pdf, tracePanel, markers, markerStart, len(normalized))
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawFrame(pdf *gofpdf.Fpdf, p plotPanel, caption string) {
	pdf.SetDrawColor(120, 120, 120)
	pdf.SetLineWidth(0.2)
	pdf.Rect(p.x, p.y, p.w, p.h, "D")
	pdf.Text(p.x, p.y-1.5, caption)
}

// drawSeries plots values in [0,1] starting at sample index start on an axis
// of span samples. Long series are decimated to plotMaxPoints.
func drawSeries(pdf *gofpdf.Fpdf, p plotPanel, values []float64, start, span int) {
	if len(values) == 0 || span <= 1 {
		return
	}
	step := 1
	if len(values) > plotMaxPoints {
		step = int(math.Ceil(float64(len(values)) / plotMaxPoints))
	}
	pdf.SetLineWidth(0.15)
	xOf := func(i int) float64 {
		return p.x + p.w*float64(start+i)/float64(span-1)
	}
	yOf := func(v float64) float64 {
		return p.y + p.h*(1-clamp01(v))
	}
	prevX, prevY := xOf(0), yOf(values[0])
	for i := step; i < len(values); i += step {
		if start+i >= span {
			break
		}
		x, y := xOf(i), yOf(values[i])
		pdf.Line(prevX, prevY, x, y)
		prevX, prevY = x, y
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
