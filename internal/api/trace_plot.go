package api

import (
	"fmt"
	"io"
	"math"

	"github.com/fogleman/gg"

	"github.com/volanre/jollyred/internal/game"
)

const tracePadding = 40.0

// traceSeries is one line of the trace chart
type traceSeries struct {
	label   string
	r, g, b float64
	value   func(game.TraceSample) float64
}

// RenderTrace draws a character's trace history as a PNG line chart:
// health against max health plus horizontal and vertical position, each
// scaled to its own range.
func RenderTrace(w io.Writer, samples []game.TraceSample, maxHP, width, height int) error {
	dc := gg.NewContext(width, height)

	// Background
	dc.SetRGB(0.08, 0.08, 0.1)
	dc.Clear()

	plotW := float64(width) - 2*tracePadding
	plotH := float64(height) - 2*tracePadding

	// Axes
	dc.SetRGB(0.4, 0.4, 0.45)
	dc.SetLineWidth(1)
	dc.DrawLine(tracePadding, tracePadding, tracePadding, tracePadding+plotH)
	dc.DrawLine(tracePadding, tracePadding+plotH, tracePadding+plotW, tracePadding+plotH)
	dc.Stroke()

	if len(samples) == 0 {
		dc.SetRGB(0.8, 0.8, 0.8)
		dc.DrawStringAnchored("no samples", float64(width)/2, float64(height)/2, 0.5, 0.5)
		return dc.EncodePNG(w)
	}

	t0 := samples[0].Time
	t1 := samples[len(samples)-1].Time
	span := t1 - t0
	if span <= 0 {
		span = 1
	}

	series := []traceSeries{
		{"hp", 0.9, 0.25, 0.25, func(s game.TraceSample) float64 { return float64(s.HP) }},
		{"x", 0.3, 0.6, 1.0, func(s game.TraceSample) float64 { return s.Position.X }},
		{"y", 0.35, 0.85, 0.4, func(s game.TraceSample) float64 { return s.Position.Y }},
	}

	for i, sr := range series {
		lo, hi := seriesRange(samples, sr.value)
		if sr.label == "hp" {
			lo, hi = math.Min(lo, 0), math.Max(hi, float64(maxHP))
		}
		if hi-lo < 1e-9 {
			hi = lo + 1
		}

		dc.SetRGB(sr.r, sr.g, sr.b)
		dc.SetLineWidth(2)
		for j, s := range samples {
			px := tracePadding + (s.Time-t0)/span*plotW
			py := tracePadding + plotH - (sr.value(s)-lo)/(hi-lo)*plotH
			if j == 0 {
				dc.MoveTo(px, py)
			} else {
				dc.LineTo(px, py)
			}
		}
		dc.Stroke()

		// Legend
		dc.DrawString(fmt.Sprintf("%s [%.1f, %.1f]", sr.label, lo, hi), tracePadding+float64(i)*160, tracePadding-12)
	}

	dc.SetRGB(0.8, 0.8, 0.8)
	dc.DrawString(fmt.Sprintf("t = %.2fs .. %.2fs", t0, t1), tracePadding, float64(height)-12)

	return dc.EncodePNG(w)
}

func seriesRange(samples []game.TraceSample, value func(game.TraceSample) float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range samples {
		v := value(s)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
