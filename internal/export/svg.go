package export

import (
	"fmt"
	"html"
	"math"
	"strings"

	"github.com/san-kum/gravsim/internal/dynamo"
)

const minDotRadius = 2.0

// HexColor converts a unit-interval RGB triple to #rrggbb.
func HexColor(c dynamo.Color) string {
	var b [3]int
	for i, v := range c {
		v = math.Max(0, math.Min(1, v))
		b[i] = int(math.Round(v * 255))
	}
	return fmt.Sprintf("#%02x%02x%02x", b[0], b[1], b[2])
}

// SnapshotToSVG draws every finite body of snap as a labelled disc. The
// frame is fitted to the bodies with equal scale on both axes.
func SnapshotToSVG(snap dynamo.Snapshot, width, height int) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	bodies := make([]dynamo.Body, 0, len(snap.Bodies))
	for _, b := range snap.Bodies {
		if b.IsValid() {
			bodies = append(bodies, b)
		}
	}

	if len(bodies) > 0 {
		minX, maxX := bodies[0].Pos.X, bodies[0].Pos.X
		minY, maxY := bodies[0].Pos.Y, bodies[0].Pos.Y
		for _, b := range bodies {
			minX = math.Min(minX, b.Pos.X)
			maxX = math.Max(maxX, b.Pos.X)
			minY = math.Min(minY, b.Pos.Y)
			maxY = math.Max(maxY, b.Pos.Y)
		}

		span := math.Max(maxX-minX, maxY-minY)
		if span == 0 {
			span = 1
		}
		span *= 1.2
		scale := math.Min(float64(width), float64(height)) / span
		cx, cy := (minX+maxX)/2, (minY+maxY)/2

		for _, b := range bodies {
			x := float64(width)/2 + (b.Pos.X-cx)*scale
			y := float64(height)/2 - (b.Pos.Y-cy)*scale
			r := math.Max(minDotRadius, b.Radius*scale)
			sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.1f" fill="%s"/>
`, x, y, r, HexColor(b.Color)))
			if b.Name != "" {
				sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" fill="#888888" font-family="monospace" font-size="10">%s</text>
`, x+r+2, y-r-2, html.EscapeString(b.Name)))
			}
		}
	}

	sb.WriteString(fmt.Sprintf(`<text x="8" y="%d" fill="#888888" font-family="monospace" font-size="12">t=%.4g s  tick %d</text>
`, height-8, snap.Time, snap.Tick))
	sb.WriteString("</svg>")
	return sb.String()
}
