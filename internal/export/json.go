package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/storage"
)

// BodyData is one body in an exported run.
type BodyData struct {
	Name   string     `json:"name"`
	Mass   float64    `json:"mass"`
	Radius float64    `json:"radius"`
	X      float64    `json:"x"`
	Y      float64    `json:"y"`
	VX     float64    `json:"vx"`
	VY     float64    `json:"vy"`
	Color  [3]float64 `json:"color"`
}

// ExportData is the JSON document written by WriteJSON.
type ExportData struct {
	Run    storage.RunMetadata `json:"run"`
	Time   float64             `json:"time"`
	Bodies []BodyData          `json:"bodies"`
}

// WriteJSON encodes a stored run and its final snapshot. A snapshot holding
// NaN or Inf cannot be represented and yields its Err.
func WriteJSON(w io.Writer, meta storage.RunMetadata, snap dynamo.Snapshot) error {
	if err := snap.Err(); err != nil {
		return fmt.Errorf("export %s: %w", meta.ID, err)
	}

	data := ExportData{
		Run:    meta,
		Time:   snap.Time,
		Bodies: make([]BodyData, len(snap.Bodies)),
	}
	for i, b := range snap.Bodies {
		data.Bodies[i] = BodyData{
			Name:   b.Name,
			Mass:   b.Mass,
			Radius: b.Radius,
			X:      b.Pos.X,
			Y:      b.Pos.Y,
			VX:     b.Vel.X,
			VY:     b.Vel.Y,
			Color:  b.Color,
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
