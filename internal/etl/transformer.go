package etl

import (
	"context"
	"log/slog"

	"github.com/hydroserve/hydroserve/internal/models"
)

// MappingTransformer renames source field columns to their target
// datastream identifiers and applies each path's ordered value
// transformations. One source field may feed several datastreams. Source
// columns without a mapping are dropped; mappings whose source column is
// absent from the frame are skipped with a warning.
type MappingTransformer struct{}

func init() {
	RegisterTransformer("mapping", func(settings map[string]interface{}) (Transformer, error) {
		return &MappingTransformer{}, nil
	})
}

// Transform produces the loader-facing frame. A nil return short-circuits
// the run as a normal "no data" completion.
func (t *MappingTransformer) Transform(ctx context.Context, frame *Frame, mappings []models.TaskMapping) (*Frame, error) {
	if frame.Empty() {
		return nil, nil
	}

	out := NewFrame(frame.Timestamps())
	for _, m := range mappings {
		src := frame.Column(m.SourceIdentifier)
		if src == nil {
			slog.Warn("Source field missing from extracted frame", "source", m.SourceIdentifier)
			continue
		}
		for _, path := range m.Paths {
			vals := applyTransformations(src, path.Transformations)
			if err := out.AddColumn(path.DatastreamID.String(), vals); err != nil {
				return nil, err
			}
		}
	}

	if out.Empty() {
		return nil, nil
	}
	return out, nil
}

// applyTransformations runs the ordered transformation list over a copy of
// the column. Missing cells stay missing.
func applyTransformations(src []float64, specs []models.PathTransformation) []float64 {
	vals := make([]float64, len(src))
	copy(vals, src)
	for _, spec := range specs {
		for i, v := range vals {
			if IsMissing(v) {
				continue
			}
			vals[i] = v*spec.Factor + spec.Offset
		}
	}
	return vals
}
