package etl

import (
	"context"
	"log/slog"

	"github.com/hydroserve/hydroserve/internal/models"
)

// Pipeline is one resolved extract/transform/load run for a task. All
// three stages are bound at construction from the data connection's type
// strings; construction fails on an unknown type.
type Pipeline struct {
	extractor   Extractor
	transformer Transformer
	loader      Loader
	task        *models.Task
}

// NewPipeline resolves the task's data connection into concrete stages.
func NewPipeline(conn *models.DataConnection, task *models.Task, deps Deps) (*Pipeline, error) {
	extractor, err := newExtractor(conn.ExtractorType, conn.ExtractorSettings)
	if err != nil {
		return nil, err
	}
	transformer, err := newTransformer(conn.TransformerType, conn.TransformerSettings)
	if err != nil {
		return nil, err
	}
	loader, err := newLoader(conn.LoaderType, conn.LoaderSettings, deps)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		extractor:   extractor,
		transformer: transformer,
		loader:      loader,
		task:        task,
	}, nil
}

// Run executes the three stages sequentially. An empty extract or
// transform result completes the run normally with an informational
// message; stage errors propagate to the caller, which records the run as
// failed.
func (p *Pipeline) Run(ctx context.Context) (map[string]interface{}, error) {
	since, err := p.loader.Cutoff(ctx, p.task)
	if err != nil {
		return nil, err
	}

	frame, err := p.extractor.Extract(ctx, p.task, since)
	if err != nil {
		return nil, err
	}
	if frame.Empty() {
		slog.Info("Extractor returned no data", "task", p.task.Name)
		return map[string]interface{}{"message": "no data to process"}, nil
	}

	frame, err = p.transformer.Transform(ctx, frame, p.task.Mappings)
	if err != nil {
		return nil, err
	}
	if frame.Empty() {
		slog.Info("Transformer returned no data", "task", p.task.Name)
		return map[string]interface{}{"message": "no data to process"}, nil
	}

	stats, err := p.loader.Load(ctx, frame, p.task)
	if err != nil {
		return nil, err
	}

	slog.Info("Task load finished",
		"task", p.task.Name,
		"loaded", stats.Loaded,
		"skipped", stats.Skipped,
		"filtered_by_cutoff", stats.FilteredByCutoff)

	return map[string]interface{}{
		"message": "data loaded",
		"stats":   stats,
	}, nil
}
