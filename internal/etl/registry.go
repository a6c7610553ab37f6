package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/hydroserve/hydroserve/internal/models"
)

// The three pipeline stages are pluggable strategies resolved from the
// data connection's type strings. Factories are registered by name and
// resolved when the pipeline is constructed, so an unknown type fails fast
// as a configuration error instead of mid-run.

// Extractor fetches source data. The since argument is the load watermark;
// extractors that support incremental windows use it to bound the fetch.
// Returning a nil or empty frame ends the run normally with no data.
type Extractor interface {
	Extract(ctx context.Context, task *models.Task, since time.Time) (*Frame, error)
}

// Transformer reshapes a source frame into loader form: columns renamed to
// target datastream identifiers with per-path value transformations
// applied. Returning a nil or empty frame ends the run normally.
type Transformer interface {
	Transform(ctx context.Context, frame *Frame, mappings []models.TaskMapping) (*Frame, error)
}

// Loader writes a transformed frame into storage and reports statistics.
type Loader interface {
	Cutoff(ctx context.Context, task *models.Task) (time.Time, error)
	Load(ctx context.Context, frame *Frame, task *models.Task) (*LoadStats, error)
}

// Deps carries the collaborators stage factories may need.
type Deps struct {
	Store     ObservationStore
	ChunkSize int
	Cache     *CutoffCache
}

type (
	ExtractorFactory   func(settings map[string]interface{}) (Extractor, error)
	TransformerFactory func(settings map[string]interface{}) (Transformer, error)
	LoaderFactory      func(settings map[string]interface{}, deps Deps) (Loader, error)
)

var (
	extractorFactories   = map[string]ExtractorFactory{}
	transformerFactories = map[string]TransformerFactory{}
	loaderFactories      = map[string]LoaderFactory{}
)

// RegisterExtractor registers an extractor factory under a type name.
func RegisterExtractor(name string, f ExtractorFactory) {
	extractorFactories[name] = f
}

// RegisterTransformer registers a transformer factory under a type name.
func RegisterTransformer(name string, f TransformerFactory) {
	transformerFactories[name] = f
}

// RegisterLoader registers a loader factory under a type name.
func RegisterLoader(name string, f LoaderFactory) {
	loaderFactories[name] = f
}

// ExtractorRegistered reports whether an extractor factory exists for the
// type name. Used to validate connections at save time.
func ExtractorRegistered(name string) bool {
	_, ok := extractorFactories[name]
	return ok
}

// TransformerRegistered reports whether a transformer factory exists for
// the type name.
func TransformerRegistered(name string) bool {
	_, ok := transformerFactories[name]
	return ok
}

// LoaderRegistered reports whether a loader factory exists for the type
// name.
func LoaderRegistered(name string) bool {
	_, ok := loaderFactories[name]
	return ok
}

// ConfigError marks an invalid data connection configuration, such as an
// unknown stage type string.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

func newExtractor(typ string, settings map[string]interface{}) (Extractor, error) {
	f, ok := extractorFactories[typ]
	if !ok {
		return nil, &ConfigError{Message: fmt.Sprintf("unknown extractor type %q", typ)}
	}
	return f(settings)
}

func newTransformer(typ string, settings map[string]interface{}) (Transformer, error) {
	f, ok := transformerFactories[typ]
	if !ok {
		return nil, &ConfigError{Message: fmt.Sprintf("unknown transformer type %q", typ)}
	}
	return f(settings)
}

func newLoader(typ string, settings map[string]interface{}, deps Deps) (Loader, error) {
	f, ok := loaderFactories[typ]
	if !ok {
		return nil, &ConfigError{Message: fmt.Sprintf("unknown loader type %q", typ)}
	}
	return f(settings, deps)
}
