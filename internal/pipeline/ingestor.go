// Package pipeline orchestrates spreadsheet ingestion: load the file into a
// grid, detect the table, map columns onto the transaction schema and
// materialize validated transactions. Fatal errors stop the run; per-row
// validation failures are collected and reported alongside the successes.
package pipeline

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/karoltaylor/finance-ingest/internal/detect"
	"github.com/karoltaylor/finance-ingest/internal/loader"
	"github.com/karoltaylor/finance-ingest/internal/logger"
	"github.com/karoltaylor/finance-ingest/internal/mapping"
)

// Ingestor wires the pipeline steps together with their collaborators.
type Ingestor struct {
	detector   *detect.Detector
	mapper     *mapping.Mapper
	classifier mapping.AssetClassifier
	sampleRows int
	log        zerolog.Logger
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithClassifier enables best-effort asset type classification.
func WithClassifier(c mapping.AssetClassifier) Option {
	return func(ing *Ingestor) { ing.classifier = c }
}

// WithDetector overrides the default table detector.
func WithDetector(d *detect.Detector) Option {
	return func(ing *Ingestor) { ing.detector = d }
}

// WithSampleRows sets how many data rows accompany the mapping prompt.
func WithSampleRows(n int) Option {
	return func(ing *Ingestor) { ing.sampleRows = n }
}

// NewIngestor creates an ingestor with production defaults.
func NewIngestor(mapper *mapping.Mapper, log zerolog.Logger, opts ...Option) *Ingestor {
	ing := &Ingestor{
		detector:   detect.NewDetector(),
		mapper:     mapper,
		sampleRows: 5,
		log:        logger.WithComponent(log, "pipeline"),
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// Result is the outcome of one ingestion run.
type Result struct {
	Transactions []*Transaction
	RowErrors    []RowError

	HeaderRow int
	Columns   []string
	Mapping   mapping.Mapping

	// Degraded marks a run whose column mapping fell back to unmapped
	// because the mapping service was unavailable.
	Degraded bool
}

// PreviewResult describes what an ingestion would do without committing
// anything: no cache writes, no stored transactions.
type PreviewResult struct {
	HeaderRow  int
	Columns    []string
	Mapping    mapping.Mapping
	SampleRows [][]string
	Degraded   bool
}

// Run ingests one file. Load, detection and materialization failures of the
// whole file are fatal; individual bad rows only land in Result.RowErrors.
func (ing *Ingestor) Run(ctx context.Context, data []byte, kind loader.FileKind, defaults Defaults) (*Result, error) {
	state := &State{Data: data, Kind: kind, Defaults: defaults}
	ctx = logger.WithContext(ctx, ing.log)

	p := NewPipeline(
		&LoadStep{},
		&DetectStep{Detector: ing.detector},
		&MapStep{Mapper: ing.mapper, SampleRows: ing.sampleRows},
		&MaterializeStep{Materializer: NewMaterializer(ing.mapper.Schema())},
		&ClassifyStep{Classifier: ing.classifier},
	)
	if err := p.Execute(ctx, state); err != nil {
		return nil, err
	}

	ing.log.Info().
		Str("kind", string(kind)).
		Int("header_row", state.Detection.HeaderRow).
		Int("transactions", len(state.Transactions)).
		Int("row_errors", len(state.RowErrors)).
		Bool("degraded", state.Degraded).
		Msg("ingestion finished")

	return &Result{
		Transactions: state.Transactions,
		RowErrors:    state.RowErrors,
		HeaderRow:    state.Detection.HeaderRow,
		Columns:      state.Detection.Columns,
		Mapping:      state.Mapping,
		Degraded:     state.Degraded,
	}, nil
}

// Preview runs load, detection and mapping only. The mapping cache is read
// but never written, so previewing a new layout does not pin its mapping.
func (ing *Ingestor) Preview(ctx context.Context, data []byte, kind loader.FileKind) (*PreviewResult, error) {
	state := &State{Data: data, Kind: kind, Preview: true}
	ctx = logger.WithContext(ctx, ing.log)

	p := NewPipeline(
		&LoadStep{},
		&DetectStep{Detector: ing.detector},
		&MapStep{Mapper: ing.mapper, SampleRows: ing.sampleRows},
	)
	if err := p.Execute(ctx, state); err != nil {
		return nil, err
	}

	return &PreviewResult{
		HeaderRow:  state.Detection.HeaderRow,
		Columns:    state.Detection.Columns,
		Mapping:    state.Mapping,
		SampleRows: sampleRows(state.Detection.DataRows, ing.sampleRows, len(state.Detection.Columns)),
		Degraded:   state.Degraded,
	}, nil
}
