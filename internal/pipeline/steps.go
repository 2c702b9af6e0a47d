package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/karoltaylor/finance-ingest/internal/detect"
	"github.com/karoltaylor/finance-ingest/internal/grid"
	"github.com/karoltaylor/finance-ingest/internal/loader"
	"github.com/karoltaylor/finance-ingest/internal/logger"
	"github.com/karoltaylor/finance-ingest/internal/mapping"
)

// Step is a single stage of the ingestion pipeline.
type Step interface {
	Execute(ctx context.Context, state *State) error
}

// State holds the shared state flowing through the pipeline steps.
type State struct {
	Data     []byte
	Kind     loader.FileKind
	Defaults Defaults

	// Preview suppresses cache writes so a dry run never pins a mapping.
	Preview bool

	Grid         grid.Grid
	Detection    detect.Result
	Mapping      mapping.Mapping
	Degraded     bool
	Transactions []*Transaction
	RowErrors    []RowError
}

// LoadStep parses the file bytes into a raw grid.
type LoadStep struct{}

func (s *LoadStep) Execute(ctx context.Context, state *State) error {
	ld, err := loader.ForKind(state.Kind)
	if err != nil {
		return err
	}
	g, err := ld.Load(state.Data)
	if err != nil {
		return fmt.Errorf("load %s: %w", state.Kind, err)
	}
	state.Grid = g
	return nil
}

// DetectStep locates the header row and the data region.
type DetectStep struct {
	Detector *detect.Detector
}

func (s *DetectStep) Execute(ctx context.Context, state *State) error {
	res, err := s.Detector.Detect(state.Grid)
	if err != nil {
		return err
	}
	state.Detection = res
	return nil
}

// MapStep resolves source columns onto the target schema. A mapping service
// failure is not fatal: the step keeps the all-unmapped fallback, flags the
// state as degraded and lets validation report the per-row consequences.
type MapStep struct {
	Mapper     *mapping.Mapper
	SampleRows int
}

func (s *MapStep) Execute(ctx context.Context, state *State) error {
	samples := sampleRows(state.Detection.DataRows, s.SampleRows, len(state.Detection.Columns))

	resolve := s.Mapper.Map
	if state.Preview {
		resolve = s.Mapper.Peek
	}
	mapped, err := resolve(ctx, state.Detection.Columns, samples, string(state.Kind))
	if err != nil {
		if !errors.Is(err, mapping.ErrServiceUnavailable) {
			return err
		}
		state.Degraded = true
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("column mapping degraded, continuing unmapped")
	}
	state.Mapping = mapped
	return nil
}

// MaterializeStep turns each data row into a transaction, collecting row
// errors for the rows that fail validation.
type MaterializeStep struct {
	Materializer *Materializer
}

func (s *MaterializeStep) Execute(ctx context.Context, state *State) error {
	colIndex := make(map[string]int, len(state.Detection.Columns))
	for i, col := range state.Detection.Columns {
		colIndex[col] = i
	}

	state.Transactions = make([]*Transaction, 0, len(state.Detection.DataRows))
	for rowIdx, row := range state.Detection.DataRows {
		raw := make(MappedRow)
		for target, source := range state.Mapping.Targets {
			if source == "" {
				continue
			}
			if i, ok := colIndex[source]; ok && i < len(row) {
				raw[target] = row[i].Text()
			}
		}

		tx, errs := s.Materializer.Materialize(rowIdx, raw, state.Defaults)
		if len(errs) > 0 {
			state.RowErrors = append(state.RowErrors, errs...)
			continue
		}
		state.Transactions = append(state.Transactions, tx)
	}
	return nil
}

// ClassifyStep fills in asset types the file did not carry. Classification
// is best-effort and cached per asset name within the run; any failure
// leaves the default type in place.
type ClassifyStep struct {
	Classifier mapping.AssetClassifier
}

func (s *ClassifyStep) Execute(ctx context.Context, state *State) error {
	fallback := state.Defaults.AssetType
	if !mapping.KnownAssetType(fallback) {
		fallback = mapping.AssetTypeOther
	}

	cache := make(map[string]string)
	for _, tx := range state.Transactions {
		if tx.AssetType != "" {
			continue
		}
		if s.Classifier == nil {
			tx.AssetType = fallback
			continue
		}
		if t, ok := cache[tx.AssetName]; ok {
			tx.AssetType = t
			continue
		}
		info, err := s.Classifier.ClassifyAsset(ctx, tx.AssetName)
		if err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Str("asset", tx.AssetName).Msg("asset classification failed")
			cache[tx.AssetName] = fallback
			tx.AssetType = fallback
			continue
		}
		cache[tx.AssetName] = info.AssetType
		tx.AssetType = info.AssetType
	}
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []Step
}

// NewPipeline creates a pipeline from the given steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially, stopping at the first fatal error.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d: %w", i+1, err)
		}
	}
	return nil
}

// sampleRows renders up to n leading data rows as strings for the mapping
// prompt, padding short rows to the column count.
func sampleRows(rows []grid.Row, n, width int) [][]string {
	if n > len(rows) {
		n = len(rows)
	}
	out := make([][]string, 0, n)
	for _, row := range rows[:n] {
		vals := make([]string, width)
		for i := 0; i < width && i < len(row); i++ {
			vals[i] = row[i].Text()
		}
		out = append(out, vals)
	}
	return out
}
