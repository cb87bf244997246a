package rentroll

// pipeline.go is the stage machine driving a single import from file upload
// to final counts. Control flow is strictly forward through
// upload → mapping → preview → importing → complete, with explicit backward
// edges mapping → upload and preview → mapping. Complete is terminal; a new
// import starts from a Reset pipeline.

import (
	"fmt"
	"time"
)

// Stage identifies where in the import flow a pipeline currently is.
type Stage string

const (
	StageUpload    Stage = "upload"
	StageMapping   Stage = "mapping"
	StagePreview   Stage = "preview"
	StageImporting Stage = "importing"
	StageComplete  Stage = "complete"
)

// Pipeline holds one import's state and the payload of its current stage.
// It is not safe for concurrent use; the owning session serializes access.
type Pipeline struct {
	stage      Stage
	fileName   string
	table      *Table
	mapping    Mapping
	candidates []CandidateRecord
	result     *Result
}

// NewPipeline returns a pipeline in the upload stage.
func NewPipeline() *Pipeline {
	return &Pipeline{stage: StageUpload}
}

// Stage returns the current stage.
func (p *Pipeline) Stage() Stage { return p.stage }

// FileName returns the name of the ingested file, if any.
func (p *Pipeline) FileName() string { return p.fileName }

// Table returns the parsed table, nil before intake.
func (p *Pipeline) Table() *Table { return p.table }

// Mapping returns the current column mapping, nil before intake.
func (p *Pipeline) Mapping() Mapping { return p.mapping }

// Candidates returns the records from the last validation pass, both valid
// and invalid, nil before preview.
func (p *Pipeline) Candidates() []CandidateRecord { return p.candidates }

// Result returns the final counts, nil until the import completes.
func (p *Pipeline) Result() *Result { return p.result }

// Intake parses the uploaded file and advances upload → mapping, seeding the
// mapping with the auto-map heuristic. Parse failures leave the pipeline in
// the upload stage so the user can re-select a file.
func (p *Pipeline) Intake(fileName string, data []byte) error {
	if p.stage != StageUpload {
		return fmt.Errorf("%w: intake from %s", ErrInvalidTransition, p.stage)
	}

	table, err := ParseFile(fileName, data)
	if err != nil {
		return err
	}

	p.fileName = fileName
	p.table = table
	p.mapping = AutoMap(table.Headers)
	p.stage = StageMapping
	return nil
}

// SetMapping replaces the column mapping while in the mapping stage.
func (p *Pipeline) SetMapping(m Mapping) error {
	if p.stage != StageMapping {
		return fmt.Errorf("%w: set mapping from %s", ErrInvalidTransition, p.stage)
	}
	if err := m.Validate(p.table.Headers); err != nil {
		return err
	}
	p.mapping = m
	return nil
}

// AdvanceToPreview runs validation in full and advances mapping → preview.
// It is gated on the mapping being complete. Candidates from any earlier
// preview are recreated wholesale, never diffed.
func (p *Pipeline) AdvanceToPreview(now time.Time) error {
	if p.stage != StageMapping {
		return fmt.Errorf("%w: preview from %s", ErrInvalidTransition, p.stage)
	}
	if !p.mapping.Complete() {
		return fmt.Errorf("%w: %v", ErrMappingIncomplete, p.mapping.MissingFields())
	}

	p.candidates = ValidateRows(p.table, p.mapping, now)
	p.stage = StagePreview
	return nil
}

// Back moves one stage backward: preview → mapping discards the candidates,
// mapping → upload discards the table and mapping. No other stage has a
// backward edge.
func (p *Pipeline) Back() error {
	switch p.stage {
	case StagePreview:
		p.candidates = nil
		p.stage = StageMapping
		return nil
	case StageMapping:
		p.fileName = ""
		p.table = nil
		p.mapping = nil
		p.stage = StageUpload
		return nil
	default:
		return fmt.Errorf("%w: back from %s", ErrInvalidTransition, p.stage)
	}
}

// BeginImport advances preview → importing and returns the valid subset the
// executor should process. Invalid records stay behind for display only.
func (p *Pipeline) BeginImport() ([]CandidateRecord, error) {
	if p.stage != StagePreview {
		return nil, fmt.Errorf("%w: import from %s", ErrInvalidTransition, p.stage)
	}
	p.stage = StageImporting
	return ValidRecords(p.candidates), nil
}

// CompleteImport records the executor's result and advances
// importing → complete.
func (p *Pipeline) CompleteImport(r Result) error {
	if p.stage != StageImporting {
		return fmt.Errorf("%w: complete from %s", ErrInvalidTransition, p.stage)
	}
	p.result = &r
	p.stage = StageComplete
	return nil
}

// Reset clears all state and returns the pipeline to the upload stage.
func (p *Pipeline) Reset() {
	*p = Pipeline{stage: StageUpload}
}
