package rentroll

import (
	"errors"
	"testing"
	"time"
)

var sampleCSV = []byte("Tenant Name,Email,Property Address,Unit,Rent Amount,Due Date\n" +
	"Jane Doe,jane@example.com,12 Main St,1A,1200,2025-07-01\n" +
	"Bad Row,,12 Main St,1B,abc,\n" +
	"Bob Roe,bob@example.com,14 Main St,2A,950,\n")

func previewedPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p := NewPipeline()
	if err := p.Intake("roll.csv", sampleCSV); err != nil {
		t.Fatalf("Intake: %v", err)
	}
	if err := p.AdvanceToPreview(time.Now()); err != nil {
		t.Fatalf("AdvanceToPreview: %v", err)
	}
	return p
}

// ============================================================================
// Forward Flow Tests
// ============================================================================

func TestPipelineForwardFlow(t *testing.T) {
	p := NewPipeline()
	if p.Stage() != StageUpload {
		t.Fatalf("new pipeline stage = %s", p.Stage())
	}

	if err := p.Intake("roll.csv", sampleCSV); err != nil {
		t.Fatalf("Intake: %v", err)
	}
	if p.Stage() != StageMapping {
		t.Fatalf("stage after intake = %s", p.Stage())
	}
	if !p.Mapping().Complete() {
		t.Fatalf("auto-map incomplete for clean headers: %v", p.Mapping().MissingFields())
	}

	if err := p.AdvanceToPreview(time.Now()); err != nil {
		t.Fatalf("AdvanceToPreview: %v", err)
	}
	if p.Stage() != StagePreview {
		t.Fatalf("stage after preview = %s", p.Stage())
	}
	if got := len(p.Candidates()); got != 3 {
		t.Fatalf("got %d candidates, want 3 (invalid rows included)", got)
	}

	valid, err := p.BeginImport()
	if err != nil {
		t.Fatalf("BeginImport: %v", err)
	}
	if p.Stage() != StageImporting {
		t.Fatalf("stage after begin = %s", p.Stage())
	}
	if len(valid) != 2 {
		t.Fatalf("got %d valid records, want 2", len(valid))
	}

	if err := p.CompleteImport(Result{Succeeded: 2}); err != nil {
		t.Fatalf("CompleteImport: %v", err)
	}
	if p.Stage() != StageComplete {
		t.Fatalf("stage after complete = %s", p.Stage())
	}
	if p.Result() == nil || p.Result().Succeeded != 2 {
		t.Errorf("result = %+v", p.Result())
	}
}

func TestPipelineIntakeFailureStaysInUpload(t *testing.T) {
	p := NewPipeline()
	err := p.Intake("roll.csv", []byte(""))
	if !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("Intake error = %v, want ErrEmptyFile", err)
	}
	if p.Stage() != StageUpload {
		t.Errorf("stage after failed intake = %s, want upload", p.Stage())
	}
}

// ============================================================================
// Gate Tests
// ============================================================================

func TestPipelinePreviewGatedOnMapping(t *testing.T) {
	p := NewPipeline()
	if err := p.Intake("roll.csv", []byte("Col A,Col B\nx,y\n")); err != nil {
		t.Fatalf("Intake: %v", err)
	}

	err := p.AdvanceToPreview(time.Now())
	if !errors.Is(err, ErrMappingIncomplete) {
		t.Fatalf("AdvanceToPreview error = %v, want ErrMappingIncomplete", err)
	}
	if p.Stage() != StageMapping {
		t.Errorf("stage = %s, want mapping", p.Stage())
	}
}

func TestPipelineInvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		call func(p *Pipeline) error
	}{
		{"intake from mapping", func(p *Pipeline) error {
			_ = p.Intake("roll.csv", sampleCSV)
			return p.Intake("again.csv", sampleCSV)
		}},
		{"set mapping from upload", func(p *Pipeline) error {
			return p.SetMapping(Mapping{})
		}},
		{"preview from upload", func(p *Pipeline) error {
			return p.AdvanceToPreview(time.Now())
		}},
		{"import from upload", func(p *Pipeline) error {
			_, err := p.BeginImport()
			return err
		}},
		{"complete from upload", func(p *Pipeline) error {
			return p.CompleteImport(Result{})
		}},
		{"back from upload", func(p *Pipeline) error {
			return p.Back()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(NewPipeline()); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("error = %v, want ErrInvalidTransition", err)
			}
		})
	}
}

// ============================================================================
// Backward Edge Tests
// ============================================================================

func TestPipelineBackFromPreview(t *testing.T) {
	p := previewedPipeline(t)

	if err := p.Back(); err != nil {
		t.Fatalf("Back: %v", err)
	}
	if p.Stage() != StageMapping {
		t.Fatalf("stage = %s, want mapping", p.Stage())
	}
	if p.Candidates() != nil {
		t.Error("candidates survived the backward edge")
	}
	// Table and mapping survive so the user can adjust and re-advance.
	if p.Table() == nil || p.Mapping() == nil {
		t.Error("table or mapping lost going back to mapping")
	}

	// Candidates are rebuilt wholesale on re-advance.
	if err := p.AdvanceToPreview(time.Now()); err != nil {
		t.Fatalf("re-advance: %v", err)
	}
	if len(p.Candidates()) != 3 {
		t.Errorf("got %d candidates after re-advance", len(p.Candidates()))
	}
}

func TestPipelineBackFromMapping(t *testing.T) {
	p := NewPipeline()
	if err := p.Intake("roll.csv", sampleCSV); err != nil {
		t.Fatalf("Intake: %v", err)
	}

	if err := p.Back(); err != nil {
		t.Fatalf("Back: %v", err)
	}
	if p.Stage() != StageUpload {
		t.Fatalf("stage = %s, want upload", p.Stage())
	}
	if p.Table() != nil || p.Mapping() != nil || p.FileName() != "" {
		t.Error("upload state not cleared going back to upload")
	}

	// A fresh file can be ingested after backing out.
	if err := p.Intake("other.csv", sampleCSV); err != nil {
		t.Errorf("re-intake: %v", err)
	}
}

func TestPipelineBackFromImporting(t *testing.T) {
	p := previewedPipeline(t)
	if _, err := p.BeginImport(); err != nil {
		t.Fatalf("BeginImport: %v", err)
	}

	if err := p.Back(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Back() from importing error = %v, want ErrInvalidTransition", err)
	}
}

func TestPipelineReset(t *testing.T) {
	p := previewedPipeline(t)
	p.Reset()

	if p.Stage() != StageUpload {
		t.Errorf("stage after reset = %s", p.Stage())
	}
	if p.Table() != nil || p.Candidates() != nil || p.Result() != nil {
		t.Error("reset left state behind")
	}
}
