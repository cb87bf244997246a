package rentroll

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ImportTimeout is the maximum duration for an import execution.
var ImportTimeout = 10 * time.Minute

// SessionTTL is how long a finished session stays queryable before cleanup.
var SessionTTL = 30 * time.Minute

// RunRecorder persists import-run history. Stores that implement it get a
// run row per execution, which is what rollback-by-run hangs off.
type RunRecorder interface {
	CreateRun(ctx context.Context, fileName string) (string, error)
	FinishRun(ctx context.Context, runID string, succeeded, failed int, status string) error
}

// Run status values recorded by the service.
const (
	RunStatusComplete   = "complete"
	RunStatusCancelled  = "cancelled"
	RunStatusRolledBack = "rolled_back"
)

// Service owns the import sessions. Each session wraps one Pipeline and
// serializes access to it; execution runs in a background goroutine with
// progress fan-out, the way uploads are processed elsewhere in this codebase.
type Service struct {
	store       TenantStore
	callTimeout time.Duration
	limiter     *ImportLimiter

	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	ID string

	mu       sync.Mutex // guards pipeline and cancel
	pipeline *Pipeline
	cancel   context.CancelFunc

	progressMu sync.Mutex
	progress   Progress
	listeners  []chan Progress

	done   chan struct{}
	result *Result
	err    error
}

// NewService creates a Service writing through store. callTimeout bounds
// each datastore call during execution; zero means DefaultCallTimeout.
func NewService(store TenantStore, callTimeout time.Duration) *Service {
	return &Service{
		store:       store,
		callTimeout: callTimeout,
		limiter:     NewImportLimiter(DefaultMaxConcurrentImports, DefaultImportWaitTime),
		sessions:    make(map[string]*session),
	}
}

// ConfigureLimiter replaces the execution concurrency limits. Call before
// the service starts taking requests.
func (s *Service) ConfigureLimiter(maxConcurrent int, maxWait time.Duration) {
	s.limiter = NewImportLimiter(maxConcurrent, maxWait)
}

// LimiterStatus reports the execution limiter's current state.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until all running executions finish or ctx is
// cancelled. Used for graceful shutdown.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// SessionView is the handler-facing snapshot of a session's current stage.
type SessionView struct {
	ID          string             `json:"id"`
	Stage       Stage              `json:"stage"`
	FileName    string             `json:"fileName,omitempty"`
	Headers     []string           `json:"headers,omitempty"`
	RowCount    int                `json:"rowCount"`
	Mapping     Mapping            `json:"mapping,omitempty"`
	Suggestions map[Field][]string `json:"suggestions,omitempty"`
	Candidates  []CandidateRecord  `json:"candidates,omitempty"`
	Result      *Result            `json:"result,omitempty"`
}

// Create opens a new import session from an uploaded file. The file is
// parsed immediately; on success the session is in the mapping stage with
// the auto-mapped defaults and per-field suggestions ready for the UI.
func (s *Service) Create(fileName string, data []byte) (*SessionView, error) {
	p := NewPipeline()
	if err := p.Intake(fileName, data); err != nil {
		return nil, err
	}

	sess := &session{
		ID:       uuid.New().String(),
		pipeline: p,
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	slog.Info("import session created",
		"session_id", sess.ID,
		"file", fileName,
		"rows", len(p.Table().Rows),
	)

	return s.view(sess), nil
}

// View returns the current snapshot of a session.
func (s *Service) View(sessionID string) (*SessionView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

// SetMapping replaces a session's column mapping.
func (s *Service) SetMapping(sessionID string, m Mapping) (*SessionView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.pipeline.SetMapping(m); err != nil {
		return nil, err
	}
	return s.viewLocked(sess), nil
}

// Preview validates every row under the current mapping and advances the
// session to the preview stage. Gated on the mapping being complete.
func (s *Service) Preview(sessionID string) (*SessionView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.pipeline.AdvanceToPreview(time.Now()); err != nil {
		return nil, err
	}
	return s.viewLocked(sess), nil
}

// Back moves a session one stage backward (preview → mapping or
// mapping → upload).
func (s *Service) Back(sessionID string) (*SessionView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.pipeline.Back(); err != nil {
		return nil, err
	}
	return s.viewLocked(sess), nil
}

// Execute starts importing the session's valid candidates in the background.
// Progress is available via SubscribeProgress; the final counts via Result.
func (s *Service) Execute(ctx context.Context, sessionID string) error {
	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return err
	}

	sess.mu.Lock()
	candidates, err := sess.pipeline.BeginImport()
	if err != nil {
		sess.mu.Unlock()
		s.limiter.Release()
		return err
	}
	fileName := sess.pipeline.FileName()
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ImportTimeout)
	sess.cancel = cancel
	sess.mu.Unlock()

	sess.setProgress(Progress{
		SessionID: sess.ID,
		Phase:     PhaseImporting,
		TotalRows: len(candidates),
	})

	go func() {
		defer s.limiter.Release()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in import execution",
					"session_id", sess.ID,
					"panic", r,
				)
				sess.fail(fmt.Sprintf("internal error: %v", r))
			}
			close(sess.done)
			sess.closeListeners()
			s.cleanup(sess.ID, SessionTTL)
		}()
		s.runImport(runCtx, sess, candidates, fileName)
	}()

	return nil
}

// runImport drives the executor and records the run in history when the
// store supports it.
func (s *Service) runImport(ctx context.Context, sess *session, candidates []CandidateRecord, fileName string) {
	logger := slog.With("session_id", sess.ID, "file", fileName)

	runID := ""
	recorder, _ := s.store.(RunRecorder)
	if recorder != nil {
		id, err := recorder.CreateRun(ctx, fileName)
		if err != nil {
			logger.Warn("run history unavailable", "error", err)
		} else {
			runID = id
		}
	}

	exec := NewExecutor(s.store)
	exec.CallTimeout = s.callTimeout
	exec.OnRow = func(done, succeeded, failed int) {
		sess.updateProgress(func(p *Progress) {
			p.Current = done
			p.Succeeded = succeeded
			p.Failed = failed
		})
	}

	result, runErr := exec.Run(ctx, candidates, runID)

	status := RunStatusComplete
	phase := PhaseComplete
	if runErr != nil {
		status = RunStatusCancelled
		phase = PhaseCancelled
	}

	if recorder != nil && runID != "" {
		if err := recorder.FinishRun(context.WithoutCancel(ctx), runID, result.Succeeded, result.Failed, status); err != nil {
			logger.Warn("failed to finalize run history", "run_id", runID, "error", err)
		}
	}

	sess.mu.Lock()
	_ = sess.pipeline.CompleteImport(result)
	sess.mu.Unlock()

	sess.result = &result
	sess.updateProgress(func(p *Progress) {
		p.Phase = phase
		p.Current = len(result.Outcomes)
		p.Succeeded = result.Succeeded
		p.Failed = result.Failed
		if runErr != nil {
			p.Error = runErr.Error()
		}
	})

	logger.Info("import finished",
		"run_id", runID,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"duration_ms", result.Duration.Milliseconds(),
		"status", status,
	)
}

// SubscribeProgress returns a channel receiving progress updates for an
// executing session. The channel is closed when execution finishes.
func (s *Service) SubscribeProgress(sessionID string) (<-chan Progress, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	ch := make(chan Progress, 10)

	sess.progressMu.Lock()
	select {
	case <-sess.done:
		// Execution already finished; deliver the final snapshot and
		// signal completion immediately.
		ch <- sess.progress
		close(ch)
	default:
		sess.listeners = append(sess.listeners, ch)
		select {
		case ch <- sess.progress:
		default:
		}
	}
	sess.progressMu.Unlock()

	return ch, nil
}

// Cancel stops an executing session between rows. Rows already written stay
// written; the result reflects what completed.
func (s *Service) Cancel(sessionID string) error {
	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	cancel := sess.cancel
	sess.mu.Unlock()
	if cancel == nil {
		return fmt.Errorf("session %s is not executing", sessionID)
	}
	cancel()
	return nil
}

// Result blocks until the session's execution finishes and returns the final
// counts and per-row outcomes.
func (s *Service) Result(sessionID string) (*Result, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	<-sess.done

	if sess.result == nil {
		return nil, fmt.Errorf("import failed: %v", sess.err)
	}
	return sess.result, nil
}

func (s *Service) session(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// cleanup removes a session after the retention delay so late result polls
// still succeed.
func (s *Service) cleanup(id string, after time.Duration) {
	time.AfterFunc(after, func() {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
	})
}

func (s *Service) view(sess *session) *SessionView {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.viewLocked(sess)
}

// viewLocked builds a SessionView; the caller holds sess.mu.
func (s *Service) viewLocked(sess *session) *SessionView {
	p := sess.pipeline
	v := &SessionView{
		ID:       sess.ID,
		Stage:    p.Stage(),
		FileName: p.FileName(),
		Mapping:  p.Mapping(),
		Result:   p.Result(),
	}
	if t := p.Table(); t != nil {
		v.Headers = t.Headers
		v.RowCount = len(t.Rows)
		v.Suggestions = SuggestMappings(t.Headers)
	}
	if p.Stage() == StagePreview {
		v.Candidates = p.Candidates()
	}
	return v
}

func (sess *session) setProgress(p Progress) {
	sess.progressMu.Lock()
	sess.progress = p
	sess.notifyLocked()
	sess.progressMu.Unlock()
}

func (sess *session) updateProgress(fn func(*Progress)) {
	sess.progressMu.Lock()
	fn(&sess.progress)
	sess.notifyLocked()
	sess.progressMu.Unlock()
}

func (sess *session) fail(msg string) {
	sess.err = fmt.Errorf("%s", msg)
	sess.updateProgress(func(p *Progress) {
		p.Phase = PhaseFailed
		p.Error = msg
	})
}

// notifyLocked fans the current progress out to listeners without blocking;
// slow listeners miss intermediate snapshots, never the final one (it is
// resent on subscribe and the channel close signals completion).
func (sess *session) notifyLocked() {
	for _, ch := range sess.listeners {
		select {
		case ch <- sess.progress:
		default:
		}
	}
}

func (sess *session) closeListeners() {
	sess.progressMu.Lock()
	for _, ch := range sess.listeners {
		close(ch)
	}
	sess.listeners = nil
	sess.progressMu.Unlock()
}
