// Package session sequences the PDF and AI collaborators for one upload,
// analyze, edit and download workflow at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-pdf-rewriter/internal/metrics"
	"github.com/a3tai/mcp-pdf-rewriter/internal/pdf"
	"github.com/a3tai/mcp-pdf-rewriter/internal/pdf/security"
	"github.com/a3tai/mcp-pdf-rewriter/internal/workflow"
)

// DocumentService is the PDF engine used by a session
type DocumentService interface {
	PageCount(ctx context.Context, data []byte) (int, error)
	ExtractText(ctx context.Context, data []byte) (string, error)
	ApplyReplacements(ctx context.Context, data []byte, pairs []pdf.Pair) (*pdf.ApplyResult, error)
}

// TextAnalyzer is the AI service used by a session
type TextAnalyzer interface {
	Analyze(ctx context.Context, text string) (*workflow.AnalysisResult, error)
	SuggestRewrite(ctx context.Context, text string) (string, error)
}

// FileUpload is a file handed to Upload
type FileUpload struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Download is a generated document
type Download struct {
	Name          string
	Data          []byte
	Substitutions int
	PagesChanged  int
}

// Options configures sessions
type Options struct {
	// KeepTextOnFailure keeps the source and extracted text when analysis
	// fails so RetryAnalysis can run without re-uploading
	KeepTextOnFailure bool
	Logger            *zap.Logger
	Metrics           *metrics.Metrics
}

type inflightRewrite struct {
	token  uint64
	cancel context.CancelFunc
}

// Session owns one workflow state. Its methods are safe for concurrent use;
// the lock is never held while a collaborator runs.
type Session struct {
	id       string
	docs     DocumentService
	analyzer TextAnalyzer
	opts     Options
	logger   *zap.Logger

	mu    sync.Mutex
	state workflow.State
	// epoch changes whenever a pipeline is started or the session is reset;
	// a pipeline whose epoch is outdated drops its result
	epoch          uint64
	pipelineCancel context.CancelFunc
	rewrites       map[string]inflightRewrite
	rewriteSeq     uint64
}

// New creates an IDLE session
func New(id string, docs DocumentService, analyzer TextAnalyzer, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if id == "" {
		id = uuid.NewString()
	}

	return &Session{
		id:       id,
		docs:     docs,
		analyzer: analyzer,
		opts:     opts,
		logger:   logger.With(zap.String("session", id)),
		state:    workflow.Initial(),
		rewrites: make(map[string]inflightRewrite),
	}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// State returns the current snapshot
func (s *Session) State() workflow.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// dispatch applies ev to the state; the caller holds s.mu
func (s *Session) dispatch(ev workflow.Event) error {
	next, err := workflow.Reduce(s.state, ev)
	if err != nil {
		s.logger.Debug("event rejected",
			zap.String("event", ev.Name()),
			zap.Stringer("phase", s.state.Phase),
			zap.Error(err),
		)
		return err
	}
	if next.Phase != s.state.Phase {
		s.logger.Debug("phase changed",
			zap.String("event", ev.Name()),
			zap.Stringer("from", s.state.Phase),
			zap.Stringer("to", next.Phase),
		)
	}
	s.state = next
	return nil
}

// beginPipeline starts a new epoch with a cancellable context; the caller
// holds s.mu
func (s *Session) beginPipeline(ctx context.Context) (context.Context, uint64) {
	if s.pipelineCancel != nil {
		s.pipelineCancel()
	}
	s.epoch++
	ctx, cancel := context.WithCancel(ctx)
	s.pipelineCancel = cancel
	return ctx, s.epoch
}

// endPipeline releases the pipeline context if epoch is still current; the
// caller holds s.mu
func (s *Session) endPipeline(epoch uint64) bool {
	if epoch != s.epoch {
		return false
	}
	if s.pipelineCancel != nil {
		s.pipelineCancel()
		s.pipelineCancel = nil
	}
	return true
}

func busy(err error) error {
	if errors.Is(err, workflow.ErrInvalidTransition) {
		return fmt.Errorf("%w: %w", ErrBusy, err)
	}
	return err
}

// Upload validates the file type and runs the ingest pipeline: page count,
// text extraction, analysis. It returns once the session is EDITING or has
// fallen back to IDLE.
func (s *Session) Upload(ctx context.Context, file FileUpload) error {
	log := s.logger.With(zap.String("file", file.Name), zap.Int("bytes", len(file.Data)))

	s.mu.Lock()
	if !pdf.IsPDFMIMEType(file.MIMEType) {
		_ = s.dispatch(workflow.UploadRejected{Message: NotPDFMessage})
		s.mu.Unlock()
		s.opts.Metrics.RecordUpload(metrics.OutcomeRejected)
		log.Info("upload rejected", zap.String("mime_type", file.MIMEType))
		return fmt.Errorf("%w: %q", ErrNotPDF, file.MIMEType)
	}

	if err := s.dispatch(workflow.UploadStarted{File: workflow.SourceFile{
		Name:     file.Name,
		MIMEType: file.MIMEType,
		Data:     file.Data,
	}}); err != nil {
		s.mu.Unlock()
		return busy(err)
	}
	ctx, epoch := s.beginPipeline(ctx)
	s.mu.Unlock()

	log.Info("ingest started")

	pages, err := s.docs.PageCount(ctx, file.Data)
	if err != nil {
		return s.failIngest(epoch, "", fmt.Errorf("page count: %w", err))
	}

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return ErrAborted
	}
	if err := s.dispatch(workflow.PagesCounted{TotalPages: pages}); err != nil {
		s.endPipeline(epoch)
		s.mu.Unlock()
		return busy(err)
	}
	s.mu.Unlock()

	text, err := s.docs.ExtractText(ctx, file.Data)
	if err != nil {
		return s.failIngest(epoch, "", fmt.Errorf("extract text: %w", err))
	}

	return s.analyze(ctx, epoch, text)
}

// RetryAnalysis re-runs the analysis on the text kept from a failed ingest
func (s *Session) RetryAnalysis(ctx context.Context) error {
	s.mu.Lock()
	text := s.state.RetainedText
	if err := s.dispatch(workflow.AnalysisStarted{}); err != nil {
		s.mu.Unlock()
		return busy(err)
	}
	ctx, epoch := s.beginPipeline(ctx)
	s.mu.Unlock()

	s.logger.Info("analysis retry started", zap.Int("chars", len(text)))
	return s.analyze(ctx, epoch, text)
}

// analyze is the last ingest step; the session is ANALYZING
func (s *Session) analyze(ctx context.Context, epoch uint64, text string) error {
	result, err := s.analyzer.Analyze(ctx, text)
	if err != nil {
		return s.failIngest(epoch, text, fmt.Errorf("analyze: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.endPipeline(epoch) {
		return ErrAborted
	}
	if err := s.dispatch(workflow.AnalysisSucceeded{Result: *result}); err != nil {
		return busy(err)
	}

	s.opts.Metrics.RecordUpload(metrics.OutcomeSuccess)
	s.logger.Info("ingest complete",
		zap.Int("pages", s.state.Metadata.TotalPages),
		zap.Int("entities", len(result.Entities)),
	)
	return nil
}

// failIngest returns the session to IDLE with the generic ingest message
func (s *Session) failIngest(epoch uint64, text string, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.endPipeline(epoch) {
		return ErrAborted
	}

	retain := ""
	if s.opts.KeepTextOnFailure {
		retain = text
	}
	if err := s.dispatch(workflow.IngestFailed{Message: IngestFailureMessage, RetainText: retain}); err != nil {
		return busy(err)
	}

	s.opts.Metrics.RecordUpload(metrics.OutcomeFailure)
	s.logger.Warn("ingest failed", zap.Error(cause), zap.Bool("text_retained", retain != ""))
	return fmt.Errorf("%w: %w", ErrIngestFailed, cause)
}

// AddReplacement appends an entry with a fresh id. An empty original text is
// allowed.
func (s *Session) AddReplacement(original, suggestion string) workflow.Replacement {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	for s.state.Find(id) >= 0 {
		id = uuid.NewString()
	}
	// ReplacementAdded only fails on duplicate ids
	_ = s.dispatch(workflow.ReplacementAdded{ID: id, OriginalText: original, ReplacementText: suggestion})

	r, _ := s.state.Replacement(id)
	return r
}

// AddFromEntity appends an entry for an analyzer entity
func (s *Session) AddFromEntity(e workflow.Entity) workflow.Replacement {
	return s.AddReplacement(e.Value, e.Suggestion)
}

// UpdateReplacement sets the replacement text of an entry. It reports whether
// the entry exists.
func (s *Session) UpdateReplacement(id, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Find(id) < 0 {
		return false
	}
	_ = s.dispatch(workflow.ReplacementUpdated{ID: id, Text: text})
	return true
}

// EditOriginal sets the original text of an entry in place. A pending rewrite
// for the entry is cancelled.
func (s *Session) EditOriginal(id, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Find(id) < 0 {
		return false
	}
	s.cancelRewrite(id)
	_ = s.dispatch(workflow.OriginalEdited{ID: id, Text: text})
	return true
}

// RemoveReplacement drops an entry and cancels its pending rewrite
func (s *Session) RemoveReplacement(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Find(id) < 0 {
		return false
	}
	s.cancelRewrite(id)
	_ = s.dispatch(workflow.ReplacementRemoved{ID: id})
	return true
}

// cancelRewrite stops the pending rewrite of id; the caller holds s.mu
func (s *Session) cancelRewrite(id string) {
	if r, ok := s.rewrites[id]; ok {
		r.cancel()
		delete(s.rewrites, id)
	}
}

// SuggestRewrite asks the analyzer for a professional rewrite of an entry's
// original text and stores it as the replacement text. Entries with an empty
// original text are left alone. A newer request for the same entry, an edit
// of its original text or its removal discards the suggestion with ErrStale.
func (s *Session) SuggestRewrite(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	entry, ok := s.state.Replacement(id)
	if !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("replacement %s: %w", id, ErrNotFound)
	}
	if entry.OriginalText == "" {
		s.mu.Unlock()
		return "", nil
	}

	s.cancelRewrite(id)
	s.rewriteSeq++
	token := s.rewriteSeq
	ctx, cancel := context.WithCancel(ctx)
	s.rewrites[id] = inflightRewrite{token: token, cancel: cancel}
	s.mu.Unlock()

	suggestion, err := s.analyzer.SuggestRewrite(ctx, entry.OriginalText)

	s.mu.Lock()
	defer s.mu.Unlock()

	current, stillOurs := s.rewrites[id]
	stillOurs = stillOurs && current.token == token
	if stillOurs {
		delete(s.rewrites, id)
	}
	cancel()

	if err != nil {
		if !stillOurs {
			return "", ErrStale
		}
		_ = s.dispatch(workflow.RewriteFailed{Message: RewriteFailureMessage})
		s.logger.Warn("rewrite suggestion failed", zap.String("replacement", id), zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrRewriteFailed, err)
	}
	if !stillOurs {
		return "", ErrStale
	}

	_ = s.dispatch(workflow.RewriteSucceeded{ID: id, Revision: entry.Revision, Text: suggestion})
	if after, ok := s.state.Replacement(id); !ok || after.Revision != entry.Revision {
		return "", ErrStale
	}
	return suggestion, nil
}

// Apply writes every replacement into a copy of the source document. The
// session must be EDITING with a source and at least one entry.
func (s *Session) Apply(ctx context.Context) (*Download, error) {
	s.mu.Lock()
	if err := s.dispatch(workflow.ApplyStarted{}); err != nil {
		s.mu.Unlock()
		return nil, busy(err)
	}
	source := *s.state.Source
	pairs := toPDFPairs(s.state.Pairs())
	ctx, epoch := s.beginPipeline(ctx)
	s.mu.Unlock()

	log := s.logger.With(zap.String("file", source.Name), zap.Int("pairs", len(pairs)))
	log.Info("apply started")

	result, err := s.docs.ApplyReplacements(ctx, source.Data, pairs)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.endPipeline(epoch) {
		return nil, ErrAborted
	}

	if err != nil {
		_ = s.dispatch(workflow.ApplyFailed{Message: ApplyFailureMessage})
		s.opts.Metrics.RecordApply(metrics.OutcomeFailure, 0)
		log.Warn("apply failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrApplyFailed, err)
	}

	_ = s.dispatch(workflow.ApplySucceeded{})
	s.opts.Metrics.RecordApply(metrics.OutcomeSuccess, result.Total())
	log.Info("apply complete",
		zap.Int("substitutions", result.Total()),
		zap.Int("pages_changed", result.PagesChanged),
	)

	return &Download{
		Name:          security.OutputName(source.Name),
		Data:          result.Data,
		Substitutions: result.Total(),
		PagesChanged:  result.PagesChanged,
	}, nil
}

// DismissError clears the error slot
func (s *Session) DismissError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.dispatch(workflow.ErrorDismissed{})
}

// Reset returns the session to IDLE from any phase. Running pipelines and
// rewrites are cancelled and their results dropped.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pipelineCancel != nil {
		s.pipelineCancel()
		s.pipelineCancel = nil
	}
	s.epoch++
	for id := range s.rewrites {
		s.cancelRewrite(id)
	}
	_ = s.dispatch(workflow.Reset{})
}

func toPDFPairs(pairs []workflow.Pair) []pdf.Pair {
	out := make([]pdf.Pair, len(pairs))
	for i, p := range pairs {
		out[i] = pdf.Pair{OriginalText: p.OriginalText, ReplacementText: p.ReplacementText}
	}
	return out
}
