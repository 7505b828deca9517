package session

import (
	"errors"

	"github.com/a3tai/mcp-pdf-rewriter/internal/workflow"
)

// Messages shown in the error slot. Collaborator details are only logged.
const (
	NotPDFMessage         = "Please upload a valid PDF file."
	IngestFailureMessage  = "Processing failed. The file may be protected or corrupted."
	ApplyFailureMessage   = "Failed to generate PDF. Check if the file is protected."
	RewriteFailureMessage = "Failed to generate a rewrite suggestion."
)

var (
	// ErrNotPDF is returned when an upload does not declare a PDF media type
	ErrNotPDF = errors.New("file is not a PDF")
	// ErrBusy is returned when the current phase does not allow the operation
	ErrBusy = errors.New("session is busy")
	// ErrNotFound is returned for unknown sessions and replacement ids
	ErrNotFound = errors.New("not found")
	// ErrTooManySessions is returned when the registry is full
	ErrTooManySessions = errors.New("too many sessions")
	// ErrAborted is returned when a reset or new upload overtook a running pipeline
	ErrAborted = errors.New("operation aborted by a newer request")
	// ErrStale is returned when a rewrite suggestion was discarded because its
	// entry changed or disappeared while the suggestion was generated
	ErrStale = errors.New("suggestion discarded: entry changed")
	// ErrIngestFailed wraps any failure of the ingest pipeline
	ErrIngestFailed = errors.New("ingest failed")
	// ErrApplyFailed wraps any failure of apply-replacements
	ErrApplyFailed = errors.New("apply failed")
	// ErrRewriteFailed wraps a failed rewrite suggestion
	ErrRewriteFailed = errors.New("suggest rewrite failed")

	ErrNoSource       = workflow.ErrNoSource
	ErrNoReplacements = workflow.ErrNoReplacements
	ErrNothingToRetry = workflow.ErrNothingToRetry
)
