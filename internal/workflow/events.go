package workflow

// Event is an input to Reduce
type Event interface {
	// Name identifies the event in logs and errors
	Name() string
}

// UploadStarted is dispatched once the file passed MIME validation
type UploadStarted struct {
	File SourceFile
}

// UploadRejected records a validation failure; the phase does not change
type UploadRejected struct {
	Message string
}

// PagesCounted carries the page count reported by the PDF service
type PagesCounted struct {
	TotalPages int
}

// AnalysisStarted moves an ingest, or a retry, into the analyzing phase
type AnalysisStarted struct{}

// AnalysisSucceeded stores the analyzer result and opens the editor
type AnalysisSucceeded struct {
	Result AnalysisResult
}

// IngestFailed aborts the ingest pipeline. When RetainText is set the extracted text
// is kept so the analysis can be retried.
type IngestFailed struct {
	Message    string
	RetainText string
}

// ReplacementAdded appends a new entry. The caller supplies a fresh ID.
type ReplacementAdded struct {
	ID              string
	OriginalText    string
	ReplacementText string
}

// ReplacementUpdated overwrites the replacement text of an entry
type ReplacementUpdated struct {
	ID   string
	Text string
}

// OriginalEdited overwrites the original text of an entry
type OriginalEdited struct {
	ID   string
	Text string
}

// ReplacementRemoved drops an entry
type ReplacementRemoved struct {
	ID string
}

// RewriteSucceeded applies an AI suggestion if the entry still exists at Revision
type RewriteSucceeded struct {
	ID       string
	Revision int
	Text     string
}

// RewriteFailed reports a failed suggestion without leaving the editor
type RewriteFailed struct {
	Message string
}

// ApplyStarted moves the editor into processing
type ApplyStarted struct{}

// ApplySucceeded returns to the editor after a download was produced
type ApplySucceeded struct{}

// ApplyFailed returns to the editor with an error
type ApplyFailed struct {
	Message string
}

// ErrorDismissed clears the error slot
type ErrorDismissed struct{}

// Reset returns to IDLE from any phase
type Reset struct{}

// Name implements Event
func (UploadStarted) Name() string      { return "UploadStarted" }
func (UploadRejected) Name() string     { return "UploadRejected" }
func (PagesCounted) Name() string       { return "PagesCounted" }
func (AnalysisStarted) Name() string    { return "AnalysisStarted" }
func (AnalysisSucceeded) Name() string  { return "AnalysisSucceeded" }
func (IngestFailed) Name() string       { return "IngestFailed" }
func (ReplacementAdded) Name() string   { return "ReplacementAdded" }
func (ReplacementUpdated) Name() string { return "ReplacementUpdated" }
func (OriginalEdited) Name() string     { return "OriginalEdited" }
func (ReplacementRemoved) Name() string { return "ReplacementRemoved" }
func (RewriteSucceeded) Name() string   { return "RewriteSucceeded" }
func (RewriteFailed) Name() string      { return "RewriteFailed" }
func (ApplyStarted) Name() string       { return "ApplyStarted" }
func (ApplySucceeded) Name() string     { return "ApplySucceeded" }
func (ApplyFailed) Name() string        { return "ApplyFailed" }
func (ErrorDismissed) Name() string     { return "ErrorDismissed" }
func (Reset) Name() string              { return "Reset" }
