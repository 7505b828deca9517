// Package workflow models the upload, analyze, edit and download workflow as an
// immutable State value transitioned by events through a pure reducer.
package workflow

import (
	"math"
	"slices"
)

// Phase is the single active stage of the workflow
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseUploading
	PhaseAnalyzing
	PhaseEditing
	PhaseProcessing
)

// String returns the upper-case phase name
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseUploading:
		return "UPLOADING"
	case PhaseAnalyzing:
		return "ANALYZING"
	case PhaseEditing:
		return "EDITING"
	case PhaseProcessing:
		return "PROCESSING"
	default:
		return "UNKNOWN"
	}
}

// SourceFile is the user supplied PDF
type SourceFile struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Size returns the file size in bytes
func (f *SourceFile) Size() int64 {
	return int64(len(f.Data))
}

// DocumentMetadata is computed once per upload
type DocumentMetadata struct {
	Name       string `json:"name"`
	SizeKB     int    `json:"size"`
	TotalPages int    `json:"total_pages"`
}

// NewDocumentMetadata derives the metadata snapshot for a file of sizeBytes bytes.
// SizeKB is floor(sizeBytes/1024 + 0.5).
func NewDocumentMetadata(name string, sizeBytes int64, totalPages int) DocumentMetadata {
	return DocumentMetadata{
		Name:       name,
		SizeKB:     int(math.Floor(float64(sizeBytes)/1024 + 0.5)),
		TotalPages: totalPages,
	}
}

// Entity is a span of text the analyzer flagged, with a suggested replacement
type Entity struct {
	Type       string `json:"type"`
	Value      string `json:"value"`
	Suggestion string `json:"suggestion"`
}

// AnalysisResult is the outcome of analyzing the extracted document text
type AnalysisResult struct {
	Summary  string   `json:"summary,omitempty"`
	Entities []Entity `json:"entities"`
}

// Replacement is a user controlled find/replace pair
type Replacement struct {
	ID              string `json:"id"`
	OriginalText    string `json:"original_text"`
	ReplacementText string `json:"replacement_text"`
	// Count is always 1; occurrence counting is not modelled.
	Count int `json:"count"`
	// Revision increments whenever OriginalText changes.
	Revision int `json:"revision"`
}

// ErrorKind classifies the message held in the error slot
type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindIngest     ErrorKind = "ingest"
	ErrorKindApply      ErrorKind = "apply"
	ErrorKindRewrite    ErrorKind = "rewrite"
)

// ErrorState is the single current user visible error
type ErrorState struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// State is one immutable snapshot of a session. Reduce never mutates its input and
// everything reachable from a State is read-only once the State is built.
type State struct {
	Phase        Phase
	Source       *SourceFile
	Metadata     *DocumentMetadata
	Analysis     *AnalysisResult
	Replacements []Replacement
	Error        *ErrorState

	// RetainedText holds the extracted text of a failed ingest when the session
	// keeps it for a later retry. Empty otherwise.
	RetainedText string
}

// Initial returns the IDLE state with nothing loaded
func Initial() State {
	return State{Phase: PhaseIdle}
}

// HasSource reports whether a source file is loaded
func (s State) HasSource() bool {
	return s.Source != nil
}

// Find returns the index of the replacement with the given id, or -1
func (s State) Find(id string) int {
	return slices.IndexFunc(s.Replacements, func(r Replacement) bool {
		return r.ID == id
	})
}

// Replacement returns a copy of the replacement with the given id
func (s State) Replacement(id string) (Replacement, bool) {
	i := s.Find(id)
	if i < 0 {
		return Replacement{}, false
	}
	return s.Replacements[i], true
}

// Pairs returns the find/replace pairs to apply, in list order
func (s State) Pairs() []Pair {
	pairs := make([]Pair, 0, len(s.Replacements))
	for _, r := range s.Replacements {
		pairs = append(pairs, Pair{OriginalText: r.OriginalText, ReplacementText: r.ReplacementText})
	}
	return pairs
}

// Pair is the subset of a Replacement sent to the PDF service
type Pair struct {
	OriginalText    string `json:"originalText"`
	ReplacementText string `json:"replacementText"`
}

// clone copies the slices of s so the result can be changed independently
func (s State) clone() State {
	s.Replacements = slices.Clone(s.Replacements)
	return s
}
