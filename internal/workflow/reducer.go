package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when an event is not allowed in the current phase
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrDuplicateID is returned when a replacement is added with an id already in use
	ErrDuplicateID = errors.New("duplicate replacement id")
	// ErrNoSource is returned when an operation needs an uploaded file
	ErrNoSource = errors.New("no source file loaded")
	// ErrNoReplacements is returned when apply is requested with an empty list
	ErrNoReplacements = errors.New("no replacements defined")
	// ErrNothingToRetry is returned when no extracted text was kept for a retry
	ErrNothingToRetry = errors.New("no retained text to analyze")
)

// Reduce returns the state that results from applying ev to s. It never mutates s.
// On error the returned state is s unchanged.
func Reduce(s State, ev Event) (State, error) {
	switch e := ev.(type) {
	case UploadStarted:
		return uploadStarted(s, e)
	case UploadRejected:
		next := s.clone()
		next.Error = &ErrorState{Kind: ErrorKindValidation, Message: e.Message}
		return next, nil
	case PagesCounted:
		return pagesCounted(s, e)
	case AnalysisStarted:
		return analysisStarted(s)
	case AnalysisSucceeded:
		if s.Phase != PhaseAnalyzing {
			return s, invalid(s, ev)
		}
		next := s.clone()
		result := e.Result
		next.Analysis = &result
		next.RetainedText = ""
		next.Phase = PhaseEditing
		return next, nil
	case IngestFailed:
		return ingestFailed(s, e)
	case ReplacementAdded:
		if s.Find(e.ID) >= 0 {
			return s, fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
		}
		next := s.clone()
		next.Replacements = append(next.Replacements, Replacement{
			ID:              e.ID,
			OriginalText:    e.OriginalText,
			ReplacementText: e.ReplacementText,
			Count:           1,
		})
		return next, nil
	case ReplacementUpdated:
		return updateEntry(s, e.ID, func(r *Replacement) {
			r.ReplacementText = e.Text
		}), nil
	case OriginalEdited:
		return updateEntry(s, e.ID, func(r *Replacement) {
			r.OriginalText = e.Text
			r.Revision++
		}), nil
	case ReplacementRemoved:
		i := s.Find(e.ID)
		if i < 0 {
			return s, nil
		}
		next := s.clone()
		next.Replacements = append(next.Replacements[:i:i], next.Replacements[i+1:]...)
		return next, nil
	case RewriteSucceeded:
		r, ok := s.Replacement(e.ID)
		if !ok || r.Revision != e.Revision {
			// stale response for a removed or edited entry
			return s, nil
		}
		return updateEntry(s, e.ID, func(r *Replacement) {
			r.ReplacementText = e.Text
		}), nil
	case RewriteFailed:
		next := s.clone()
		next.Error = &ErrorState{Kind: ErrorKindRewrite, Message: e.Message}
		return next, nil
	case ApplyStarted:
		return applyStarted(s)
	case ApplySucceeded:
		if s.Phase != PhaseProcessing {
			return s, invalid(s, ev)
		}
		next := s.clone()
		next.Phase = PhaseEditing
		return next, nil
	case ApplyFailed:
		if s.Phase != PhaseProcessing {
			return s, invalid(s, ev)
		}
		next := s.clone()
		next.Phase = PhaseEditing
		next.Error = &ErrorState{Kind: ErrorKindApply, Message: e.Message}
		return next, nil
	case ErrorDismissed:
		next := s.clone()
		next.Error = nil
		return next, nil
	case Reset:
		return Initial(), nil
	default:
		return s, fmt.Errorf("%w: unknown event %T", ErrInvalidTransition, ev)
	}
}

func uploadStarted(s State, e UploadStarted) (State, error) {
	// re-uploading from the editor replaces the document
	if s.Phase != PhaseIdle && s.Phase != PhaseEditing {
		return s, invalid(s, e)
	}
	file := e.File
	next := s.clone()
	next.Phase = PhaseUploading
	next.Source = &file
	next.Metadata = nil
	next.Analysis = nil
	next.RetainedText = ""
	next.Error = nil
	return next, nil
}

func pagesCounted(s State, e PagesCounted) (State, error) {
	if s.Phase != PhaseUploading || s.Source == nil {
		return s, invalid(s, e)
	}
	meta := NewDocumentMetadata(s.Source.Name, s.Source.Size(), e.TotalPages)
	next := s.clone()
	next.Metadata = &meta
	next.Phase = PhaseAnalyzing
	return next, nil
}

func analysisStarted(s State) (State, error) {
	if s.Phase != PhaseIdle {
		return s, invalid(s, AnalysisStarted{})
	}
	if s.RetainedText == "" || s.Source == nil {
		return s, ErrNothingToRetry
	}
	next := s.clone()
	next.Phase = PhaseAnalyzing
	next.Error = nil
	return next, nil
}

func ingestFailed(s State, e IngestFailed) (State, error) {
	if s.Phase != PhaseUploading && s.Phase != PhaseAnalyzing {
		return s, invalid(s, e)
	}
	next := s.clone()
	next.Phase = PhaseIdle
	next.Analysis = nil
	next.Error = &ErrorState{Kind: ErrorKindIngest, Message: e.Message}
	if e.RetainText != "" && s.Metadata != nil {
		next.RetainedText = e.RetainText
		return next, nil
	}
	next.Source = nil
	next.Metadata = nil
	next.RetainedText = ""
	return next, nil
}

func applyStarted(s State) (State, error) {
	if s.Phase != PhaseEditing {
		return s, invalid(s, ApplyStarted{})
	}
	if s.Source == nil {
		return s, ErrNoSource
	}
	if len(s.Replacements) == 0 {
		return s, ErrNoReplacements
	}
	next := s.clone()
	next.Phase = PhaseProcessing
	next.Error = nil
	return next, nil
}

// updateEntry returns s with fn applied to the entry with the given id.
// A missing id leaves s unchanged.
func updateEntry(s State, id string, fn func(*Replacement)) State {
	i := s.Find(id)
	if i < 0 {
		return s
	}
	next := s.clone()
	fn(&next.Replacements[i])
	return next
}

func invalid(s State, ev Event) error {
	return fmt.Errorf("%w: %s in phase %s", ErrInvalidTransition, ev.Name(), s.Phase)
}
