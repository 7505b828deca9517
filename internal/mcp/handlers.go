package mcp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-pdf-rewriter/internal/pdf"
	"github.com/a3tai/mcp-pdf-rewriter/internal/session"
)

// lookup resolves the session_id argument. A non-nil result is the error to
// hand back to the client.
func (s *Server) lookup(request mcp.CallToolRequest) (*session.Session, *mcp.CallToolResult) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	return sess, nil
}

// failure reports an operation error together with the session state.
// Failures that set the session's error slot are shown with its user facing
// message instead of the internal cause.
func failure(sess *session.Session, err error) *mcp.CallToolResult {
	st := sess.State()
	msg := err.Error()
	if st.Error != nil && setsErrorSlot(err) {
		msg = st.Error.Message
	}
	return mcp.NewToolResultError(msg + "\n\n" + formatState(sess.ID(), st))
}

func setsErrorSlot(err error) bool {
	return errors.Is(err, session.ErrIngestFailed) ||
		errors.Is(err, session.ErrApplyFailed) ||
		errors.Is(err, session.ErrRewriteFailed) ||
		errors.Is(err, session.ErrNotPDF)
}

func (s *Server) handleSessionCreate(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.registry.Create()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.logger.Info("session created", zap.String("session", sess.ID()))
	return mcp.NewToolResultText(fmt.Sprintf("Session created\nsession_id: %s\n", sess.ID())), nil
}

func (s *Server) handleSessionClose(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.registry.Close(id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.logger.Info("session closed", zap.String("session", id))
	return mcp.NewToolResultText(fmt.Sprintf("Session %s closed\n", id)), nil
}

func (s *Server) handleSessionState(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, res := s.lookup(request)
	if res != nil {
		return res, nil
	}
	return mcp.NewToolResultText(formatState(sess.ID(), sess.State())), nil
}

// readUpload builds the upload from either a working directory path or
// inline base64 content
func (s *Server) readUpload(request mcp.CallToolRequest) (session.FileUpload, error) {
	var file session.FileUpload

	path := request.GetString("path", "")
	content := request.GetString("content", "")
	switch {
	case path != "":
		data, err := s.paths.ReadFile(path, s.config.MaxFileSize)
		if err != nil {
			return file, err
		}
		file.Name = filepath.Base(path)
		file.Data = data
	case content != "":
		data, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return file, fmt.Errorf("content is not valid base64: %w", err)
		}
		if int64(len(data)) > s.config.MaxFileSize {
			return file, fmt.Errorf("file too large: %d bytes (max: %d bytes)", len(data), s.config.MaxFileSize)
		}
		file.Name = request.GetString("name", "")
		if file.Name == "" {
			file.Name = "document.pdf"
		}
		file.Data = data
	default:
		return file, errors.New("either path or content is required")
	}

	file.MIMEType = request.GetString("mime_type", "")
	if file.MIMEType == "" {
		file.MIMEType = pdf.DetectMIMEType(file.Name, file.Data)
	}
	return file, nil
}

func (s *Server) handleUpload(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, res := s.lookup(request)
	if res != nil {
		return res, nil
	}

	file, err := s.readUpload(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := sess.Upload(ctx, file); err != nil {
		return failure(sess, err), nil
	}
	return mcp.NewToolResultText("Document analyzed\n\n" + formatState(sess.ID(), sess.State())), nil
}

func (s *Server) handleAnalysisRetry(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, res := s.lookup(request)
	if res != nil {
		return res, nil
	}
	if err := sess.RetryAnalysis(ctx); err != nil {
		return failure(sess, err), nil
	}
	return mcp.NewToolResultText("Document analyzed\n\n" + formatState(sess.ID(), sess.State())), nil
}

func (s *Server) handleReplacementAdd(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, res := s.lookup(request)
	if res != nil {
		return res, nil
	}

	if request.GetBool("all_entities", false) {
		st := sess.State()
		if st.Analysis == nil || len(st.Analysis.Entities) == 0 {
			return mcp.NewToolResultError("no analyzed entities to add"), nil
		}
		for _, e := range st.Analysis.Entities {
			sess.AddFromEntity(e)
		}
		return mcp.NewToolResultText(fmt.Sprintf("Added %d entries\n\n%s",
			len(st.Analysis.Entities), formatState(sess.ID(), sess.State()))), nil
	}

	r := sess.AddReplacement(
		request.GetString("original_text", ""),
		request.GetString("replacement_text", ""),
	)
	return mcp.NewToolResultText(fmt.Sprintf("Added entry %s\n\n%s", r.ID, formatState(sess.ID(), sess.State()))), nil
}

// entryRequest reads the session and the id argument shared by the entry tools
func (s *Server) entryRequest(request mcp.CallToolRequest) (*session.Session, string, *mcp.CallToolResult) {
	sess, res := s.lookup(request)
	if res != nil {
		return nil, "", res
	}
	id, err := request.RequireString("id")
	if err != nil {
		return nil, "", mcp.NewToolResultError(err.Error())
	}
	return sess, id, nil
}

// entryResult reports an edit of an entry. Unknown ids are not an error.
func entryResult(sess *session.Session, id string, found bool) *mcp.CallToolResult {
	if !found {
		return mcp.NewToolResultText(fmt.Sprintf("No entry with id %s, nothing changed\n", id))
	}
	return mcp.NewToolResultText(formatState(sess.ID(), sess.State()))
}

func (s *Server) handleReplacementUpdate(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, id, res := s.entryRequest(request)
	if res != nil {
		return res, nil
	}
	text, err := request.RequireString("replacement_text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return entryResult(sess, id, sess.UpdateReplacement(id, text)), nil
}

func (s *Server) handleReplacementEditOriginal(_ context.Context, request mcp.CallToolRequest) (
	*mcp.CallToolResult, error,
) {
	sess, id, res := s.entryRequest(request)
	if res != nil {
		return res, nil
	}
	text, err := request.RequireString("original_text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return entryResult(sess, id, sess.EditOriginal(id, text)), nil
}

func (s *Server) handleReplacementRemove(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, id, res := s.entryRequest(request)
	if res != nil {
		return res, nil
	}
	return entryResult(sess, id, sess.RemoveReplacement(id)), nil
}

func (s *Server) handleReplacementSuggest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, id, res := s.entryRequest(request)
	if res != nil {
		return res, nil
	}

	suggestion, err := sess.SuggestRewrite(ctx, id)
	switch {
	case errors.Is(err, session.ErrNotFound):
		return mcp.NewToolResultText(fmt.Sprintf("No entry with id %s, nothing changed\n", id)), nil
	case errors.Is(err, session.ErrStale):
		return mcp.NewToolResultText("Suggestion discarded because the entry changed\n"), nil
	case err != nil:
		return failure(sess, err), nil
	case suggestion == "":
		return mcp.NewToolResultText("Entry has no original text, nothing to rewrite\n"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Suggested: %s\n\n%s", suggestion, formatState(sess.ID(), sess.State()))), nil
}

func (s *Server) handleApply(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, res := s.lookup(request)
	if res != nil {
		return res, nil
	}

	dl, err := sess.Apply(ctx)
	if err != nil {
		return failure(sess, err), nil
	}

	path, err := s.paths.WriteFile(dl.Name, dl.Data)
	if err != nil {
		s.logger.Error("failed to save output", zap.String("file", dl.Name), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("failed to save %s: %v", dl.Name, err)), nil
	}

	text := formatDownload(dl, path)
	if request.GetBool("inline", false) {
		text += "\nContent (base64):\n" + base64.StdEncoding.EncodeToString(dl.Data) + "\n"
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleReset(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, res := s.lookup(request)
	if res != nil {
		return res, nil
	}
	sess.Reset()
	return mcp.NewToolResultText(formatState(sess.ID(), sess.State())), nil
}

func (s *Server) handleErrorDismiss(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, res := s.lookup(request)
	if res != nil {
		return res, nil
	}
	sess.DismissError()
	return mcp.NewToolResultText(formatState(sess.ID(), sess.State())), nil
}

func (s *Server) handleServerInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	files, err := listPDFs(s.paths.Directory())
	if err != nil {
		s.logger.Debug("failed to list working directory", zap.Error(err))
	}
	return mcp.NewToolResultText(s.formatServerInfo(files)), nil
}
