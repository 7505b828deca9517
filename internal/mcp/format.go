package mcp

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/a3tai/mcp-pdf-rewriter/internal/descriptions"
	"github.com/a3tai/mcp-pdf-rewriter/internal/session"
	"github.com/a3tai/mcp-pdf-rewriter/internal/workflow"
)

// maxListedFiles limits the working directory listing of pdf_server_info
const maxListedFiles = 10

type fileEntry struct {
	Name string
	Size int64
}

// listPDFs returns the PDF files directly inside dir, sorted by name. A
// missing directory yields an empty list.
func listPDFs(dir string) ([]fileEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []fileEntry
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileEntry{Name: e.Name(), Size: info.Size()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// formatState renders a session snapshot for the client
func formatState(id string, st workflow.State) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Session: %s\n", id)
	fmt.Fprintf(&b, "Phase: %s\n", st.Phase)

	if st.Metadata != nil {
		fmt.Fprintf(&b, "Document: %s (%d KB, %d pages)\n", st.Metadata.Name, st.Metadata.SizeKB, st.Metadata.TotalPages)
	} else if st.Source != nil {
		fmt.Fprintf(&b, "Document: %s\n", st.Source.Name)
	}

	if st.Analysis != nil {
		if st.Analysis.Summary != "" {
			fmt.Fprintf(&b, "\nSummary: %s\n", st.Analysis.Summary)
		}
		fmt.Fprintf(&b, "\nEntities (%d):\n", len(st.Analysis.Entities))
		for i, e := range st.Analysis.Entities {
			fmt.Fprintf(&b, "%d. [%s] %q -> %q\n", i+1, e.Type, e.Value, e.Suggestion)
		}
	}

	fmt.Fprintf(&b, "\nReplacements (%d):\n", len(st.Replacements))
	for i, r := range st.Replacements {
		fmt.Fprintf(&b, "%d. id=%s %q -> %q\n", i+1, r.ID, r.OriginalText, r.ReplacementText)
	}

	if st.RetainedText != "" {
		b.WriteString("\nExtracted text kept, pdf_analysis_retry can analyze it again\n")
	}

	if st.Error != nil {
		fmt.Fprintf(&b, "\nError (%s): %s\n", st.Error.Kind, st.Error.Message)
	}

	return b.String()
}

// formatDownload describes a generated document saved at path
func formatDownload(dl *session.Download, path string) string {
	text := "PDF generated\n"
	text += fmt.Sprintf("File: %s\n", dl.Name)
	text += fmt.Sprintf("Saved to: %s\n", path)
	text += fmt.Sprintf("Size: %d bytes\n", len(dl.Data))
	text += fmt.Sprintf("Substitutions: %d\n", dl.Substitutions)
	text += fmt.Sprintf("Pages changed: %d\n", dl.PagesChanged)
	return text
}

func (s *Server) formatServerInfo(files []fileEntry) string {
	text := fmt.Sprintf("📋 %s v%s - Server Information\n", s.config.ServerName, s.config.Version)
	text += fmt.Sprintf("📁 Working Directory: %s\n", s.paths.Directory())
	text += fmt.Sprintf("📏 Max File Size: %d MB\n", s.config.MaxFileSize/(1024*1024))
	text += fmt.Sprintf("🤖 AI Provider: %s\n", s.config.AI.Provider)
	text += fmt.Sprintf("🗂️  Open Sessions: %d of %d\n\n", s.registry.Len(), s.config.MaxSessions)

	if len(files) > 0 {
		text += fmt.Sprintf("📂 Directory Contents (%d PDF files found):\n", len(files))
		for i, file := range files {
			if i >= maxListedFiles {
				text += fmt.Sprintf("   ... and %d more files\n", len(files)-maxListedFiles)
				break
			}
			text += fmt.Sprintf("   %d. %s (%d bytes)\n", i+1, file.Name, file.Size)
		}
		text += "\n"
	} else {
		text += "📂 Directory Contents: No PDF files found in working directory\n\n"
	}

	text += "🛠️  Available Tools:\n"
	for _, tool := range descriptions.Tools {
		text += fmt.Sprintf("\n• %s\n", tool.Name)
		text += fmt.Sprintf("  Description: %s\n", tool.Description)
		text += fmt.Sprintf("  Parameters: %s\n", tool.Parameters)
	}

	text += "\nWorkflow: pdf_session_create → pdf_upload → pdf_replacement_add → pdf_apply\n"
	return text
}
