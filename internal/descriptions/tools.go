package descriptions

// Tool descriptions with practical examples and the order tools are used in

const (
	// Session Tools
	SessionCreateDescription = `Open a new rewrite session and return its session_id.

**When to use:** Before uploading a document. Every other workflow tool takes the session_id returned here.

**Why it's useful:** Sessions are independent, so several documents can be prepared side by side.

**Common workflow:**
pdf_session_create → pdf_upload → pdf_replacement_add → pdf_apply → pdf_session_close`

	SessionCloseDescription = `Close a session, cancel anything still running in it and forget its state.

**Best practices:** Close sessions you no longer need; the server limits how many can be open.`

	SessionStateDescription = `Show the current phase (IDLE, UPLOADING, ANALYZING, EDITING, PROCESSING), the
document metadata, the AI summary and entities, the replacement list with entry ids, and the current error.

**When to use:** After any step, or to find the id of a replacement entry.`

	// Ingest Tools
	UploadDescription = `Load a PDF into a session and analyze it.

**When to use:** Start of every workflow, or to replace the document of a session that is editing.

**How it works:** The page count is read, the text is extracted and sent to the AI service, which returns a
summary plus the entities it would replace (names, organizations, contact details, amounts). The session
then enters EDITING. Existing replacement entries are kept.

**Examples:**
• From the working directory: path="contracts/nda.pdf"
• Inline: content=<base64>, name="invoice.pdf", mime_type="application/pdf"

**Errors:** Non-PDF files are rejected without changing the session. Protected or corrupted files return
the session to IDLE with "Processing failed. The file may be protected or corrupted."`

	AnalysisRetryDescription = `Run the AI analysis again on the text kept from a failed upload.

**When to use:** Only when the server runs with keep-text-on-failure and an upload failed during analysis
(for example the AI service was unavailable). The document does not need to be uploaded again.`

	// Editing Tools
	ReplacementAddDescription = `Add find/replace entries to the list.

**Examples:**
• Manual entry: original_text="Acme Corp", replacement_text="Client A"
• Blank entry to fill in later: no text arguments
• Accept the AI proposals: all_entities=true adds one entry per detected entity`

	ReplacementUpdateDescription = `Change the replacement text of an entry. Unknown ids are ignored.`

	ReplacementEditOriginalDescription = `Change the text an entry searches for. The entry keeps its position in the list.
A rewrite suggestion still pending for the entry is discarded.`

	ReplacementRemoveDescription = `Remove an entry from the list. Unknown ids are ignored. A rewrite suggestion still
pending for the entry is discarded.`

	ReplacementSuggestDescription = `Ask the AI service for a professional rewrite of an entry's original text and store
it as the entry's replacement text.

**When to use:** The original text is a phrase or sentence whose tone should change rather than a name to
anonymize. Entries with an empty original text are left untouched.`

	// Output Tools
	ApplyDescription = `Write every find/replace pair into a copy of the document.

**How it works:** Text in the page content streams is rewritten and a new PDF is produced. The result is
saved as modified_<original name> in the working directory; set inline=true to also receive it as base64.

**Errors:** "Failed to generate PDF. Check if the file is protected." The session stays in EDITING so the
list can be adjusted and applied again.`

	ResetDescription = `Clear the document, analysis, replacement list and error of a session and return it to IDLE.`

	ErrorDismissDescription = `Clear the error shown in the session state.`

	// Utility Tools
	ServerInfoDescription = `Get server status, configuration, open sessions, PDFs in the working directory and
the list of tools.

**Best practices:** Run at the start of a conversation to see which files can be uploaded by path.`
)

// ToolInfo describes one tool for pdf_server_info
type ToolInfo struct {
	Name        string
	Description string
	Parameters  string
}

// Tools lists the tools in workflow order
var Tools = []ToolInfo{
	{Name: "pdf_session_create", Description: "Open a new session", Parameters: "none"},
	{Name: "pdf_upload", Description: "Load and analyze a PDF",
		Parameters: "session_id, path | content + name, mime_type (optional)"},
	{Name: "pdf_session_state", Description: "Show phase, metadata, analysis, entries and error",
		Parameters: "session_id"},
	{Name: "pdf_replacement_add", Description: "Add entries",
		Parameters: "session_id, original_text, replacement_text, all_entities"},
	{Name: "pdf_replacement_update", Description: "Set replacement text", Parameters: "session_id, id, replacement_text"},
	{Name: "pdf_replacement_edit_original", Description: "Set original text", Parameters: "session_id, id, original_text"},
	{Name: "pdf_replacement_remove", Description: "Remove an entry", Parameters: "session_id, id"},
	{Name: "pdf_replacement_suggest", Description: "AI rewrite of an entry", Parameters: "session_id, id"},
	{Name: "pdf_apply", Description: "Generate modified_<name>", Parameters: "session_id, inline (optional)"},
	{Name: "pdf_analysis_retry", Description: "Retry a failed analysis", Parameters: "session_id"},
	{Name: "pdf_error_dismiss", Description: "Clear the error", Parameters: "session_id"},
	{Name: "pdf_reset", Description: "Return to IDLE", Parameters: "session_id"},
	{Name: "pdf_session_close", Description: "Close a session", Parameters: "session_id"},
	{Name: "pdf_server_info", Description: "Server status and tool list", Parameters: "none"},
}
