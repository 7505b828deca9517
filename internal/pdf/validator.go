package pdf

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// MIMEType is the media type accepted for uploads
const MIMEType = "application/pdf"

// pdfHeader must appear within the first kilobyte of a PDF file
var pdfHeader = []byte("%PDF-")

// Validator handles PDF upload validation
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a new PDF validator with the specified constraints
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
	}
}

// ValidateData checks size limits and the PDF header of an in-memory file
func (v *Validator) ValidateData(data []byte) error {
	if len(data) == 0 {
		return newError(ErrorTypeEmpty, "validate", fmt.Errorf("file is empty"))
	}

	if int64(len(data)) > v.maxFileSize {
		return newError(ErrorTypeTooLarge, "validate",
			fmt.Errorf("file too large: %d bytes (max: %d bytes)", len(data), v.maxFileSize))
	}

	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if !bytes.Contains(head, pdfHeader) {
		return newError(ErrorTypeInvalidHeader, "validate", fmt.Errorf("missing %s header", pdfHeader))
	}

	return nil
}

// IsPDFMIMEType reports whether a declared media type denotes a PDF.
// Parameters such as charset are ignored.
func IsPDFMIMEType(mimeType string) bool {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return false
	}
	return mediaType == MIMEType || mediaType == "application/x-pdf"
}

// DetectMIMEType guesses the media type of an upload that did not declare one.
// The extension is consulted first, then the content is sniffed.
func DetectMIMEType(name string, data []byte) string {
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}
	return http.DetectContentType(data)
}
