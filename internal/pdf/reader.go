package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// PageSeparator is inserted between the texts of consecutive pages
const PageSeparator = "\n\n--- Page Break ---\n\n"

// Reader extracts plain text from PDF content
type Reader struct {
	maxTextSize int
}

// NewReader creates a new PDF reader with the specified text limit
func NewReader(maxTextSize int) *Reader {
	return &Reader{
		maxTextSize: maxTextSize,
	}
}

// ExtractText returns the plain text of every page joined by PageSeparator.
// Pages that fail to decode are skipped; the result is truncated at the
// reader's text limit. A document without any text, such as a scan, yields
// an empty string.
func (r *Reader) ExtractText(ctx context.Context, data []byte) (text string, err error) {
	// ledongthuc/pdf panics on some malformed inputs
	defer func() {
		if rec := recover(); rec != nil {
			err = newError(ErrorTypeCorruptedData, "extract_text", fmt.Errorf("%v", rec))
		}
	}()

	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "encrypt") {
			return "", newError(ErrorTypeProtected, "extract_text", err)
		}
		return "", newError(ErrorTypeCorruptedData, "extract_text", err)
	}

	return r.extractTextContent(ctx, pdfReader)
}

// extractTextContent walks the pages of an open document
func (r *Reader) extractTextContent(ctx context.Context, pdfReader *pdf.Reader) (string, error) {
	var builder strings.Builder
	totalLength := 0
	numPages := pdfReader.NumPage()

	for pageNum := 1; pageNum <= numPages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := pdfReader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		if totalLength+len(content) > r.maxTextSize {
			if remaining := r.maxTextSize - totalLength; remaining > 0 {
				builder.WriteString(truncateUTF8(content, remaining))
			}
			break
		}

		builder.WriteString(content)
		totalLength += len(content)

		if pageNum < numPages {
			builder.WriteString(PageSeparator)
		}
	}

	if strings.TrimSpace(strings.ReplaceAll(builder.String(), strings.TrimSpace(PageSeparator), "")) == "" {
		return "", nil
	}

	return builder.String(), nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
