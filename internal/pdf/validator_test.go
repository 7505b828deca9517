package pdf

import (
	"bytes"
	"errors"
	"testing"
)

func TestValidator_ValidateData(t *testing.T) {
	validator := NewValidator(2048)

	tests := []struct {
		name     string
		data     []byte
		wantType ErrorType
	}{
		{
			name:     "valid header",
			data:     []byte("%PDF-1.7\n..."),
			wantType: ErrorTypeUnknown,
		},
		{
			name:     "header after junk prefix",
			data:     append([]byte("\x00\x01garbage"), []byte("%PDF-1.4")...),
			wantType: ErrorTypeUnknown,
		},
		{
			name:     "empty",
			data:     nil,
			wantType: ErrorTypeEmpty,
		},
		{
			name:     "too large",
			data:     append([]byte("%PDF-1.4"), bytes.Repeat([]byte{' '}, 4096)...),
			wantType: ErrorTypeTooLarge,
		},
		{
			name:     "not a pdf",
			data:     []byte("hello world"),
			wantType: ErrorTypeInvalidHeader,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateData(tt.data)
			if tt.wantType == ErrorTypeUnknown {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if got := TypeOf(err); got != tt.wantType {
				t.Errorf("ValidateData() error type = %v, want %v (err: %v)", got, tt.wantType, err)
			}
		})
	}
}

func TestTooLargeSentinel(t *testing.T) {
	err := NewValidator(4).ValidateData([]byte("%PDF-1.4"))
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
	if errors.Is(err, ErrProtected) {
		t.Error("too large error should not match ErrProtected")
	}
}

func TestIsPDFMIMEType(t *testing.T) {
	tests := map[string]bool{
		"application/pdf":               true,
		"Application/PDF":               true,
		"application/pdf; charset=utf8": true,
		"application/x-pdf":             true,
		"text/plain":                    false,
		"image/png":                     false,
		"":                              false,
		"not a mime type;;":             false,
	}

	for mimeType, want := range tests {
		if got := IsPDFMIMEType(mimeType); got != want {
			t.Errorf("IsPDFMIMEType(%q) = %v, want %v", mimeType, got, want)
		}
	}
}

func TestDetectMIMEType(t *testing.T) {
	if got := DetectMIMEType("report.PDF", nil); got != MIMEType {
		t.Errorf("expected %s by extension, got %s", MIMEType, got)
	}
	if got := DetectMIMEType("upload", []byte("%PDF-1.4\n")); got != MIMEType {
		t.Errorf("expected %s by content, got %s", MIMEType, got)
	}
	if got := DetectMIMEType("notes", []byte("plain words")); IsPDFMIMEType(got) {
		t.Errorf("plain text detected as PDF: %s", got)
	}
}
