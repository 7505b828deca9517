package pdf

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// DefaultMaxTextSize caps the extracted text handed to the analyzer
const DefaultMaxTextSize = 10 * 1024 * 1024

// Service handles PDF operations by orchestrating the reader, validator and
// rewriter components
type Service struct {
	maxFileSize int64
	reader      *Reader
	validator   *Validator
	logger      *zap.Logger
}

// NewService creates a new PDF service with all components
func NewService(maxFileSize int64, logger *zap.Logger) (*Service, error) {
	if maxFileSize <= 0 {
		return nil, fmt.Errorf("maxFileSize must be greater than 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		maxFileSize: maxFileSize,
		reader:      NewReader(DefaultMaxTextSize),
		validator:   NewValidator(maxFileSize),
		logger:      logger.Named("pdf"),
	}, nil
}

// PageCount returns the number of pages of a PDF
func (s *Service) PageCount(ctx context.Context, data []byte) (int, error) {
	if err := s.validator.ValidateData(data); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	pages, err := PageCount(data)
	if err != nil {
		s.logger.Debug("page count failed", zap.Error(err))
		return 0, err
	}
	return pages, nil
}

// ExtractText returns the plain text of a PDF
func (s *Service) ExtractText(ctx context.Context, data []byte) (string, error) {
	if err := s.validator.ValidateData(data); err != nil {
		return "", err
	}

	text, err := s.reader.ExtractText(ctx, data)
	if err != nil {
		s.logger.Debug("text extraction failed", zap.Error(err))
		return "", err
	}
	return text, nil
}

// ApplyReplacements returns a copy of the PDF with every pair applied
func (s *Service) ApplyReplacements(ctx context.Context, data []byte, pairs []Pair) (*ApplyResult, error) {
	if err := s.validator.ValidateData(data); err != nil {
		return nil, err
	}

	result, err := ApplyReplacements(ctx, data, pairs)
	if err != nil {
		s.logger.Debug("apply replacements failed", zap.Error(err))
		return nil, err
	}

	s.logger.Debug("replacements applied",
		zap.Int("pairs", len(pairs)),
		zap.Int("substitutions", result.Total()),
		zap.Int("pages_changed", result.PagesChanged),
		zap.Int("output_bytes", len(result.Data)),
	)
	return result, nil
}

// GetMaxFileSize returns the maximum file size limit
func (s *Service) GetMaxFileSize() int64 {
	return s.maxFileSize
}
