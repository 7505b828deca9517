package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputPrefix is prepended to the name of every rewritten document
const OutputPrefix = "modified_"

// PathValidator confines reads and writes to one working directory
type PathValidator struct {
	dir string
}

// NewPathValidator creates a validator rooted at dir. The directory is made
// absolute but does not need to exist yet.
func NewPathValidator(dir string) (*PathValidator, error) {
	if dir == "" {
		return nil, fmt.Errorf("working directory cannot be empty")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}

	return &PathValidator{dir: filepath.Clean(abs)}, nil
}

// Directory returns the absolute working directory
func (v *PathValidator) Directory() string {
	return v.dir
}

// Resolve turns a user supplied path into an absolute path inside the working
// directory. Relative paths are taken relative to the directory; symlinks
// pointing outside of it are rejected.
func (v *PathValidator) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(v.dir, path)
	}
	clean := filepath.Clean(path)

	if !within(clean, v.dir) {
		return "", fmt.Errorf("path is outside working directory: %s", path)
	}

	// compare real locations when both exist
	if real, err := filepath.EvalSymlinks(clean); err == nil {
		realDir := v.dir
		if d, err := filepath.EvalSymlinks(v.dir); err == nil {
			realDir = d
		}
		if !within(real, realDir) {
			return "", fmt.Errorf("path resolves outside working directory: %s", path)
		}
	}

	return clean, nil
}

// ReadFile reads a file inside the working directory
func (v *PathValidator) ReadFile(path string, maxSize int64) ([]byte, error) {
	resolved, err := v.Resolve(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory: %s", path)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, fmt.Errorf("file too large: %d bytes (max: %d bytes)", info.Size(), maxSize)
	}

	return os.ReadFile(resolved)
}

// OutputName derives the download name of a rewritten document. Any directory
// part of name is dropped.
func OutputName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.ReplaceAll(base, "\x00", "")
	if base == "." || base == ".." || base == "/" || base == "" {
		base = "document.pdf"
	}
	return OutputPrefix + base
}

// WriteFile stores data in the working directory under the base name of name
func (v *PathValidator) WriteFile(name string, data []byte) (string, error) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == ".." || base == "/" {
		return "", fmt.Errorf("invalid file name: %q", name)
	}

	if err := os.MkdirAll(v.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create working directory: %w", err)
	}

	target, err := v.Resolve(base)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", target, err)
	}
	return target, nil
}

func within(path, dir string) bool {
	if path == dir {
		return true
	}
	sep := string(filepath.Separator)
	if !strings.HasSuffix(dir, sep) {
		dir += sep
	}
	return strings.HasPrefix(path, dir)
}
