// Package security holds the path and file name checks applied before the
// recorder writes an export.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidatePathWithinDirectory reports an error when filePath would resolve
// outside dir. Both paths are made absolute and, where they exist on disk,
// symlinks are resolved so a link inside dir cannot point the write elsewhere.
// Neither path has to exist yet.
func ValidatePathWithinDirectory(filePath, dir string) error {
	target, err := canonical(filePath)
	if err != nil {
		return fmt.Errorf("resolve path %q: %w", filePath, err)
	}
	root, err := canonical(dir)
	if err != nil {
		return fmt.Errorf("resolve directory %q: %w", dir, err)
	}

	rel, err := filepath.Rel(root, target)
	if err != nil {
		return fmt.Errorf("path %s is outside %s: %w", filePath, dir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s escapes %s", filePath, dir)
	}
	return nil
}

// canonical returns the absolute form of p with symlinks resolved for the
// longest prefix of p that exists.
func canonical(p string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", err
	}

	existing := abs
	var rest []string
	for {
		if resolved, err := filepath.EvalSymlinks(existing); err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...), nil
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		rest = append([]string{filepath.Base(existing)}, rest...)
		existing = parent
	}
}

// SanitizeFilename turns an arbitrary identifier into a file name fragment.
// Characters other than ASCII letters, digits, dot, underscore and dash become
// a single underscore, leading and trailing dots and underscores are trimmed
// and the result is capped at 64 bytes. An empty result becomes "unknown".
func SanitizeFilename(s string) string {
	const maxLen = 64

	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteRune('_')
			lastUnderscore = true
		}
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
