package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// SanitizeName keeps letters, digits and a few punctuation marks, drops
// control characters and replaces everything else with '_'.
func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsControl(r):
		case allowedNameRune(r):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if maxLen > 0 {
		if runes := []rune(cleaned); len(runes) > maxLen {
			cleaned = strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	return cleaned
}

func allowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	return strings.ContainsRune(" -_.,()", r)
}

// SanitizeFilename makes an uploaded file name safe to use as an object
// name: no directories, no spaces, extension kept.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "." {
		ext = ""
	}
	base := SanitizeName(strings.TrimSuffix(name, filepath.Ext(name)), 100)
	base = strings.Trim(strings.ReplaceAll(base, " ", "_"), ".")
	if base == "" {
		base = "upload"
	}
	return base + SanitizeName(ext, 10)
}

// ValidateOutputDir accepts only an existing, clean directory path.
func ValidateOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("output directory is required")
	}
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return errors.New("output directory cannot contain path traversal")
		}
	}
	if filepath.Clean(dir) != dir {
		return errors.New("output directory must be a clean path")
	}

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return fmt.Errorf("output directory %s does not exist", dir)
	}
	if err != nil {
		return fmt.Errorf("invalid output directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}
