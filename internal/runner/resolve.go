package runner

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
)

// Entry is the resolved application: its name, used as the log prefix, and
// its source file. File is empty when nothing could be resolved.
type Entry struct {
	App  string
	File string
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Resolve picks the entry file for arg relative to base.
//
// Without an argument the default application is used. An argument without
// ".js" names either a directory holding index.js or a file <arg>.js,
// falling back to the default application when neither exists. An argument
// containing ".js" only looks for a directory and resolves no file.
func Resolve(base, arg, defaultApp string) Entry {
	fallback := Entry{App: defaultApp, File: filepath.Join(base, defaultApp+".js")}

	if arg == "" {
		return fallback
	}

	if strings.Contains(arg, ".js") {
		_, _ = os.ReadDir(filepath.Join(base, arg))
		return Entry{App: arg}
	}

	dir := filepath.Join(base, arg)
	if _, err := os.ReadDir(dir); err == nil {
		return Entry{App: arg, File: filepath.Join(dir, "index.js")}
	}

	file := filepath.Join(base, arg+".js")
	if f, err := os.Open(file); err == nil {
		_ = f.Close()
		return Entry{App: arg, File: file}
	}

	return fallback
}

// ReadEntry returns the UTF-8 source of file. Anything that cannot be read
// as UTF-8 text is reported as ErrEntryNotFound.
func ReadEntry(file string) (string, error) {
	if file == "" {
		return "", fmt.Errorf("%w: no entry file resolved", ErrEntryNotFound)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEntryNotFound, err)
	}

	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8 (detected %s, %s)",
			ErrEntryNotFound, filepath.Base(file), mimetype.Detect(data).String(), detectCharset(data))
	}

	return string(bytes.TrimPrefix(data, utf8BOM)), nil
}

func detectCharset(data []byte) string {
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result.Charset == "" {
		return "unknown charset"
	}
	return result.Charset
}
