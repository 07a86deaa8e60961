// ============================================================================
// Git Queue Outputs - host adapter result file
// ============================================================================
//
// Package: internal/output
// File: output.go
// Purpose: publish command results as name/value pairs, on stdout and in an
// outputs file compatible with GitHub Actions ($GITHUB_OUTPUT).
//
// File format, one entry per output:
//
//	name=value                     single line values
//	name<<ghadelimiter_<uuid>      multi-line values
//	line 1
//	line 2
//	ghadelimiter_<uuid>
//
// Atomic update:
//   1. read the current file (entries written by earlier steps are kept)
//   2. write current + new entries to <path>.tmp
//   3. rename over <path>
//   A crash leaves either the old or the new file, never a torn one.
//
// ============================================================================

package output

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrInvalidName indicates an output name outside [A-Za-z0-9_-]
	ErrInvalidName = errors.New("invalid output name")

	// ErrCorruptedFile indicates an outputs file that cannot be parsed
	ErrCorruptedFile = errors.New("outputs file is corrupted")
)

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

const delimiterPrefix = "ghadelimiter_"

// Outputs is an ordered set of results. Setting a name twice keeps the
// first position and the last value.
type Outputs struct {
	names  []string
	values map[string]string
}

func New() *Outputs {
	return &Outputs{values: make(map[string]string)}
}

func (o *Outputs) Set(name, value string) {
	if _, ok := o.values[name]; !ok {
		o.names = append(o.names, name)
	}
	o.values[name] = value
}

func (o *Outputs) Get(name string) (string, bool) {
	v, ok := o.values[name]
	return v, ok
}

func (o *Outputs) Names() []string {
	return append([]string(nil), o.names...)
}

func (o *Outputs) Len() int {
	return len(o.names)
}

// Validate checks every name.
func (o *Outputs) Validate() error {
	for _, name := range o.names {
		if !namePattern.MatchString(name) {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}

// Format renders the outputs in the file format. newDelimiter is called for
// every multi-line value.
func (o *Outputs) Format(newDelimiter func() string) string {
	var b strings.Builder
	for _, name := range o.names {
		value := o.values[name]
		if !strings.ContainsAny(value, "\r\n") {
			fmt.Fprintf(&b, "%s=%s\n", name, value)
			continue
		}
		delimiter := newDelimiter()
		for strings.Contains(value, delimiter) {
			delimiter = newDelimiter()
		}
		fmt.Fprintf(&b, "%s<<%s\n%s\n%s\n", name, delimiter, value, delimiter)
	}
	return b.String()
}

// Parse reads the file format back.
func Parse(r io.Reader) (*Outputs, error) {
	o := New()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" {
			continue
		}

		if name, delimiter, ok := strings.Cut(text, "<<"); ok && !strings.Contains(name, "=") {
			var lines []string
			closed := false
			for scanner.Scan() {
				line++
				if scanner.Text() == delimiter {
					closed = true
					break
				}
				lines = append(lines, scanner.Text())
			}
			if !closed {
				return nil, fmt.Errorf("%w: line %d: unterminated value for %q", ErrCorruptedFile, line, name)
			}
			o.Set(name, strings.Join(lines, "\n"))
			continue
		}

		name, value, ok := strings.Cut(text, "=")
		if !ok {
			return nil, fmt.Errorf("%w: line %d: %q", ErrCorruptedFile, line, text)
		}
		o.Set(name, value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptedFile, err)
	}
	return o, nil
}

// Load parses an outputs file. A missing file is an empty set.
func Load(path string) (*Outputs, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open outputs file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Writer publishes outputs to stdout and, when a path is set, to the outputs file.
type Writer struct {
	path   string
	stdout io.Writer

	newDelimiter func() string
	mu           sync.Mutex
}

// NewWriter creates a writer. path may be empty, stdout may be nil.
func NewWriter(path string, stdout io.Writer) *Writer {
	return &Writer{
		path:   path,
		stdout: stdout,
		newDelimiter: func() string {
			return delimiterPrefix + uuid.NewString()
		},
	}
}

func (w *Writer) Path() string {
	return w.path
}

// Write publishes o.
func (w *Writer) Write(o *Outputs) error {
	if err := o.Validate(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	text := o.Format(w.newDelimiter)

	if w.stdout != nil {
		if _, err := io.WriteString(w.stdout, text); err != nil {
			return fmt.Errorf("failed to write outputs: %w", err)
		}
	}
	if w.path == "" {
		return nil
	}
	return w.appendAtomically(text)
}

func (w *Writer) appendAtomically(text string) error {
	current, err := os.ReadFile(w.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read outputs file: %w", err)
	}
	if len(current) > 0 && current[len(current)-1] != '\n' {
		current = append(current, '\n')
	}

	tmpPath := w.path + ".tmp"
	if err := os.WriteFile(tmpPath, append(current, text...), 0o644); err != nil {
		return fmt.Errorf("failed to write temp outputs file: %w", err)
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename outputs file: %w", err)
	}
	return nil
}
