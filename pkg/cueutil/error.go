// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

// ErrSchema is matched by every error produced from a schema violation.
var ErrSchema = errors.New("schema violation")

// SchemaError lists every violation found in one document. Each entry is
// prefixed with the field path in JSON notation, e.g. "bpm:build.files[0]".
type SchemaError struct {
	File     string
	Problems []string
}

func (e *SchemaError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("%s: %s", e.File, e.Problems[0])
	}
	return fmt.Sprintf("%s: validation failed:\n  %s", e.File, strings.Join(e.Problems, "\n  "))
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// FormatError converts a CUE error into a *SchemaError. Non-CUE errors are
// wrapped with the file name.
func FormatError(err error, file string) error {
	if err == nil {
		return nil
	}

	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return fmt.Errorf("%s: %w", file, err)
	}

	problems := make([]string, 0, len(list))
	for _, e := range list {
		path := formatPath(cueerrors.Path(e))
		msg := e.Error()
		if path != "" {
			// CUE sometimes repeats the path at the front of the message.
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, strings.Join(cueerrors.Path(e), ".")), ":"))
			problems = append(problems, path+": "+msg)
			continue
		}
		problems = append(problems, msg)
	}
	return &SchemaError{File: file, Problems: problems}
}

// formatPath renders ["bpm:build", "main", "files", "0"] as
// "bpm:build.main.files[0]".
func formatPath(path []string) string {
	var b strings.Builder
	for i, part := range path {
		if i > 0 && isIndex(part) {
			b.WriteString("[" + part + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// CheckFileSize rejects documents larger than maxSize bytes.
func CheckFileSize(data []byte, maxSize int64, file string) error {
	if int64(len(data)) > maxSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", file, len(data), maxSize)
	}
	return nil
}
