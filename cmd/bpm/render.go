// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bpmkit/bpm/internal/issue"
)

// renderError writes err to w. In verbose mode the catalog entry explaining
// the failure is rendered below it.
func renderError(w io.Writer, err error, verbose bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}

	fmt.Fprintln(w, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
	if !verbose {
		return
	}
	if i, ok := issue.Classify(err); ok {
		if rendered, rerr := i.Render("dark"); rerr == nil {
			fmt.Fprint(w, rendered)
		}
	}
}

// renderDiff colors the added and removed lines of a unified diff.
func renderDiff(diff string) string {
	lines := strings.SplitAfter(diff, "\n")
	var sb strings.Builder
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			sb.WriteString(diffAddStyle.Render(strings.TrimSuffix(line, "\n")))
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			sb.WriteString(diffDelStyle.Render(strings.TrimSuffix(line, "\n")))
		default:
			sb.WriteString(strings.TrimSuffix(line, "\n"))
		}
		if strings.HasSuffix(line, "\n") {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
