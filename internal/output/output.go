// Package output renders user-facing deployment output. Log lines go to the
// structured logger; everything here is for humans watching the CLI.
package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/fnforge/fnforge/internal/fabricator"
)

var (
	// Colors and styles
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
	gray   = color.New(color.FgHiBlack)
	bold   = color.New(color.Bold)

	// Output writers (can be overridden for testing)
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr

	// Disable colors if not TTY or NO_COLOR is set
	noColor = os.Getenv("NO_COLOR") != "" || !isTerminal(os.Stdout)
)

func init() {
	if noColor {
		color.NoColor = true
	}
}

// Success prints a success message with a checkmark
// Example: ✓ Deployed 12 endpoints
func Success(format string, a ...interface{}) {
	fmt.Fprintf(Stdout, green.Sprint("✓")+" "+format+"\n", a...)
}

// Info prints an informational message with an arrow
// Example: → Applying deployment plan...
func Info(format string, a ...interface{}) {
	fmt.Fprintf(Stdout, cyan.Sprint("→")+" "+format+"\n", a...)
}

// Warning prints a warning message with a warning symbol
// Example: ⚠ Deletes aborted in region us-central1
func Warning(format string, a ...interface{}) {
	fmt.Fprintf(Stdout, yellow.Sprint("⚠")+" "+format+"\n", a...)
}

// Error prints an error message with an X symbol
// Example: ✗ Failed to deploy proj/us-central1/api
func Error(format string, a ...interface{}) {
	fmt.Fprintf(Stdout, red.Sprint("✗")+" "+format+"\n", a...)
}

// Fatal prints an error message and exits with code 1
func Fatal(format string, a ...interface{}) {
	Error(format, a...)
	os.Exit(1)
}

// Header prints a section header with a separator line
func Header(text string) {
	fmt.Fprintln(Stdout)
	fmt.Fprintln(Stdout, bold.Sprint(text))
	fmt.Fprintln(Stdout, gray.Sprint(strings.Repeat("━", 50)))
}

// KeyValue prints a key-value pair with indentation
// Example:   Project: my-project
func KeyValue(key, value string) {
	fmt.Fprintf(Stdout, "  %s: %s\n", gray.Sprint(key), value)
}

// Blank prints a blank line
func Blank() {
	fmt.Fprintln(Stdout)
}

// Summary renders the outcome of a plan application: one line per endpoint,
// successes first, then the failure detail and totals.
func Summary(s *fabricator.Summary) {
	results := append([]fabricator.DeployResult(nil), s.Results...)
	sort.Slice(results, func(i, j int) bool {
		return results[i].Endpoint.Name() < results[j].Endpoint.Name()
	})

	Header("Deployment summary")
	succeeded := 0
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		succeeded++
		line := r.Endpoint.Name()
		if r.Endpoint.URI != "" {
			line += " " + gray.Sprint(r.Endpoint.URI)
		}
		fmt.Fprintf(Stdout, "  %s %s %s\n",
			green.Sprint("✓"), line, gray.Sprint(Duration(r.Duration)))
	}

	for _, r := range results {
		if r.Err == nil {
			continue
		}
		fmt.Fprintf(Stdout, "  %s %s\n    %s\n",
			red.Sprint("✗"), r.Endpoint.Name(), red.Sprint(r.Err.Error()))
	}

	Blank()
	if failed := len(results) - succeeded; failed > 0 {
		Error("%d of %d endpoints failed (%s)", failed, len(results), Duration(s.TotalTime))
	} else {
		Success("%d endpoints deployed (%s)", succeeded, Duration(s.TotalTime))
	}
}

// Duration formats a duration in a human-readable way
func Duration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// isTerminal checks if the writer is a terminal
func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		fileInfo, _ := f.Stat()
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return false
}
