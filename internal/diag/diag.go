// Package diag accumulates the non-fatal problems faircamp encounters while
// resolving manifests and planning a build, and renders them as a final
// report. Manifest and source errors are local to one option or
// one file reference: they don't abort the walk immediately, but they do
// make the overall build fail once resolution is complete.
package diag

import (
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var std = newStdLogger()

func newStdLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	return l
}

// Severity classifies a reported problem.
type Severity int

const (
	// Warning is surfaced to the user but does not fail the build.
	Warning Severity = iota
	// Error fails the build once resolution finishes.
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// Problem is one accumulated diagnostic, optionally anchored to a manifest
// file and line.
type Problem struct {
	Severity Severity
	File     string
	Line     int
	Message  string
	Snippet  string
}

func (p Problem) String() string {
	loc := ""
	if p.File != "" {
		loc = p.File
		if p.Line > 0 {
			loc = fmt.Sprintf("%s:%d", loc, p.Line)
		}
		loc += ": "
	}
	if p.Snippet != "" {
		return fmt.Sprintf("%s%s: %s (%q)", loc, p.Severity, p.Message, p.Snippet)
	}
	return fmt.Sprintf("%s%s: %s", loc, p.Severity, p.Message)
}

// Report collects problems across the resolve and plan phases of a build.
// It is safe for concurrent use from the bounded worker pool.
type Report struct {
	mu       sync.Mutex
	problems []Problem
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{}
}

// Warn records a non-fatal problem.
func (r *Report) Warn(file string, line int, format string, args ...any) {
	r.add(Problem{Severity: Warning, File: file, Line: line, Message: fmt.Sprintf(format, args...)})
}

// WarnSnippet records a non-fatal problem with a source snippet attached.
func (r *Report) WarnSnippet(file string, line int, snippet string, format string, args ...any) {
	r.add(Problem{Severity: Warning, File: file, Line: line, Snippet: snippet, Message: fmt.Sprintf(format, args...)})
}

// Fail records a problem that will fail the build once resolution finishes.
func (r *Report) Fail(file string, line int, format string, args ...any) {
	r.add(Problem{Severity: Error, File: file, Line: line, Message: fmt.Sprintf(format, args...)})
}

// FailSnippet records a fatal problem with a source snippet attached.
func (r *Report) FailSnippet(file string, line int, snippet string, format string, args ...any) {
	r.add(Problem{Severity: Error, File: file, Line: line, Snippet: snippet, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) add(p Problem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.problems = append(r.problems, p)
}

// Problems returns a snapshot of everything recorded so far.
func (r *Report) Problems() []Problem {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Problem, len(r.problems))
	copy(out, r.problems)
	return out
}

// Fatal reports whether any Error-severity problem has been recorded. The
// emit pipeline must abort before Emit if this is true.
func (r *Report) Fatal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.problems {
		if p.Severity == Error {
			return true
		}
	}
	return false
}

// Print writes every accumulated problem to standard error, one per line.
func (r *Report) Print() {
	for _, p := range r.Problems() {
		fmt.Fprintln(os.Stderr, p.String())
	}
}

// Logger is the leveled reporter used for build progress messages, separate
// from Report (which is for manifest/source errors specifically). It mirrors
// the original source's info!/warning!/info_cache! macros as plain methods,
// backed by a logrus.Logger the way distribution's own garbage collector
// logs progress (logger.Infof/Warnf) rather than printing directly.
type Logger struct {
	Verbose bool
}

func (l *Logger) Info(format string, args ...any) {
	std.Infof(format, args...)
}

func (l *Logger) InfoCache(format string, args ...any) {
	std.WithField("component", "cache").Infof(format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	if l.Verbose {
		if !std.IsLevelEnabled(logrus.DebugLevel) {
			std.SetLevel(logrus.DebugLevel)
		}
		std.Debugf(format, args...)
	}
}

func (l *Logger) Warning(format string, args ...any) {
	std.Warnf(format, args...)
}
