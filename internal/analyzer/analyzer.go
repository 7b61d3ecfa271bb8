// Package analyzer turns raw process and log output into structured error
// records. The Analyzer is an incremental, single-pass line scanner that
// detects multi-line error blocks and single-line failures; ParseStacktrace
// extracts structured frames from a buffered block.
package analyzer

import (
	"regexp"
	"strconv"
	"strings"

	"mend-go/internal/domain"
)

// Patterns that signal the start of a multi-line error block.
var blockStartPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^Traceback \(most recent call last\):`),
	regexp.MustCompile(`^goroutine \d+ \[`),
	regexp.MustCompile(`^panic:`),
	regexp.MustCompile(`^Exception in thread`),
	regexp.MustCompile(`^Unhandled exception`),
}

// Single-line error patterns; groups capture (error type, message).
var singleLineErrorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(\w+(?:\.\w+)*Error): (.+)$`),
	regexp.MustCompile(`^(\w+Exception): (.+)$`),
	regexp.MustCompile(`^FATAL: (.+)$`),
}

// Test failure patterns.
var testFailurePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^FAILED\s+(.+)$`),
	regexp.MustCompile(`^FAIL\s+(.+)$`),
	regexp.MustCompile(`^E\s+(\w+Error.+)$`),
	regexp.MustCompile(`^={3,}\s*FAILURES\s*={3,}$`),
	regexp.MustCompile(`^-{3,}\s*ERRORS\s*-{3,}$`),
}

// Build and lint failure patterns. The file:line:col shapes capture location.
var buildFailurePatterns = []*regexp.Regexp{
	regexp.MustCompile(`error\[E\d+\]:`),
	regexp.MustCompile(`(?i)^error: (.+)$`),
	regexp.MustCompile(`^(.+):(\d+):(\d+): error: (.+)$`),
	regexp.MustCompile(`^(.+):(\d+):(\d+): (E\d+ .+)$`),
}

// maxBufferLines caps a buffered error block; reaching it forces a flush
// rather than unbounded growth.
const maxBufferLines = 50

// Analyzer is a restartable per-source state machine with two states:
// scanning normal output, and accumulating an error block. It never returns
// an error; unrecognized text is accumulated, ignored, or flushed as a
// best-effort record with empty structured fields.
//
// One Analyzer instance serves one source and is not safe for concurrent
// use; independent sources run independent instances.
type Analyzer struct {
	buffer     []string
	inBlock    bool
	blankCount int
}

// New creates an Analyzer in the normal scanning state.
func New() *Analyzer {
	return &Analyzer{}
}

// Reset clears all buffered state without emitting.
func (a *Analyzer) Reset() {
	a.buffer = nil
	a.inBlock = false
	a.blankCount = 0
}

// Feed scans one line and returns a detected error if the line completed
// one, or nil. It can be called for a finite batch or a live stream alike.
func (a *Analyzer) Feed(line string) *domain.DetectedError {
	stripped := strings.TrimRight(line, " \t\r\n")

	if a.inBlock {
		return a.feedInBlock(stripped)
	}

	for _, p := range blockStartPatterns {
		if p.MatchString(stripped) {
			a.inBlock = true
			a.blankCount = 0
			a.buffer = []string{stripped}
			return nil
		}
	}

	for _, p := range singleLineErrorPatterns {
		if m := p.FindStringSubmatch(stripped); m != nil {
			errorType := ""
			if len(m) > 2 {
				errorType = m[1]
			}
			return &domain.DetectedError{
				ErrorType: errorType,
				Message:   stripped,
				Severity:  domain.SeverityError,
			}
		}
	}

	for _, p := range testFailurePatterns {
		if p.MatchString(stripped) {
			return &domain.DetectedError{
				ErrorType: "TestFailure",
				Message:   stripped,
				Severity:  domain.SeverityError,
			}
		}
	}

	for _, p := range buildFailurePatterns {
		if m := p.FindStringSubmatch(stripped); m != nil {
			detected := &domain.DetectedError{
				ErrorType: "BuildError",
				Message:   stripped,
				Severity:  domain.SeverityWarning,
			}
			if len(m) > 2 {
				if line, err := strconv.Atoi(m[2]); err == nil {
					detected.FilePath = m[1]
					detected.LineNumber = line
				}
			}
			return detected
		}
	}

	return nil
}

// feedInBlock handles a line while accumulating an error block.
func (a *Analyzer) feedInBlock(stripped string) *domain.DetectedError {
	if stripped == "" {
		a.blankCount++
		if a.blankCount >= 2 {
			return a.flushBuffer()
		}
		a.buffer = append(a.buffer, stripped)
		return nil
	}

	a.blankCount = 0
	a.buffer = append(a.buffer, stripped)

	if len(a.buffer) >= maxBufferLines {
		return a.flushBuffer()
	}

	// A "Type: message" line is the block's conclusion; flush immediately.
	for _, p := range singleLineErrorPatterns {
		if p.MatchString(stripped) {
			return a.flushBuffer()
		}
	}

	return nil
}

// Flush force-emits any pending buffered block, for end-of-stream handling.
func (a *Analyzer) Flush() *domain.DetectedError {
	if len(a.buffer) == 0 {
		return nil
	}
	return a.flushBuffer()
}

func (a *Analyzer) flushBuffer() *domain.DetectedError {
	if len(a.buffer) == 0 {
		a.inBlock = false
		return nil
	}

	text := strings.Join(a.buffer, "\n")
	a.buffer = nil
	a.inBlock = false
	a.blankCount = 0

	parsed := ParseStacktrace(text)

	lines := strings.Split(text, "\n")
	lastLine := lines[len(lines)-1]

	if len(parsed.Frames) > 0 {
		message := parsed.ErrorMessage
		if message == "" {
			message = lastLine
		}
		first := parsed.Frames[0]
		return &domain.DetectedError{
			ErrorType:  parsed.ErrorType,
			Message:    message,
			Stacktrace: text,
			FilePath:   first.FilePath,
			LineNumber: first.LineNumber,
			Severity:   domain.SeverityError,
			Language:   parsed.Language,
		}
	}

	errorType := parsed.ErrorType
	if errorType == "" {
		errorType = "UnknownError"
	}
	message := lastLine
	if message == "" {
		message = "Unknown error"
	}
	return &domain.DetectedError{
		ErrorType:  errorType,
		Message:    message,
		Stacktrace: text,
		Severity:   domain.SeverityError,
	}
}

// AnalyzeOutput resets the analyzer and runs a complete block of text
// through it, returning every detected error including a trailing
// unterminated block.
func (a *Analyzer) AnalyzeOutput(text string) []*domain.DetectedError {
	a.Reset()
	var errors []*domain.DetectedError
	for _, line := range strings.Split(text, "\n") {
		if detected := a.Feed(line); detected != nil {
			errors = append(errors, detected)
		}
	}
	if final := a.Flush(); final != nil {
		errors = append(errors, final)
	}
	return errors
}
