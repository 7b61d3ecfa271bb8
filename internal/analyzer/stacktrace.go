package analyzer

import (
	"regexp"
	"strconv"

	"mend-go/internal/domain"
)

// A dialect is one language-specific pattern family: a frame pattern that
// extracts (file, line, function) tuples and an error pattern that extracts
// the "Type: message" line.
type dialect struct {
	language string
	frames   func(text string) []domain.StackFrame
	errLine  *regexp.Regexp
}

var (
	pythonFrame = regexp.MustCompile(`File "([^"]+)", line (\d+)(?:, in (\w+))?`)
	pythonError = regexp.MustCompile(`(?m)^(\w+(?:\.\w+)*Error|\w+Exception): (.+)$`)

	jsFrame = regexp.MustCompile(`at (?:(.+?) \()?(.+?):(\d+):\d+\)?`)
	jsError = regexp.MustCompile(`(?m)^(\w+Error): (.+)$`)

	goFrame = regexp.MustCompile(`(?m)^\t(.+\.go):(\d+)(?: \+0x[0-9a-f]+)?$`)

	javaFrame = regexp.MustCompile(`at ([\w.$]+)\(([\w.]+):(\d+)\)`)
	javaError = regexp.MustCompile(`(?m)^([\w.]+(?:Exception|Error)): (.+)$`)
)

// dialects are tried in fixed order; the first whose frame pattern yields at
// least one match wins and tags the result with its language.
var dialects = []dialect{
	{
		language: "python",
		errLine:  pythonError,
		frames: func(text string) []domain.StackFrame {
			var frames []domain.StackFrame
			for _, m := range pythonFrame.FindAllStringSubmatch(text, -1) {
				line, _ := strconv.Atoi(m[2])
				frames = append(frames, domain.StackFrame{
					FilePath:     m[1],
					LineNumber:   line,
					FunctionName: m[3],
				})
			}
			return frames
		},
	},
	{
		language: "javascript",
		errLine:  jsError,
		frames: func(text string) []domain.StackFrame {
			var frames []domain.StackFrame
			for _, m := range jsFrame.FindAllStringSubmatch(text, -1) {
				line, _ := strconv.Atoi(m[3])
				frames = append(frames, domain.StackFrame{
					FilePath:     m[2],
					LineNumber:   line,
					FunctionName: m[1],
				})
			}
			return frames
		},
	},
	{
		language: "go",
		frames: func(text string) []domain.StackFrame {
			var frames []domain.StackFrame
			for _, m := range goFrame.FindAllStringSubmatch(text, -1) {
				line, _ := strconv.Atoi(m[2])
				frames = append(frames, domain.StackFrame{
					FilePath:   m[1],
					LineNumber: line,
				})
			}
			return frames
		},
	},
	{
		language: "java",
		errLine:  javaError,
		frames: func(text string) []domain.StackFrame {
			var frames []domain.StackFrame
			for _, m := range javaFrame.FindAllStringSubmatch(text, -1) {
				line, _ := strconv.Atoi(m[3])
				frames = append(frames, domain.StackFrame{
					FilePath:     m[2],
					LineNumber:   line,
					FunctionName: m[1],
				})
			}
			return frames
		},
	},
}

// ParseStacktrace tries the known dialects against the text and returns the
// frames of the first dialect that matches, in original top-to-bottom order.
// The error line is searched across the whole text separately; its first
// match supplies the error type and message. An unrecognized dialect is not
// an error: the result simply has no frames and no language.
func ParseStacktrace(text string) *domain.ParsedStacktrace {
	if text == "" {
		return &domain.ParsedStacktrace{}
	}

	for _, d := range dialects {
		frames := d.frames(text)
		if len(frames) == 0 {
			continue
		}

		parsed := &domain.ParsedStacktrace{
			Frames:   frames,
			Language: d.language,
		}
		if d.errLine != nil {
			if m := d.errLine.FindStringSubmatch(text); m != nil {
				parsed.ErrorType = m[1]
				parsed.ErrorMessage = m[2]
			}
		}
		return parsed
	}

	return &domain.ParsedStacktrace{}
}
