package domain

// DetectedError is a structured error extracted from raw process or log
// output by the stream analyzer. It is a transient value object owned by the
// monitoring source that produced it.
type DetectedError struct {
	// ErrorType is the error class when the analyzer could identify one.
	ErrorType string `json:"error_type,omitempty"`

	// Message is the error message or the line that triggered detection.
	Message string `json:"message"`

	// Stacktrace is the buffered error block, if the error spanned lines.
	Stacktrace string `json:"stacktrace,omitempty"`

	// FilePath and LineNumber locate the failure when a frame was parsed.
	FilePath   string `json:"file_path,omitempty"`
	LineNumber int    `json:"line_number,omitempty"`

	// Severity is assigned by the detecting pattern family.
	Severity Severity `json:"severity"`

	// Language is the stacktrace dialect, when one matched.
	Language string `json:"language,omitempty"`
}

// StackFrame is one frame of a parsed stacktrace.
type StackFrame struct {
	FilePath     string `json:"file_path"`
	LineNumber   int    `json:"line_number"`
	FunctionName string `json:"function_name,omitempty"`
}

// ParsedStacktrace is the result of running a stacktrace through the dialect
// parsers. Frames are in original top-to-bottom source order. An empty frame
// list with no language means no dialect matched; callers treat that as an
// opaque stacktrace, not an error.
type ParsedStacktrace struct {
	Frames       []StackFrame `json:"frames"`
	ErrorType    string       `json:"error_type,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Language     string       `json:"language,omitempty"`
}
