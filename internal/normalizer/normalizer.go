// Package normalizer maps heterogeneous source payloads into the canonical
// NormalizedEvent shape with a deterministic fingerprint. Every mapping is
// pure; a payload that is valid but not a failure maps to (nil, nil), a
// normal ignore outcome rather than an error.
package normalizer

import (
	"encoding/json"
	"fmt"
	"strings"

	"mend-go/internal/domain"
)

// maxStacktraceBytes bounds stacktrace text carried from check-run output.
const maxStacktraceBytes = 5000

// workflowRunPayload is the subset of a CI workflow-completion payload the
// normalizer reads.
type workflowRunPayload struct {
	Action      string `json:"action"`
	WorkflowRun struct {
		Name       string `json:"name"`
		Conclusion string `json:"conclusion"`
		HeadBranch string `json:"head_branch"`
		HeadSHA    string `json:"head_sha"`
	} `json:"workflow_run"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// NormalizeWorkflowRun maps a CI workflow-completion payload. Only a
// completed run with a failure conclusion produces an event.
func NormalizeWorkflowRun(payload []byte) (*domain.NormalizedEvent, error) {
	var p workflowRunPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode workflow_run payload: %w", err)
	}

	if p.Action != "completed" {
		return nil, nil
	}
	if p.WorkflowRun.Conclusion != "failure" {
		return nil, nil
	}

	repoName := p.Repository.FullName
	if repoName == "" {
		repoName = "unknown"
	}
	workflow := p.WorkflowRun.Name
	if workflow == "" {
		workflow = "unknown"
	}
	branch := p.WorkflowRun.HeadBranch
	if branch == "" {
		branch = "unknown"
	}

	event := &domain.NormalizedEvent{
		Source:      domain.SourceGithubActions,
		Severity:    domain.SeverityError,
		Title:       fmt.Sprintf("CI Failure: %s on %s", workflow, branch),
		Message:     fmt.Sprintf("Workflow '%s' failed on %s branch %s", workflow, repoName, branch),
		ErrorType:   "WorkflowFailure",
		CommitSHA:   p.WorkflowRun.HeadSHA,
		Branch:      branch,
		Environment: "ci",
		RawPayload:  rawMap(payload),
	}
	event.ComputeFingerprint()
	return event, nil
}

// checkRunPayload is the subset of a check-run completion payload the
// normalizer reads.
type checkRunPayload struct {
	Action   string `json:"action"`
	CheckRun struct {
		Name       string `json:"name"`
		Conclusion string `json:"conclusion"`
		HeadSHA    string `json:"head_sha"`
		Output     struct {
			Summary string `json:"summary"`
			Text    string `json:"text"`
		} `json:"output"`
	} `json:"check_run"`
}

// NormalizeCheckRun maps a check-run completion payload. Only failure and
// timed_out conclusions produce an event.
func NormalizeCheckRun(payload []byte) (*domain.NormalizedEvent, error) {
	var p checkRunPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode check_run payload: %w", err)
	}

	if p.Action != "completed" {
		return nil, nil
	}
	conclusion := p.CheckRun.Conclusion
	if conclusion != "failure" && conclusion != "timed_out" {
		return nil, nil
	}

	name := p.CheckRun.Name
	if name == "" {
		name = "unknown"
	}
	message := p.CheckRun.Output.Summary
	if message == "" {
		message = fmt.Sprintf("Check '%s' %s", name, conclusion)
	}

	stacktrace := p.CheckRun.Output.Text
	if len(stacktrace) > maxStacktraceBytes {
		stacktrace = stacktrace[:maxStacktraceBytes]
	}

	event := &domain.NormalizedEvent{
		Source:      domain.SourceGithubActions,
		Severity:    domain.SeverityError,
		Title:       fmt.Sprintf("Check Failed: %s", name),
		Message:     message,
		ErrorType:   "CheckRunFailure",
		Stacktrace:  stacktrace,
		CommitSHA:   p.CheckRun.HeadSHA,
		Environment: "ci",
		RawPayload:  rawMap(payload),
	}
	event.ComputeFingerprint()
	return event, nil
}

// trackerPayload is the subset of an error-tracker payload the normalizer
// reads.
type trackerPayload struct {
	Data struct {
		Event struct {
			Title       string `json:"title"`
			Level       string `json:"level"`
			Environment string `json:"environment"`
			Exception   struct {
				Values []trackerException `json:"values"`
			} `json:"exception"`
		} `json:"event"`
	} `json:"data"`
}

type trackerException struct {
	Type       string `json:"type"`
	Value      string `json:"value"`
	Stacktrace struct {
		Frames []trackerFrame `json:"frames"`
	} `json:"stacktrace"`
}

type trackerFrame struct {
	Filename string `json:"filename"`
	Lineno   int    `json:"lineno"`
	Function string `json:"function"`
}

// trackerSeverity maps tracker levels onto event severities. Unknown levels
// default to error.
var trackerSeverity = map[string]domain.Severity{
	"fatal":   domain.SeverityCritical,
	"error":   domain.SeverityError,
	"warning": domain.SeverityWarning,
	"info":    domain.SeverityInfo,
}

// NormalizeTrackerEvent maps an error-tracker payload. The last exception in
// the chain is the innermost, most specific one: its type and value name the
// problem, its final frame locates it, and a synthetic stacktrace is rebuilt
// from all of its frames.
func NormalizeTrackerEvent(payload []byte) (*domain.NormalizedEvent, error) {
	var p trackerPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode tracker payload: %w", err)
	}

	ev := p.Data.Event
	if ev.Title == "" && ev.Level == "" && len(ev.Exception.Values) == 0 {
		return nil, nil
	}

	title := ev.Title
	if title == "" {
		title = "Unknown error"
	}

	severity, ok := trackerSeverity[ev.Level]
	if !ok {
		severity = domain.SeverityError
	}

	event := &domain.NormalizedEvent{
		Source:      domain.SourceTracker,
		Severity:    severity,
		Title:       title,
		Message:     title,
		Environment: ev.Environment,
		RawPayload:  rawMap(payload),
	}
	if event.Environment == "" {
		event.Environment = "production"
	}

	if values := ev.Exception.Values; len(values) > 0 {
		exc := values[len(values)-1]
		event.ErrorType = exc.Type
		if exc.Value != "" {
			event.Message = exc.Value
		}

		if frames := exc.Stacktrace.Frames; len(frames) > 0 {
			last := frames[len(frames)-1]
			event.FilePath = last.Filename
			event.LineNumber = last.Lineno

			lines := make([]string, 0, len(frames))
			for _, f := range frames {
				lines = append(lines, fmt.Sprintf("  File %q, line %d, in %s", f.Filename, f.Lineno, f.Function))
			}
			event.Stacktrace = strings.Join(lines, "\n")
		}
	}

	event.ComputeFingerprint()
	return event, nil
}

// CLIReport is a direct error report from the local CLI or a monitoring
// source re-entering the ingestion path.
type CLIReport struct {
	Message    string          `json:"error_message"`
	ErrorType  string          `json:"error_type,omitempty"`
	Stacktrace string          `json:"stacktrace,omitempty"`
	FilePath   string          `json:"file_path,omitempty"`
	LineNumber int             `json:"line_number,omitempty"`
	Branch     string          `json:"branch,omitempty"`
	CommitSHA  string          `json:"commit_sha,omitempty"`
	Severity   domain.Severity `json:"severity,omitempty"`
}

// NormalizeCLIReport maps a direct report. It always emits; the severity
// defaults to error when the caller supplies none.
func NormalizeCLIReport(report *CLIReport) *domain.NormalizedEvent {
	severity := report.Severity
	if !severity.IsValid() {
		severity = domain.SeverityError
	}

	errorType := report.ErrorType
	if errorType == "" {
		errorType = "Unknown"
	}
	title := fmt.Sprintf("Local Error: %s", errorType)
	if report.FilePath != "" {
		title += fmt.Sprintf(" in %s", report.FilePath)
	}

	event := &domain.NormalizedEvent{
		Source:      domain.SourceLocalCLI,
		Severity:    severity,
		Title:       title,
		Message:     report.Message,
		ErrorType:   report.ErrorType,
		Stacktrace:  report.Stacktrace,
		FilePath:    report.FilePath,
		LineNumber:  report.LineNumber,
		Branch:      report.Branch,
		CommitSHA:   report.CommitSHA,
		Environment: "development",
	}
	event.ComputeFingerprint()
	return event
}

// rawMap decodes the payload into a generic map for raw preservation.
// Decoding already succeeded once by the time this runs, so errors only
// happen for non-object payloads; those are preserved as nil.
func rawMap(payload []byte) map[string]any {
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil
	}
	return m
}
