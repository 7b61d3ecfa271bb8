package normalizer

import (
	"strings"
	"testing"

	"mend-go/internal/domain"
)

func TestNormalizeWorkflowRun_Failure(t *testing.T) {
	payload := []byte(`{
		"action": "completed",
		"workflow_run": {
			"name": "CI",
			"conclusion": "failure",
			"head_branch": "main",
			"head_sha": "abc123"
		},
		"repository": {"full_name": "acme/widgets"}
	}`)

	event, err := NormalizeWorkflowRun(payload)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if event == nil {
		t.Fatal("expected an event, got nil")
	}
	if event.Source != domain.SourceGithubActions {
		t.Errorf("expected source github_actions, got %s", event.Source)
	}
	if event.Severity != domain.SeverityError {
		t.Errorf("expected severity error, got %s", event.Severity)
	}
	if event.Title != "CI Failure: CI on main" {
		t.Errorf("unexpected title: %s", event.Title)
	}
	if event.ErrorType != "WorkflowFailure" {
		t.Errorf("expected error type WorkflowFailure, got %s", event.ErrorType)
	}
	if event.CommitSHA != "abc123" {
		t.Errorf("expected commit sha abc123, got %s", event.CommitSHA)
	}
	if event.Environment != "ci" {
		t.Errorf("expected environment ci, got %s", event.Environment)
	}
	if event.Fingerprint == "" {
		t.Error("expected fingerprint to be computed")
	}
}

func TestNormalizeWorkflowRun_Ignored(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{
			name:    "not completed",
			payload: `{"action": "requested", "workflow_run": {"conclusion": "failure"}}`,
		},
		{
			name:    "success conclusion",
			payload: `{"action": "completed", "workflow_run": {"conclusion": "success"}}`,
		},
		{
			name:    "cancelled conclusion",
			payload: `{"action": "completed", "workflow_run": {"conclusion": "cancelled"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := NormalizeWorkflowRun([]byte(tt.payload))
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if event != nil {
				t.Errorf("expected nil event, got %+v", event)
			}
		})
	}
}

func TestNormalizeWorkflowRun_InvalidJSON(t *testing.T) {
	if _, err := NormalizeWorkflowRun([]byte("not json")); err == nil {
		t.Error("expected an error for invalid payload")
	}
}

func TestNormalizeCheckRun(t *testing.T) {
	tests := []struct {
		name       string
		conclusion string
		wantEvent  bool
	}{
		{name: "failure", conclusion: "failure", wantEvent: true},
		{name: "timed out", conclusion: "timed_out", wantEvent: true},
		{name: "success", conclusion: "success", wantEvent: false},
		{name: "neutral", conclusion: "neutral", wantEvent: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := []byte(`{
				"action": "completed",
				"check_run": {
					"name": "unit-tests",
					"conclusion": "` + tt.conclusion + `",
					"head_sha": "def456",
					"output": {"summary": "2 tests failed", "text": "FAIL: TestFoo"}
				}
			}`)

			event, err := NormalizeCheckRun(payload)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !tt.wantEvent {
				if event != nil {
					t.Errorf("expected nil event, got %+v", event)
				}
				return
			}
			if event == nil {
				t.Fatal("expected an event, got nil")
			}
			if event.Title != "Check Failed: unit-tests" {
				t.Errorf("unexpected title: %s", event.Title)
			}
			if event.Message != "2 tests failed" {
				t.Errorf("unexpected message: %s", event.Message)
			}
			if event.Stacktrace != "FAIL: TestFoo" {
				t.Errorf("unexpected stacktrace: %s", event.Stacktrace)
			}
		})
	}
}

func TestNormalizeCheckRun_TruncatesOutputText(t *testing.T) {
	long := strings.Repeat("x", maxStacktraceBytes+100)
	payload := []byte(`{
		"action": "completed",
		"check_run": {
			"name": "build",
			"conclusion": "failure",
			"output": {"text": "` + long + `"}
		}
	}`)

	event, err := NormalizeCheckRun(payload)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(event.Stacktrace) != maxStacktraceBytes {
		t.Errorf("expected stacktrace truncated to %d bytes, got %d", maxStacktraceBytes, len(event.Stacktrace))
	}
}

func TestNormalizeTrackerEvent_UsesLastException(t *testing.T) {
	payload := []byte(`{
		"data": {
			"event": {
				"title": "ValueError: bad input",
				"level": "error",
				"environment": "staging",
				"exception": {
					"values": [
						{
							"type": "OSError",
							"value": "outer wrapper",
							"stacktrace": {"frames": [
								{"filename": "app/outer.py", "lineno": 5, "function": "run"}
							]}
						},
						{
							"type": "ValueError",
							"value": "bad input",
							"stacktrace": {"frames": [
								{"filename": "app/io.py", "lineno": 12, "function": "read"},
								{"filename": "app/parse.py", "lineno": 48, "function": "parse"}
							]}
						}
					]
				}
			}
		}
	}`)

	event, err := NormalizeTrackerEvent(payload)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if event == nil {
		t.Fatal("expected an event, got nil")
	}
	if event.Source != domain.SourceTracker {
		t.Errorf("expected source tracker, got %s", event.Source)
	}
	if event.ErrorType != "ValueError" {
		t.Errorf("expected the last exception's type, got %s", event.ErrorType)
	}
	if event.Message != "bad input" {
		t.Errorf("unexpected message: %s", event.Message)
	}
	if event.FilePath != "app/parse.py" || event.LineNumber != 48 {
		t.Errorf("expected final frame location app/parse.py:48, got %s:%d", event.FilePath, event.LineNumber)
	}
	if event.Environment != "staging" {
		t.Errorf("expected environment staging, got %s", event.Environment)
	}
	if !strings.Contains(event.Stacktrace, "app/io.py") || !strings.Contains(event.Stacktrace, "app/parse.py") {
		t.Errorf("expected synthetic stacktrace with both frames, got %q", event.Stacktrace)
	}
}

func TestNormalizeTrackerEvent_SeverityMapping(t *testing.T) {
	tests := []struct {
		level string
		want  domain.Severity
	}{
		{level: "fatal", want: domain.SeverityCritical},
		{level: "error", want: domain.SeverityError},
		{level: "warning", want: domain.SeverityWarning},
		{level: "info", want: domain.SeverityInfo},
		{level: "debug", want: domain.SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			payload := []byte(`{"data": {"event": {"title": "boom", "level": "` + tt.level + `"}}}`)
			event, err := NormalizeTrackerEvent(payload)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if event.Severity != tt.want {
				t.Errorf("level %s: expected severity %s, got %s", tt.level, tt.want, event.Severity)
			}
		})
	}
}

func TestNormalizeTrackerEvent_EmptyPayload(t *testing.T) {
	event, err := NormalizeTrackerEvent([]byte(`{"data": {"event": {}}}`))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if event != nil {
		t.Errorf("expected nil event for an empty tracker payload, got %+v", event)
	}
}

func TestNormalizeTrackerEvent_DefaultEnvironment(t *testing.T) {
	event, err := NormalizeTrackerEvent([]byte(`{"data": {"event": {"title": "boom", "level": "error"}}}`))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if event.Environment != "production" {
		t.Errorf("expected default environment production, got %s", event.Environment)
	}
}

func TestNormalizeCLIReport(t *testing.T) {
	event := NormalizeCLIReport(&CLIReport{
		Message:    "connection refused",
		ErrorType:  "ConnectionError",
		FilePath:   "internal/db/pool.go",
		LineNumber: 42,
		Branch:     "feature/retry",
		Severity:   domain.SeverityWarning,
	})

	if event.Source != domain.SourceLocalCLI {
		t.Errorf("expected source local_cli, got %s", event.Source)
	}
	if event.Severity != domain.SeverityWarning {
		t.Errorf("expected severity warning, got %s", event.Severity)
	}
	if event.Title != "Local Error: ConnectionError in internal/db/pool.go" {
		t.Errorf("unexpected title: %s", event.Title)
	}
	if event.Environment != "development" {
		t.Errorf("expected environment development, got %s", event.Environment)
	}
	if event.Fingerprint == "" {
		t.Error("expected fingerprint to be computed")
	}
}

func TestNormalizeCLIReport_Defaults(t *testing.T) {
	event := NormalizeCLIReport(&CLIReport{Message: "boom"})
	if event.Severity != domain.SeverityError {
		t.Errorf("expected default severity error, got %s", event.Severity)
	}
	if event.Title != "Local Error: Unknown" {
		t.Errorf("unexpected title: %s", event.Title)
	}
}

func TestNormalizeCLIReport_FingerprintStable(t *testing.T) {
	a := NormalizeCLIReport(&CLIReport{Message: "boom", ErrorType: "KeyError", FilePath: "a.py"})
	b := NormalizeCLIReport(&CLIReport{Message: "boom", ErrorType: "KeyError", FilePath: "a.py", Branch: "other"})
	if a.Fingerprint != b.Fingerprint {
		t.Error("expected fingerprint to ignore branch metadata")
	}
}
