package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"mend-go/internal/domain"
	"mend-go/internal/normalizer"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// collectSink records everything reported into it.
type collectSink struct {
	mu       sync.Mutex
	detected []*domain.DetectedError
}

func (s *collectSink) Report(_ context.Context, d *domain.DetectedError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detected = append(s.detected, d)
	return nil
}

func (s *collectSink) all() []*domain.DetectedError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.DetectedError(nil), s.detected...)
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("failed to append to %s: %v", path, err)
	}
}

func TestLogTailerDetectsAppendedError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	appendFile(t, path, "FATAL: old error before the tailer started\n")

	sink := &collectSink{}
	tailer := NewLogTailer(testLogger(), path, 10*time.Millisecond, sink)

	// start at the current end, as Run does
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("failed to stat log: %v", err)
	}
	tailer.position = info.Size()

	appendFile(t, path, "Traceback (most recent call last):\n"+
		"  File \"app/main.py\", line 10, in <module>\n"+
		"    run()\n"+
		"ValueError: bad input\n")

	if err := tailer.poll(context.Background()); err != nil {
		t.Fatalf("poll failed: %v", err)
	}

	detected := sink.all()
	if len(detected) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(detected))
	}
	if detected[0].ErrorType != "ValueError" {
		t.Errorf("expected ValueError, got %q", detected[0].ErrorType)
	}
	if detected[0].FilePath != "app/main.py" || detected[0].LineNumber != 10 {
		t.Errorf("expected app/main.py:10, got %s:%d", detected[0].FilePath, detected[0].LineNumber)
	}
}

func TestLogTailerTruncationRestartsFromStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	appendFile(t, path, "line one\nline two\nline three\n")

	sink := &collectSink{}
	tailer := NewLogTailer(testLogger(), path, 10*time.Millisecond, sink)
	info, _ := os.Stat(path)
	tailer.position = info.Size()

	// rotation rewrites the file shorter than the stored position
	if err := os.WriteFile(path, []byte("FATAL: db down\n"), 0o644); err != nil {
		t.Fatalf("failed to truncate log: %v", err)
	}

	if err := tailer.poll(context.Background()); err != nil {
		t.Fatalf("poll failed: %v", err)
	}

	detected := sink.all()
	if len(detected) != 1 {
		t.Fatalf("expected 1 detection after truncation, got %d", len(detected))
	}
	if detected[0].Message != "FATAL: db down" {
		t.Errorf("unexpected message %q", detected[0].Message)
	}
}

func TestLogTailerKeepsPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	appendFile(t, path, "")

	sink := &collectSink{}
	tailer := NewLogTailer(testLogger(), path, 10*time.Millisecond, sink)

	appendFile(t, path, "ValueError: partial")
	if err := tailer.poll(context.Background()); err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if len(sink.all()) != 0 {
		t.Fatal("partial line should not be consumed")
	}

	appendFile(t, path, " write\n")
	if err := tailer.poll(context.Background()); err != nil {
		t.Fatalf("poll failed: %v", err)
	}

	detected := sink.all()
	if len(detected) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(detected))
	}
	if detected[0].Message != "ValueError: partial write" {
		t.Errorf("line was split, got %q", detected[0].Message)
	}
}

func TestLogTailerMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.log")
	tailer := NewLogTailer(testLogger(), path, 10*time.Millisecond, &collectSink{})
	if err := tailer.poll(context.Background()); err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
}

func TestProcessRunnerDetectsErrorOutput(t *testing.T) {
	sink := &collectSink{}
	runner := NewProcessRunner(testLogger(), sink)

	detected, err := runner.Run(context.Background(), "echo 'ValueError: boom'; exit 1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(detected) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(detected))
	}
	if detected[0].ErrorType != "ValueError" {
		t.Errorf("expected ValueError, got %q", detected[0].ErrorType)
	}
	if len(sink.all()) != 1 {
		t.Errorf("detection was not reported to the sink")
	}
}

func TestProcessRunnerSyntheticErrorOnSilentFailure(t *testing.T) {
	sink := &collectSink{}
	runner := NewProcessRunner(testLogger(), sink)

	detected, err := runner.Run(context.Background(), "exit 3")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(detected) != 1 {
		t.Fatalf("expected a synthetic detection, got %d", len(detected))
	}
	if detected[0].ErrorType != "CheckFailed" {
		t.Errorf("expected CheckFailed, got %q", detected[0].ErrorType)
	}
}

func TestProcessRunnerPassingCheck(t *testing.T) {
	sink := &collectSink{}
	runner := NewProcessRunner(testLogger(), sink)

	detected, err := runner.Run(context.Background(), "echo all good")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(detected) != 0 {
		t.Fatalf("expected no detections, got %d", len(detected))
	}
}

func TestFileWatcherRelevance(t *testing.T) {
	w := NewFileWatcher(testLogger(), t.TempDir(), time.Second, nil, nil)

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"write to source file", fsnotify.Event{Name: "a/b.go", Op: fsnotify.Write}, true},
		{"create source file", fsnotify.Event{Name: "a/b.py", Op: fsnotify.Create}, true},
		{"remove source file", fsnotify.Event{Name: "a/b.ts", Op: fsnotify.Remove}, true},
		{"chmod only", fsnotify.Event{Name: "a/b.go", Op: fsnotify.Chmod}, false},
		{"write to log file", fsnotify.Event{Name: "a/b.log", Op: fsnotify.Write}, false},
		{"uppercase extension", fsnotify.Event{Name: "a/B.GO", Op: fsnotify.Write}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.relevant(tt.event); got != tt.want {
				t.Errorf("relevant(%v) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}

func TestServerSinkDeliversReport(t *testing.T) {
	var received struct {
		normalizer.CLIReport
		Repository string `json:"repository"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/reports" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode report: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sink := NewServerSink(testLogger(), ServerSinkConfig{
		BaseURL:    server.URL,
		Repository: "acme/widget",
		Branch:     "main",
		CommitSHA:  "abc123",
	})
	err := sink.Report(context.Background(), &domain.DetectedError{
		ErrorType:  "ValueError",
		Message:    "bad input",
		FilePath:   "app/main.py",
		LineNumber: 10,
		Severity:   domain.SeverityError,
	})
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if received.ErrorType != "ValueError" || received.Message != "bad input" {
		t.Errorf("unexpected report %+v", received)
	}
	if received.Repository != "acme/widget" || received.Branch != "main" {
		t.Errorf("repository context was not attached: %+v", received)
	}
}

func TestServerSinkRejectedReport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sink := NewServerSink(testLogger(), ServerSinkConfig{BaseURL: server.URL})
	err := sink.Report(context.Background(), &domain.DetectedError{Message: "x"})
	if err == nil {
		t.Fatal("expected an error for a rejected report")
	}
}
