package analyzer

import "testing"

const pythonTraceback = `Traceback (most recent call last):
  File "app/main.py", line 10, in main
    run()
  File "app/worker.py", line 42, in run
    data["user"]
KeyError: 'user'`

func TestParseStacktrace_Python(t *testing.T) {
	parsed := ParseStacktrace(pythonTraceback)

	if parsed.Language != "python" {
		t.Errorf("Language = %v, want python", parsed.Language)
	}
	if len(parsed.Frames) != 2 {
		t.Fatalf("len(Frames) = %d, want 2", len(parsed.Frames))
	}
	if parsed.ErrorType != "KeyError" {
		t.Errorf("ErrorType = %v, want KeyError", parsed.ErrorType)
	}
	if parsed.ErrorMessage != "'user'" {
		t.Errorf("ErrorMessage = %v, want 'user'", parsed.ErrorMessage)
	}
}

func TestParseStacktrace_FrameOrder(t *testing.T) {
	// Frames come back in original top-to-bottom source order, outer first.
	parsed := ParseStacktrace(pythonTraceback)

	if len(parsed.Frames) != 2 {
		t.Fatalf("len(Frames) = %d, want 2", len(parsed.Frames))
	}
	if parsed.Frames[0].FilePath != "app/main.py" {
		t.Errorf("Frames[0].FilePath = %v, want app/main.py", parsed.Frames[0].FilePath)
	}
	if parsed.Frames[0].LineNumber != 10 {
		t.Errorf("Frames[0].LineNumber = %v, want 10", parsed.Frames[0].LineNumber)
	}
	if parsed.Frames[0].FunctionName != "main" {
		t.Errorf("Frames[0].FunctionName = %v, want main", parsed.Frames[0].FunctionName)
	}
	if parsed.Frames[1].FilePath != "app/worker.py" {
		t.Errorf("Frames[1].FilePath = %v, want app/worker.py", parsed.Frames[1].FilePath)
	}
}

func TestParseStacktrace_JavaScript(t *testing.T) {
	text := `TypeError: Cannot read property 'id' of undefined
    at handler (src/routes/user.js:15:22)
    at Layer.handle (node_modules/express/lib/router/layer.js:95:5)`

	parsed := ParseStacktrace(text)

	if parsed.Language != "javascript" {
		t.Errorf("Language = %v, want javascript", parsed.Language)
	}
	if len(parsed.Frames) != 2 {
		t.Fatalf("len(Frames) = %d, want 2", len(parsed.Frames))
	}
	if parsed.Frames[0].FilePath != "src/routes/user.js" {
		t.Errorf("Frames[0].FilePath = %v, want src/routes/user.js", parsed.Frames[0].FilePath)
	}
	if parsed.Frames[0].LineNumber != 15 {
		t.Errorf("Frames[0].LineNumber = %v, want 15", parsed.Frames[0].LineNumber)
	}
	if parsed.ErrorType != "TypeError" {
		t.Errorf("ErrorType = %v, want TypeError", parsed.ErrorType)
	}
}

func TestParseStacktrace_Go(t *testing.T) {
	text := "goroutine 1 [running]:\n" +
		"main.process(...)\n" +
		"\t/app/worker.go:27 +0x1b4\n" +
		"main.main()\n" +
		"\t/app/main.go:12 +0x25\n"

	parsed := ParseStacktrace(text)

	if parsed.Language != "go" {
		t.Errorf("Language = %v, want go", parsed.Language)
	}
	if len(parsed.Frames) != 2 {
		t.Fatalf("len(Frames) = %d, want 2", len(parsed.Frames))
	}
	if parsed.Frames[0].FilePath != "/app/worker.go" {
		t.Errorf("Frames[0].FilePath = %v, want /app/worker.go", parsed.Frames[0].FilePath)
	}
	if parsed.Frames[0].LineNumber != 27 {
		t.Errorf("Frames[0].LineNumber = %v, want 27", parsed.Frames[0].LineNumber)
	}
}

func TestParseStacktrace_Java(t *testing.T) {
	text := `java.lang.NullPointerException: user was null
	at com.acme.UserService.load(UserService.java:88)
	at com.acme.Main.main(Main.java:12)`

	parsed := ParseStacktrace(text)

	if parsed.Language != "java" {
		t.Errorf("Language = %v, want java", parsed.Language)
	}
	if len(parsed.Frames) != 2 {
		t.Fatalf("len(Frames) = %d, want 2", len(parsed.Frames))
	}
	if parsed.Frames[0].FilePath != "UserService.java" {
		t.Errorf("Frames[0].FilePath = %v, want UserService.java", parsed.Frames[0].FilePath)
	}
	if parsed.ErrorType != "java.lang.NullPointerException" {
		t.Errorf("ErrorType = %v, want java.lang.NullPointerException", parsed.ErrorType)
	}
}

func TestParseStacktrace_FirstErrorLineWins(t *testing.T) {
	// Multiple error-looking lines: the first match across the whole text
	// supplies the error type, independent of frame position.
	text := `Traceback (most recent call last):
  File "a.py", line 1, in go
ValueError: first
ValueError: second`

	parsed := ParseStacktrace(text)

	if parsed.ErrorMessage != "first" {
		t.Errorf("ErrorMessage = %v, want first", parsed.ErrorMessage)
	}
}

func TestParseStacktrace_UnknownDialect(t *testing.T) {
	parsed := ParseStacktrace("some completely unstructured text\nwith no frames at all")

	if len(parsed.Frames) != 0 {
		t.Errorf("len(Frames) = %d, want 0", len(parsed.Frames))
	}
	if parsed.Language != "" {
		t.Errorf("Language = %v, want empty", parsed.Language)
	}
}

func TestParseStacktrace_Empty(t *testing.T) {
	parsed := ParseStacktrace("")

	if len(parsed.Frames) != 0 {
		t.Errorf("len(Frames) = %d, want 0", len(parsed.Frames))
	}
}
