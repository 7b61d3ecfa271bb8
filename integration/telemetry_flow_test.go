package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"mend-go/internal/alerting"
	"mend-go/internal/api"
	"mend-go/internal/bus"
	"mend-go/internal/config"
	"mend-go/internal/incident"
	"mend-go/internal/ingest"
	"mend-go/internal/pipeline"
	"mend-go/internal/processor"
	qmemory "mend-go/internal/queue/memory"
	smemory "mend-go/internal/store/memory"
	"mend-go/internal/tasks"
)

// testStack is a full in-process service on memory backends.
type testStack struct {
	server *api.Server
	queue  *qmemory.Queue
	runner *tasks.Runner
	cancel context.CancelFunc
}

func startStack() *testStack {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, cancel := context.WithCancel(context.Background())

	q := qmemory.NewQueue(1024)
	alerts := smemory.NewAlertRepository()
	incidents := smemory.NewIncidentRepository()
	events := smemory.NewEventRepository()
	timeline := smemory.NewTimelineRepository()
	states := smemory.NewStateStore()
	eventBus := bus.New(logger)

	engine := alerting.NewEngine(logger, alerts, incidents, events, timeline, states, eventBus)
	incidentSvc := incident.NewService(logger, incidents, timeline, eventBus)

	runner := tasks.NewRunner(ctx, logger, 4)
	orchestrator := pipeline.NewOrchestrator(
		logger,
		runner,
		incidentSvc,
		eventBus,
		pipeline.NewInvestigateStage(incidents, events),
		pipeline.NewRootCauseStage(events),
		pipeline.NewFixStage(incidents),
		pipeline.NewVerifyStage(incidents, events),
	)
	orchestrator.Register()

	ingestSvc := ingest.NewService(q, logger)
	proc := processor.NewService(q, engine, logger)

	server := api.NewServer(api.ServerDeps{
		Config:          &config.ServerConfig{},
		Logger:          logger,
		WebhookHandler:  api.NewWebhookHandler(ingestSvc, logger, "", "local/workspace"),
		ReportHandler:   api.NewReportHandler(ingestSvc, logger, "local/workspace"),
		AlertHandler:    api.NewAlertHandler(engine, logger),
		IncidentHandler: api.NewIncidentHandler(incidentSvc, logger),
	})

	go eventBus.Run(ctx)
	go proc.Start(ctx)

	return &testStack{server: server, queue: q, runner: runner, cancel: cancel}
}

func (s *testStack) stop() {
	s.cancel()
	s.queue.Close()
	s.runner.Wait()
}

// do performs an in-process HTTP request and returns status plus the data
// part of the response envelope.
func (s *testStack) do(method, path string, body interface{}) (int, interface{}) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost && body == nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.server.App().Test(req, 5000)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	var envelope struct {
		Success bool        `json:"success"`
		Data    interface{} `json:"data"`
	}
	Expect(json.NewDecoder(resp.Body).Decode(&envelope)).To(Succeed())
	return resp.StatusCode, envelope.Data
}

// listData fetches a list endpoint and returns its items.
func (s *testStack) listData(path string) []interface{} {
	code, data := s.do(http.MethodGet, path, nil)
	Expect(code).To(Equal(http.StatusOK))
	if data == nil {
		return nil
	}
	items, ok := data.([]interface{})
	Expect(ok).To(BeTrue())
	return items
}

var _ = Describe("Failure telemetry flow", Ordered, func() {
	var stack *testStack
	var incidentID string

	BeforeAll(func() {
		stack = startStack()
	})

	AfterAll(func() {
		stack.stop()
	})

	It("escalates a critical report immediately", func() {
		code, _ := stack.do(http.MethodPost, "/api/v1/reports", map[string]interface{}{
			"repository":    "acme/api",
			"error_message": "could not connect to database",
			"error_type":    "ConnectionError",
			"severity":      "critical",
			"file_path":     "app/db.py",
			"line_number":   42,
		})
		Expect(code).To(Equal(http.StatusAccepted))

		var alert map[string]interface{}
		Eventually(func() string {
			alerts := stack.listData("/api/v1/alerts?repository=acme/api")
			if len(alerts) != 1 {
				return ""
			}
			alert = alerts[0].(map[string]interface{})
			return alert["status"].(string)
		}, 5*time.Second, 50*time.Millisecond).Should(Equal("escalated"))

		Expect(alert["occurrence_count"]).To(BeNumerically("==", 1))
		Expect(alert["severity"]).To(Equal("critical"))
		Expect(alert["incident_id"]).NotTo(BeEmpty())

		incidents := stack.listData("/api/v1/incidents?repository=acme/api")
		Expect(incidents).To(HaveLen(1))
		inc := incidents[0].(map[string]interface{})
		Expect(inc["priority"]).To(Equal("P0"))
		Expect(inc["number"]).To(BeNumerically("==", 1))
		Expect(inc["event_count"]).To(BeNumerically("==", 1))
		incidentID = inc["id"].(string)
	})

	It("drives the remediation pipeline through its stages", func() {
		Eventually(func() string {
			code, data := stack.do(http.MethodGet, "/api/v1/incidents/"+incidentID, nil)
			if code != http.StatusOK {
				return ""
			}
			return data.(map[string]interface{})["status"].(string)
		}, 5*time.Second, 50*time.Millisecond).Should(Equal("fix_in_progress"))

		code, data := stack.do(http.MethodGet, "/api/v1/incidents/"+incidentID+"/timeline", nil)
		Expect(code).To(Equal(http.StatusOK))

		stages := map[string]bool{}
		for _, item := range data.([]interface{}) {
			entry := item.(map[string]interface{})
			if entry["kind"] == "stage_completed" {
				meta := entry["metadata"].(map[string]interface{})
				stages[meta["stage"].(string)] = true
			}
		}
		Expect(stages).To(HaveKey("investigate"))
		Expect(stages).To(HaveKey("root_cause"))
	})

	It("absorbs a repeat of the same failure into the existing alert", func() {
		code, _ := stack.do(http.MethodPost, "/api/v1/reports", map[string]interface{}{
			"repository":    "acme/api",
			"error_message": "could not connect to database",
			"error_type":    "ConnectionError",
			"severity":      "critical",
			"file_path":     "app/db.py",
			"line_number":   42,
		})
		Expect(code).To(Equal(http.StatusAccepted))

		Eventually(func() float64 {
			alerts := stack.listData("/api/v1/alerts?repository=acme/api")
			if len(alerts) != 1 {
				return 0
			}
			return alerts[0].(map[string]interface{})["occurrence_count"].(float64)
		}, 5*time.Second, 50*time.Millisecond).Should(BeNumerically("==", 2))

		// still one incident; escalated alerts never re-escalate
		Expect(stack.listData("/api/v1/incidents?repository=acme/api")).To(HaveLen(1))
	})

	It("escalates a warning only on the third occurrence", func() {
		report := map[string]interface{}{
			"repository":    "acme/api",
			"error_message": "cache miss rate above threshold",
			"error_type":    "CacheWarning",
			"severity":      "warning",
		}

		for i := 0; i < 2; i++ {
			code, _ := stack.do(http.MethodPost, "/api/v1/reports", report)
			Expect(code).To(Equal(http.StatusAccepted))
		}

		Eventually(func() float64 {
			alerts := stack.listData("/api/v1/alerts?repository=acme/api&severity=medium")
			if len(alerts) != 1 {
				return 0
			}
			return alerts[0].(map[string]interface{})["occurrence_count"].(float64)
		}, 5*time.Second, 50*time.Millisecond).Should(BeNumerically("==", 2))

		// below threshold, no new incident yet
		Expect(stack.listData("/api/v1/incidents?repository=acme/api")).To(HaveLen(1))

		code, _ := stack.do(http.MethodPost, "/api/v1/reports", report)
		Expect(code).To(Equal(http.StatusAccepted))

		Eventually(func() int {
			return len(stack.listData("/api/v1/incidents?repository=acme/api"))
		}, 5*time.Second, 50*time.Millisecond).Should(Equal(2))

		var warning map[string]interface{}
		for _, item := range stack.listData("/api/v1/incidents?repository=acme/api") {
			inc := item.(map[string]interface{})
			if inc["priority"] == "P2" {
				warning = inc
			}
		}
		Expect(warning).NotTo(BeNil())
		Expect(warning["number"]).To(BeNumerically("==", 2))
		Expect(warning["event_count"]).To(BeNumerically("==", 3))
	})

	It("ignores a successful workflow webhook", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/github",
			bytes.NewReader([]byte(`{
				"action": "completed",
				"workflow_run": {"name": "ci", "conclusion": "success", "head_branch": "main"},
				"repository": {"full_name": "acme/web"}
			}`)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-GitHub-Event", "workflow_run")

		resp, err := stack.server.App().Test(req, 5000)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

		Consistently(func() int {
			return len(stack.listData("/api/v1/alerts?repository=acme/web"))
		}, 300*time.Millisecond, 50*time.Millisecond).Should(Equal(0))
	})

	It("escalates a failed workflow webhook with per-repository numbering", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/github",
			bytes.NewReader([]byte(`{
				"action": "completed",
				"workflow_run": {"name": "ci", "conclusion": "failure", "head_branch": "main", "head_sha": "abc123"},
				"repository": {"full_name": "acme/web"}
			}`)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-GitHub-Event", "workflow_run")

		resp, err := stack.server.App().Test(req, 5000)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

		var alert map[string]interface{}
		Eventually(func() string {
			alerts := stack.listData("/api/v1/alerts?repository=acme/web")
			if len(alerts) != 1 {
				return ""
			}
			alert = alerts[0].(map[string]interface{})
			return alert["status"].(string)
		}, 5*time.Second, 50*time.Millisecond).Should(Equal("escalated"))

		Expect(alert["severity"]).To(Equal("high"))

		incidents := stack.listData("/api/v1/incidents?repository=acme/web")
		Expect(incidents).To(HaveLen(1))
		inc := incidents[0].(map[string]interface{})
		Expect(inc["priority"]).To(Equal("P1"))
		// numbering restarts per repository
		Expect(inc["number"]).To(BeNumerically("==", 1))
	})

	It("rejects an invalid lifecycle transition", func() {
		code, _ := stack.do(http.MethodPost, "/api/v1/incidents/"+incidentID+"/transition",
			map[string]interface{}{"status": "verifying"})
		Expect(code).To(Equal(http.StatusConflict))
	})

	It("accepts a valid lifecycle transition", func() {
		code, data := stack.do(http.MethodPost, "/api/v1/incidents/"+incidentID+"/transition",
			map[string]interface{}{"status": "fix_pending_review"})
		Expect(code).To(Equal(http.StatusOK))
		Expect(data.(map[string]interface{})["status"]).To(Equal("fix_pending_review"))
	})
})
