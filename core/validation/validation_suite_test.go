package validation

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"crowdview/core"

	"github.com/gorilla/websocket"
)

func testConfig(t *testing.T) *core.Config {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.EnvPath = filepath.Join(t.TempDir(), "absent.env")
	return &cfg
}

func TestStepStatus_String(t *testing.T) {
	tests := map[StepStatus]string{
		StepPending:     "pending",
		StepRunning:     "running",
		StepPassed:      "passed",
		StepFailed:      "failed",
		StepWarning:     "warning",
		StepSkipped:     "skipped",
		StepStatus(100): "unknown",
	}
	for status, want := range tests {
		if got := status.String(); got != want {
			t.Errorf("StepStatus(%d).String() = %q, want %q", status, got, want)
		}
	}
}

func TestValidationSuite_DefaultsPassWithEnvWarning(t *testing.T) {
	var buf bytes.Buffer
	result := NewValidationSuite(testConfig(t)).
		WithOutput(&buf).
		WithStreamCheck(false).
		Validate(context.Background())

	if !result.Success {
		t.Fatalf("Success = false, summary: %s", result.Summary())
	}
	if result.TotalSteps != 5 {
		t.Errorf("TotalSteps = %d, want 5", result.TotalSteps)
	}
	if result.Warnings != 1 {
		t.Errorf("Warnings = %d, want 1 (missing .env)", result.Warnings)
	}
	if result.Steps[0].Status != StepWarning {
		t.Errorf("env step = %v, want warning", result.Steps[0].Status)
	}
	if !strings.Contains(buf.String(), "Validation Passed") {
		t.Errorf("output missing summary: %s", buf.String())
	}
}

func TestValidationSuite_EnvFilePresent(t *testing.T) {
	cfg := testConfig(t)
	envPath := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envPath, []byte("STREAM_URL=ws://x/ui\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	result := NewValidationSuite(cfg).
		WithShowProgress(false).
		WithStreamCheck(false).
		WithEnvPath(envPath).
		Validate(context.Background())

	if result.Warnings != 0 || result.PassedSteps != 5 {
		t.Errorf("got %d passed, %d warnings; want 5, 0", result.PassedSteps, result.Warnings)
	}
}

func TestValidationSuite_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.StreamURL = "http://producer/ui"
	cfg.IngestMode = "eager"

	result := NewValidationSuite(cfg).
		WithShowProgress(false).
		Validate(context.Background())

	if result.Success {
		t.Fatal("Success = true, want false")
	}
	if result.FailedSteps != 2 {
		t.Errorf("FailedSteps = %d, want 2", result.FailedSteps)
	}
	last := result.Steps[len(result.Steps)-1]
	if last.Name != "Stream Connectivity" || last.Status != StepSkipped {
		t.Errorf("last step = %s/%v, want skipped connectivity", last.Name, last.Status)
	}
	if core.GetErrorCode(result.GetFirstError()) != core.ErrCodeInvalidStreamURL {
		t.Errorf("GetFirstError() = %v", result.GetFirstError())
	}
	if !strings.Contains(result.Summary(), "2 failed") {
		t.Errorf("Summary() = %q", result.Summary())
	}
}

func TestValidationSuite_FailFast(t *testing.T) {
	cfg := testConfig(t)
	cfg.StreamURL = ""

	result := NewValidationSuite(cfg).
		WithShowProgress(false).
		WithFailFast(true).
		Validate(context.Background())

	if result.TotalSteps != 2 {
		t.Errorf("TotalSteps = %d, want 2 (stopped after stream url)", result.TotalSteps)
	}
}

func TestValidationSuite_StreamConnectivity(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.StreamURL = "ws" + strings.TrimPrefix(srv.URL, "http") + "/ui"

	result := NewValidationSuite(cfg).
		WithShowProgress(false).
		WithTimeout(2 * time.Second).
		Validate(context.Background())

	last := result.Steps[len(result.Steps)-1]
	if last.Status != StepPassed {
		t.Errorf("connectivity = %v (%s), want passed", last.Status, last.Message)
	}
}

func TestValidationSuite_StreamUnreachableIsWarning(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	cfg := testConfig(t)
	cfg.StreamURL = "ws" + strings.TrimPrefix(srv.URL, "http") + "/ui"
	srv.Close()

	result := NewValidationSuite(cfg).
		WithShowProgress(false).
		WithTimeout(time.Second).
		Validate(context.Background())

	if !result.Success {
		t.Errorf("Success = false, want true with warning")
	}
	last := result.Steps[len(result.Steps)-1]
	if last.Status != StepWarning {
		t.Errorf("connectivity = %v, want warning", last.Status)
	}
}
