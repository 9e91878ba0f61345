package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/joacominatel/kqlpad/internal/config"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.Log{Level: "debug", JSON: true}, &buf)
	logger.Debug("statement_executed", slog.Int("rows", 3))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("json.Unmarshal() error = %v (%q)", err, buf.String())
	}
	if record["service"] != "kqlpad" || record["msg"] != "statement_executed" {
		t.Fatalf("record = %+v", record)
	}
}

func TestNewLoggerLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.Log{Level: "warn"}, &buf)
	logger.Info("dropped")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "kept") {
		t.Fatalf("output = %q", out)
	}
}

func TestNewLoggerFallsBackOnBadLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.Log{Level: "loud"}, &buf)
	logger.Debug("hidden")
	logger.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("output = %q", buf.String())
	}
	NewLogger(config.Log{}, nil).Info("discarded")
}

func TestOpenLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kqlpad.log")
	f, err := OpenLogFile(path)
	if err != nil {
		t.Fatalf("OpenLogFile() error = %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString("line\n"); err != nil {
		t.Fatalf("WriteString() error = %v", err)
	}
}

func TestObserveStatement(t *testing.T) {
	beforeFailure := testutil.ToFloat64(statementsTotal.WithLabelValues(OutcomeFailure))
	beforeTimeout := testutil.ToFloat64(statementErrorsTotal.WithLabelValues("Timeout"))
	beforeSuccess := testutil.ToFloat64(statementsTotal.WithLabelValues(OutcomeSuccess))

	ObserveStatement("kusto", OutcomeFailure, "Timeout", 2*time.Second)
	ObserveStatement("kusto", OutcomeSuccess, "", time.Second)

	if got := testutil.ToFloat64(statementsTotal.WithLabelValues(OutcomeFailure)); got != beforeFailure+1 {
		t.Fatalf("failure count = %v, want %v", got, beforeFailure+1)
	}
	if got := testutil.ToFloat64(statementErrorsTotal.WithLabelValues("Timeout")); got != beforeTimeout+1 {
		t.Fatalf("timeout count = %v, want %v", got, beforeTimeout+1)
	}
	if got := testutil.ToFloat64(statementsTotal.WithLabelValues(OutcomeSuccess)); got != beforeSuccess+1 {
		t.Fatalf("success count = %v, want %v", got, beforeSuccess+1)
	}
}

func TestMetricsHandlerExposesStatementMetrics(t *testing.T) {
	ObserveStatement("duckdb", OutcomeEmpty, "", 10*time.Millisecond)

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"kqlpad_statements_total", "kqlpad_statement_duration_seconds"} {
		if !strings.Contains(body, name) {
			t.Fatalf("metrics output missing %s", name)
		}
	}

	rec = httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}

func TestStartMetricsServer(t *testing.T) {
	server, err := StartMetricsServer("127.0.0.1:0", NewLogger(config.Log{}, io.Discard))
	if err != nil {
		t.Fatalf("StartMetricsServer() error = %v", err)
	}
	defer server.Shutdown(context.Background())

	resp, err := http.Get("http://" + server.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
