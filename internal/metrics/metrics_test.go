package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
	if m.registry == nil {
		t.Error("Registry is nil")
	}
	if m.ToolExecutionsTotal == nil {
		t.Error("ToolExecutionsTotal is nil")
	}
	if m.ToolExecutionDuration == nil {
		t.Error("ToolExecutionDuration is nil")
	}
	if m.PushClientsActive == nil {
		t.Error("PushClientsActive is nil")
	}
	if m.ModuleReloadsTotal == nil {
		t.Error("ModuleReloadsTotal is nil")
	}
}

func TestHandler(t *testing.T) {
	m := NewMetrics()

	m.RecordToolExecution("circleArea", "success", 12*time.Millisecond)
	m.RecordToolExecution("spin", "timeout", 30*time.Second)
	m.ClientConnected()
	m.ClientConnected()
	m.ClientDisconnected()
	m.RecordReload("success")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		`tool_executions_total{status="success",tool_name="circleArea"} 1`,
		`tool_executions_total{status="timeout",tool_name="spin"} 1`,
		`push_clients_active 1`,
		`push_clients_total 2`,
		`module_reloads_total{status="success"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
