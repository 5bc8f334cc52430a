package tools

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"factoryops/internal/metrics"
	"factoryops/internal/store"
)

func testRegistry() *Registry {
	snap := &store.Snapshot{
		Production: map[string]map[string]store.ProductionRecord{
			"2026-03-01": {
				"CNC-001": {
					PartsProduced: 100,
					GoodParts:     90,
					ScrapParts:    10,
					ScrapRate:     10.0,
					UptimeHours:   15.0,
					DowntimeHours: 1.0,
				},
			},
		},
	}
	return NewRegistry(metrics.NewEngine(snap))
}

func decodePayload(t *testing.T, payload json.RawMessage) map[string]any {
	t.Helper()
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("payload is not valid JSON: %v (payload: %s)", err, payload)
	}
	return decoded
}

func TestDispatchUnknownToolReturnsErrorPayload(t *testing.T) {
	registry := testRegistry()

	payload := registry.Dispatch("delete_factory", json.RawMessage(`{}`))
	decoded := decodePayload(t, payload)

	msg, ok := decoded["error"].(string)
	if !ok {
		t.Fatalf("expected error payload, got %s", payload)
	}
	if !strings.Contains(strings.ToLower(msg), "unknown") {
		t.Fatalf("error text should mention unknown tool, got %q", msg)
	}
	if !strings.Contains(msg, "delete_factory") {
		t.Fatalf("error text should name the tool, got %q", msg)
	}
}

func TestDispatchMalformedArgumentsIsLocalFailure(t *testing.T) {
	registry := testRegistry()

	payload := registry.Dispatch(NameCalculateOEE, json.RawMessage(`{"start_date":`))
	decoded := decodePayload(t, payload)

	if _, ok := decoded["error"]; !ok {
		t.Fatalf("expected error payload for malformed args, got %s", payload)
	}
}

func TestDispatchScrapMetrics(t *testing.T) {
	registry := testRegistry()

	payload := registry.Dispatch(NameScrapMetrics, json.RawMessage(`{"start_date":"2026-03-01","end_date":"2026-03-01"}`))
	var report metrics.ScrapReport
	if err := json.Unmarshal(payload, &report); err != nil {
		t.Fatalf("decoding scrap payload: %v (payload: %s)", err, payload)
	}
	if report.TotalScrap != 10 || report.ScrapRate != 10.0 {
		t.Fatalf("unexpected scrap report: %+v", report)
	}
}

func TestDispatchSurfacesEngineErrorsAsPayload(t *testing.T) {
	registry := testRegistry()

	payload := registry.Dispatch(NameCalculateOEE, json.RawMessage(`{"start_date":"2020-01-01","end_date":"2020-01-02"}`))
	decoded := decodePayload(t, payload)

	if _, ok := decoded["error"]; !ok {
		t.Fatalf("expected engine error to surface as payload, got %s", payload)
	}
}

func TestParseRequestTypes(t *testing.T) {
	req, err := ParseRequest(NameQualityIssues, json.RawMessage(`{"start_date":"2026-03-01","end_date":"2026-03-02","severity":"High","machine_name":"CNC-001"}`))
	if err != nil {
		t.Fatalf("ParseRequest failed: %v", err)
	}
	q, ok := req.(*QualityRequest)
	if !ok {
		t.Fatalf("expected *QualityRequest, got %T", req)
	}
	if q.Severity != "High" || q.MachineName != "CNC-001" {
		t.Fatalf("unexpected request: %+v", q)
	}

	_, err = ParseRequest("no_such_tool", json.RawMessage(`{}`))
	var unknown *UnknownToolError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownToolError, got %v", err)
	}

	_, err = ParseRequest(NameDowntimeAnalysis, json.RawMessage(`not json`))
	var badArgs *ArgumentError
	if !errors.As(err, &badArgs) {
		t.Fatalf("expected ArgumentError, got %v", err)
	}
}

func TestDescriptorsAdvertiseFourTools(t *testing.T) {
	registry := testRegistry()

	descriptors := registry.Descriptors()
	if len(descriptors) != 4 {
		t.Fatalf("expected 4 descriptors, got %d", len(descriptors))
	}

	byName := make(map[string]bool)
	for _, d := range descriptors {
		byName[d.Name] = true
		if len(d.Required) != 2 || d.Required[0] != "start_date" || d.Required[1] != "end_date" {
			t.Fatalf("%s: expected required [start_date end_date], got %v", d.Name, d.Required)
		}
		if _, ok := d.Properties["machine_name"]; !ok {
			t.Fatalf("%s: missing machine_name property", d.Name)
		}
	}
	for _, name := range []string{NameCalculateOEE, NameScrapMetrics, NameQualityIssues, NameDowntimeAnalysis} {
		if !byName[name] {
			t.Fatalf("descriptor for %s not advertised", name)
		}
	}

	for _, d := range descriptors {
		if d.Name == NameQualityIssues {
			if _, ok := d.Properties["severity"]; !ok {
				t.Fatal("quality descriptor missing severity property")
			}
		}
	}
}
