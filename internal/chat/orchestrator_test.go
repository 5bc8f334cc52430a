package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

// scriptedCompleter replays a fixed sequence of completions, failing the
// test if asked for more rounds than scripted.
type scriptedCompleter struct {
	t           *testing.T
	script      []Completion
	errs        []error
	calls       int
	transcripts [][]Message
}

func (s *scriptedCompleter) Complete(_ context.Context, _ string, transcript []Message, _ []ToolDescriptor) (Completion, error) {
	copied := make([]Message, len(transcript))
	copy(copied, transcript)
	s.transcripts = append(s.transcripts, copied)

	idx := s.calls
	s.calls++
	if idx >= len(s.script) {
		s.t.Fatalf("completer called %d times, only %d responses scripted", s.calls, len(s.script))
	}
	if s.errs != nil && s.errs[idx] != nil {
		return Completion{}, s.errs[idx]
	}
	return s.script[idx], nil
}

// recordingDispatcher echoes a fixed payload and records dispatch order.
type recordingDispatcher struct {
	dispatched []string
}

func (d *recordingDispatcher) Dispatch(name string, args json.RawMessage) json.RawMessage {
	d.dispatched = append(d.dispatched, name)
	payload, _ := json.Marshal(map[string]string{"tool": name})
	return payload
}

func (d *recordingDispatcher) Descriptors() []ToolDescriptor {
	return []ToolDescriptor{{Name: "calculate_oee"}}
}

func TestTurnWithoutToolCallsCommitsTwoMessages(t *testing.T) {
	completer := &scriptedCompleter{t: t, script: []Completion{
		{Text: "All machines ran fine today."},
	}}
	orch := NewOrchestrator(completer, &recordingDispatcher{}, "system", 4)

	delta, _, err := orch.RunTurn(context.Background(), nil, "How did we do today?")
	if err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}
	if len(delta) != 2 {
		t.Fatalf("expected 2 messages, got %d: %+v", len(delta), delta)
	}
	if delta[0].Role != RoleUser || delta[1].Role != RoleAssistant {
		t.Fatalf("unexpected roles: %s, %s", delta[0].Role, delta[1].Role)
	}
	if delta[1].Content != "All machines ran fine today." {
		t.Fatalf("unexpected final content: %q", delta[1].Content)
	}
}

func TestSingleToolRoundCommitsFourMessages(t *testing.T) {
	completer := &scriptedCompleter{t: t, script: []Completion{
		{ToolCalls: []ToolCall{{ID: "call_1", Name: "calculate_oee", Arguments: json.RawMessage(`{"start_date":"2026-03-01","end_date":"2026-03-01"}`)}}},
		{Text: "OEE was 74.8%."},
	}}
	dispatcher := &recordingDispatcher{}
	orch := NewOrchestrator(completer, dispatcher, "system", 4)

	delta, _, err := orch.RunTurn(context.Background(), nil, "What was OEE yesterday?")
	if err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}
	if len(delta) != 4 {
		t.Fatalf("expected 4 messages, got %d: %+v", len(delta), delta)
	}
	wantRoles := []Role{RoleUser, RoleAssistant, RoleTool, RoleAssistant}
	for i, role := range wantRoles {
		if delta[i].Role != role {
			t.Fatalf("message %d: expected role %s, got %s", i, role, delta[i].Role)
		}
	}
	if len(delta[1].ToolCalls) != 1 || delta[1].ToolCalls[0].ID != "call_1" {
		t.Fatalf("assistant message lost its tool calls: %+v", delta[1])
	}
	if delta[2].ToolCallID != "call_1" {
		t.Fatalf("tool result correlates to %q, expected call_1", delta[2].ToolCallID)
	}
	if len(dispatcher.dispatched) != 1 || dispatcher.dispatched[0] != "calculate_oee" {
		t.Fatalf("unexpected dispatches: %v", dispatcher.dispatched)
	}
}

func TestMultipleToolCallsRunInIssueOrder(t *testing.T) {
	calls := []ToolCall{
		{ID: "c1", Name: "get_scrap_metrics", Arguments: json.RawMessage(`{}`)},
		{ID: "c2", Name: "get_downtime_analysis", Arguments: json.RawMessage(`{}`)},
		{ID: "c3", Name: "calculate_oee", Arguments: json.RawMessage(`{}`)},
	}
	completer := &scriptedCompleter{t: t, script: []Completion{
		{ToolCalls: calls},
		{Text: "done"},
	}}
	dispatcher := &recordingDispatcher{}
	orch := NewOrchestrator(completer, dispatcher, "system", 4)

	delta, _, err := orch.RunTurn(context.Background(), nil, "Compare everything.")
	if err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}
	// user, assistant(calls), 3 tool results, assistant final
	if len(delta) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(delta))
	}
	for i, call := range calls {
		result := delta[2+i]
		if result.Role != RoleTool {
			t.Fatalf("message %d: expected tool role, got %s", 2+i, result.Role)
		}
		if result.ToolCallID != call.ID {
			t.Fatalf("result %d: expected correlation %s, got %s", i, call.ID, result.ToolCallID)
		}
	}
	want := []string{"get_scrap_metrics", "get_downtime_analysis", "calculate_oee"}
	for i := range want {
		if dispatcher.dispatched[i] != want[i] {
			t.Fatalf("dispatch order: expected %v, got %v", want, dispatcher.dispatched)
		}
	}
}

func TestToolResultsVisibleOnResubmission(t *testing.T) {
	completer := &scriptedCompleter{t: t, script: []Completion{
		{ToolCalls: []ToolCall{{ID: "c1", Name: "calculate_oee", Arguments: json.RawMessage(`{}`)}}},
		{Text: "final"},
	}}
	orch := NewOrchestrator(completer, &recordingDispatcher{}, "system", 4)

	history := []Message{UserMessage("earlier"), AssistantMessage("sure")}
	if _, _, err := orch.RunTurn(context.Background(), history, "next question"); err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}

	if len(completer.transcripts) != 2 {
		t.Fatalf("expected 2 round trips, got %d", len(completer.transcripts))
	}
	second := completer.transcripts[1]
	// prior history (2) + user + assistant-with-calls + tool result
	if len(second) != 5 {
		t.Fatalf("resubmitted transcript has %d messages, expected 5", len(second))
	}
	if second[0].Content != "earlier" {
		t.Fatalf("prior history missing from resubmission: %+v", second[0])
	}
	if second[4].Role != RoleTool || second[4].ToolCallID != "c1" {
		t.Fatalf("tool result missing from resubmission: %+v", second[4])
	}
}

func TestTransportErrorCommitsNothing(t *testing.T) {
	transportErr := &TransportError{Err: errors.New("connection refused"), Retryable: true}
	completer := &scriptedCompleter{
		t:      t,
		script: []Completion{{}},
		errs:   []error{transportErr},
	}
	orch := NewOrchestrator(completer, &recordingDispatcher{}, "system", 4)

	delta, _, err := orch.RunTurn(context.Background(), nil, "hello?")
	if err == nil {
		t.Fatal("expected transport error")
	}
	var terr *TransportError
	if !errors.As(err, &terr) || !terr.Retryable {
		t.Fatalf("expected retryable TransportError, got %v", err)
	}
	if delta != nil {
		t.Fatalf("failed turn must not commit messages, got %+v", delta)
	}
}

func TestTransportErrorMidLoopCommitsNothing(t *testing.T) {
	completer := &scriptedCompleter{
		t: t,
		script: []Completion{
			{ToolCalls: []ToolCall{{ID: "c1", Name: "calculate_oee", Arguments: json.RawMessage(`{}`)}}},
			{},
		},
		errs: []error{nil, &TransportError{Err: errors.New("gateway timeout"), Retryable: true}},
	}
	orch := NewOrchestrator(completer, &recordingDispatcher{}, "system", 4)

	delta, _, err := orch.RunTurn(context.Background(), nil, "hello?")
	if err == nil {
		t.Fatal("expected transport error on second round trip")
	}
	if delta != nil {
		t.Fatalf("failed turn must not commit messages, got %+v", delta)
	}
}

func TestToolLoopIsBounded(t *testing.T) {
	loop := Completion{ToolCalls: []ToolCall{{ID: "c", Name: "calculate_oee", Arguments: json.RawMessage(`{}`)}}}
	completer := &scriptedCompleter{t: t, script: []Completion{loop, loop, loop}}
	orch := NewOrchestrator(completer, &recordingDispatcher{}, "system", 3)

	delta, _, err := orch.RunTurn(context.Background(), nil, "loop forever")
	if err == nil {
		t.Fatal("expected round-cap error")
	}
	if delta != nil {
		t.Fatalf("capped turn must not commit messages, got %+v", delta)
	}
}

func TestUsageAccumulatesAcrossRounds(t *testing.T) {
	completer := &scriptedCompleter{t: t, script: []Completion{
		{
			ToolCalls: []ToolCall{{ID: "c1", Name: "calculate_oee", Arguments: json.RawMessage(`{}`)}},
			Usage:     Usage{InputTokens: 100, OutputTokens: 20},
		},
		{Text: "final", Usage: Usage{InputTokens: 150, OutputTokens: 30}},
	}}
	orch := NewOrchestrator(completer, &recordingDispatcher{}, "system", 4)

	_, usage, err := orch.RunTurn(context.Background(), nil, "q")
	if err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}
	if usage.InputTokens != 250 || usage.OutputTokens != 50 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
	if usage.TotalTokens() != 300 {
		t.Fatalf("expected 300 total tokens, got %d", usage.TotalTokens())
	}
}

// errorPayloadDispatcher mimics the registry's unknown-tool behavior.
type errorPayloadDispatcher struct{}

func (errorPayloadDispatcher) Dispatch(name string, _ json.RawMessage) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"error": "Unknown tool: %s"}`, name))
}

func (errorPayloadDispatcher) Descriptors() []ToolDescriptor { return nil }

func TestUnknownToolDoesNotAbortTheTurn(t *testing.T) {
	completer := &scriptedCompleter{t: t, script: []Completion{
		{ToolCalls: []ToolCall{{ID: "c1", Name: "made_up_tool", Arguments: json.RawMessage(`{}`)}}},
		{Text: "Sorry, let me use a real tool instead."},
	}}
	orch := NewOrchestrator(completer, errorPayloadDispatcher{}, "system", 4)

	delta, _, err := orch.RunTurn(context.Background(), nil, "q")
	if err != nil {
		t.Fatalf("unknown tool must not abort the turn: %v", err)
	}
	if len(delta) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(delta))
	}
	if delta[2].Role != RoleTool || delta[2].Content != `{"error": "Unknown tool: made_up_tool"}` {
		t.Fatalf("unexpected tool result: %+v", delta[2])
	}
}
