package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
)

// Dispatcher executes model-requested tools by name and advertises their
// contracts. Unknown names and malformed arguments come back as error
// payloads, never as Go errors, so the model can recover in-conversation.
type Dispatcher interface {
	Dispatch(name string, args json.RawMessage) json.RawMessage
	Descriptors() []ToolDescriptor
}

const DefaultMaxToolRounds = 8

// Orchestrator runs the per-turn state machine: submit the transcript,
// execute any requested tools in issue order, resubmit with their results,
// until the model answers with plain text.
type Orchestrator struct {
	completer Completer
	tools     Dispatcher
	system    string
	maxRounds int
}

func NewOrchestrator(completer Completer, tools Dispatcher, systemPrompt string, maxToolRounds int) *Orchestrator {
	if maxToolRounds < 1 {
		maxToolRounds = DefaultMaxToolRounds
	}
	return &Orchestrator{
		completer: completer,
		tools:     tools,
		system:    systemPrompt,
		maxRounds: maxToolRounds,
	}
}

// RunTurn answers one user question against the prior history. It returns
// only the turn's new messages; the caller owns the history and appends
// the delta after a successful turn. On any error the delta is discarded
// entirely so a retried turn starts from the same prior state.
func (o *Orchestrator) RunTurn(ctx context.Context, history []Message, question string) ([]Message, Usage, error) {
	delta := []Message{UserMessage(question)}
	descriptors := o.tools.Descriptors()
	var usage Usage

	for round := 0; ; round++ {
		if round >= o.maxRounds {
			return nil, usage, fmt.Errorf("tool loop exceeded %d rounds without a final answer", o.maxRounds)
		}

		transcript := make([]Message, 0, len(history)+len(delta))
		transcript = append(transcript, history...)
		transcript = append(transcript, delta...)

		completion, err := o.completer.Complete(ctx, o.system, transcript, descriptors)
		usage.Add(completion.Usage)
		if err != nil {
			return nil, usage, err
		}

		if len(completion.ToolCalls) == 0 {
			delta = append(delta, AssistantMessage(completion.Text))
			return delta, usage, nil
		}

		delta = append(delta, Message{
			Role:      RoleAssistant,
			Content:   completion.Text,
			ToolCalls: completion.ToolCalls,
		})
		// Results must line up positionally with the calls: downstream
		// consumers correlate by id but may also rely on order.
		for _, call := range completion.ToolCalls {
			payload := o.tools.Dispatch(call.Name, call.Arguments)
			log.Printf("tool dispatch name=%s call_id=%s result_bytes=%d", call.Name, call.ID, len(payload))
			delta = append(delta, ToolResultMessage(call.ID, call.Name, payload))
		}
	}
}
