package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"factoryops/internal/chat"
	"factoryops/internal/config"
	"factoryops/internal/llm"
	"factoryops/internal/metrics"
	"factoryops/internal/store"
	"factoryops/internal/tools"
)

func runChat(cfg config.Config) {
	if cfg.AnthropicAPIKey == "" {
		log.Fatalf("anthropic_api_key is not set (via config.yaml or ANTHROPIC_API_KEY)")
	}

	snap := mustLoadStore(cfg)
	registry := tools.NewRegistry(metrics.NewEngine(snap))
	client := llm.NewClient(
		cfg.AnthropicAPIKey,
		cfg.LLMModel,
		time.Duration(cfg.LLMTimeoutSeconds)*time.Second,
		cfg.LLMMaxRetries,
	)
	orch := chat.NewOrchestrator(client, registry, buildSystemPrompt(cfg.FactoryName, snap, time.Now()), cfg.MaxToolRounds)

	fmt.Printf("%s Operations Assistant\n", cfg.FactoryName)
	fmt.Printf("Data range: %s to %s\n", snap.StartDay(), snap.EndDay())
	fmt.Println("Ask about production metrics, quality, downtime, and more.")
	fmt.Println("Type 'exit' or 'quit' to end.")

	var history []chat.Message
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nYou: ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(question) {
		case "":
			continue
		case "exit", "quit", "q":
			fmt.Println("\nGoodbye!")
			return
		}

		delta, usage, err := orch.RunTurn(context.Background(), history, question)
		if err != nil {
			// Nothing is committed on a failed turn; asking again retries
			// from the same history.
			var terr *chat.TransportError
			if errors.As(err, &terr) && terr.Retryable {
				fmt.Printf("\nError: %v (transient - ask again to retry)\n", err)
			} else {
				fmt.Printf("\nError: %v\n", err)
			}
			continue
		}

		history = append(history, delta...)
		log.Printf("turn complete messages=%d tokens_in=%d tokens_out=%d",
			len(delta), usage.InputTokens, usage.OutputTokens)
		fmt.Printf("\nAssistant: %s\n", delta[len(delta)-1].Content)
	}
	fmt.Println("\nGoodbye!")
}

func buildSystemPrompt(factory string, snap *store.Snapshot, now time.Time) string {
	shiftDescs := make([]string, 0, len(snap.Shifts))
	for _, s := range snap.Shifts {
		shiftDescs = append(shiftDescs, fmt.Sprintf("%s (%02d:00-%02d:00)", s.Name, s.StartHour, s.EndHour))
	}

	return fmt.Sprintf(`You are a factory operations assistant for %s.

You have access to %d days of production data (%s to %s) covering:
- %d machines: %s
- %d shifts: %s
- Metrics: OEE, scrap, quality issues, downtime

When answering:
1. Use tools to get accurate data
2. Provide specific numbers and percentages
3. Explain trends and patterns
4. Compare metrics when relevant
5. Be concise but thorough

Today's date is %s. When users ask about "today", "this week", or relative dates, calculate the appropriate date range based on the data available.`,
		factory,
		len(snap.Production), snap.StartDay(), snap.EndDay(),
		len(snap.Machines), strings.Join(snap.MachineNames(), ", "),
		len(snap.Shifts), strings.Join(shiftDescs, " and "),
		now.Format(store.DateLayout))
}

func mustLoadStore(cfg config.Config) *store.Snapshot {
	if !store.Exists(cfg.DataPath) {
		log.Fatalf("Data not found at %s. Please run 'setup' first.", cfg.DataPath)
	}
	snap, err := store.Load(cfg.DataPath)
	if err != nil {
		log.Fatalf("Failed to load store: %v", err)
	}
	return snap
}
