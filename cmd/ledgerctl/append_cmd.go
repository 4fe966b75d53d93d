package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/antevus/ledger/pkg/audit"
	"github.com/antevus/ledger/pkg/chain"
)

// runAppendCmd implements `ledgerctl append`.
//
// Exit codes:
//
//	0 = event appended
//	2 = runtime error (invalid input, storage failure)
func runAppendCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("append", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		eventType    string
		actorID      string
		actorEmail   string
		actorRole    string
		resourceType string
		resourceID   string
		failed       bool
		errorMsg     string
		metadataJSON string
		jsonOutput   bool
	)

	cmd.StringVar(&eventType, "type", "", "Event type, e.g. data.access (REQUIRED)")
	cmd.StringVar(&actorID, "actor", "", "Actor ID (defaults to anonymous)")
	cmd.StringVar(&actorEmail, "email", "", "Actor email")
	cmd.StringVar(&actorRole, "role", "", "Actor role")
	cmd.StringVar(&resourceType, "resource-type", "", "Resource type")
	cmd.StringVar(&resourceID, "resource-id", "", "Resource ID")
	cmd.BoolVar(&failed, "failed", false, "Record the action as failed")
	cmd.StringVar(&errorMsg, "error", "", "Error message for failed actions")
	cmd.StringVar(&metadataJSON, "metadata", "", "Event metadata as a JSON object")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the appended event as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if eventType == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --type is required")
		return 2
	}

	var metadata map[string]interface{}
	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: --metadata is not a JSON object: %v\n", err)
			return 2
		}
	}

	ctx := context.Background()
	rt, err := buildRuntime(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = rt.Close() }()

	signer, err := rt.eventSigner()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	engine, err := chain.NewEngine(ctx, rt.store, signer)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	event, err := engine.Append(ctx,
		audit.Actor{ID: actorID, Email: actorEmail, Role: actorRole},
		audit.EventType(eventType),
		chain.Details{
			ResourceType: resourceType,
			ResourceID:   resourceID,
			Success:      !failed,
			ErrorMessage: errorMsg,
			Metadata:     metadata,
		})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: append failed: %v\n", err)
		return 2
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(event, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		_, _ = fmt.Fprintf(stdout, "Appended event %s (seq %d)\n", event.ID, event.SequenceNumber)
	}
	return 0
}
