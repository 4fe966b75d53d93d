package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/antevus/ledger/pkg/store"
)

// runStatusCmd implements `ledgerctl status`: tip hash, next sequence, and
// event count without touching the signing key path beyond config.
func runStatusCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("status", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var jsonOutput bool
	cmd.BoolVar(&jsonOutput, "json", false, "Output status as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	rt, err := buildRuntime(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = rt.Close() }()

	count, err := rt.store.Count(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	status := struct {
		Events      int64  `json:"events"`
		TipSequence *int64 `json:"tip_sequence,omitempty"`
		TipHash     string `json:"tip_hash,omitempty"`
		StoreDriver string `json:"store_driver"`
	}{Events: count, StoreDriver: rt.cfg.StoreDriver}

	latest, err := rt.store.Latest(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	default:
		status.TipSequence = &latest.SequenceNumber
		status.TipHash = latest.Hash
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(status, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}

	_, _ = fmt.Fprintf(stdout, "Store:  %s\n", status.StoreDriver)
	_, _ = fmt.Fprintf(stdout, "Events: %d\n", status.Events)
	if status.TipSequence != nil {
		_, _ = fmt.Fprintf(stdout, "Tip:    seq %d, hash %s\n", *status.TipSequence, status.TipHash)
	} else {
		_, _ = fmt.Fprintln(stdout, "Tip:    empty ledger")
	}
	return 0
}
