package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/antevus/ledger/pkg/alerting"
	"github.com/antevus/ledger/pkg/chain"
	"github.com/redis/go-redis/v9"
)

// runVerifyCmd implements `ledgerctl verify`.
//
// Scans a sequence range, recomputing hashes and signatures and checking
// chain linkage. Supports auditor mode via --json-out for structured
// reports, and publishes tamper alerts when configured.
//
// Exit codes:
//
//	0 = chain valid
//	1 = tampering or chain break detected
//	2 = runtime error
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		start       int64
		end         int64
		jsonOutput  bool
		jsonOutFile string
		alert       bool
		profileCode string
	)

	cmd.Int64Var(&start, "start", 0, "First sequence number to verify")
	cmd.Int64Var(&end, "end", -1, "Last sequence number to verify (-1 = latest)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the result as JSON to stdout")
	cmd.StringVar(&jsonOutFile, "json-out", "", "Write structured verification report to file (auditor mode)")
	cmd.BoolVar(&alert, "alert", false, "Deliver tamper alerts to configured channels")
	cmd.StringVar(&profileCode, "profile", "", "Compliance profile code, e.g. hipaa (sets chunking and pacing)")

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

	signer, err := rt.eventSigner()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	profile, err := rt.loadProfile(profileCode)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	result, err := rt.newVerifier(signer, profile).Verify(ctx, start, end)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: verification failed: %v\n", err)
		return 2
	}

	if alert {
		notifyTamper(ctx, rt, result, stderr)
	}

	if jsonOutFile != "" {
		data, _ := json.MarshalIndent(result, "", "  ")
		if writeErr := os.WriteFile(jsonOutFile, data, 0o644); writeErr != nil {
			_, _ = fmt.Fprintf(stderr, "Error: cannot write report: %v\n", writeErr)
			return 2
		}
		_, _ = fmt.Fprintf(stdout, "Verification report written to %s\n", jsonOutFile)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(result, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		printResult(stdout, result)
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func printResult(w io.Writer, result *chain.VerificationResult) {
	if result.Valid {
		_, _ = fmt.Fprintf(w, "Chain verification PASSED\n")
		_, _ = fmt.Fprintf(w, "Sequences %d..%d, %d events checked\n",
			result.StartSequence, result.EndSequence, result.EventsChecked)
		return
	}

	_, _ = fmt.Fprintf(w, "Chain verification FAILED\n")
	if result.BrokenChainAtSequence != nil {
		_, _ = fmt.Fprintf(w, "Chain broken at sequence %d; events after this point are untrusted\n",
			*result.BrokenChainAtSequence)
	}
	for _, id := range result.TamperedEventIDs {
		_, _ = fmt.Fprintf(w, "  tampered event: %s\n", id)
	}
	for _, e := range result.Errors {
		_, _ = fmt.Fprintf(w, "  - %s\n", e)
	}
}

// notifyTamper routes a failed verification to the log and, when a Redis
// URL is configured, to the alert channel. Delivery failures are reported
// but never change the exit code.
func notifyTamper(ctx context.Context, rt *runtime, result *chain.VerificationResult, stderr io.Writer) {
	alert, ok := alerting.Classify(result, time.Now())
	if !ok {
		return
	}

	notifiers := []alerting.Notifier{alerting.NewLogNotifier(nil)}
	if rt.cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(rt.cfg.RedisURL)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Warning: invalid redis URL: %v\n", err)
		} else {
			client := redis.NewClient(redisOpts)
			defer func() { _ = client.Close() }()
			notifiers = append(notifiers, alerting.NewRedisPublisher(client, rt.cfg.AlertChannel))
		}
	}

	if err := alerting.NewMultiNotifier(notifiers...).NotifyTamper(ctx, alert); err != nil {
		_, _ = fmt.Fprintf(stderr, "Warning: alert delivery failed: %v\n", err)
	}
}
