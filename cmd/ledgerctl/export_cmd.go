package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/antevus/ledger/pkg/export"
	"github.com/antevus/ledger/pkg/merkle"
)

// runExportCmd implements `ledgerctl export`.
//
// Verifies the range, computes the Merkle root over the stored event
// hashes, signs the proof, and writes a zip evidence pack. With a
// configured bucket the pack is also uploaded.
//
// Exit codes:
//
//	0 = pack written, chain valid
//	1 = pack written, chain verification found problems
//	2 = runtime error
func runExportCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("export", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		start       int64
		end         int64
		outFile     string
		upload      bool
		requireOK   bool
		jsonOutput  bool
		profileCode string
	)

	cmd.Int64Var(&start, "start", 0, "First sequence number to export")
	cmd.Int64Var(&end, "end", -1, "Last sequence number to export (-1 = latest)")
	cmd.StringVar(&outFile, "out", "evidence.zip", "Output path for the evidence pack")
	cmd.BoolVar(&upload, "upload", false, "Upload the pack to the configured bucket")
	cmd.BoolVar(&requireOK, "require-clean", false, "Refuse to export when verification fails")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the proof as JSON to stdout")
	cmd.StringVar(&profileCode, "profile", "", "Compliance profile code, e.g. hipaa (sets export policy and destination)")

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

	eventSigner, err := rt.eventSigner()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	exportSigner, err := rt.exportSigner()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	profile, err := rt.loadProfile(profileCode)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	bucket, prefix := rt.cfg.ExportBucket, rt.cfg.ExportPrefix
	if profile != nil {
		requireOK = requireOK || profile.Export.RequireCleanChain
		if profile.Export.Bucket != "" {
			bucket = profile.Export.Bucket
		}
		if profile.Export.Prefix != "" {
			prefix = profile.Export.Prefix
		}
	}

	prover := merkle.NewProver(rt.store, rt.newVerifier(eventSigner, profile), exportSigner)
	exported, err := prover.ExportWithProof(ctx, start, end)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: export failed: %v\n", err)
		return 2
	}

	bundlerOpts := []export.BundlerOption{}
	if requireOK {
		bundlerOpts = append(bundlerOpts, export.WithRequireCleanChain())
	}
	bundle, err := export.NewBundler(bundlerOpts...).Generate(ctx, exported)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if err := os.WriteFile(outFile, bundle.Data, 0o644); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: cannot write %s: %v\n", outFile, err)
		return 2
	}

	if upload {
		if bucket == "" {
			_, _ = fmt.Fprintln(stderr, "Error: --upload requires LEDGER_EXPORT_BUCKET or a profile bucket")
			return 2
		}
		uploader, err := export.NewS3Uploader(ctx, export.S3UploaderConfig{
			Bucket: bucket,
			Prefix: prefix,
		})
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		if err := uploader.Upload(ctx, bundle, exported.Proof.StartSequence, exported.Proof.EndSequence); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		_, _ = fmt.Fprintf(stdout, "Uploaded to s3://%s/%s\n", bucket, bundle.ObjectKey)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(exported.Proof, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		_, _ = fmt.Fprintf(stdout, "Evidence pack written to %s\n", outFile)
		_, _ = fmt.Fprintf(stdout, "Sequences %d..%d, %d events\n",
			exported.Proof.StartSequence, exported.Proof.EndSequence, exported.Proof.LeafCount)
		_, _ = fmt.Fprintf(stdout, "Merkle root: %s\n", exported.Proof.MerkleRoot)
		_, _ = fmt.Fprintf(stdout, "Checksum:    %s\n", bundle.Checksum)
		_, _ = fmt.Fprintf(stdout, "Chain valid: %t\n", exported.Proof.ChainValid)
	}

	if !exported.Proof.ChainValid {
		return 1
	}
	return 0
}
