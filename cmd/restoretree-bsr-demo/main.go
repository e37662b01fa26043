// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

// restoretree-bsr-demo drives the full restore preparation pipeline end to
// end against a fixture document produced by cmd/restoretree-fixtures:
// catalog rows -> tree -> mark everything -> BSR synthesis -> BSR text on
// stdout (or -out). It stands in for a real Director-side restore
// command, which belongs to the RPC layer above this library.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/bareos-community/restoretree/internal/bsr"
	"github.com/bareos-community/restoretree/internal/catalog"
	"github.com/bareos-community/restoretree/internal/config"
	"github.com/bareos-community/restoretree/internal/tree"
)

func main() {
	fixturePath := flag.String("fixture", "", "path to a msgpack FixtureDocument (required)")
	out := flag.String("out", "", "output path for the BSR text (default: stdout)")
	envFile := flag.String("env", "", "optional .env file to load")
	markAll := flag.Bool("mark-all", true, "mark each row's node as it is ingested (when false, the whole tree is marked after it is built)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fatalf("load config: %v", err)
	}
	if *fixturePath == "" {
		*fixturePath = cfg.FixturePath
	}
	if *fixturePath == "" {
		fatalf("missing -fixture (or RESTORETREE_FIXTURE)")
	}

	logger := slog.Default()

	doc, err := catalog.LoadFixtureFile(*fixturePath)
	if err != nil {
		fatalf("load fixture: %v", err)
	}

	b := tree.NewBuilder(tree.WithLogger(logger))
	jobSet := map[uint32]bool{}
	for _, r := range doc.Rows {
		lst, err := catalog.DecodeLstat(r.Lstat)
		if err != nil {
			fatalf("decode lstat for %s%s: %v", r.Path, r.Filename, err)
		}
		ref := b.InsertRow(tree.InsertRowInput{
			Path: r.Path, Filename: r.Filename, FileIndex: r.FileIndex, JobID: r.JobID,
			Mode: lst.Mode, Nlink: lst.Nlink, LinkFI: lst.LinkFI,
			DeltaSeq: r.DeltaSeq, FHInfo: r.FHInfo, FHNode: r.FHNode, Size: r.Size,
			MarkOnCreate: *markAll,
		})
		jobSet[r.JobID] = true

		// The delta-chain fixture stashes two prior (job_id, file_index) pairs
		// in FHInfo/FHNode when DeltaSeq > 0; the demo unpacks them into a
		// real delta chain rather than inventing a second file format.
		if r.DeltaSeq > 0 && (r.FHInfo != 0 || r.FHNode != 0) {
			if r.FHInfo != 0 {
				b.AppendDelta(ref, tree.DeltaEntry{JobID: uint32(r.FHInfo >> 32), FileIndex: int32(uint32(r.FHInfo))})
			}
			if r.FHNode != 0 {
				b.AppendDelta(ref, tree.DeltaEntry{JobID: uint32(r.FHNode >> 32), FileIndex: int32(uint32(r.FHNode))})
			}
		}
	}

	t := b.Build()
	if !*markAll {
		cancel := &tree.CancelFlag{}
		if err := t.MarkSubtree(t.Root(), cancel); err != nil {
			fatalf("mark: %v", err)
		}
	}

	jobIDs := make([]uint32, 0, len(jobSet))
	for id := range jobSet {
		jobIDs = append(jobIDs, id)
	}

	vols := catalog.NewFixtureSource(doc)
	record, stats, err := bsr.Synthesize(context.Background(), t, jobIDs, vols, logger, &tree.CancelFlag{})
	if err != nil {
		fatalf("synthesize: %v", err)
	}

	text := bsr.Emit(record)
	fmt.Fprintf(os.Stderr, "# selected files: %d, use_fast_rejection=%v, use_positioning=%v\n",
		stats.SelectedFiles, record.UseFastRejection(), record.UsePositioning())

	if *out == "" {
		fmt.Print(text)
		return
	}
	if err := os.WriteFile(*out, []byte(text), 0o644); err != nil {
		fatalf("write %s: %v", *out, err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "restoretree-bsr-demo: "+format+"\n", args...)
	os.Exit(1)
}
