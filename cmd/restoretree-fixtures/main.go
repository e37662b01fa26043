// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

// restoretree-fixtures generates deterministic catalog.FixtureDocument
// files for the demo/test harness: a fixed set of named fixtures
// (minimal tree, hardlink collapsing, delta chain, 10k-node round trip),
// msgpack-encoded with sorted map keys, written as individual files under
// -out, so cmd/restoretree-bsr-demo can exercise the pipeline without a
// real SQL catalog driver.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bareos-community/restoretree/internal/catalog"
	"github.com/bareos-community/restoretree/internal/fsfixture"
)

func main() {
	outDir := flag.String("out", "testdata/fixtures", "output directory for fixture documents")
	fromDir := flag.String("from-dir", "", "capture a real directory in addition to the built-in fixtures")
	captureJobID := flag.Uint("from-dir-job-id", 1, "job id stamped on rows captured from -from-dir")
	exclude := flag.String("from-dir-exclude", "", "comma-separated glob patterns to exclude from -from-dir")
	flag.Parse()

	fixtures := map[string]catalog.FixtureDocument{
		"minimal_tree":  minimalTreeFixture(),
		"hardlink":      hardlinkFixture(),
		"delta_chain":   deltaChainFixture(),
		"roundtrip_10k": randomTreeFixture(10000),
	}

	if *fromDir != "" {
		doc, err := captureDir(*fromDir, uint32(*captureJobID), *exclude)
		if err != nil {
			fmt.Fprintf(os.Stderr, "capture %s: %v\n", *fromDir, err)
			os.Exit(1)
		}
		fixtures["captured_"+filepath.Base(*fromDir)] = doc
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
		os.Exit(1)
	}

	for name, doc := range fixtures {
		data, err := catalog.EncodeFixture(doc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "encode %s: %v\n", name, err)
			os.Exit(1)
		}
		path := filepath.Join(*outDir, name+".msgpack")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", path, err)
			os.Exit(1)
		}
	}
}

// minimalTreeFixture is a root, /etc/hosts, and /etc/motd in job 1,
// carried by a single volume.
func minimalTreeFixture() catalog.FixtureDocument {
	return catalog.FixtureDocument{
		Rows: []catalog.Row{
			row("/", "", 0, 1, dirStat(2), 0, 0, 0, 0),
			row("/etc/", "hosts", 3, 1, fileStat(1, 0), 0, 0, 0, 512),
			row("/etc/", "motd", 4, 1, fileStat(1, 0), 0, 0, 0, 128),
		},
		Volumes: map[uint32][]catalog.Volume{
			1: {{
				Name: "Vol-0001", MediaType: "LTO8", Device: "Drive-0",
				VolSessionID: 42, VolSessionTime: 1700000000,
				FirstVolFile: 0, LastVolFile: 0,
				FirstVolBlock: 0, LastVolBlock: 100,
			}},
		},
	}
}

// hardlinkFixture carries two records for the same inode in job 7:
// /a/f as the chain head (fi=10) and /b/g as a member (fi=11, LinkFI=10).
func hardlinkFixture() catalog.FixtureDocument {
	return catalog.FixtureDocument{
		Rows: []catalog.Row{
			row("/", "", 0, 7, dirStat(3), 0, 0, 0, 0),
			row("/a/", "", 1, 7, dirStat(2), 0, 0, 0, 0),
			row("/b/", "", 2, 7, dirStat(2), 0, 0, 0, 0),
			row("/a/", "f", 10, 7, fileStat(2, 0), 0, 0, 0, 4096),
			row("/b/", "g", 11, 7, fileStat(2, 10), 0, 0, 0, 4096),
		},
		Volumes: map[uint32][]catalog.Volume{
			7: {{
				Name: "Vol-0007", MediaType: "LTO8", Device: "Drive-0",
				VolSessionID: 7, VolSessionTime: 1700000700,
				FirstVolFile: 0, LastVolFile: 1,
				FirstVolBlock: 0, LastVolBlock: 500,
			}},
		},
	}
}

// deltaChainFixture is /db/data with delta_list [(job=5,fi=9),
// (job=4,fi=2)] (newest-first insertion order) and self (job=6, fi=17).
// The fixture format doesn't carry delta chains directly (catalog rows
// are flat); cmd/restoretree-bsr-demo reconstructs the chain via
// tree.Builder.AppendDelta, so row FHInfo/FHNode here are repurposed to
// stash the two prior (job_id, file_index) pairs rather than inventing a
// second file format.
func deltaChainFixture() catalog.FixtureDocument {
	return catalog.FixtureDocument{
		Rows: []catalog.Row{
			row("/", "", 0, 6, dirStat(2), 0, 0, 0, 0),
			row("/db/", "", 1, 6, dirStat(2), 0, 0, 0, 0),
			row("/db/", "data", 17, 6, fileStat(1, 0), 3, deltaPair(5, 9), deltaPair(4, 2), 2048),
		},
		Volumes: map[uint32][]catalog.Volume{
			4: {{Name: "Vol-0004", MediaType: "LTO8", VolSessionID: 4, VolSessionTime: 1700000400, LastVolFile: 1, LastVolBlock: 50}},
			5: {{Name: "Vol-0005", MediaType: "LTO8", VolSessionID: 5, VolSessionTime: 1700000500, LastVolFile: 1, LastVolBlock: 50}},
			6: {{Name: "Vol-0006", MediaType: "LTO8", VolSessionID: 6, VolSessionTime: 1700000600, LastVolFile: 1, LastVolBlock: 50}},
		},
	}
}

// randomTreeFixture generates a pseudo-random, fully deterministic tree
// of n files spread across a handful of directories, sized for the
// snapshot round-trip test.
func randomTreeFixture(n int) catalog.FixtureDocument {
	const dirsPerLevel = 8
	rows := make([]catalog.Row, 0, n+1)
	rows = append(rows, row("/", "", 0, 1, dirStat(2), 0, 0, 0, 0))

	fi := int32(1)
	for i := 0; i < n; i++ {
		d1 := i % dirsPerLevel
		d2 := (i / dirsPerLevel) % dirsPerLevel
		dir := fmt.Sprintf("/d%d/d%d/", d1, d2)
		name := fmt.Sprintf("file%05d.dat", i)
		rows = append(rows, row(dir, name, fi, 1, fileStat(1, 0), 0, 0, 0, uint64(i%4096)))
		fi++
	}

	return catalog.FixtureDocument{
		Rows: rows,
		Volumes: map[uint32][]catalog.Volume{
			1: {{Name: "Vol-0001", MediaType: "LTO8", VolSessionID: 1, VolSessionTime: 1700001000, LastVolFile: 9, LastVolBlock: 9999}},
		},
	}
}

// captureDir walks a real directory via fsfixture.Capture and wraps the
// resulting rows as a fixture document with no recorded volumes, leaving
// the operator to merge in real volume metadata for the captured job id
// before using it with cmd/restoretree-bsr-demo.
func captureDir(dir string, jobID uint32, excludeCSV string) (catalog.FixtureDocument, error) {
	var opts []fsfixture.Option
	if excludeCSV != "" {
		opts = append(opts, fsfixture.WithExclude(strings.Split(excludeCSV, ",")...))
	}
	rows, err := fsfixture.Capture(dir, jobID, opts...)
	if err != nil {
		return catalog.FixtureDocument{}, err
	}
	return catalog.FixtureDocument{Rows: rows}, nil
}

func row(path, filename string, fi int32, jobID uint32, lstat string, deltaSeq int32, fhinfo, fhnode uint64, size uint64) catalog.Row {
	return catalog.Row{
		Path: path, Filename: filename, FileIndex: fi, JobID: jobID,
		Lstat: lstat, DeltaSeq: deltaSeq, FHInfo: fhinfo, FHNode: fhnode, Size: size,
	}
}

func dirStat(nlink uint32) string {
	return catalog.EncodeLstat(catalog.Lstat{Mode: 0o040755, Nlink: nlink})
}

func fileStat(nlink uint32, linkFI int32) string {
	return catalog.EncodeLstat(catalog.Lstat{Mode: 0o100644, Nlink: nlink, LinkFI: linkFI})
}

// deltaPair packs a (job_id, file_index) pair into a single uint64 the way
// HardlinkKey does, so the delta-chain fixture can carry two of them
// (FHInfo, FHNode) without inventing a second on-disk shape.
func deltaPair(jobID uint32, fileIndex int32) uint64 {
	return uint64(jobID)<<32 | uint64(uint32(fileIndex))
}
