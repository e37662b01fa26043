// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package bsr

import (
	"context"
	"testing"

	"github.com/bareos-community/restoretree/internal/catalog"
	"github.com/bareos-community/restoretree/internal/tree"
)

func TestEmitParseRoundTrip(t *testing.T) {
	tr := buildMinimalTree(t)
	vols := fixedVolumes{byJob: map[uint32][]catalog.Volume{
		1: {{Name: "Vol-0001", MediaType: "LTO8", VolSessionID: 42, VolSessionTime: 1700000000, LastVolFile: 0, LastVolBlock: 100}},
	}}
	original, _, err := Synthesize(context.Background(), tr, []uint32{1}, vols, nil, &tree.CancelFlag{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	text := Emit(original)
	parsed, warnings, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if len(parsed.Entries) != 1 {
		t.Fatalf("Entries = %d, want 1", len(parsed.Entries))
	}
	pe, oe := parsed.Entries[0], original.Entries[0]
	if pe.JobID != oe.JobID {
		t.Errorf("JobID = %d, want %d", pe.JobID, oe.JobID)
	}
	if len(pe.Findex) != len(oe.Findex) || pe.Findex[0] != oe.Findex[0] {
		t.Errorf("Findex = %v, want %v", pe.Findex, oe.Findex)
	}
	if pe.UseFastRejection != oe.UseFastRejection {
		t.Errorf("UseFastRejection = %v, want %v", pe.UseFastRejection, oe.UseFastRejection)
	}
	if pe.UsePositioning != oe.UsePositioning {
		t.Errorf("UsePositioning = %v, want %v", pe.UsePositioning, oe.UsePositioning)
	}
}

func TestParse_CaseInsensitiveKeys(t *testing.T) {
	text := "jobid=5\nFILEINDEX=1-3\nVolSessionId=9\nvolsessiontime=100\n"
	b, warnings, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if len(b.Entries) != 1 || b.Entries[0].JobID != 5 {
		t.Fatalf("Entries = %+v", b.Entries)
	}
}

func TestParse_UnknownKeyPreservedVerbatim(t *testing.T) {
	text := "JobId=1\nFrobnicate=yes\n"
	b, warnings, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(warnings) != 1 || warnings[0].Key != "Frobnicate" {
		t.Fatalf("warnings = %v, want one warning for Frobnicate", warnings)
	}

	out := Emit(b)
	if !containsLine(out, "Frobnicate=yes") {
		t.Errorf("unknown key not preserved verbatim in re-emitted text:\n%s", out)
	}
}

func TestParse_ValuesAreCaseSensitive(t *testing.T) {
	text := "JobId=1\nVolume=Vol-ABC\n"
	b, _, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if b.Entries[0].Volumes[0] != "Vol-ABC" {
		t.Errorf("Volume = %q, want exact case Vol-ABC", b.Entries[0].Volumes[0])
	}
}

func TestParse_MalformedLineIsError(t *testing.T) {
	if _, _, err := Parse("not a kv line\n"); err == nil {
		t.Error("expected an error for a line without '='")
	}
}

func TestParse_MultiVolumePipeList(t *testing.T) {
	b, _, err := Parse("JobId=1\nVolume=Vol-0001|Vol-0002\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(b.Entries[0].Volumes) != 2 {
		t.Fatalf("Volumes = %v, want 2 entries", b.Entries[0].Volumes)
	}
}

func containsLine(text, line string) bool {
	for _, l := range splitLines(text) {
		if l == line {
			return true
		}
	}
	return false
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}
