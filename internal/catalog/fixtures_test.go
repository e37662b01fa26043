// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"testing"
)

func sampleFixture() FixtureDocument {
	return FixtureDocument{
		Rows: []Row{
			{Path: "/etc/", Filename: "hosts", FileIndex: 3, JobID: 1, Lstat: EncodeLstat(Lstat{Mode: 0o100644, Nlink: 1}), Size: 158},
			{Path: "/etc/", Filename: "motd", FileIndex: 4, JobID: 1, Lstat: EncodeLstat(Lstat{Mode: 0o100644, Nlink: 1}), Size: 42},
		},
		Volumes: map[uint32][]Volume{
			1: {{Name: "Vol-0001", VolSessionID: 42, VolSessionTime: 1700000000, LastVolFile: 0, LastVolBlock: 100}},
		},
	}
}

func TestFixtureDocumentRoundTrip(t *testing.T) {
	doc := sampleFixture()
	data, err := EncodeFixture(doc)
	if err != nil {
		t.Fatalf("EncodeFixture: %v", err)
	}
	got, err := DecodeFixture(data)
	if err != nil {
		t.Fatalf("DecodeFixture: %v", err)
	}
	if len(got.Rows) != len(doc.Rows) {
		t.Fatalf("Rows = %d, want %d", len(got.Rows), len(doc.Rows))
	}
	if got.Rows[0].Filename != "hosts" || got.Rows[1].Filename != "motd" {
		t.Errorf("Rows = %+v", got.Rows)
	}
	if len(got.Volumes[1]) != 1 || got.Volumes[1][0].Name != "Vol-0001" {
		t.Errorf("Volumes[1] = %+v", got.Volumes[1])
	}
}

func TestFixtureSource_StreamRowsFiltersByJob(t *testing.T) {
	src := NewFixtureSource(sampleFixture())

	var seen []int32
	err := src.StreamRows(context.Background(), []uint32{1}, func(r Row) error {
		seen = append(seen, r.FileIndex)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamRows: %v", err)
	}
	if len(seen) != 2 || seen[0] != 3 || seen[1] != 4 {
		t.Errorf("seen = %v, want [3 4]", seen)
	}

	seen = nil
	if err := src.StreamRows(context.Background(), []uint32{99}, func(r Row) error {
		seen = append(seen, r.FileIndex)
		return nil
	}); err != nil {
		t.Fatalf("StreamRows: %v", err)
	}
	if len(seen) != 0 {
		t.Errorf("seen = %v, want none for an unmatched job id", seen)
	}
}

func TestFixtureSource_VolumesForJobMissingIsError(t *testing.T) {
	src := NewFixtureSource(sampleFixture())
	if _, err := src.VolumesForJob(context.Background(), 404); err == nil {
		t.Error("expected an error for a job with no recorded volumes")
	}
}

func TestFixtureSource_StreamRowsRespectsCancellation(t *testing.T) {
	src := NewFixtureSource(sampleFixture())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := src.StreamRows(ctx, nil, func(r Row) error { return nil })
	if err == nil {
		t.Error("expected StreamRows to observe a cancelled context")
	}
}
