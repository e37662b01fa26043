// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"
	"os"
)

// FixtureDocument is the msgpack-encodable on-disk shape of a deterministic
// catalog stand-in, used by tests and by cmd/restoretree-bsr-demo in place
// of a real SQL catalog driver. Fixture files are encoded with sorted map
// keys so identical inputs produce byte-identical, diffable files.
type FixtureDocument struct {
	Rows    []Row               `msgpack:"rows"`
	Volumes map[uint32][]Volume `msgpack:"volumes"`
}

// EncodeFixture renders doc as msgpack with sorted map keys, for
// deterministic, diffable fixture files.
func EncodeFixture(doc FixtureDocument) ([]byte, error) {
	data, err := encodeMsgpack(doc)
	if err != nil {
		return nil, fmt.Errorf("catalog: encode fixture: %w", err)
	}
	return data, nil
}

// DecodeFixture parses a msgpack fixture document.
func DecodeFixture(data []byte) (FixtureDocument, error) {
	var doc FixtureDocument
	if err := decodeMsgpackInto(data, &doc); err != nil {
		return FixtureDocument{}, fmt.Errorf("catalog: decode fixture: %w", err)
	}
	return doc, nil
}

// LoadFixtureFile reads and decodes a fixture document from path.
func LoadFixtureFile(path string) (FixtureDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FixtureDocument{}, fmt.Errorf("catalog: read fixture %s: %w", path, err)
	}
	return DecodeFixture(data)
}

// fixtureSource is an in-memory RowSource + VolumeSource backed by a
// FixtureDocument, used wherever a real catalog driver would otherwise be
// required.
type fixtureSource struct {
	doc FixtureDocument
}

// NewFixtureSource wraps doc as a RowSource and VolumeSource.
func NewFixtureSource(doc FixtureDocument) interface {
	RowSource
	VolumeSource
} {
	return &fixtureSource{doc: doc}
}

func (f *fixtureSource) StreamRows(ctx context.Context, jobIDs []uint32, handler RowHandler) error {
	want := make(map[uint32]bool, len(jobIDs))
	for _, id := range jobIDs {
		want[id] = true
	}
	for _, row := range f.doc.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(want) > 0 && !want[row.JobID] {
			continue
		}
		if err := handler(row); err != nil {
			return err
		}
	}
	return nil
}

func (f *fixtureSource) VolumesForJob(ctx context.Context, jobID uint32) ([]Volume, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vols, ok := f.doc.Volumes[jobID]
	if !ok {
		return nil, fmt.Errorf("catalog: no volumes recorded for job %d", jobID)
	}
	return vols, nil
}
