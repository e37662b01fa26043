// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

// Package catalog defines the two external collaborators the pipeline
// treats as opaque: the per-row stream the tree builder ingests, and the
// per-job volume-metadata lookup the BSR synthesizer enriches with. The
// core never queries a database directly; everything here is an interface
// plus a deterministic, msgpack-backed fixture implementation used by
// tests and the demo/fixture cmd tools in place of a real SQL catalog
// driver.
package catalog

import "context"

// Row is one catalog file record, already split out of whatever wire
// representation the real director/catalog layer uses.
type Row struct {
	Path      string // directory portion, trailing separator
	Filename  string // terminal segment; empty means "this row is a directory"
	FileIndex int32
	JobID     uint32
	Lstat     string // Bareos base64-packed stat encoding
	DeltaSeq  int32
	FHInfo    uint64
	FHNode    uint64
	Size      uint64 // catalog size hint, used only by estimate's byte total
}

// RowHandler is invoked once per catalog row during ingestion.
type RowHandler func(Row) error

// RowSource streams catalog rows for a set of job ids. Implementations may
// block on I/O; StreamRows must stop and return ctx.Err() promptly once ctx
// is done.
type RowSource interface {
	StreamRows(ctx context.Context, jobIDs []uint32, handler RowHandler) error
}

// Volume describes one (job, volume) carrier tuple.
type Volume struct {
	Name           string
	MediaType      string
	Device         string
	Slot           int32
	VolSessionID   uint32
	VolSessionTime uint32
	FirstVolFile   uint32
	LastVolFile    uint32
	FirstVolBlock  uint32
	LastVolBlock   uint32
}

// VolumeSource resolves, for a job id, the ordered list of volumes that
// carry it. A lookup failure for one job is recoverable: the caller
// degrades that entry rather than aborting.
type VolumeSource interface {
	VolumesForJob(ctx context.Context, jobID uint32) ([]Volume, error)
}
