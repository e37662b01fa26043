// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

// Package bsr models, synthesizes, emits, and parses Bootstrap Records:
// the line-oriented document that tells the storage subsystem which
// volumes, sessions, blocks, and file indices to restore.
package bsr

// FindexRange is a sorted, non-overlapping file-index interval
// [Low, High] inclusive. A wildcard range matching every file_index of a
// job (AddFindexAll) is represented with All set; Low/High are then
// meaningless.
type FindexRange struct {
	Low, High int32
	All       bool
}

// Entry aggregates the constraints that must ALL hold for a record to
// match, for one job_id (volume metadata is enriched per distinct job_id,
// so one Entry always maps to one job). Constraint lists within Entry
// (e.g. Volumes, VolSessionIDs) are OR-within-list.
type Entry struct {
	JobID  uint32
	Findex []FindexRange

	Volumes         []string
	MediaTypes      []string
	Client          string
	Job             string
	JobType         string
	JobLevel        string
	VolSessionIDs   []uint32
	VolSessionTimes []uint32
	VolFile         []FindexRange
	VolBlock        []FindexRange
	VolAddr         []FindexRange
	Stream          []int32
	Slot            []int32
	Device          []string
	FileRegex       *string
	Include         []string
	Exclude         []string

	// Count is the total number of selected files in the whole BSR; every
	// entry carries the same value.
	Count int

	// UseFastRejection/UsePositioning are per-entry optimization hints
	// computed in step 3 of synthesis, or re-derived identically by Parse.
	UseFastRejection bool
	UsePositioning   bool

	// unknownLines preserves unrecognized kv_lines verbatim: unknown keys
	// produce a warning, are stored, and are never interpreted.
	unknownLines []string
}

// BSR is the full bootstrap document: one Entry per distinct job_id
// referenced by the walk that produced it, in the order first encountered.
type BSR struct {
	Entries []*Entry
}

// entryForJob returns (creating if absent) the Entry for jobID, preserving
// first-seen order in BSR.Entries.
func (b *BSR) entryForJob(jobID uint32) *Entry {
	for _, e := range b.Entries {
		if e.JobID == jobID {
			return e
		}
	}
	e := &Entry{JobID: jobID}
	b.Entries = append(b.Entries, e)
	return e
}

// AddFindex inserts a single file_index into entry's constraint list,
// coalescing eagerly with the adjacent range if fi == last.High+1.
func (e *Entry) AddFindex(fi int32) {
	if n := len(e.Findex); n > 0 && !e.Findex[n-1].All && e.Findex[n-1].High+1 == fi {
		e.Findex[n-1].High = fi
		return
	}
	e.Findex = append(e.Findex, FindexRange{Low: fi, High: fi})
}

// AddFindexAll marks every file_index of entry's job as matching (a
// wildcard range).
func (e *Entry) AddFindexAll() {
	e.Findex = []FindexRange{{All: true}}
}
