// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package bsr

import (
	"context"
	"log/slog"

	"github.com/bareos-community/restoretree/internal/catalog"
	"github.com/bareos-community/restoretree/internal/tree"
)

// Stats reports the number of nodes that counted toward "selected
// files", surfaced to the caller alongside the BSR.
type Stats struct {
	SelectedFiles int
}

// Synthesize walks t in pre-order and builds the BSR that restores every
// marked node.
//
// Step 1 emits, for every node with extract or extract_dir, its delta-list
// entries oldest-first followed by the node's own (job_id, file_index); a
// hardlink member whose chain head is not itself marked also emits the
// head's (job_id, file_index). Step 2 enriches each distinct job_id's Entry with catalog volume
// metadata. Step 3 computes the fast-rejection/positioning hints. Text
// emission is a separate step (Emit).
func Synthesize(ctx context.Context, t *tree.Tree, jobIDs []uint32, vols catalog.VolumeSource, logger *slog.Logger, cancel *tree.CancelFlag) (*BSR, Stats, error) {
	b := &BSR{}
	var stats Stats

	for _, ref := range t.Subtree(t.Root()) {
		if cancel.Cancelled() {
			return nil, Stats{}, tree.ErrCancelled
		}
		if !t.Extract(ref) && !t.ExtractDir(ref) {
			continue
		}

		for _, d := range t.DeltaList(ref) {
			b.entryForJob(d.JobID).AddFindex(d.FileIndex)
		}
		b.entryForJob(t.JobID(ref)).AddFindex(t.FileIndex(ref))
		if t.HardLink(ref) {
			if head, ok := t.HardlinkLookup(t.JobID(ref), t.FileIndex(ref)); ok && head != ref && !t.Extract(head) && !t.ExtractDir(head) {
				b.entryForJob(t.JobID(head)).AddFindex(t.FileIndex(head))
			}
		}

		if t.Extract(ref) && t.Type(ref) != tree.NewDir {
			stats.SelectedFiles++
		}
	}

	if stats.SelectedFiles == 0 {
		return nil, Stats{}, ErrNoFilesSelected
	}

	for _, e := range b.Entries {
		e.Count = stats.SelectedFiles
	}

	if err := enrichVolumes(ctx, b, vols, logger); err != nil {
		return nil, Stats{}, err
	}

	computeHints(b)

	return b, stats, nil
}

// enrichVolumes implements step 2: per distinct job_id, look up the
// ordered volume list and attach it to that job's Entry. A single job's
// catalog failure degrades that entry (it loses its positioning/
// fast-rejection hints but is still emitted); if not one volume could be
// resolved across every job, the whole synthesis fails with ErrNoVolumes.
func enrichVolumes(ctx context.Context, b *BSR, vols catalog.VolumeSource, logger *slog.Logger) error {
	totalVolumes := 0
	for _, e := range b.Entries {
		volumes, err := vols.VolumesForJob(ctx, e.JobID)
		if err != nil {
			if logger != nil {
				logger.Warn("bsr: catalog volume lookup failed; entry loses positioning hints",
					"job_id", e.JobID, "err", err)
			}
			continue
		}
		for _, v := range volumes {
			e.Volumes = append(e.Volumes, v.Name)
			e.MediaTypes = appendUnique(e.MediaTypes, v.MediaType)
			e.Device = appendUnique(e.Device, v.Device)
			e.Slot = append(e.Slot, v.Slot)
			e.VolSessionIDs = appendUniqueU32(e.VolSessionIDs, v.VolSessionID)
			e.VolSessionTimes = appendUniqueU32(e.VolSessionTimes, v.VolSessionTime)
			e.VolFile = append(e.VolFile, FindexRange{Low: int32(v.FirstVolFile), High: int32(v.LastVolFile)})
			e.VolBlock = append(e.VolBlock, FindexRange{Low: int32(v.FirstVolBlock), High: int32(v.LastVolBlock)})
		}
		totalVolumes += len(volumes)
	}

	if totalVolumes == 0 {
		return ErrNoVolumes
	}
	return nil
}

func appendUnique(s []string, v string) []string {
	for _, e := range s {
		if e == v {
			return s
		}
	}
	return append(s, v)
}

func appendUniqueU32(s []uint32, v uint32) []uint32 {
	for _, e := range s {
		if e == v {
			return s
		}
	}
	return append(s, v)
}

// computeHints implements step 3: use_fast_rejection requires every entry
// to carry at least one VolSessionId and VolSessionTime; use_positioning
// requires every entry to carry at least one VolFile and VolBlock range.
// Both are computed per entry AND as the document-wide flags consumed by
// the storage layer.
func computeHints(b *BSR) {
	for _, e := range b.Entries {
		e.UseFastRejection = len(e.VolSessionIDs) > 0 && len(e.VolSessionTimes) > 0
		e.UsePositioning = len(e.VolFile) > 0 && len(e.VolBlock) > 0
	}
}

// UseFastRejection reports whether every entry in b carries at least one
// VolSessionId and one VolSessionTime, which is what lets the storage
// layer skip whole block clusters without parsing record headers.
func (b *BSR) UseFastRejection() bool {
	for _, e := range b.Entries {
		if !e.UseFastRejection {
			return false
		}
	}
	return len(b.Entries) > 0
}

// UsePositioning is UseFastRejection's positioning-hint counterpart.
func (b *BSR) UsePositioning() bool {
	for _, e := range b.Entries {
		if !e.UsePositioning {
			return false
		}
	}
	return len(b.Entries) > 0
}
