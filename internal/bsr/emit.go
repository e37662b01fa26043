// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package bsr

import (
	"fmt"
	"strconv"
	"strings"
)

// formatRange renders a FindexRange as `low-high`; a single-element range
// collapses to one bare integer.
func formatRange(r FindexRange) string {
	if r.All {
		return fmt.Sprintf("%d-%d", 0, int32(1<<31-1))
	}
	if r.Low == r.High {
		return strconv.Itoa(int(r.Low))
	}
	return fmt.Sprintf("%d-%d", r.Low, r.High)
}

func parseRange(s string) (FindexRange, error) {
	if idx := strings.IndexByte(s, '-'); idx > 0 {
		lo, err1 := strconv.ParseInt(s[:idx], 10, 32)
		hi, err2 := strconv.ParseInt(s[idx+1:], 10, 32)
		if err1 != nil || err2 != nil {
			return FindexRange{}, fmt.Errorf("bsr: malformed range %q", s)
		}
		if lo == 0 && hi == 1<<31-1 {
			return FindexRange{All: true}, nil
		}
		return FindexRange{Low: int32(lo), High: int32(hi)}, nil
	}
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return FindexRange{}, fmt.Errorf("bsr: malformed range %q", s)
	}
	return FindexRange{Low: int32(v), High: int32(v)}, nil
}

// Emit renders b as the line-oriented textual document: entries separated
// by blank lines, keys in a fixed deterministic order so the output is
// stable given the same inputs.
func Emit(b *BSR) string {
	var buf strings.Builder
	for i, e := range b.Entries {
		if i > 0 {
			buf.WriteByte('\n')
		}
		emitEntry(&buf, e)
	}
	return buf.String()
}

func emitEntry(buf *strings.Builder, e *Entry) {
	line := func(key, value string) { fmt.Fprintf(buf, "%s=%s\n", key, value) }

	if len(e.Volumes) > 0 {
		line("Volume", strings.Join(e.Volumes, "|"))
	}
	if len(e.MediaTypes) > 0 {
		line("MediaType", strings.Join(e.MediaTypes, "|"))
	}
	if e.Client != "" {
		line("Client", e.Client)
	}
	if e.Job != "" {
		line("Job", e.Job)
	}
	line("JobId", strconv.FormatUint(uint64(e.JobID), 10))
	line("Count", strconv.Itoa(e.Count))
	for _, r := range e.Findex {
		line("FileIndex", formatRange(r))
	}
	if e.JobType != "" {
		line("JobType", e.JobType)
	}
	if e.JobLevel != "" {
		line("JobLevel", e.JobLevel)
	}
	for _, id := range e.VolSessionIDs {
		line("VolSessionId", strconv.FormatUint(uint64(id), 10))
	}
	for _, t := range e.VolSessionTimes {
		line("VolSessionTime", strconv.FormatUint(uint64(t), 10))
	}
	for _, r := range e.VolFile {
		line("VolFile", formatRange(r))
	}
	for _, r := range e.VolBlock {
		line("VolBlock", formatRange(r))
	}
	for _, r := range e.VolAddr {
		line("VolAddr", formatRange(r))
	}
	for _, s := range e.Stream {
		line("Stream", strconv.Itoa(int(s)))
	}
	for _, s := range e.Slot {
		line("Slot", strconv.Itoa(int(s)))
	}
	if len(e.Device) > 0 {
		line("Device", strings.Join(e.Device, "|"))
	}
	if e.FileRegex != nil {
		line("FileRegex", *e.FileRegex)
	}
	for _, s := range e.Include {
		line("Include", s)
	}
	for _, s := range e.Exclude {
		line("Exclude", s)
	}
	for _, raw := range e.unknownLines {
		buf.WriteString(raw)
		buf.WriteByte('\n')
	}
}
