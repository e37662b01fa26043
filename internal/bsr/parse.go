// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package bsr

import (
	"fmt"
	"strconv"
	"strings"
)

// knownKeys is the closed enumeration of recognized keys; unknown keys
// are preserved verbatim but never interpreted.
var knownKeys = map[string]bool{
	"volume": true, "mediatype": true, "client": true, "job": true,
	"jobid": true, "count": true, "fileindex": true, "jobtype": true,
	"joblevel": true, "volsessionid": true, "volsessiontime": true,
	"volfile": true, "volblock": true, "voladdr": true, "stream": true,
	"slot": true, "device": true, "fileregex": true, "include": true,
	"exclude": true,
}

// ParseWarning reports one non-fatal condition observed while parsing
// (an unknown key).
type ParseWarning struct {
	Line string
	Key  string
}

func (w ParseWarning) String() string {
	return fmt.Sprintf("bsr: unknown key %q in line %q", w.Key, w.Line)
}

// Parse accepts the textual format and reconstructs a BSR model
// identical to the one Synthesize would produce: key tokens are
// matched case-insensitively, value tokens are case-sensitive, and
// use_fast_rejection/use_positioning are recomputed from the parsed
// fields rather than trusted from the file.
func Parse(text string) (*BSR, []ParseWarning, error) {
	b := &BSR{}
	var warnings []ParseWarning

	blocks := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
	for _, block := range blocks {
		lines := strings.Split(block, "\n")
		e := &Entry{}
		sawJobID := false

		for _, raw := range lines {
			line := strings.TrimSpace(raw)
			if line == "" {
				continue
			}
			idx := strings.IndexByte(line, '=')
			if idx < 0 {
				return nil, warnings, fmt.Errorf("bsr: malformed line %q", line)
			}
			key, value := line[:idx], line[idx+1:]
			lower := strings.ToLower(key)

			if !knownKeys[lower] {
				warnings = append(warnings, ParseWarning{Line: line, Key: key})
				e.unknownLines = append(e.unknownLines, line)
				continue
			}

			if err := applyField(e, lower, value, &sawJobID); err != nil {
				return nil, warnings, err
			}
		}

		if sawJobID || len(e.Findex) > 0 || len(e.Volumes) > 0 || len(e.unknownLines) > 0 {
			b.Entries = append(b.Entries, e)
		}
	}

	computeHints(b)
	return b, warnings, nil
}

func applyField(e *Entry, key, value string, sawJobID *bool) error {
	switch key {
	case "volume":
		e.Volumes = strings.Split(value, "|")
	case "mediatype":
		e.MediaTypes = strings.Split(value, "|")
	case "client":
		e.Client = value
	case "job":
		e.Job = value
	case "jobid":
		v, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("bsr: malformed JobId %q: %w", value, err)
		}
		e.JobID = uint32(v)
		*sawJobID = true
	case "count":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("bsr: malformed Count %q: %w", value, err)
		}
		e.Count = v
	case "fileindex":
		r, err := parseRange(value)
		if err != nil {
			return err
		}
		e.Findex = append(e.Findex, r)
	case "jobtype":
		e.JobType = value
	case "joblevel":
		e.JobLevel = value
	case "volsessionid":
		v, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("bsr: malformed VolSessionId %q: %w", value, err)
		}
		e.VolSessionIDs = append(e.VolSessionIDs, uint32(v))
	case "volsessiontime":
		v, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("bsr: malformed VolSessionTime %q: %w", value, err)
		}
		e.VolSessionTimes = append(e.VolSessionTimes, uint32(v))
	case "volfile":
		r, err := parseRange(value)
		if err != nil {
			return err
		}
		e.VolFile = append(e.VolFile, r)
	case "volblock":
		r, err := parseRange(value)
		if err != nil {
			return err
		}
		e.VolBlock = append(e.VolBlock, r)
	case "voladdr":
		r, err := parseRange(value)
		if err != nil {
			return err
		}
		e.VolAddr = append(e.VolAddr, r)
	case "stream":
		v, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return fmt.Errorf("bsr: malformed Stream %q: %w", value, err)
		}
		e.Stream = append(e.Stream, int32(v))
	case "slot":
		v, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return fmt.Errorf("bsr: malformed Slot %q: %w", value, err)
		}
		e.Slot = append(e.Slot, int32(v))
	case "device":
		e.Device = strings.Split(value, "|")
	case "fileregex":
		v := value
		e.FileRegex = &v
	case "include":
		e.Include = append(e.Include, value)
	case "exclude":
		e.Exclude = append(e.Exclude, value)
	}
	return nil
}
