// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Lstat is the subset of the packed stat encoding the ingestion handler
// needs: st_mode, st_nlink, and the link-file-index embedded in the
// encoding.
type Lstat struct {
	Mode   uint32
	Nlink  uint32
	LinkFI int32
}

// lstatFieldOrder documents the field layout of the packed encoding. Only
// mode, nlink, and linkfi are consumed by the builder; the remaining
// fields round-trip through EncodeLstat/DecodeLstat unexamined.
var lstatFieldOrder = []string{
	"dev", "ino", "mode", "nlink", "uid", "gid",
	"rdev", "size", "mtime", "ctime", "atime", "linkfi",
}

// EncodeLstat packs an Lstat (plus the constant filler fields a real
// catalog row would carry) into the space-separated base64 packed stat
// encoding. Each field is independently base64url-encoded, one stat field
// per token.
func EncodeLstat(l Lstat) string {
	values := map[string]uint64{
		"dev": 0, "ino": 0,
		"mode": uint64(l.Mode), "nlink": uint64(l.Nlink),
		"uid": 0, "gid": 0, "rdev": 0, "size": 0,
		"mtime": 0, "ctime": 0, "atime": 0,
		"linkfi": uint64(uint32(l.LinkFI)),
	}
	toks := make([]string, len(lstatFieldOrder))
	for i, name := range lstatFieldOrder {
		toks[i] = encodeUint64(values[name])
	}
	return strings.Join(toks, " ")
}

// DecodeLstat is the inverse of EncodeLstat. A malformed encoding is an
// unrecoverable row: the caller aborts the current ingestion.
func DecodeLstat(s string) (Lstat, error) {
	toks := strings.Fields(s)
	if len(toks) < len(lstatFieldOrder) {
		return Lstat{}, fmt.Errorf("catalog: malformed lstat: want %d fields, got %d", len(lstatFieldOrder), len(toks))
	}

	values := make(map[string]uint64, len(lstatFieldOrder))
	for i, name := range lstatFieldOrder {
		v, err := decodeUint64(toks[i])
		if err != nil {
			return Lstat{}, fmt.Errorf("catalog: malformed lstat field %q: %w", name, err)
		}
		values[name] = v
	}

	return Lstat{
		Mode:   uint32(values["mode"]),
		Nlink:  uint32(values["nlink"]),
		LinkFI: int32(uint32(values["linkfi"])),
	}, nil
}

func encodeUint64(v uint64) string {
	var b [8]byte
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return base64.RawURLEncoding.EncodeToString(b[:])
}

func decodeUint64(tok string) (uint64, error) {
	b, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return 0, err
	}
	if len(b) != 8 {
		return 0, fmt.Errorf("decoded field has %d bytes, want 8", len(b))
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, nil
}

const (
	// modeDir and modeSymlink mirror the POSIX S_IFDIR / S_IFLNK bits
	// that drive type classification and the soft_link flag.
	modeFmt     = 0o170000
	modeDir     = 0o040000
	modeSymlink = 0o120000
)

// IsDir reports whether mode's format bits indicate a directory.
func IsDir(mode uint32) bool { return mode&modeFmt == modeDir }

// IsSymlink reports whether mode's format bits indicate a symbolic link.
func IsSymlink(mode uint32) bool { return mode&modeFmt == modeSymlink }
