// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package tree

// segmentPath splits path on sep into its path components. A Windows drive
// letter prefix ("X:") is treated as one synthetic segment. noLeadingSlash
// reports whether the path lacks a leading separator (and no drive letter),
// which classifies a bare-directory row's type as DirNoLeadingSlash instead
// of Dir.
func segmentPath(path string, sep byte) (segments []string, noLeadingSlash bool) {
	rest := path
	hasDrive := false

	if len(rest) >= 2 && isDriveLetter(rest[0]) && rest[1] == ':' {
		segments = append(segments, rest[:2])
		rest = rest[2:]
		hasDrive = true
	}

	noLeadingSlash = !hasDrive && (len(rest) == 0 || rest[0] != sep)

	start := 0
	for i := 0; i <= len(rest); i++ {
		if i == len(rest) || rest[i] == sep {
			if i > start {
				segments = append(segments, rest[start:i])
			}
			start = i + 1
		}
	}

	return segments, noLeadingSlash
}

func isDriveLetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}
