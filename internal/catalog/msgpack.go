// Copyright 2025 Bareos Community
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// encodeMsgpack renders v as msgpack with sorted map keys, for
// deterministic, diffable fixture output.
func encodeMsgpack(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := msgpack.NewEncoder(buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeMsgpackInto decodes msgpack data into v.
func decodeMsgpackInto(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}
