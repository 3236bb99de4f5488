// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitybundle

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

// decodeRawLZMA decompresses a UnityFS LZMA block. UnityFS stores the
// lzma-alone header minus its trailing 8-byte uncompressed-size field:
// one props byte encoding lc/lp/pb, then a 4-byte little-endian
// dict size, then the raw LZMA1 stream. We reconstruct the full classic
// header (inserting the caller-supplied uncompressedSize) and hand it to
// the standard lzma.Reader, which expects exactly that 13-byte header.
func decodeRawLZMA(data []byte, uncompressedSize int) ([]byte, error) {
	if len(data) < 5 {
		return nil, &LZMADecompressionError{Err: io.ErrUnexpectedEOF}
	}

	header := make([]byte, 13)
	copy(header[0:5], data[0:5])
	binary.LittleEndian.PutUint64(header[5:13], uint64(uncompressedSize))

	r, err := lzma.NewReader(io.MultiReader(bytes.NewReader(header), bytes.NewReader(data[5:])))
	if err != nil {
		return nil, &LZMADecompressionError{Err: err}
	}

	out := make([]byte, uncompressedSize)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, &LZMADecompressionError{Err: err}
	}
	return out, nil
}

// decodeRawLZMAToEOF decompresses a raw-LZMA stream of unknown output size,
// reading until the decoder reports EOF. Used for the UnityWeb bundle
// payload, which (unlike a UnityFS block) carries no separate
// uncompressed-size field for its decoder to target.
func decodeRawLZMAToEOF(data []byte) ([]byte, error) {
	if len(data) < 5 {
		return nil, &LZMADecompressionError{Err: io.ErrUnexpectedEOF}
	}

	header := make([]byte, 13)
	copy(header[0:5], data[0:5])
	for i := 5; i < 13; i++ {
		header[i] = 0xFF
	}

	r, err := lzma.NewReader(io.MultiReader(bytes.NewReader(header), bytes.NewReader(data[5:])))
	if err != nil {
		return nil, &LZMADecompressionError{Err: err}
	}

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, &LZMADecompressionError{Err: err}
	}
	return out, nil
}
