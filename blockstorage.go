// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitybundle

import (
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// Codec identifies a UnityFS block's compression scheme: the low 6 bits of
// a block's flags field.
type Codec uint8

// Recognized block codecs.
const (
	CodecNone Codec = iota
	CodecLZMA
	CodecLZ4
	CodecLZ4HC
	CodecLZHAM
)

func codecFromFlags(flags int16) Codec {
	switch uint8(flags) & 0x3F {
	case 0:
		return CodecNone
	case 1:
		return CodecLZMA
	case 2:
		return CodecLZ4
	case 3:
		return CodecLZ4HC
	case 4:
		return CodecLZHAM
	default:
		return Codec(0xFF)
	}
}

// blockInfo describes one compressed block in a UnityFS block index.
type blockInfo struct {
	uncompressedSize uint32
	compressedSize   uint32
	flags            int16
}

func (b blockInfo) codec() Codec { return codecFromFlags(b.flags) }

func (b blockInfo) decompress(data []byte) ([]byte, error) {
	switch b.codec() {
	case CodecNone:
		return data, nil
	case CodecLZMA:
		return decodeRawLZMA(data, int(b.uncompressedSize))
	case CodecLZ4, CodecLZ4HC:
		return decodeLZ4(data, int(b.uncompressedSize))
	case CodecLZHAM:
		return nil, ErrCompressionNotImplemented
	default:
		return nil, ErrCompressionNotImplemented
	}
}

// decodeLZ4 decompresses a raw LZ4 block (no frame header) to exactly want
// bytes, per the UnityFS block format's expectation that every block holds
// its declared uncompressed size. Grounded on pierrec/lz4/v4's block API
// (UncompressBlock), the library _examples/arloliu-mebo wires for its own
// block format.
func decodeLZ4(data []byte, want int) ([]byte, error) {
	out := make([]byte, want)
	n, err := lz4.UncompressBlock(data, out)
	if err != nil {
		return nil, &LZ4DecompressionError{Err: err}
	}
	if n != want {
		return nil, &LZ4DecompressionError{Err: fmt.Errorf("expected %d bytes, got %d", want, n)}
	}
	return out, nil
}

// BlockStorageReader presents a seekable stream whose virtual coordinates
// are the concatenation of the uncompressed payloads of a UnityFS block
// index, lazily decompressing blocks on demand and caching the
// most recently touched one.
type BlockStorageReader struct {
	src    io.ReadSeeker
	blocks []blockInfo

	baseOffset   int64
	virtualSize  int64
	virtualPos   int64
	curBlockIdx  int
	curBlockBase int64
	curBlockData []byte
}

// NewBlockStorageReader constructs a reader over src (already positioned at
// the start of the compressed block payloads) given the block index parsed
// from the UnityFS header.
func NewBlockStorageReader(src io.ReadSeeker, blocks []blockInfo) (*BlockStorageReader, error) {
	base, err := src.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, b := range blocks {
		total += int64(b.uncompressedSize)
	}
	return &BlockStorageReader{
		src:         src,
		blocks:      blocks,
		baseOffset:  base,
		virtualSize: total,
		curBlockIdx: -1,
	}, nil
}

// Tell returns the current virtual cursor.
func (r *BlockStorageReader) Tell() int64 { return r.virtualPos }

// Align rounds the virtual cursor up to the next multiple of 4.
func (r *BlockStorageReader) Align() {
	old := r.virtualPos
	next := (old + 3) &^ 3
	if next > old {
		_, _ = r.Seek(next, io.SeekStart)
	}
}

// Seek repositions the virtual cursor. Decompression of the target block is
// deferred to the next Read.
func (r *BlockStorageReader) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = r.virtualPos + offset
	case io.SeekEnd:
		newPos = r.virtualSize + offset
	default:
		return 0, fmt.Errorf("unitybundle: invalid seek whence %d", whence)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("unitybundle: negative seek position %d", newPos)
	}
	r.virtualPos = newPos
	return newPos, nil
}

// seekToBlock ensures the block covering virtual position pos is the
// currently cached one, decompressing it if needed.
func (r *BlockStorageReader) seekToBlock(pos int64) error {
	if r.curBlockIdx >= 0 {
		size := int64(r.blocks[r.curBlockIdx].uncompressedSize)
		if pos >= r.curBlockBase && pos < r.curBlockBase+size {
			return nil
		}
	}

	var base int64
	var cumulative int64
	found := -1
	for i, b := range r.blocks {
		if cumulative+int64(b.uncompressedSize) > pos {
			found = i
			break
		}
		base += int64(b.compressedSize)
		cumulative += int64(b.uncompressedSize)
	}
	if found < 0 {
		r.curBlockIdx = -1
		r.curBlockData = nil
		return nil
	}

	if _, err := r.src.Seek(r.baseOffset+base, io.SeekStart); err != nil {
		return err
	}
	block := r.blocks[found]
	compressed := make([]byte, block.compressedSize)
	if _, err := io.ReadFull(r.src, compressed); err != nil {
		return err
	}
	decompressed, err := block.decompress(compressed)
	if err != nil {
		return err
	}
	r.curBlockIdx = found
	r.curBlockBase = cumulative
	r.curBlockData = decompressed
	return nil
}

// Read fills buf by walking across as many blocks as necessary, stopping at
// end of the virtual stream. Short reads at end-of-stream are legal.
func (r *BlockStorageReader) Read(buf []byte) (int, error) {
	total := 0
	for total < len(buf) && r.virtualPos < r.virtualSize {
		if err := r.seekToBlock(r.virtualPos); err != nil {
			return total, err
		}
		if r.curBlockIdx < 0 {
			break
		}
		offsetInBlock := r.virtualPos - r.curBlockBase
		remaining := int64(len(r.curBlockData)) - offsetInBlock
		if remaining <= 0 {
			break
		}
		n := copy(buf[total:], r.curBlockData[offsetInBlock:])
		if int64(n) > remaining {
			n = int(remaining)
		}
		total += n
		r.virtualPos += int64(n)
	}
	if total == 0 && len(buf) > 0 && r.virtualPos >= r.virtualSize {
		return 0, io.EOF
	}
	return total, nil
}

var _ io.ReadSeeker = (*BlockStorageReader)(nil)
