// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitybundle

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/google/uuid"

	"github.com/grove-tools/unitybundle/log"
)

// Options configures a bundle open: a handful of behavior toggles plus an
// injectable logger.
type Options struct {
	// Logger receives every diagnostic the decoder emits. Defaults to a
	// stderr logger filtered at Warn when nil.
	Logger log.Logger

	// DefaultResourcesDir is where structs.dat/strings.dat/classes.json
	// are looked up. Defaults to "res".
	DefaultResourcesDir string

	// DisableEngineProjection skips wrapping compound values that match a
	// recognized engine class as an EngineObject, returning a bare
	// *OrderedMap instead.
	DisableEngineProjection bool
}

// Signature identifies which bundle container variant was parsed and
// owns the read source everything downstream reads from.
type Signature interface {
	isSignature()
}

// UnityFSSignature wraps a lazily-decompressing block-storage reader.
type UnityFSSignature struct {
	Blocks *BlockStorageReader
}

// UnityWebSignature wraps the still-compressed LZMA payload of a UnityWeb
// bundle. It is rewritten to UnityRawCompressedSignature once the payload
// has been decompressed.
type UnityWebSignature struct {
	Data []byte
}

// UnityRawSignature wraps a buffered, uncompressed stream.
type UnityRawSignature struct {
	Reader *bytes.Reader
}

// UnityRawCompressedSignature wraps an owned, decompressed byte buffer.
type UnityRawCompressedSignature struct {
	Data []byte
}

// UnityArchiveSignature marks a recognized but unsupported container.
type UnityArchiveSignature struct{}

// UnknownSignature marks an unrecognized signature string.
type UnknownSignature struct {
	Raw string
}

func (UnityFSSignature) isSignature()            {}
func (UnityWebSignature) isSignature()           {}
func (UnityRawSignature) isSignature()           {}
func (UnityRawCompressedSignature) isSignature() {}
func (UnityArchiveSignature) isSignature()       {}
func (UnknownSignature) isSignature()            {}

// Bundle is a parsed AssetBundle container.
type Bundle struct {
	Name             string
	FormatVersion    uint32
	TargetVersion    string
	GeneratorVersion string
	GUID             uuid.UUID
	Signature        Signature
	Assets           []*Asset

	opts   *Options
	logger *log.Helper
	file   *os.File
	mapped mmap.MMap
}

// defaultLogger builds the stderr/Warn logger every Bundle uses unless
// Options.Logger overrides it.
func defaultLogger(opts *Options) *log.Helper {
	if opts != nil && opts.Logger != nil {
		return log.NewHelper(opts.Logger)
	}
	return log.NewHelper(log.NewFilter(log.NewStdLogger(os.Stderr), log.FilterLevel(log.LevelWarn)))
}

// OpenBundle memory-maps path read-only and parses its header, dispatching
// on the leading NUL-terminated signature string.
func OpenBundle(path string, opts *Options) (*Bundle, error) {
	if opts == nil {
		opts = &Options{}
	}
	setDefaultResourcesDir(opts.DefaultResourcesDir)

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}

	b := &Bundle{
		opts:   opts,
		logger: defaultLogger(opts),
		file:   f,
		mapped: m,
	}

	if err := b.parse(m); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// NewBytes parses a bundle held entirely in memory, for callers that
// already have the file contents (and for the fuzz entry point).
func NewBytes(data []byte, opts *Options) (*Bundle, error) {
	if opts == nil {
		opts = &Options{}
	}
	setDefaultResourcesDir(opts.DefaultResourcesDir)

	b := &Bundle{
		opts:   opts,
		logger: defaultLogger(opts),
	}
	if err := b.parse(data); err != nil {
		return nil, err
	}
	return b, nil
}

// parse dispatches on the leading NUL-terminated signature string of data.
func (b *Bundle) parse(data []byte) error {
	src := bytes.NewReader(data)
	r := NewReader(src, BigEndian)

	sig, err := r.ReadCString()
	if err != nil {
		return err
	}

	switch sig {
	case "UnityFS":
		return b.parseUnityFS(r, data)
	case "UnityRaw":
		return b.parseRawOrWeb(r, data, false)
	case "UnityWeb":
		return b.parseRawOrWeb(r, data, true)
	case "UnityArchive":
		b.Signature = UnityArchiveSignature{}
		return ErrFeatureNotImplemented
	default:
		return ErrInvalidSignature
	}
}

// Close releases the underlying memory mapping and file handle.
func (b *Bundle) Close() error {
	var err error
	if b.mapped != nil {
		err = b.mapped.Unmap()
	}
	if b.file != nil {
		if cerr := b.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// NumAssets reports the number of assets enumerated in the bundle.
func (b *Bundle) NumAssets() int { return len(b.Assets) }

// IsCompressed reports whether the bundle's signature variant stores its
// payload LZMA-compressed in place (true only for UnityWeb).
func (b *Bundle) IsCompressed() bool {
	_, ok := b.Signature.(UnityWebSignature)
	return ok
}

// ResolveAsset triggers lazy loading of asset i if not already loaded.
func (b *Bundle) ResolveAsset(i int) error {
	if i < 0 || i >= len(b.Assets) {
		return &AssetError{Msg: fmt.Sprintf("asset index %d out of range", i)}
	}
	return b.Assets[i].load()
}

// parseUnityFS parses a UnityFS container: format preamble, block index
// decompression, block-index parse, asset enumeration over a
// BlockStorageReader.
func (b *Bundle) parseUnityFS(r *Reader, data []byte) error {
	format, err := r.ReadU32()
	if err != nil {
		return err
	}
	b.FormatVersion = format

	target, err := r.ReadCString()
	if err != nil {
		return err
	}
	b.TargetVersion = target

	gen, err := r.ReadCString()
	if err != nil {
		return err
	}
	b.GeneratorVersion = gen

	if _, err := r.ReadI64(); err != nil { // fs_file_size
		return err
	}
	ciBlockSize, err := r.ReadU32()
	if err != nil {
		return err
	}
	uiBlockSize, err := r.ReadU32()
	if err != nil {
		return err
	}

	flags, err := r.ReadU32()
	if err != nil {
		return err
	}

	ciData, err := r.ReadBytes(int(ciBlockSize))
	if err != nil {
		return err
	}

	indexBlock := blockInfo{uncompressedSize: uiBlockSize, compressedSize: ciBlockSize, flags: int16(flags)}
	indexData, err := indexBlock.decompress(ciData)
	if err != nil {
		return err
	}

	indexReader := NewReader(bytes.NewReader(indexData), BigEndian)
	guidBytes, err := indexReader.ReadBytes(16)
	if err != nil {
		return err
	}
	guid, err := uuid.FromBytes(guidBytes)
	if err != nil {
		return &UUIDError{Msg: err.Error()}
	}
	b.GUID = guid

	numBlocks, err := indexReader.ReadU32()
	if err != nil {
		return err
	}
	blocks := make([]blockInfo, numBlocks)
	for i := range blocks {
		uncompressed, err := indexReader.ReadU32()
		if err != nil {
			return err
		}
		compressed, err := indexReader.ReadU32()
		if err != nil {
			return err
		}
		blockFlags, err := indexReader.ReadI16()
		if err != nil {
			return err
		}
		blocks[i] = blockInfo{uncompressedSize: uncompressed, compressedSize: compressed, flags: blockFlags}
	}

	numNodes, err := indexReader.ReadU32()
	if err != nil {
		return err
	}
	type assetNode struct {
		offset int64
		size   int64
		status uint32
		name   string
	}
	nodes := make([]assetNode, numNodes)
	for i := range nodes {
		offset, err := indexReader.ReadI64()
		if err != nil {
			return err
		}
		size, err := indexReader.ReadI64()
		if err != nil {
			return err
		}
		status, err := indexReader.ReadU32()
		if err != nil {
			return err
		}
		name, err := indexReader.ReadCString()
		if err != nil {
			return err
		}
		nodes[i] = assetNode{offset: offset, size: size, status: status, name: name}
	}

	blockReader, err := NewBlockStorageReader(bytes.NewReader(data[r.Tell():]), blocks)
	if err != nil {
		return err
	}
	b.Signature = UnityFSSignature{Blocks: blockReader}

	blockEndianReader := NewReader(blockReader, BigEndian)
	for _, n := range nodes {
		asset := newAsset(n.name, n.offset, blockEndianReader, b.logger)
		asset.rawProjection = b.opts.DisableEngineProjection
		b.Assets = append(b.Assets, asset)
	}
	if len(b.Assets) > 0 {
		b.Name = b.Assets[0].Name
	}
	return nil
}

// parseRawOrWeb parses a UnityRaw/UnityWeb container. web selects the
// LZMA-alone-compressed-payload variant.
func (b *Bundle) parseRawOrWeb(r *Reader, data []byte, web bool) error {
	format, err := r.ReadU32()
	if err != nil {
		return err
	}
	b.FormatVersion = format

	target, err := r.ReadCString()
	if err != nil {
		return err
	}
	b.TargetVersion = target

	gen, err := r.ReadCString()
	if err != nil {
		return err
	}
	b.GeneratorVersion = gen

	if _, err := r.ReadI32(); err != nil { // file_size
		return err
	}
	headerSize, err := r.ReadI32()
	if err != nil {
		return err
	}
	if _, err := r.ReadI32(); err != nil { // file_count
		return err
	}
	if _, err := r.ReadI32(); err != nil { // bundle_count
		return err
	}

	if format >= 2 {
		if _, err := r.ReadI32(); err != nil { // bundle_size
			return err
		}
	}
	if format >= 3 {
		if _, err := r.ReadI32(); err != nil { // uncompressed_bundle_size
			return err
		}
	}
	if headerSize >= 60 {
		if _, err := r.ReadI32(); err != nil { // compressed_file_size
			return err
		}
		if _, err := r.ReadI32(); err != nil { // asset_header_size
			return err
		}
	}
	if _, err := r.ReadI32(); err != nil {
		return err
	}
	if _, err := r.ReadI8(); err != nil {
		return err
	}

	name, err := r.ReadCString()
	if err != nil {
		return err
	}
	b.Name = name

	if _, err := r.Seek(int64(headerSize), 0); err != nil {
		return err
	}

	numAssets := 1
	if web {
		b.Signature = UnityWebSignature{Data: data[r.Tell():]}
	} else {
		var n int32
		n, err = r.ReadI32()
		if err != nil {
			return err
		}
		numAssets = int(n)
		b.Signature = UnityRawSignature{Reader: bytes.NewReader(data[r.Tell():])}
	}

	return b.loadRawAssets(numAssets)
}

// loadRawAssets enumerates the Raw/Web assets. A UnityWeb payload is
// LZMA-decompressed into an owned buffer first and the signature rewritten
// to the decompressed variant. Iteration beyond asset 0 is a known
// incomplete path.
func (b *Bundle) loadRawAssets(numAssets int) error {
	if numAssets < 1 {
		numAssets = 1
	}

	var src io.ReadSeeker
	switch sig := b.Signature.(type) {
	case UnityWebSignature:
		decompressed, err := decodeRawLZMAToEOF(sig.Data)
		if err != nil {
			return err
		}
		b.Signature = UnityRawCompressedSignature{Data: decompressed}
		src = bytes.NewReader(decompressed)
	case UnityRawSignature:
		src = sig.Reader
	default:
		return &AssetError{Msg: "loadRawAssets called on non-Raw/Web signature"}
	}

	r := NewReader(src, BigEndian)
	name, err := r.ReadCString()
	if err != nil {
		return err
	}
	headerSize, err := r.ReadU32()
	if err != nil {
		return err
	}
	if _, err := r.ReadU32(); err != nil { // size
		return err
	}

	bundleOffset := r.Tell() + int64(headerSize) - 4
	if hasResourceSuffix(name) {
		bundleOffset -= int64(len(name))
	}

	asset := newAsset(name, bundleOffset, r, b.logger)
	asset.rawProjection = b.opts.DisableEngineProjection
	b.Assets = append(b.Assets, asset)
	if b.Name == "" {
		b.Name = name
	}

	// TODO: iterating assets 2..numAssets needs the cursor-advance rule
	// between entries, which the format leaves unspecified; only the first
	// asset is enumerated.
	return nil
}
