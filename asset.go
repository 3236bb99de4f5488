// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitybundle

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/grove-tools/unitybundle/log"
)

// AssetRef is one entry of an asset's reference table: an external asset
// this asset's ObjectPointers may point into.
type AssetRef struct {
	AssetPath string
	GUID      uuid.UUID
	AssetType int32
	FilePath  string
}

// AddEntry is one record of the per-asset "adds" table. Its meaning is
// undocumented in the wire format; the pairs are stored verbatim.
type AddEntry struct {
	ID  int64
	Add int32
}

// Asset is one SerializedFile node of a bundle: a lazily loaded object
// table plus the type metadata needed to decode it.
type Asset struct {
	Name          string
	BundleOffset  int64
	Format        uint32
	LongObjectIDs bool
	DataOffset    uint32

	Tree    *TypeMetadata
	Refs    []AssetRef
	Adds    []AddEntry
	Objects map[int64]*ObjectInfo

	loaded        bool
	endianness    Endianness
	rawProjection bool
	typesCache    map[int64]*TypeNode
	typenames     map[int64]string
	reader        *Reader
	logger        *log.Helper
}

// newAsset constructs an Asset anchored at bundleOffset within r. Loading
// of its header and object table is deferred to the first call that needs
// it (load).
func newAsset(name string, bundleOffset int64, r *Reader, logger *log.Helper) *Asset {
	return &Asset{
		Name:         name,
		BundleOffset: bundleOffset,
		Format:       0,
		Objects:      make(map[int64]*ObjectInfo),
		endianness:   BigEndian,
		typesCache:   make(map[int64]*TypeNode),
		typenames:    make(map[int64]string),
		reader:       r,
		logger:       logger,
	}
}

// load parses the asset header, type metadata, object table, add table and
// reference table. It is idempotent.
func (a *Asset) load() error {
	if a.loaded {
		return nil
	}

	if hasResourceSuffix(a.Name) {
		a.loaded = true
		return nil
	}

	r := a.reader
	r.SetEndianness(BigEndian)
	if _, err := r.Seek(a.BundleOffset, 0); err != nil {
		return err
	}

	if _, err := r.ReadU32(); err != nil { // metadata_size
		return err
	}
	if _, err := r.ReadU32(); err != nil { // file_size
		return err
	}
	format, err := r.ReadU32()
	if err != nil {
		return err
	}
	a.Format = format

	dataOffset, err := r.ReadU32()
	if err != nil {
		return err
	}
	a.DataOffset = dataOffset

	a.endianness = BigEndian
	if format >= 9 {
		endian, err := r.ReadU32()
		if err != nil {
			return err
		}
		if endian == 0 {
			a.endianness = LittleEndian
		}
		r.SetEndianness(a.endianness)
	}

	defaultStrings, _ := defaultStringPoolBytes()
	tree, err := parseTypeMetadata(r, format, defaultStrings)
	if err != nil {
		return err
	}
	a.Tree = tree

	if format >= 7 && format <= 13 {
		longIDs, err := r.ReadU32()
		if err != nil {
			return err
		}
		a.LongObjectIDs = longIDs != 0
	}

	numObjects, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < numObjects; i++ {
		if format >= 14 {
			r.Align()
		}
		info, err := newObjectInfo(a, r)
		if err != nil {
			return err
		}
		if err := a.registerObject(info); err != nil {
			return err
		}
	}

	if format >= 11 {
		numAdds, err := r.ReadU32()
		if err != nil {
			return err
		}
		for i := uint32(0); i < numAdds; i++ {
			if format >= 14 {
				r.Align()
			}
			id, err := a.readID(r)
			if err != nil {
				return err
			}
			add, err := r.ReadI32()
			if err != nil {
				return err
			}
			a.Adds = append(a.Adds, AddEntry{ID: id, Add: add})
		}
	}

	if format >= 6 {
		numRefs, err := r.ReadU32()
		if err != nil {
			return err
		}
		for i := uint32(0); i < numRefs; i++ {
			ref, err := a.readAssetRef(r)
			if err != nil {
				return err
			}
			a.Refs = append(a.Refs, ref)
		}
	}

	trailing, err := r.ReadCString()
	if err != nil {
		return err
	}
	if trailing != "" {
		return &AssetError{Msg: fmt.Sprintf("expected empty trailing string, got %q", trailing)}
	}

	for _, info := range a.Objects {
		name, err := info.resolveTypeName(a)
		if err != nil {
			return err
		}
		a.typenames[info.TypeID] = name
	}

	a.loaded = true
	return nil
}

// readID reads an object/add identifier at the width the format dictates:
// 64 bits from format 14 on, 32 bits (sign-extended) before.
func (a *Asset) readID(r *Reader) (int64, error) {
	if a.Format >= 14 {
		return r.ReadI64()
	}
	id, err := r.ReadI32()
	return int64(id), err
}

func (a *Asset) readAssetRef(r *Reader) (AssetRef, error) {
	path, err := r.ReadCString()
	if err != nil {
		return AssetRef{}, err
	}
	guidBytes, err := r.ReadBytes(16)
	if err != nil {
		return AssetRef{}, err
	}
	id, err := uuid.FromBytes(guidBytes)
	if err != nil {
		return AssetRef{}, &UUIDError{Msg: err.Error()}
	}
	assetType, err := r.ReadI32()
	if err != nil {
		return AssetRef{}, err
	}
	filePath, err := r.ReadCString()
	if err != nil {
		return AssetRef{}, err
	}
	return AssetRef{AssetPath: path, GUID: id, AssetType: assetType, FilePath: filePath}, nil
}

// registerObject adds info to the object table, resolving its type tree
// through the fallback chain. Duplicate path ids are fatal.
func (a *Asset) registerObject(info *ObjectInfo) error {
	cached := false
	if a.Tree != nil {
		if node, ok := a.Tree.Trees[int32(info.TypeID)]; ok {
			a.typesCache[info.TypeID] = node
			cached = true
		}
	}
	if !cached {
		if _, ok := a.typesCache[info.TypeID]; ok {
			cached = true
		}
	}
	if !cached {
		if def, err := DefaultTypeMetadata(); err == nil {
			if node, ok := def.Trees[int32(info.ClassID)]; ok {
				a.typesCache[info.TypeID] = node
				cached = true
			}
		}
	}
	if !cached && a.logger != nil {
		a.logger.Warnf("class %d is absent from structs.dat (path_id=%d type_id=%d)",
			info.ClassID, info.PathID, info.TypeID)
	}

	if _, exists := a.Objects[info.PathID]; exists {
		return &AssetError{Msg: fmt.Sprintf("Duplicate asset object: path_id=%d", info.PathID)}
	}
	a.Objects[info.PathID] = info
	return nil
}

// GetFileByID returns the asset's own name for index 0 (self) or the
// referenced file's path otherwise.
func (a *Asset) GetFileByID(i int) (string, error) {
	if i == 0 {
		return a.Name, nil
	}
	idx := i - 1
	if idx < 0 || idx >= len(a.Refs) {
		return "", &AssetError{Msg: fmt.Sprintf("reference index %d out of range", i)}
	}
	return a.Refs[idx].FilePath, nil
}

// Object returns the ObjectInfo registered under pathID, if any.
func (a *Asset) Object(pathID int64) (*ObjectInfo, bool) {
	info, ok := a.Objects[pathID]
	return info, ok
}

// ReadObject decodes the object registered under pathID into its generic
// ObjectValue tree.
func (a *Asset) ReadObject(pathID int64) (ObjectValue, error) {
	info, ok := a.Objects[pathID]
	if !ok {
		return nil, &AssetError{Msg: fmt.Sprintf("no object with path id %d", pathID)}
	}
	return info.readValue(a)
}

func hasResourceSuffix(name string) bool {
	const suffix = ".resource"
	return len(name) >= len(suffix) && name[len(name)-len(suffix):] == suffix
}
