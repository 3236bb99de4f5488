// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitybundle

import (
	"bytes"
	"fmt"
	"strconv"
)

// ObjectInfo is one entry of an asset's object table: where its body lives
// in the asset stream and how to find the TypeNode that decodes it.
// TypeName is resolved lazily since it can require reading the
// object's own value (the `m_Script` PPtr case for MonoBehaviour).
type ObjectInfo struct {
	PathID     int64
	DataOffset uint32
	Size       uint32
	TypeID     int64
	ClassID    int16
	Destroyed  bool

	typeName string
	resolved bool
}

// newObjectInfo parses one ObjectInfo header from r per the format-gated
// layout. asset supplies the long-object-id flag, the
// asset's base data_offset bias, and the format/class-id-table context
// format 17 needs.
func newObjectInfo(asset *Asset, r *Reader) (*ObjectInfo, error) {
	info := &ObjectInfo{}

	if asset.LongObjectIDs {
		id, err := r.ReadI64()
		if err != nil {
			return nil, err
		}
		info.PathID = id
	} else {
		id, err := asset.readID(r)
		if err != nil {
			return nil, err
		}
		info.PathID = id
	}

	dataOffset, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	info.DataOffset = dataOffset + asset.DataOffset

	size, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	info.Size = size

	if asset.Format < 17 {
		typeID, err := r.ReadI32()
		if err != nil {
			return nil, err
		}
		info.TypeID = int64(typeID)

		classID, err := r.ReadI16()
		if err != nil {
			return nil, err
		}
		info.ClassID = classID
	} else {
		typeIDIdx, err := r.ReadI32()
		if err != nil {
			return nil, err
		}
		idx := int(typeIDIdx)
		if asset.Tree == nil || idx < 0 || idx >= len(asset.Tree.ClassIDs) {
			return nil, &AssetError{Msg: fmt.Sprintf("object type index %d out of range", idx)}
		}
		classID := asset.Tree.ClassIDs[idx]
		info.TypeID = int64(classID)
		info.ClassID = int16(classID)
	}

	switch {
	case asset.Format <= 10:
		destroyed, err := r.ReadI16()
		if err != nil {
			return nil, err
		}
		info.Destroyed = destroyed != 0
	case asset.Format <= 16:
		if _, err := r.ReadI16(); err != nil { // unknown
			return nil, err
		}
		if asset.Format >= 15 {
			if _, err := r.ReadU8(); err != nil { // unknown
				return nil, err
			}
		}
	}

	return info, nil
}

// TypeName resolves and returns the object's class name.
func (o *ObjectInfo) TypeName(asset *Asset) (string, error) {
	return o.resolveTypeName(asset)
}

// Read decodes the object's body into its generic ObjectValue tree.
func (o *ObjectInfo) Read(asset *Asset) (ObjectValue, error) {
	return o.readValue(asset)
}

// resolveTypeName resolves the object's class name, memoizing the
// result since the m_Script path requires a full object read.
func (o *ObjectInfo) resolveTypeName(asset *Asset) (string, error) {
	if o.resolved {
		return o.typeName, nil
	}
	if name, ok := asset.typenames[o.TypeID]; ok {
		o.typeName = name
		o.resolved = true
		return name, nil
	}

	if o.TypeID > 0 {
		name, ok := ClassIDName(int32(o.TypeID))
		if !ok {
			name = fmt.Sprintf("<Unknown %d>", o.TypeID)
		}
		o.typeName = name
		o.resolved = true
		return name, nil
	}

	if name, ok := scriptClassName(asset, o); ok {
		o.typeName = name
		o.resolved = true
		return name, nil
	}

	if asset.Tree != nil {
		if node, ok := asset.Tree.Trees[int32(o.TypeID)]; ok {
			o.typeName = node.TypeName
			o.resolved = true
			return node.TypeName, nil
		}
	}

	name := strconv.FormatInt(o.TypeID, 10)
	o.typeName = name
	o.resolved = true
	return name, nil
}

// scriptClassName attempts the m_Script ObjectPointer path: read the
// object's own value, pull its m_Script field, resolve it, and read the
// resolved MonoScript's m_ClassName.
func scriptClassName(asset *Asset, o *ObjectInfo) (string, bool) {
	val, err := o.readValue(asset)
	if err != nil {
		return "", false
	}
	m, err := AsMap(val)
	if err != nil {
		return "", false
	}
	scriptVal, ok := m.Get("m_Script")
	if !ok {
		return "", false
	}
	ptr, err := AsObjectPointer(scriptVal)
	if err != nil {
		return "", false
	}
	resolved, err := ptr.Resolve(asset, nil)
	if err != nil {
		return "", false
	}
	scriptMap, err := AsMap(resolved)
	if err != nil {
		return "", false
	}
	classNameVal, ok := scriptMap.Get("m_ClassName")
	if !ok {
		return "", false
	}
	name, err := AsString(classNameVal)
	if err != nil {
		return "", false
	}
	return name, true
}

// typeTree selects the type tree used to decode this object's value,
// walking the per-asset and default-metadata fallbacks in order.
func (o *ObjectInfo) typeTree(asset *Asset) (*TypeNode, error) {
	if o.TypeID < 0 {
		if asset.Tree != nil {
			if node, ok := asset.Tree.Trees[int32(o.TypeID)]; ok {
				return node, nil
			}
			if node, ok := asset.Tree.Trees[int32(o.ClassID)]; ok {
				return node, nil
			}
		}
		if def, err := DefaultTypeMetadata(); err == nil {
			if node, ok := def.Trees[int32(o.ClassID)]; ok {
				return node, nil
			}
		}
		if node, ok := asset.typesCache[o.TypeID]; ok {
			return node, nil
		}
		return nil, &AssetError{Msg: fmt.Sprintf("no type tree for object with type id %d, class id %d", o.TypeID, o.ClassID)}
	}

	if node, ok := asset.typesCache[o.TypeID]; ok {
		return node, nil
	}
	return nil, &AssetError{Msg: fmt.Sprintf("no type tree for object with type id %d", o.TypeID)}
}

// readValue copies this object's body out of the asset's stream and decodes
// it with the generic value reader. Reading from an isolated buffer keeps
// alignment relative to the object body, not the bundle.
func (o *ObjectInfo) readValue(asset *Asset) (ObjectValue, error) {
	tree, err := o.typeTree(asset)
	if err != nil {
		return nil, err
	}
	if _, err := asset.reader.Seek(asset.BundleOffset+int64(o.DataOffset), 0); err != nil {
		return nil, err
	}
	body, err := asset.reader.ReadBytes(int(o.Size))
	if err != nil {
		return nil, err
	}
	br := NewReader(bytes.NewReader(body), asset.endianness)
	return readValue(asset, tree, br)
}
