// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitybundle

import (
	"bytes"
	"fmt"
)

// TypeNode is one node of the recursive schema describing how an object's
// bytes decode into a tree of named fields and arrays. Once built it is
// immutable and shared by pointer across every object that references the
// owning class id.
type TypeNode struct {
	TypeName  string
	FieldName string
	Size      int32
	Index     uint32
	IsArray   bool
	Flags     int32
	Children  []*TypeNode
}

// PostAlign reports whether the reader must align to 4 bytes after
// consuming this node's value (flags bit 0x4000).
func (n *TypeNode) PostAlign() bool {
	if n == nil {
		return false
	}
	return n.Flags&0x4000 != 0
}

// TypeMetadata is the parsed schema header of one SerializedFile: the
// generator/platform preamble plus every class's type tree.
type TypeMetadata struct {
	GeneratorVersion string
	TargetPlatform   RuntimePlatform
	ClassIDs         []int32
	Hashes           map[int32][]byte
	Trees            map[int32]*TypeNode
}

// parseTypeMetadata reads a TypeMetadata blob from r. defaultStrings is
// the process-wide string pool; it may be nil when parsing the default
// blob itself.
func parseTypeMetadata(r *Reader, format uint32, defaultStrings []byte) (*TypeMetadata, error) {
	meta := &TypeMetadata{
		Hashes: make(map[int32][]byte),
		Trees:  make(map[int32]*TypeNode),
	}

	gen, err := r.ReadCString()
	if err != nil {
		return nil, &TypeError{Msg: "failed to read generator version: " + err.Error()}
	}
	meta.GeneratorVersion = gen

	platform, err := r.ReadU32()
	if err != nil {
		return nil, &TypeError{Msg: "failed to read target platform: " + err.Error()}
	}
	meta.TargetPlatform = platformFromU32(platform)

	if format >= 13 {
		hasTypeTrees, err := r.ReadBool()
		if err != nil {
			return nil, &TypeError{Msg: err.Error()}
		}
		numTypes, err := r.ReadU32()
		if err != nil {
			return nil, &TypeError{Msg: err.Error()}
		}
		for i := uint32(0); i < numTypes; i++ {
			classID, err := r.ReadI32()
			if err != nil {
				return nil, &TypeError{Msg: err.Error()}
			}
			if format >= 17 {
				if _, err := r.ReadU8(); err != nil { // unk0
					return nil, &TypeError{Msg: err.Error()}
				}
				scriptID, err := r.ReadI16()
				if err != nil {
					return nil, &TypeError{Msg: err.Error()}
				}
				if classID == 114 { // MonoBehaviour
					if scriptID >= 0 {
						classID = -2 - int32(scriptID)
					} else {
						classID = -1
					}
				}
			}

			hashSize := 0x10
			if classID < 0 {
				hashSize = 0x20
			}
			hash, err := r.ReadBytes(hashSize)
			if err != nil {
				return nil, &TypeError{Msg: err.Error()}
			}

			meta.ClassIDs = append(meta.ClassIDs, classID)
			meta.Hashes[classID] = hash

			if hasTypeTrees {
				tree, err := parseTypeNode(r, format, defaultStrings)
				if err != nil {
					return nil, err
				}
				meta.Trees[classID] = tree
			}
		}
	} else {
		numFields, err := r.ReadU32()
		if err != nil {
			return nil, &TypeError{Msg: err.Error()}
		}
		for i := uint32(0); i < numFields; i++ {
			classID, err := r.ReadI32()
			if err != nil {
				return nil, &TypeError{Msg: err.Error()}
			}
			meta.ClassIDs = append(meta.ClassIDs, classID)
			tree, err := parseTypeNode(r, format, defaultStrings)
			if err != nil {
				return nil, err
			}
			meta.Trees[classID] = tree
		}
	}

	return meta, nil
}

// parseTypeNode dispatches between the blob form (format 10 or >=12) and the
// old recursive form.
func parseTypeNode(r *Reader, format uint32, defaultStrings []byte) (*TypeNode, error) {
	if format == 10 || format >= 12 {
		return parseBlobForm(r, defaultStrings)
	}
	return parseOldForm(r)
}

// blobNodeRecord is the 24-byte-on-disk record describing one flattened
// TypeNode in the blob form.
type blobNodeRecord struct {
	version         int16
	depth           uint8
	isArray         uint8
	typeNameOffset  int32
	fieldNameOffset int32
	size            int32
	index           uint32
	flags           int32
}

// parseBlobForm parses the header + flat node table + local string pool
// layout and reassembles it into a tree by tracking node depth with a
// stack.
func parseBlobForm(r *Reader, defaultStrings []byte) (*TypeNode, error) {
	numNodes, err := r.ReadU32()
	if err != nil {
		return nil, &TypeError{Msg: err.Error()}
	}
	stringBufferBytes, err := r.ReadU32()
	if err != nil {
		return nil, &TypeError{Msg: err.Error()}
	}

	records := make([]blobNodeRecord, numNodes)
	for i := range records {
		version, err := r.ReadI16()
		if err != nil {
			return nil, &TypeError{Msg: err.Error()}
		}
		depth, err := r.ReadU8()
		if err != nil {
			return nil, &TypeError{Msg: err.Error()}
		}
		isArray, err := r.ReadU8()
		if err != nil {
			return nil, &TypeError{Msg: err.Error()}
		}
		typeNameOffset, err := r.ReadI32()
		if err != nil {
			return nil, &TypeError{Msg: err.Error()}
		}
		fieldNameOffset, err := r.ReadI32()
		if err != nil {
			return nil, &TypeError{Msg: err.Error()}
		}
		size, err := r.ReadI32()
		if err != nil {
			return nil, &TypeError{Msg: err.Error()}
		}
		index, err := r.ReadU32()
		if err != nil {
			return nil, &TypeError{Msg: err.Error()}
		}
		flags, err := r.ReadI32()
		if err != nil {
			return nil, &TypeError{Msg: err.Error()}
		}
		records[i] = blobNodeRecord{version, depth, isArray, typeNameOffset, fieldNameOffset, size, index, flags}
	}

	localPool, err := r.ReadBytes(int(stringBufferBytes))
	if err != nil {
		return nil, &TypeError{Msg: err.Error()}
	}

	resolveName := func(offset int32) string {
		if offset < 0 {
			idx := offset & 0x7FFFFFFF
			return cStringAt(defaultStrings, int(idx))
		}
		return cStringAt(localPool, int(offset))
	}

	// Tree assembly: a node at depth d is a child of the most recent node
	// at depth d-1. We keep a stack of (node, depth) and, on encountering a
	// node at depth d, pop until the stack top is at depth d-1, attaching
	// each popped node to the new top as we go.
	type stackEntry struct {
		node  *TypeNode
		depth int
	}
	var stack []stackEntry

	for _, rec := range records {
		node := &TypeNode{
			TypeName:  resolveName(rec.typeNameOffset),
			FieldName: resolveName(rec.fieldNameOffset),
			Size:      rec.size,
			Index:     rec.index,
			IsArray:   rec.isArray != 0,
			Flags:     rec.flags,
		}
		depth := int(rec.depth)

		for len(stack) > 0 && stack[len(stack)-1].depth >= depth {
			popped := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return nil, &TypeError{Msg: "Failed to parse typetree"}
			}
			parent := &stack[len(stack)-1]
			parent.node.Children = append(parent.node.Children, popped.node)
		}

		// The new node must hang off a parent exactly one level up; a
		// depth-d node with no depth-(d-1) ancestor is malformed.
		if len(stack) == 0 && depth != 0 {
			return nil, &TypeError{Msg: "Failed to parse typetree"}
		}
		if len(stack) > 0 && stack[len(stack)-1].depth != depth-1 {
			return nil, &TypeError{Msg: "Failed to parse typetree"}
		}

		stack = append(stack, stackEntry{node: node, depth: depth})
	}

	if len(stack) == 0 {
		return nil, &TypeError{Msg: "Failed to parse typetree"}
	}
	for len(stack) > 1 {
		popped := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		parent := &stack[len(stack)-1]
		parent.node.Children = append(parent.node.Children, popped.node)
	}

	return stack[0].node, nil
}

// parseOldForm parses the pre-blob recursive TypeNode encoding.
func parseOldForm(r *Reader) (*TypeNode, error) {
	typeName, err := r.ReadCString()
	if err != nil {
		return nil, &TypeError{Msg: err.Error()}
	}
	fieldName, err := r.ReadCString()
	if err != nil {
		return nil, &TypeError{Msg: err.Error()}
	}
	size, err := r.ReadI32()
	if err != nil {
		return nil, &TypeError{Msg: err.Error()}
	}
	index, err := r.ReadU32()
	if err != nil {
		return nil, &TypeError{Msg: err.Error()}
	}
	isArrayFlag, err := r.ReadI32()
	if err != nil {
		return nil, &TypeError{Msg: err.Error()}
	}
	if _, err := r.ReadI32(); err != nil { // version, unused downstream
		return nil, &TypeError{Msg: err.Error()}
	}
	flags, err := r.ReadI32()
	if err != nil {
		return nil, &TypeError{Msg: err.Error()}
	}
	numChildren, err := r.ReadU32()
	if err != nil {
		return nil, &TypeError{Msg: err.Error()}
	}

	node := &TypeNode{
		TypeName:  typeName,
		FieldName: fieldName,
		Size:      size,
		Index:     index,
		IsArray:   isArrayFlag == 1,
		Flags:     flags,
	}
	for i := uint32(0); i < numChildren; i++ {
		child, err := parseOldForm(r)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// cStringAt scans pool for a NUL-terminated string starting at offset,
// returning "" if offset is out of range.
func cStringAt(pool []byte, offset int) string {
	if offset < 0 || offset >= len(pool) {
		return ""
	}
	end := bytes.IndexByte(pool[offset:], 0)
	if end < 0 {
		return string(pool[offset:])
	}
	return string(pool[offset : offset+end])
}

func (n *TypeNode) String() string {
	return fmt.Sprintf("<%s %s>", n.TypeName, n.FieldName)
}
