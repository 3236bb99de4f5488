// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitybundle

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func leaf(typeName, fieldName string, size int32) *TypeNode {
	return &TypeNode{TypeName: typeName, FieldName: fieldName, Size: size}
}

func TestReadValuePrimitives(t *testing.T) {

	asset := &Asset{}

	tests := []struct {
		node       *TypeNode
		endianness Endianness
		data       []byte
		out        ObjectValue
	}{
		{leaf("bool", "m_Enabled", 1), BigEndian, []byte{0x01}, BoolValue(true)},
		{leaf("bool", "m_Enabled", 1), BigEndian, []byte{0x00}, BoolValue(false)},
		{leaf("UInt8", "m_Byte", 1), BigEndian, []byte{0xAB}, U8Value(0xAB)},
		{leaf("SInt8", "m_SByte", 1), BigEndian, []byte{0xFF}, I8Value(-1)},
		{leaf("UInt16", "m_Short", 2), BigEndian, []byte{0x01, 0x02}, U16Value(0x0102)},
		{leaf("SInt16", "m_Short", 2), LittleEndian, []byte{0xFE, 0xFF}, I16Value(-2)},
		{leaf("UInt32", "m_Int", 4), BigEndian, []byte{0, 0, 0, 7}, U32Value(7)},
		{leaf("unsigned int", "m_Int", 4), LittleEndian, []byte{7, 0, 0, 0}, U32Value(7)},
		{leaf("int", "m_Int", 4), LittleEndian, []byte{0xFF, 0xFF, 0xFF, 0xFF}, I32Value(-1)},
		{leaf("SInt64", "m_Long", 8), BigEndian, []byte{0, 0, 0, 0, 0, 0, 0, 9}, I64Value(9)},
		{leaf("UInt64", "m_Long", 8), LittleEndian, []byte{9, 0, 0, 0, 0, 0, 0, 0}, U64Value(9)},
		{leaf("float", "m_F", 4), BigEndian, []byte{0x3F, 0x80, 0x00, 0x00}, F32Value(1.0)},
	}

	for _, tt := range tests {
		r := NewReader(bytes.NewReader(tt.data), tt.endianness)
		got, err := readValue(asset, tt.node, r)
		if err != nil {
			t.Errorf("readValue(%s) failed, reason: %v", tt.node.TypeName, err)
			continue
		}
		if got != tt.out {
			t.Errorf("readValue(%s) got %v, want %v", tt.node.TypeName, got, tt.out)
		}
	}
}

func TestReadValueString(t *testing.T) {

	asset := &Asset{}
	node := &TypeNode{
		TypeName:  "string",
		FieldName: "m_Name",
		Size:      -1,
		Children: []*TypeNode{
			{TypeName: "Array", FieldName: "Array", Size: -1, IsArray: true, Flags: 0x4000},
		},
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(3))
	buf.WriteString("tex")
	buf.Write([]byte{0xCC}) // padding the post-align must skip

	r := NewReader(bytes.NewReader(buf.Bytes()), BigEndian)
	got, err := readValue(asset, node, r)
	if err != nil {
		t.Fatalf("readValue failed, reason: %v", err)
	}
	if got != StringValue("tex") {
		t.Errorf("readValue got %v, want tex", got)
	}
	// 4-byte length + 3 bytes of text, aligned up to 8.
	if r.Tell() != 8 {
		t.Errorf("Tell after string got %d, want 8", r.Tell())
	}
}

func TestReadValueByteArray(t *testing.T) {

	asset := &Asset{}
	node := &TypeNode{
		TypeName:  "TypelessData",
		FieldName: "image data",
		Size:      -1,
		Children: []*TypeNode{
			{
				TypeName:  "Array",
				FieldName: "Array",
				Size:      -1,
				IsArray:   true,
				Children: []*TypeNode{
					leaf("SInt32", "size", 4),
					leaf("UInt8", "data", 1),
				},
			},
		},
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(4))
	buf.Write([]byte{1, 2, 3, 4})

	r := NewReader(bytes.NewReader(buf.Bytes()), BigEndian)
	got, err := readValue(asset, node, r)
	if err != nil {
		t.Fatalf("readValue failed, reason: %v", err)
	}
	arr, err := AsU8Array(got)
	if err != nil {
		t.Fatalf("AsU8Array failed, reason: %v", err)
	}
	if !bytes.Equal(arr, []byte{1, 2, 3, 4}) {
		t.Errorf("byte array got %v", arr)
	}
}

func TestReadValueTypedArray(t *testing.T) {

	asset := &Asset{}
	node := &TypeNode{
		TypeName:  "vector",
		FieldName: "m_Indices",
		Size:      -1,
		Children: []*TypeNode{
			{
				TypeName:  "Array",
				FieldName: "Array",
				Size:      -1,
				IsArray:   true,
				Children: []*TypeNode{
					leaf("SInt32", "size", 4),
					leaf("SInt32", "data", 4),
				},
			},
		},
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(3))
	for _, v := range []int32{10, -20, 30} {
		binary.Write(&buf, binary.BigEndian, v)
	}

	r := NewReader(bytes.NewReader(buf.Bytes()), BigEndian)
	got, err := readValue(asset, node, r)
	if err != nil {
		t.Fatalf("readValue failed, reason: %v", err)
	}
	arr, err := AsArray(got)
	if err != nil {
		t.Fatalf("AsArray failed, reason: %v", err)
	}
	if len(arr) != 3 || arr[1] != I32Value(-20) {
		t.Errorf("typed array got %v", arr)
	}
}

func TestReadValuePair(t *testing.T) {

	asset := &Asset{}
	node := &TypeNode{
		TypeName:  "pair",
		FieldName: "data",
		Size:      -1,
		Children: []*TypeNode{
			leaf("SInt32", "first", 4),
			leaf("SInt32", "second", 4),
		},
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, int32(1))
	binary.Write(&buf, binary.BigEndian, int32(2))

	r := NewReader(bytes.NewReader(buf.Bytes()), BigEndian)
	got, err := readValue(asset, node, r)
	if err != nil {
		t.Fatalf("readValue failed, reason: %v", err)
	}
	pair, ok := got.(PairValue)
	if !ok {
		t.Fatalf("readValue got %T, want PairValue", got)
	}
	if pair.First != I32Value(1) || pair.Second != I32Value(2) {
		t.Errorf("pair got %v, %v", pair.First, pair.Second)
	}
}

func TestReadValuePairWrongArity(t *testing.T) {

	asset := &Asset{}
	node := &TypeNode{
		TypeName:  "pair",
		FieldName: "data",
		Size:      -1,
		Children:  []*TypeNode{leaf("SInt32", "first", 4)},
	}

	r := NewReader(bytes.NewReader(make([]byte, 8)), BigEndian)
	_, err := readValue(asset, node, r)
	var objErr *ObjectError
	if !errors.As(err, &objErr) {
		t.Fatalf("readValue got err %v, want an ObjectError", err)
	}
}

func TestReadValueObjectPointer(t *testing.T) {

	asset := &Asset{}
	node := leaf("PPtr<GameObject>", "m_GameObject", 12)

	tests := []struct {
		fileID int32
		pathID int32
		none   bool
	}{
		{0, 0, true},
		{0, 5, false},
		{1, 0, false},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		binary.Write(&buf, binary.BigEndian, tt.fileID)
		binary.Write(&buf, binary.BigEndian, tt.pathID)
		// node.Size is 12 in some trees, but only 8 bytes exist for short
		// ids; use a size the read satisfies.
		node.Size = 8

		r := NewReader(bytes.NewReader(buf.Bytes()), BigEndian)
		got, err := readValue(asset, node, r)
		if err != nil {
			t.Fatalf("readValue failed, reason: %v", err)
		}
		if tt.none {
			if _, ok := got.(NoneValue); !ok {
				t.Errorf("(%d,%d) got %T, want NoneValue", tt.fileID, tt.pathID, got)
			}
			continue
		}
		ptr, ok := got.(ObjectPointer)
		if !ok {
			t.Fatalf("(%d,%d) got %T, want ObjectPointer", tt.fileID, tt.pathID, got)
		}
		if ptr.FileID != tt.fileID || ptr.PathID != int64(tt.pathID) {
			t.Errorf("pointer got (%d,%d)", ptr.FileID, ptr.PathID)
		}
		if ptr.TypeName != "PPtr<GameObject>" {
			t.Errorf("pointer type name got %q", ptr.TypeName)
		}
	}
}

func TestReadValueLongObjectPointer(t *testing.T) {

	asset := &Asset{LongObjectIDs: true}
	node := leaf("PPtr<Material>", "m_Material", 12)

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, int32(0))
	binary.Write(&buf, binary.BigEndian, int64(1<<40))

	r := NewReader(bytes.NewReader(buf.Bytes()), BigEndian)
	got, err := readValue(asset, node, r)
	if err != nil {
		t.Fatalf("readValue failed, reason: %v", err)
	}
	ptr, ok := got.(ObjectPointer)
	if !ok {
		t.Fatalf("readValue got %T, want ObjectPointer", got)
	}
	if ptr.PathID != 1<<40 {
		t.Errorf("PathID got %d, want %d", ptr.PathID, int64(1)<<40)
	}
}

func compoundNode(typeName string) *TypeNode {
	return &TypeNode{
		TypeName:  typeName,
		FieldName: "Base",
		Size:      -1,
		Children: []*TypeNode{
			{
				TypeName:  "string",
				FieldName: "m_Name",
				Size:      -1,
				Children: []*TypeNode{
					{TypeName: "Array", FieldName: "Array", Size: -1, IsArray: true, Flags: 0x4000},
				},
			},
			leaf("int", "m_Width", 4),
		},
	}
}

func compoundBytes(name string, width int32) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(len(name)))
	buf.WriteString(name)
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
	binary.Write(&buf, binary.BigEndian, width)
	return buf.Bytes()
}

func TestReadValueCompound(t *testing.T) {

	asset := &Asset{}
	r := NewReader(bytes.NewReader(compoundBytes("thing", 640)), BigEndian)
	got, err := readValue(asset, compoundNode("Rect"), r)
	if err != nil {
		t.Fatalf("readValue failed, reason: %v", err)
	}
	m, ok := got.(*OrderedMap)
	if !ok {
		t.Fatalf("readValue got %T, want *OrderedMap", got)
	}
	nameVal, _ := m.Get("m_Name")
	if nameVal != StringValue("thing") {
		t.Errorf("m_Name got %v", nameVal)
	}
	widthVal, _ := m.Get("m_Width")
	if widthVal != I32Value(640) {
		t.Errorf("m_Width got %v", widthVal)
	}
}

func TestReadValueEngineObjectWrap(t *testing.T) {

	asset := &Asset{}
	r := NewReader(bytes.NewReader(compoundBytes("tex", 64)), BigEndian)
	got, err := readValue(asset, compoundNode("Texture2D"), r)
	if err != nil {
		t.Fatalf("readValue failed, reason: %v", err)
	}
	obj, ok := got.(EngineObject)
	if !ok {
		t.Fatalf("readValue got %T, want EngineObject", got)
	}
	if obj.ClassName != "Texture2D" {
		t.Errorf("ClassName got %q", obj.ClassName)
	}
	if _, ok := obj.Map.Get("m_Width"); !ok {
		t.Error("wrapped map is missing m_Width")
	}
}

func TestReadValueEngineProjectionDisabled(t *testing.T) {

	asset := &Asset{rawProjection: true}
	r := NewReader(bytes.NewReader(compoundBytes("tex", 64)), BigEndian)
	got, err := readValue(asset, compoundNode("Texture2D"), r)
	if err != nil {
		t.Fatalf("readValue failed, reason: %v", err)
	}
	if _, ok := got.(*OrderedMap); !ok {
		t.Errorf("readValue got %T, want a bare *OrderedMap", got)
	}
}

func TestReadValueShortReadIsFatal(t *testing.T) {

	asset := &Asset{}
	// The tree claims 8 bytes but a bool consumes 1.
	node := leaf("bool", "m_Broken", 8)

	r := NewReader(bytes.NewReader(make([]byte, 8)), BigEndian)
	_, err := readValue(asset, node, r)
	var objErr *ObjectError
	if !errors.As(err, &objErr) {
		t.Fatalf("readValue got err %v, want an ObjectError", err)
	}
}

func TestReadValuePostAlign(t *testing.T) {

	asset := &Asset{}
	node := &TypeNode{TypeName: "bool", FieldName: "m_Enabled", Size: 1, Flags: 0x4000}

	r := NewReader(bytes.NewReader(make([]byte, 8)), BigEndian)
	if _, err := readValue(asset, node, r); err != nil {
		t.Fatalf("readValue failed, reason: %v", err)
	}
	if r.Tell()%4 != 0 {
		t.Errorf("Tell after post-aligned node is %d, want a multiple of 4", r.Tell())
	}
	if r.Tell() != 4 {
		t.Errorf("Tell got %d, want 4", r.Tell())
	}
}

func TestAccessorMismatch(t *testing.T) {

	if _, err := AsI32(StringValue("x")); err == nil {
		t.Error("AsI32(string) expected an error")
	}
	if _, err := AsString(I32Value(1)); err == nil {
		t.Error("AsString(int) expected an error")
	}
	if _, err := AsMap(BoolValue(true)); err == nil {
		t.Error("AsMap(bool) expected an error")
	}
	// An EngineObject unwraps to its map.
	m := NewOrderedMap()
	if got, err := AsMap(EngineObject{ClassName: "Mesh", Map: m}); err != nil || got != m {
		t.Errorf("AsMap(EngineObject) got %v, %v", got, err)
	}
}
