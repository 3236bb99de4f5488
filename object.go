// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitybundle

import (
	"fmt"
	"strings"

	"github.com/grove-tools/unitybundle/log"
)

// ObjectValue is the tagged union produced by the generic value reader:
// every shape a TypeNode can decode to implements it, one concrete type
// per variant.
type ObjectValue interface {
	isObjectValue()
}

// BoolValue is a decoded `bool` field.
type BoolValue bool

// U8Value is a decoded `UInt8` field.
type U8Value uint8

// I8Value is a decoded `SInt8` field.
type I8Value int8

// U16Value is a decoded `UInt16` field.
type U16Value uint16

// I16Value is a decoded `SInt16` field.
type I16Value int16

// U32Value is a decoded `UInt32`/`unsigned int` field.
type U32Value uint32

// I32Value is a decoded `SInt32`/`int` field.
type I32Value int32

// U64Value is a decoded `UInt64` field.
type U64Value uint64

// I64Value is a decoded `SInt64` field.
type I64Value int64

// F32Value is a decoded `float` field.
type F32Value float32

// StringValue is a decoded `string` field.
type StringValue string

// U8ArrayValue is a decoded byte array (an array whose element type is
// `char` or `UInt8`, read as raw bytes rather than recursed element-by-element).
type U8ArrayValue []byte

// ArrayValue is a decoded array of any other element type.
type ArrayValue []ObjectValue

// PairValue is a decoded `pair` field.
type PairValue struct {
	First  ObjectValue
	Second ObjectValue
}

// NoneValue represents an absent value: a null ObjectPointer, or the result
// of an out-of-scope cross-asset pointer resolution.
type NoneValue struct{}

// ObjectPointer is a decoded `PPtr<...>` reference: a file index into the
// owning asset's reference table plus a path id within that file.
type ObjectPointer struct {
	TypeName string
	FileID   int32
	PathID   int64
}

// EngineObject wraps a compound map whose type name matched a recognized
// engine class, ready for projection into a typed record.
type EngineObject struct {
	ClassName string
	Map       *OrderedMap
}

func (BoolValue) isObjectValue()     {}
func (U8Value) isObjectValue()       {}
func (I8Value) isObjectValue()       {}
func (U16Value) isObjectValue()      {}
func (I16Value) isObjectValue()      {}
func (U32Value) isObjectValue()      {}
func (I32Value) isObjectValue()      {}
func (U64Value) isObjectValue()      {}
func (I64Value) isObjectValue()      {}
func (F32Value) isObjectValue()      {}
func (StringValue) isObjectValue()   {}
func (U8ArrayValue) isObjectValue()  {}
func (ArrayValue) isObjectValue()    {}
func (PairValue) isObjectValue()     {}
func (NoneValue) isObjectValue()     {}
func (ObjectPointer) isObjectValue() {}
func (EngineObject) isObjectValue()  {}
func (*OrderedMap) isObjectValue()   {}

// AsBool returns the value as a bool, or an ObjectError if v is not a BoolValue.
func AsBool(v ObjectValue) (bool, error) {
	if b, ok := v.(BoolValue); ok {
		return bool(b), nil
	}
	return false, &ObjectError{Msg: fmt.Sprintf("expected bool, got %T", v)}
}

// AsI32 returns the value as an int32, or an ObjectError if v is not an I32Value.
func AsI32(v ObjectValue) (int32, error) {
	if i, ok := v.(I32Value); ok {
		return int32(i), nil
	}
	return 0, &ObjectError{Msg: fmt.Sprintf("expected int32, got %T", v)}
}

// AsU32 returns the value as a uint32, or an ObjectError if v is not a U32Value.
func AsU32(v ObjectValue) (uint32, error) {
	if i, ok := v.(U32Value); ok {
		return uint32(i), nil
	}
	return 0, &ObjectError{Msg: fmt.Sprintf("expected uint32, got %T", v)}
}

// AsU8 returns the value as a uint8, or an ObjectError if v is not a U8Value.
func AsU8(v ObjectValue) (uint8, error) {
	if i, ok := v.(U8Value); ok {
		return uint8(i), nil
	}
	return 0, &ObjectError{Msg: fmt.Sprintf("expected uint8, got %T", v)}
}

// AsU16 returns the value as a uint16, or an ObjectError if v is not a U16Value.
func AsU16(v ObjectValue) (uint16, error) {
	if i, ok := v.(U16Value); ok {
		return uint16(i), nil
	}
	return 0, &ObjectError{Msg: fmt.Sprintf("expected uint16, got %T", v)}
}

// AsF32 returns the value as a float32, or an ObjectError if v is not an F32Value.
func AsF32(v ObjectValue) (float32, error) {
	if f, ok := v.(F32Value); ok {
		return float32(f), nil
	}
	return 0, &ObjectError{Msg: fmt.Sprintf("expected float32, got %T", v)}
}

// AsString returns the value as a string, or an ObjectError if v is not a StringValue.
func AsString(v ObjectValue) (string, error) {
	if s, ok := v.(StringValue); ok {
		return string(s), nil
	}
	return "", &ObjectError{Msg: fmt.Sprintf("expected string, got %T", v)}
}

// AsU8Array returns the value as a byte slice, or an ObjectError if v is not a U8ArrayValue.
func AsU8Array(v ObjectValue) ([]byte, error) {
	if b, ok := v.(U8ArrayValue); ok {
		return []byte(b), nil
	}
	return nil, &ObjectError{Msg: fmt.Sprintf("expected byte array, got %T", v)}
}

// AsArray returns the value as an ArrayValue, or an ObjectError if v is not one.
func AsArray(v ObjectValue) (ArrayValue, error) {
	if a, ok := v.(ArrayValue); ok {
		return a, nil
	}
	return nil, &ObjectError{Msg: fmt.Sprintf("expected array, got %T", v)}
}

// AsMap returns the value as an *OrderedMap, or an ObjectError if v is not one.
func AsMap(v ObjectValue) (*OrderedMap, error) {
	if m, ok := v.(*OrderedMap); ok {
		return m, nil
	}
	if e, ok := v.(EngineObject); ok {
		return e.Map, nil
	}
	return nil, &ObjectError{Msg: fmt.Sprintf("expected map, got %T", v)}
}

// AsObjectPointer returns the value as an ObjectPointer, or an ObjectError if v is not one.
func AsObjectPointer(v ObjectValue) (ObjectPointer, error) {
	if p, ok := v.(ObjectPointer); ok {
		return p, nil
	}
	return ObjectPointer{}, &ObjectError{Msg: fmt.Sprintf("expected object pointer, got %T", v)}
}

// engineClassNames is the extensible set of compound type names that get
// wrapped as an EngineObject instead of a bare *OrderedMap.
var engineClassNames = map[string]bool{
	"Texture2D":     true,
	"TextAsset":     true,
	"FontDef":       true,
	"Font":          true,
	"MonoBehaviour": true,
	"AssetBundle":   true,
	"GameObject":    true,
	"Mesh":          true,
}

// readValue decodes exactly one ObjectValue from r per the TypeNode node,
// dispatching by node.TypeName. asset supplies context needed for
// ObjectPointer construction (long_object_ids) and engine-projection
// scoping. Reading fewer bytes than the node's declared size is a fatal
// decode error; reading more is not checked. The size check runs before the
// trailing alignment applied here.
func readValue(asset *Asset, node *TypeNode, r *Reader) (ObjectValue, error) {
	start := r.Tell()

	val, align, err := readValueInner(asset, node, r)
	if err != nil {
		return nil, err
	}

	if node.Size > 0 {
		consumed := r.Tell() - start
		if consumed < int64(node.Size) {
			return nil, &ObjectError{Msg: fmt.Sprintf(
				"expected to read %d bytes for %s.%s, but only read %d bytes",
				node.Size, node.TypeName, node.FieldName, consumed)}
		}
	}

	if align || node.PostAlign() {
		r.Align()
	}

	return val, nil
}

// readValueInner performs the type-name dispatch. The returned bool is an
// extra alignment source (the string's inline byte array, or the array
// node itself) that readValue ORs with the node's own post-align flag.
func readValueInner(asset *Asset, node *TypeNode, r *Reader) (ObjectValue, bool, error) {
	switch node.TypeName {
	case "bool":
		v, err := r.ReadBool()
		if err != nil {
			return nil, false, err
		}
		return BoolValue(v), false, nil

	case "UInt8":
		v, err := r.ReadU8()
		if err != nil {
			return nil, false, err
		}
		return U8Value(v), false, nil

	case "SInt8":
		v, err := r.ReadI8()
		if err != nil {
			return nil, false, err
		}
		return I8Value(v), false, nil

	case "UInt16":
		v, err := r.ReadU16()
		if err != nil {
			return nil, false, err
		}
		return U16Value(v), false, nil

	case "SInt16":
		v, err := r.ReadI16()
		if err != nil {
			return nil, false, err
		}
		return I16Value(v), false, nil

	case "UInt32", "unsigned int":
		v, err := r.ReadU32()
		if err != nil {
			return nil, false, err
		}
		return U32Value(v), false, nil

	case "SInt32", "int":
		v, err := r.ReadI32()
		if err != nil {
			return nil, false, err
		}
		return I32Value(v), false, nil

	case "UInt64":
		v, err := r.ReadU64()
		if err != nil {
			return nil, false, err
		}
		return U64Value(v), false, nil

	case "SInt64":
		v, err := r.ReadI64()
		if err != nil {
			return nil, false, err
		}
		return I64Value(v), false, nil

	case "float":
		v, err := r.ReadF32()
		if err != nil {
			return nil, false, err
		}
		return F32Value(v), false, nil

	case "string":
		n, err := r.ReadU32()
		if err != nil {
			return nil, false, err
		}
		s, err := r.ReadSizedString(n)
		if err != nil {
			return nil, false, err
		}
		// The implicit post-align of a string lives on the child node
		// describing its inline byte array.
		align := false
		if len(node.Children) > 0 {
			align = node.Children[0].PostAlign()
		}
		return StringValue(s), align, nil

	case "pair":
		if len(node.Children) != 2 {
			return nil, false, &ObjectError{Msg: fmt.Sprintf(
				"type pair needs exactly 2 elements not %d", len(node.Children))}
		}
		first, err := readValue(asset, node.Children[0], r)
		if err != nil {
			return nil, false, err
		}
		second, err := readValue(asset, node.Children[1], r)
		if err != nil {
			return nil, false, err
		}
		return PairValue{First: first, Second: second}, false, nil
	}

	if strings.Contains(node.TypeName, "PPtr<") {
		fileID, err := r.ReadI32()
		if err != nil {
			return nil, false, err
		}
		var pathID int64
		if asset.LongObjectIDs {
			pathID, err = r.ReadI64()
		} else {
			var p int32
			p, err = r.ReadI32()
			pathID = int64(p)
		}
		if err != nil {
			return nil, false, err
		}
		if fileID == 0 && pathID == 0 {
			return NoneValue{}, false, nil
		}
		return ObjectPointer{TypeName: node.TypeName, FileID: fileID, PathID: pathID}, false, nil
	}

	// An array is either the node itself or its first child; the element
	// type is always the array node's second child, never the array node
	// (recursing on the array node would loop).
	arrayNode := node
	if !node.IsArray {
		if len(node.Children) == 0 || !node.Children[0].IsArray {
			arrayNode = nil
		} else {
			arrayNode = node.Children[0]
		}
	}
	if arrayNode != nil {
		if len(arrayNode.Children) < 2 {
			return nil, false, &ObjectError{Msg: fmt.Sprintf(
				"array node %q has %d children, want 2", node.FieldName, len(arrayNode.Children))}
		}
		elemNode := arrayNode.Children[1]

		length, err := r.ReadU32()
		if err != nil {
			return nil, false, err
		}

		var result ObjectValue
		if elemNode.TypeName == "char" || elemNode.TypeName == "UInt8" {
			b, err := r.ReadBytes(int(length))
			if err != nil {
				return nil, false, err
			}
			result = U8ArrayValue(b)
		} else {
			elems := make(ArrayValue, 0, length)
			for i := uint32(0); i < length; i++ {
				ev, err := readValue(asset, elemNode, r)
				if err != nil {
					return nil, false, err
				}
				elems = append(elems, ev)
			}
			result = elems
		}

		return result, arrayNode.PostAlign(), nil
	}

	m := NewOrderedMap()
	for _, child := range node.Children {
		v, err := readValue(asset, child, r)
		if err != nil {
			return nil, false, err
		}
		m.Insert(child.FieldName, v)
	}

	if !asset.rawProjection && engineClassNames[node.TypeName] {
		return EngineObject{ClassName: node.TypeName, Map: m}, false, nil
	}
	return m, false, nil
}

// Resolve dereferences an ObjectPointer. A zero FileID resolves within the
// owning asset; any other FileID names a cross-asset reference, which is
// out of scope and yields NoneValue with no error.
func (p ObjectPointer) Resolve(asset *Asset, logger *log.Helper) (ObjectValue, error) {
	if p.FileID != 0 {
		if logger != nil {
			logger.Infof("unresolved cross-asset object pointer: file_id=%d path_id=%d", p.FileID, p.PathID)
		}
		return NoneValue{}, nil
	}
	info, ok := asset.Objects[p.PathID]
	if !ok {
		return NoneValue{}, nil
	}
	return info.readValue(asset)
}
