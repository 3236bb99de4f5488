// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package engine projects generic decoded value trees into strongly-shaped
// records for a handful of recognized Unity engine classes. Each To* helper
// is a pure function from an EngineObject's ordered map to the typed record,
// failing with an EngineError when a required field is missing or has the
// wrong shape.
package engine

import (
	"fmt"

	"github.com/grove-tools/unitybundle"
)

// Object carries the fields shared by every named engine class.
type Object struct {
	Name string
}

// newObject pulls m_Name out of map m. A missing name is not an error;
// several engine classes omit it.
func newObject(m *unitybundle.OrderedMap) (Object, error) {
	val, ok := m.Get("m_Name")
	if !ok {
		return Object{}, nil
	}
	name, err := unitybundle.AsString(val)
	if err != nil {
		return Object{}, &unitybundle.EngineError{Msg: "m_Name: " + err.Error()}
	}
	return Object{Name: name}, nil
}

// getField fetches a required field from m, failing with an EngineError
// naming the field when absent.
func getField(m *unitybundle.OrderedMap, key string) (unitybundle.ObjectValue, error) {
	val, ok := m.Get(key)
	if !ok {
		return nil, &unitybundle.EngineError{Msg: fmt.Sprintf("%s is not found in the map", key)}
	}
	return val, nil
}

func getBool(m *unitybundle.OrderedMap, key string) (bool, error) {
	val, err := getField(m, key)
	if err != nil {
		return false, err
	}
	b, err := unitybundle.AsBool(val)
	if err != nil {
		return false, &unitybundle.EngineError{Msg: key + ": " + err.Error()}
	}
	return b, nil
}

func getI32(m *unitybundle.OrderedMap, key string) (int32, error) {
	val, err := getField(m, key)
	if err != nil {
		return 0, err
	}
	i, err := unitybundle.AsI32(val)
	if err != nil {
		return 0, &unitybundle.EngineError{Msg: key + ": " + err.Error()}
	}
	return i, nil
}

func getU32(m *unitybundle.OrderedMap, key string) (uint32, error) {
	val, err := getField(m, key)
	if err != nil {
		return 0, err
	}
	u, err := unitybundle.AsU32(val)
	if err != nil {
		return 0, &unitybundle.EngineError{Msg: key + ": " + err.Error()}
	}
	return u, nil
}

func getU16(m *unitybundle.OrderedMap, key string) (uint16, error) {
	val, err := getField(m, key)
	if err != nil {
		return 0, err
	}
	u, err := unitybundle.AsU16(val)
	if err != nil {
		return 0, &unitybundle.EngineError{Msg: key + ": " + err.Error()}
	}
	return u, nil
}

func getU8(m *unitybundle.OrderedMap, key string) (uint8, error) {
	val, err := getField(m, key)
	if err != nil {
		return 0, err
	}
	u, err := unitybundle.AsU8(val)
	if err != nil {
		return 0, &unitybundle.EngineError{Msg: key + ": " + err.Error()}
	}
	return u, nil
}

func getF32(m *unitybundle.OrderedMap, key string) (float32, error) {
	val, err := getField(m, key)
	if err != nil {
		return 0, err
	}
	f, err := unitybundle.AsF32(val)
	if err != nil {
		return 0, &unitybundle.EngineError{Msg: key + ": " + err.Error()}
	}
	return f, nil
}

func getString(m *unitybundle.OrderedMap, key string) (string, error) {
	val, err := getField(m, key)
	if err != nil {
		return "", err
	}
	s, err := unitybundle.AsString(val)
	if err != nil {
		return "", &unitybundle.EngineError{Msg: key + ": " + err.Error()}
	}
	return s, nil
}

func getBytes(m *unitybundle.OrderedMap, key string) ([]byte, error) {
	val, err := getField(m, key)
	if err != nil {
		return nil, err
	}
	b, err := unitybundle.AsU8Array(val)
	if err != nil {
		return nil, &unitybundle.EngineError{Msg: key + ": " + err.Error()}
	}
	return b, nil
}

func getArray(m *unitybundle.OrderedMap, key string) (unitybundle.ArrayValue, error) {
	val, err := getField(m, key)
	if err != nil {
		return nil, err
	}
	a, err := unitybundle.AsArray(val)
	if err != nil {
		return nil, &unitybundle.EngineError{Msg: key + ": " + err.Error()}
	}
	return a, nil
}

func getMap(m *unitybundle.OrderedMap, key string) (*unitybundle.OrderedMap, error) {
	val, err := getField(m, key)
	if err != nil {
		return nil, err
	}
	sub, err := unitybundle.AsMap(val)
	if err != nil {
		return nil, &unitybundle.EngineError{Msg: key + ": " + err.Error()}
	}
	return sub, nil
}

// GameObject is the typed projection of a decoded GameObject.
type GameObject struct {
	Object
	IsActive  bool
	Component []unitybundle.ObjectValue
	Layer     uint32
	Tag       uint16
}

// ToGameObject projects obj into a GameObject record.
func ToGameObject(obj unitybundle.EngineObject) (*GameObject, error) {
	m := obj.Map

	object, err := newObject(m)
	if err != nil {
		return nil, err
	}
	component, err := getArray(m, "m_Component")
	if err != nil {
		return nil, err
	}
	isActive, err := getBool(m, "m_IsActive")
	if err != nil {
		return nil, err
	}
	layer, err := getU32(m, "m_Layer")
	if err != nil {
		return nil, err
	}
	tag, err := getU16(m, "m_Tag")
	if err != nil {
		return nil, err
	}

	return &GameObject{
		Object:    object,
		IsActive:  isActive,
		Component: component,
		Layer:     layer,
		Tag:       tag,
	}, nil
}
