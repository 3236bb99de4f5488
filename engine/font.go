// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package engine

import (
	"github.com/grove-tools/unitybundle"
)

// AssetPointer names an object in a resolved file: the referenced file's
// path plus the object's path id within it.
type AssetPointer struct {
	FileName string
	PathID   int64
}

// FontDef is the typed projection of a decoded FontDef.
type FontDef struct {
	LineSpaceModifier            float32
	FontSizeModifier             float32
	Font                         AssetPointer
	OutlineModifier              float32
	SingleLineAdjustment         float32
	CharacterSizeModifier        float32
	UnboundCharacterSizeModifier float32
}

// ToFontDef projects obj into a FontDef record. asset resolves the
// m_Font pointer's file id into a file name.
func ToFontDef(obj unitybundle.EngineObject, asset *unitybundle.Asset) (*FontDef, error) {
	m := obj.Map

	lineSpace, err := getF32(m, "m_LineSpaceModifier")
	if err != nil {
		return nil, err
	}
	fontSize, err := getF32(m, "m_FontSizeModifier")
	if err != nil {
		return nil, err
	}

	fontVal, err := getField(m, "m_Font")
	if err != nil {
		return nil, err
	}
	ptr, err := unitybundle.AsObjectPointer(fontVal)
	if err != nil {
		return nil, &unitybundle.EngineError{Msg: "value is not of ObjectPointer type"}
	}
	fileName, err := asset.GetFileByID(int(ptr.FileID))
	if err != nil {
		return nil, err
	}

	outline, err := getF32(m, "m_OutlineModifier")
	if err != nil {
		return nil, err
	}
	singleLine, err := getF32(m, "m_SingleLineAdjustment")
	if err != nil {
		return nil, err
	}
	charSize, err := getF32(m, "m_CharacterSizeModifier")
	if err != nil {
		return nil, err
	}
	unboundCharSize, err := getF32(m, "m_UnboundCharacterSizeModifier")
	if err != nil {
		return nil, err
	}

	return &FontDef{
		LineSpaceModifier:            lineSpace,
		FontSizeModifier:             fontSize,
		Font:                         AssetPointer{FileName: fileName, PathID: ptr.PathID},
		OutlineModifier:              outline,
		SingleLineAdjustment:         singleLine,
		CharacterSizeModifier:        charSize,
		UnboundCharacterSizeModifier: unboundCharSize,
	}, nil
}

// Font is the typed projection of a decoded Font.
type Font struct {
	Object
	Ascent           float32
	CharacterPadding int32
	CharacterSpacing int32
	FontSize         float32
	Kerning          *float32
	LineSpacing      float32
	PixelScale       float32
	Data             []byte
}

// ToFont projects obj into a Font record. m_Kerning is optional.
func ToFont(obj unitybundle.EngineObject) (*Font, error) {
	m := obj.Map

	object, err := newObject(m)
	if err != nil {
		return nil, err
	}
	ascent, err := getF32(m, "m_Ascent")
	if err != nil {
		return nil, err
	}
	charPadding, err := getI32(m, "m_CharacterPadding")
	if err != nil {
		return nil, err
	}
	charSpacing, err := getI32(m, "m_CharacterSpacing")
	if err != nil {
		return nil, err
	}
	fontSize, err := getF32(m, "m_FontSize")
	if err != nil {
		return nil, err
	}

	var kerning *float32
	if val, ok := m.Get("m_Kerning"); ok {
		k, err := unitybundle.AsF32(val)
		if err != nil {
			return nil, &unitybundle.EngineError{Msg: "m_Kerning: " + err.Error()}
		}
		kerning = &k
	}

	lineSpacing, err := getF32(m, "m_LineSpacing")
	if err != nil {
		return nil, err
	}
	pixelScale, err := getF32(m, "m_PixelScale")
	if err != nil {
		return nil, err
	}
	data, err := getBytes(m, "m_FontData")
	if err != nil {
		return nil, err
	}

	return &Font{
		Object:           object,
		Ascent:           ascent,
		CharacterPadding: charPadding,
		CharacterSpacing: charSpacing,
		FontSize:         fontSize,
		Kerning:          kerning,
		LineSpacing:      lineSpacing,
		PixelScale:       pixelScale,
		Data:             data,
	}, nil
}
