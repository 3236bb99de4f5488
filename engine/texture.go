// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package engine

import (
	"fmt"

	"github.com/grove-tools/unitybundle"
)

// TextureFormat is the pixel encoding a Texture2D declares.
type TextureFormat int

// Known texture formats.
const (
	Alpha8 TextureFormat = iota
	ARGB4444
	RGB24
	RGBA32
	ARGB32
	RGB565

	// Direct3D
	DXT1
	DXT5

	RGBA4444
	BGRA32

	// Direct3D 10
	BC4
	BC5
	DXT1Crunched
	DXT5Crunched

	// Direct3D 11
	BC6H

	// PowerVR
	PvrtcRgb2
	PvrtcRgba2
	PvrtcRgb4
	PvrtcRgba4

	// Ericsson (Android)
	EtcRgb4
	AtcRgb4
	AtcRgba8

	// Adobe ATF
	AtfRgbDxt1
	AtfRgbaJpg
	AtfRgbJpg

	// Ericsson
	EacR
	EacRSigned
	EacRg
	EacRgSigned
	Etc2Rgb
	Etc2Rgba1
	Etc2Rgba8

	// OpenGL / GLES
	AstcRgb4x4
	AstcRgb5x5
	AstcRgb6x6
	AstcRgb8x8
	AstcRgb10x10
	AstcRgb12x12
	AstcRgba4x4
	AstcRgba5x5
	AstcRgba6x6
	AstcRgba8x8
	AstcRgba10x10
	AstcRgba12x12
)

var textureFormatNames = map[TextureFormat]string{
	Alpha8: "Alpha8", ARGB4444: "ARGB4444", RGB24: "RGB24", RGBA32: "RGBA32",
	ARGB32: "ARGB32", RGB565: "RGB565", DXT1: "DXT1", DXT5: "DXT5",
	RGBA4444: "RGBA4444", BGRA32: "BGRA32", BC4: "BC4", BC5: "BC5",
	DXT1Crunched: "DXT1Crunched", DXT5Crunched: "DXT5Crunched", BC6H: "BC6H",
}

func (f TextureFormat) String() string {
	if name, ok := textureFormatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("TextureFormat(%d)", int(f))
}

// TextureFormatFromU32 maps the on-disk m_TextureFormat value to a
// TextureFormat, failing on unidentified values.
func TextureFormatFromU32(n uint32) (TextureFormat, error) {
	switch n {
	case 1:
		return Alpha8, nil
	case 2:
		return ARGB4444, nil
	case 3:
		return RGB24, nil
	case 4:
		return RGBA32, nil
	case 5:
		return ARGB32, nil
	case 7:
		return RGB565, nil

	// Direct3D
	case 10:
		return DXT1, nil
	case 12:
		return DXT5, nil

	case 13:
		return RGBA4444, nil
	case 14:
		return BGRA32, nil

	// Direct3D 10
	case 26:
		return BC4, nil
	case 27:
		return BC5, nil
	case 28:
		return DXT1Crunched, nil
	case 29:
		return DXT5Crunched, nil

	// Direct3D 11
	case 24:
		return BC6H, nil

	// PowerVR
	case 30:
		return PvrtcRgb2, nil
	case 31:
		return PvrtcRgba2, nil
	case 32:
		return PvrtcRgb4, nil
	case 33:
		return PvrtcRgba4, nil

	// Ericsson (Android)
	case 34:
		return EtcRgb4, nil
	case 35:
		return AtcRgb4, nil
	case 36:
		return AtcRgba8, nil

	// Adobe ATF
	case 38:
		return AtfRgbDxt1, nil
	case 39:
		return AtfRgbaJpg, nil
	case 40:
		return AtfRgbJpg, nil

	// Ericsson
	case 41:
		return EacR, nil
	case 42:
		return EacRSigned, nil
	case 43:
		return EacRg, nil
	case 44:
		return EacRgSigned, nil
	case 45:
		return Etc2Rgb, nil
	case 46:
		return Etc2Rgba1, nil
	case 47:
		return Etc2Rgba8, nil

	// OpenGL / GLES
	case 48:
		return AstcRgb4x4, nil
	case 49:
		return AstcRgb5x5, nil
	case 50:
		return AstcRgb6x6, nil
	case 51:
		return AstcRgb8x8, nil
	case 52:
		return AstcRgb10x10, nil
	case 53:
		return AstcRgb12x12, nil
	case 54:
		return AstcRgba4x4, nil
	case 55:
		return AstcRgba5x5, nil
	case 56:
		return AstcRgba6x6, nil
	case 57:
		return AstcRgba8x8, nil
	case 58:
		return AstcRgba10x10, nil
	case 59:
		return AstcRgba12x12, nil
	default:
		return 0, &unitybundle.EngineError{Msg: fmt.Sprintf("unidentified texture format: %d", n)}
	}
}

// PixelFormat is the channel layout a texture decodes into.
type PixelFormat int

// Channel layouts.
const (
	PixelRGB PixelFormat = iota
	PixelRGBA
	PixelARGB
	PixelRGB16
	PixelA
	PixelRGBA4B
	PixelARGB4B
	PixelLUM
)

// PixelFormat returns the channel layout the format's raw bytes carry.
func (f TextureFormat) PixelFormat() PixelFormat {
	switch f {
	case RGB24:
		return PixelRGB
	case ARGB32:
		return PixelARGB
	case RGB565:
		return PixelRGB16
	case Alpha8:
		return PixelA
	case RGBA4444:
		return PixelRGBA4B
	case ARGB4444:
		return PixelARGB4B
	default:
		return PixelRGBA
	}
}

// BCNEncoding selects a block-compression codec for an injected decoder.
type BCNEncoding int

// Block-compression encodings ToImage can dispatch to.
const (
	EncodingBC1 BCNEncoding = iota
	EncodingBC3
	EncodingBC4
	EncodingBC5
	EncodingBC6H
)

// BCNDecoder decodes block-compressed texture data into pixels. The
// library bundles no implementation; callers inject one.
type BCNDecoder interface {
	Decode(encoding BCNEncoding, data []byte, width, height int, format PixelFormat) ([]byte, error)
}

// CrunchDecoder unpacks Crunch-compressed texture data into the raw BCn
// representation at a given mip level. Injected like BCNDecoder.
type CrunchDecoder interface {
	DecodeLevel(data []byte, level int) ([]byte, error)
}

// Texture2D is the typed projection of a decoded Texture2D.
type Texture2D struct {
	Height        uint32
	Width         uint32
	Name          string
	Data          []byte
	TextureFormat TextureFormat
}

// ToTexture2D projects obj into a Texture2D record.
func ToTexture2D(obj unitybundle.EngineObject) (*Texture2D, error) {
	m := obj.Map

	height, err := getI32(m, "m_Height")
	if err != nil {
		return nil, err
	}
	width, err := getI32(m, "m_Width")
	if err != nil {
		return nil, err
	}
	name, err := getString(m, "m_Name")
	if err != nil {
		return nil, err
	}
	data, err := getBytes(m, "image data")
	if err != nil {
		return nil, err
	}
	rawFormat, err := getI32(m, "m_TextureFormat")
	if err != nil {
		return nil, err
	}
	format, err := TextureFormatFromU32(uint32(rawFormat))
	if err != nil {
		return nil, err
	}

	return &Texture2D{
		Height:        uint32(height),
		Width:         uint32(width),
		Name:          name,
		Data:          data,
		TextureFormat: format,
	}, nil
}

// ToImage decodes the texture's bytes into pixels. Raw formats pass
// through untouched; block-compressed formats dispatch to dec, with
// Crunched variants first unpacked by crunch at mip level 0. A nil
// decoder for a format that needs one is a BCNDecodeError.
func (t *Texture2D) ToImage(dec BCNDecoder, crunch CrunchDecoder) ([]byte, error) {
	var encoding BCNEncoding
	switch t.TextureFormat {
	case DXT1, DXT1Crunched:
		encoding = EncodingBC1
	case DXT5, DXT5Crunched:
		encoding = EncodingBC3
	case BC4:
		encoding = EncodingBC4
	case BC5:
		encoding = EncodingBC5
	case BC6H:
		encoding = EncodingBC6H
	case Alpha8, ARGB4444, RGBA4444, RGB565, RGB24, RGBA32, ARGB32:
		return t.Data, nil
	default:
		return nil, &unitybundle.EngineError{Msg: fmt.Sprintf(
			"image encoding is not supported: %v", t.TextureFormat)}
	}

	format := PixelRGBA
	if t.TextureFormat == BC4 {
		format = PixelLUM
	}

	data := t.Data
	switch t.TextureFormat {
	case DXT1Crunched, DXT5Crunched:
		if crunch == nil {
			return nil, &unitybundle.BCNDecodeError{Err: fmt.Errorf("no crunch decoder configured")}
		}
		unpacked, err := crunch.DecodeLevel(data, 0)
		if err != nil {
			return nil, &unitybundle.EngineError{Msg: "DXT decrunch failed: " + err.Error()}
		}
		data = unpacked
	}

	if dec == nil {
		return nil, &unitybundle.BCNDecodeError{Err: fmt.Errorf("no BCn decoder configured")}
	}
	out, err := dec.Decode(encoding, data, int(t.Width), int(t.Height), format)
	if err != nil {
		return nil, &unitybundle.BCNDecodeError{Err: err}
	}
	return out, nil
}
