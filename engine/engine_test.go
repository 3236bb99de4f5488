// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package engine

import (
	"bytes"
	"errors"
	"testing"

	"github.com/grove-tools/unitybundle"
)

func textureObject(format int32) unitybundle.EngineObject {
	m := unitybundle.NewOrderedMap()
	m.Insert("m_Name", unitybundle.StringValue("icon"))
	m.Insert("m_Width", unitybundle.I32Value(64))
	m.Insert("m_Height", unitybundle.I32Value(32))
	m.Insert("m_TextureFormat", unitybundle.I32Value(format))
	m.Insert("image data", unitybundle.U8ArrayValue([]byte{1, 2, 3, 4}))
	return unitybundle.EngineObject{ClassName: "Texture2D", Map: m}
}

func TestToTexture2D(t *testing.T) {

	tex, err := ToTexture2D(textureObject(4)) // RGBA32
	if err != nil {
		t.Fatalf("ToTexture2D failed, reason: %v", err)
	}
	if tex.Name != "icon" || tex.Width != 64 || tex.Height != 32 {
		t.Errorf("texture got %q %dx%d", tex.Name, tex.Width, tex.Height)
	}
	if tex.TextureFormat != RGBA32 {
		t.Errorf("format got %v, want RGBA32", tex.TextureFormat)
	}
}

func TestToTexture2DMissingField(t *testing.T) {

	m := unitybundle.NewOrderedMap()
	m.Insert("m_Name", unitybundle.StringValue("broken"))
	_, err := ToTexture2D(unitybundle.EngineObject{ClassName: "Texture2D", Map: m})
	var engineErr *unitybundle.EngineError
	if !errors.As(err, &engineErr) {
		t.Fatalf("ToTexture2D got err %v, want an EngineError", err)
	}
}

func TestToTexture2DUnknownFormat(t *testing.T) {

	_, err := ToTexture2D(textureObject(9999))
	var engineErr *unitybundle.EngineError
	if !errors.As(err, &engineErr) {
		t.Fatalf("ToTexture2D got err %v, want an EngineError", err)
	}
}

func TestToImageRawPassthrough(t *testing.T) {

	tests := []int32{1, 2, 3, 4, 5, 7, 13} // Alpha8 ... RGBA4444

	for _, format := range tests {
		tex, err := ToTexture2D(textureObject(format))
		if err != nil {
			t.Fatalf("ToTexture2D(%d) failed, reason: %v", format, err)
		}
		img, err := tex.ToImage(nil, nil)
		if err != nil {
			t.Errorf("ToImage(%v) failed, reason: %v", tex.TextureFormat, err)
			continue
		}
		if !bytes.Equal(img, []byte{1, 2, 3, 4}) {
			t.Errorf("ToImage(%v) did not pass raw data through", tex.TextureFormat)
		}
	}
}

// fakeBCN records the dispatch it received and returns a fixed image.
type fakeBCN struct {
	encoding BCNEncoding
	format   PixelFormat
}

func (f *fakeBCN) Decode(encoding BCNEncoding, data []byte, width, height int, format PixelFormat) ([]byte, error) {
	f.encoding = encoding
	f.format = format
	return []byte{0xAA}, nil
}

type fakeCrunch struct{ called bool }

func (f *fakeCrunch) DecodeLevel(data []byte, level int) ([]byte, error) {
	f.called = true
	return data, nil
}

func TestToImageBCNDispatch(t *testing.T) {

	tests := []struct {
		format   int32
		encoding BCNEncoding
		pixels   PixelFormat
		crunched bool
	}{
		{10, EncodingBC1, PixelRGBA, false}, // DXT1
		{12, EncodingBC3, PixelRGBA, false}, // DXT5
		{26, EncodingBC4, PixelLUM, false},  // BC4
		{27, EncodingBC5, PixelRGBA, false}, // BC5
		{24, EncodingBC6H, PixelRGBA, false},
		{28, EncodingBC1, PixelRGBA, true}, // DXT1Crunched
		{29, EncodingBC3, PixelRGBA, true}, // DXT5Crunched
	}

	for _, tt := range tests {
		tex, err := ToTexture2D(textureObject(tt.format))
		if err != nil {
			t.Fatalf("ToTexture2D(%d) failed, reason: %v", tt.format, err)
		}
		dec := &fakeBCN{}
		crunch := &fakeCrunch{}
		if _, err := tex.ToImage(dec, crunch); err != nil {
			t.Errorf("ToImage(%v) failed, reason: %v", tex.TextureFormat, err)
			continue
		}
		if dec.encoding != tt.encoding {
			t.Errorf("ToImage(%v) dispatched %v, want %v", tex.TextureFormat, dec.encoding, tt.encoding)
		}
		if dec.format != tt.pixels {
			t.Errorf("ToImage(%v) pixel format %v, want %v", tex.TextureFormat, dec.format, tt.pixels)
		}
		if crunch.called != tt.crunched {
			t.Errorf("ToImage(%v) crunch called %v, want %v", tex.TextureFormat, crunch.called, tt.crunched)
		}
	}
}

func TestToImageNoDecoder(t *testing.T) {

	tex, err := ToTexture2D(textureObject(10)) // DXT1
	if err != nil {
		t.Fatal(err)
	}
	_, err = tex.ToImage(nil, nil)
	var bcnErr *unitybundle.BCNDecodeError
	if !errors.As(err, &bcnErr) {
		t.Errorf("ToImage got err %v, want a BCNDecodeError", err)
	}
}

func TestToImageUnsupportedEncoding(t *testing.T) {

	tex, err := ToTexture2D(textureObject(34)) // EtcRgb4
	if err != nil {
		t.Fatal(err)
	}
	_, err = tex.ToImage(&fakeBCN{}, nil)
	var engineErr *unitybundle.EngineError
	if !errors.As(err, &engineErr) {
		t.Errorf("ToImage got err %v, want an EngineError", err)
	}
}

func TestToTextAsset(t *testing.T) {

	m := unitybundle.NewOrderedMap()
	m.Insert("m_Name", unitybundle.StringValue("readme"))
	m.Insert("m_PathName", unitybundle.StringValue("Assets/readme.txt"))
	m.Insert("m_Script", unitybundle.StringValue("hello"))

	ta, err := ToTextAsset(unitybundle.EngineObject{ClassName: "TextAsset", Map: m})
	if err != nil {
		t.Fatalf("ToTextAsset failed, reason: %v", err)
	}
	if ta.Name != "readme" || ta.Path != "Assets/readme.txt" {
		t.Errorf("text asset got %q %q", ta.Name, ta.Path)
	}
	if !ta.Script.IsPlain() || ta.Script.Plain != "hello" {
		t.Errorf("script got %+v, want plain hello", ta.Script)
	}
}

func TestToTextAssetBinaryScript(t *testing.T) {

	m := unitybundle.NewOrderedMap()
	m.Insert("m_Script", unitybundle.StringValue(string([]byte{0xFF, 0xFE, 0x00})))

	ta, err := ToTextAsset(unitybundle.EngineObject{ClassName: "TextAsset", Map: m})
	if err != nil {
		t.Fatalf("ToTextAsset failed, reason: %v", err)
	}
	if ta.Script.IsPlain() {
		t.Error("invalid UTF-8 script should be binary")
	}
	if !bytes.Equal(ta.Script.Binary, []byte{0xFF, 0xFE, 0x00}) {
		t.Errorf("binary script got %v", ta.Script.Binary)
	}
}

func TestToGameObject(t *testing.T) {

	m := unitybundle.NewOrderedMap()
	m.Insert("m_Name", unitybundle.StringValue("player"))
	m.Insert("m_Component", unitybundle.ArrayValue{
		unitybundle.ObjectPointer{TypeName: "PPtr<Component>", FileID: 0, PathID: 2},
	})
	m.Insert("m_IsActive", unitybundle.BoolValue(true))
	m.Insert("m_Layer", unitybundle.U32Value(3))
	m.Insert("m_Tag", unitybundle.U16Value(5))

	g, err := ToGameObject(unitybundle.EngineObject{ClassName: "GameObject", Map: m})
	if err != nil {
		t.Fatalf("ToGameObject failed, reason: %v", err)
	}
	if g.Name != "player" || !g.IsActive || g.Layer != 3 || g.Tag != 5 {
		t.Errorf("game object got %+v", g)
	}
	if len(g.Component) != 1 {
		t.Errorf("components got %d, want 1", len(g.Component))
	}
}

func TestToFont(t *testing.T) {

	m := unitybundle.NewOrderedMap()
	m.Insert("m_Name", unitybundle.StringValue("mono"))
	m.Insert("m_Ascent", unitybundle.F32Value(10))
	m.Insert("m_CharacterPadding", unitybundle.I32Value(1))
	m.Insert("m_CharacterSpacing", unitybundle.I32Value(0))
	m.Insert("m_FontSize", unitybundle.F32Value(12))
	m.Insert("m_LineSpacing", unitybundle.F32Value(1.2))
	m.Insert("m_PixelScale", unitybundle.F32Value(0.1))
	m.Insert("m_FontData", unitybundle.U8ArrayValue([]byte{0, 1}))

	f, err := ToFont(unitybundle.EngineObject{ClassName: "Font", Map: m})
	if err != nil {
		t.Fatalf("ToFont failed, reason: %v", err)
	}
	if f.Name != "mono" || f.FontSize != 12 {
		t.Errorf("font got %q size %f", f.Name, f.FontSize)
	}
	if f.Kerning != nil {
		t.Error("kerning should be nil when absent")
	}

	m.Insert("m_Kerning", unitybundle.F32Value(0.5))
	f, err = ToFont(unitybundle.EngineObject{ClassName: "Font", Map: m})
	if err != nil {
		t.Fatal(err)
	}
	if f.Kerning == nil || *f.Kerning != 0.5 {
		t.Errorf("kerning got %v, want 0.5", f.Kerning)
	}
}

func TestToFontDef(t *testing.T) {

	m := unitybundle.NewOrderedMap()
	m.Insert("m_LineSpaceModifier", unitybundle.F32Value(1))
	m.Insert("m_FontSizeModifier", unitybundle.F32Value(1))
	m.Insert("m_Font", unitybundle.ObjectPointer{TypeName: "PPtr<Font>", FileID: 0, PathID: 42})
	m.Insert("m_OutlineModifier", unitybundle.F32Value(0))
	m.Insert("m_SingleLineAdjustment", unitybundle.F32Value(0))
	m.Insert("m_CharacterSizeModifier", unitybundle.F32Value(1))
	m.Insert("m_UnboundCharacterSizeModifier", unitybundle.F32Value(1))

	asset := &unitybundle.Asset{Name: "CAB-fonts"}
	fd, err := ToFontDef(unitybundle.EngineObject{ClassName: "FontDef", Map: m}, asset)
	if err != nil {
		t.Fatalf("ToFontDef failed, reason: %v", err)
	}
	if fd.Font.FileName != "CAB-fonts" || fd.Font.PathID != 42 {
		t.Errorf("font pointer got %+v", fd.Font)
	}
}

func TestToMesh(t *testing.T) {

	aabb := unitybundle.NewOrderedMap()
	aabb.Insert("m_Center", unitybundle.F32Value(0))

	subMesh := unitybundle.NewOrderedMap()
	subMesh.Insert("topology", unitybundle.I32Value(0))
	subMesh.Insert("indexCount", unitybundle.U32Value(36))
	subMesh.Insert("firstVertex", unitybundle.U32Value(0))
	subMesh.Insert("vertexCount", unitybundle.U32Value(24))
	subMesh.Insert("firstByte", unitybundle.U32Value(0))
	subMesh.Insert("localAABB", aabb)

	channel := unitybundle.NewOrderedMap()
	channel.Insert("stream", unitybundle.U8Value(0))

	vertexData := unitybundle.NewOrderedMap()
	vertexData.Insert("m_CurrentChannels", unitybundle.I32Value(3))
	vertexData.Insert("m_VertexCount", unitybundle.U32Value(24))
	vertexData.Insert("m_DataSize", unitybundle.U8ArrayValue(make([]byte, 16)))
	vertexData.Insert("m_Channels", unitybundle.ArrayValue{channel})

	m := unitybundle.NewOrderedMap()
	m.Insert("m_Name", unitybundle.StringValue("cube"))
	m.Insert("m_RootBoneNameHash", unitybundle.U32Value(0))
	m.Insert("m_IndexBuffer", unitybundle.U8ArrayValue(make([]byte, 72)))
	m.Insert("m_BindPose", unitybundle.ArrayValue{})
	m.Insert("m_BakedConvexCollisionMesh", unitybundle.U8ArrayValue(nil))
	m.Insert("m_MeshCompression", unitybundle.U8Value(0))
	m.Insert("m_SubMeshes", unitybundle.ArrayValue{subMesh})
	m.Insert("m_VertexData", vertexData)

	mesh, err := ToMesh(unitybundle.EngineObject{ClassName: "Mesh", Map: m})
	if err != nil {
		t.Fatalf("ToMesh failed, reason: %v", err)
	}
	if mesh.Name != "cube" {
		t.Errorf("mesh name got %q", mesh.Name)
	}
	if len(mesh.SubMeshes) != 1 || mesh.SubMeshes[0].IndexCount != 36 {
		t.Errorf("submeshes got %+v", mesh.SubMeshes)
	}
	if mesh.VertexData.VertexCount != 24 || len(mesh.VertexData.Channels) != 1 {
		t.Errorf("vertex data got %+v", mesh.VertexData)
	}
}

func TestEngineRoundTrip(t *testing.T) {

	// Projecting must not consume or mutate the source map.
	obj := textureObject(4)
	if _, err := ToTexture2D(obj); err != nil {
		t.Fatal(err)
	}
	width, ok := obj.Map.Get("m_Width")
	if !ok || width != unitybundle.I32Value(64) {
		t.Errorf("source map m_Width got %v, %v after projection", width, ok)
	}
}
