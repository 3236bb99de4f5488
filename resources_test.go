// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitybundle

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// TestMain fabricates a resource directory (structs.dat, strings.dat,
// classes.json) so the default-metadata fallbacks have something to load,
// and points the process-wide bootstrap at it before any test runs.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "unitybundle-res")
	if err != nil {
		os.Exit(1)
	}

	if err := os.WriteFile(filepath.Join(dir, "strings.dat"),
		[]byte("bool\x00int\x00float\x00string\x00"), 0644); err != nil {
		os.Exit(1)
	}
	if err := os.WriteFile(filepath.Join(dir, "classes.json"),
		[]byte(`{"1": "GameObject", "28": "Texture2D", "49": "TextAsset"}`), 0644); err != nil {
		os.Exit(1)
	}
	if err := os.WriteFile(filepath.Join(dir, "structs.dat"), buildStructsBlob(), 0644); err != nil {
		os.Exit(1)
	}

	setDefaultResourcesDir(dir)
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

// buildStructsBlob serializes a minimal format-15, big-endian TypeMetadata
// blob holding one Texture2D tree.
func buildStructsBlob() []byte {
	var buf bytes.Buffer
	buf.WriteString("5.6.1f1")
	buf.WriteByte(0)
	binary.Write(&buf, binary.BigEndian, uint32(5)) // target platform
	buf.WriteByte(1)                                // has type trees
	binary.Write(&buf, binary.BigEndian, uint32(1)) // num types
	binary.Write(&buf, binary.BigEndian, int32(28)) // Texture2D
	buf.Write(make([]byte, 0x10))                   // hash

	pool := []byte("Texture2D\x00Base\x00int\x00m_Width\x00m_Height\x00")
	buf.Write(buildBlobTree([]blobNode{
		{depth: 0, typeNameOffset: 0, fieldNameOffset: 10, size: -1},
		{depth: 1, typeNameOffset: 15, fieldNameOffset: 19, size: 4},
		{depth: 1, typeNameOffset: 15, fieldNameOffset: 27, size: 4},
	}, pool))
	return buf.Bytes()
}

func TestDefaultTypeMetadata(t *testing.T) {

	meta, err := DefaultTypeMetadata()
	if err != nil {
		t.Fatalf("DefaultTypeMetadata failed, reason: %v", err)
	}
	if len(meta.ClassIDs) == 0 {
		t.Error("default metadata has no class ids")
	}
	if len(meta.Trees) == 0 {
		t.Fatal("default metadata has no type trees")
	}
	tree, ok := meta.Trees[28]
	if !ok || tree.TypeName != "Texture2D" {
		t.Errorf("Trees[28] got %v, %v", tree, ok)
	}
}

func TestDefaultStringPool(t *testing.T) {

	pool, err := DefaultStringPool()
	if err != nil {
		t.Fatalf("DefaultStringPool failed, reason: %v", err)
	}
	if cStringAt(pool, 5) != "int" {
		t.Errorf("cStringAt(pool, 5) got %q, want %q", cStringAt(pool, 5), "int")
	}
	if cStringAt(pool, len(pool)+10) != "" {
		t.Error("out-of-range offset should yield an empty string")
	}
}

func TestClassIDMap(t *testing.T) {

	tests := []struct {
		id   int32
		name string
		ok   bool
	}{
		{1, "GameObject", true},
		{28, "Texture2D", true},
		{49, "TextAsset", true},
		{9999, "", false},
	}

	for _, tt := range tests {
		name, ok := ClassIDName(tt.id)
		if name != tt.name || ok != tt.ok {
			t.Errorf("ClassIDName(%d) got %q, %v, want %q, %v", tt.id, name, ok, tt.name, tt.ok)
		}
	}
}
