// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package engine

import (
	"unicode/utf8"

	"github.com/grove-tools/unitybundle"
)

// TextAssetScript is the payload of a TextAsset: valid UTF-8 text or
// arbitrary bytes.
type TextAssetScript struct {
	Plain  string
	Binary []byte
}

// IsPlain reports whether the script holds text rather than raw bytes.
func (s TextAssetScript) IsPlain() bool { return s.Binary == nil }

// TextAsset is the typed projection of a decoded TextAsset.
type TextAsset struct {
	Object
	Path   string
	Script TextAssetScript
}

// ToTextAsset projects obj into a TextAsset record. m_PathName is
// optional; m_Script splits into plain text or binary on UTF-8 validity.
func ToTextAsset(obj unitybundle.EngineObject) (*TextAsset, error) {
	m := obj.Map

	object, err := newObject(m)
	if err != nil {
		return nil, err
	}

	var path string
	if val, ok := m.Get("m_PathName"); ok {
		path, err = unitybundle.AsString(val)
		if err != nil {
			return nil, &unitybundle.EngineError{Msg: "m_PathName: " + err.Error()}
		}
	}

	raw, err := getString(m, "m_Script")
	if err != nil {
		return nil, err
	}
	script := TextAssetScript{Plain: raw}
	if !utf8.ValidString(raw) {
		script = TextAssetScript{Binary: []byte(raw)}
	}

	return &TextAsset{
		Object: object,
		Path:   path,
		Script: script,
	}, nil
}
