// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitybundle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// defaultResourcesDir holds the directory resource bootstrap reads from.
// Every open whose Options carries a non-empty DefaultResourcesDir
// overwrites it. Defaults to "res".
var (
	defaultResourcesDirMu sync.Mutex
	defaultResourcesDir   = "res"
)

// setDefaultResourcesDir is called from OpenBundle and NewBytes with
// Options.DefaultResourcesDir; an empty dir leaves the setting unchanged.
// Each of the three singletons below reads the directory once, on first
// use, so a change made after that does not affect an already-loaded one.
func setDefaultResourcesDir(dir string) {
	if dir == "" {
		return
	}
	defaultResourcesDirMu.Lock()
	defer defaultResourcesDirMu.Unlock()
	defaultResourcesDir = dir
}

func resourcesDir() string {
	defaultResourcesDirMu.Lock()
	defer defaultResourcesDirMu.Unlock()
	return defaultResourcesDir
}

var (
	defaultTypeMetaOnce   sync.Once
	defaultTypeMetaResult *TypeMetadata
	defaultTypeMetaErr    error

	defaultStringPoolOnce   sync.Once
	defaultStringPoolResult []byte
	defaultStringPoolErr    error

	classIDMapOnce   sync.Once
	classIDMapResult map[int32]string
	classIDMapErr    error
)

// DefaultTypeMetadata lazily parses the bundled format-15, big-endian
// TypeMetadata blob (res/structs.dat), caching the result (or the error)
// for the lifetime of the process. A failure here does not
// prevent DefaultStringPool or ClassIDMap from succeeding independently.
func DefaultTypeMetadata() (*TypeMetadata, error) {
	defaultTypeMetaOnce.Do(func() {
		path := filepath.Join(resourcesDir(), "structs.dat")
		data, err := os.ReadFile(path)
		if err != nil {
			defaultTypeMetaErr = &ResourceError{Msg: fmt.Sprintf("reading %s: %v", path, err)}
			return
		}
		strings, _ := defaultStringPoolBytesUncached()
		r := NewReader(bytes.NewReader(data), BigEndian)
		meta, err := parseTypeMetadata(r, 15, strings)
		if err != nil {
			defaultTypeMetaErr = &ResourceError{Msg: fmt.Sprintf("parsing %s: %v", path, err)}
			return
		}
		defaultTypeMetaResult = meta
	})
	return defaultTypeMetaResult, defaultTypeMetaErr
}

// DefaultStringPool lazily loads the raw bytes of res/strings.dat, the
// pool negative type-tree name offsets resolve into.
func DefaultStringPool() ([]byte, error) {
	defaultStringPoolOnce.Do(func() {
		defaultStringPoolResult, defaultStringPoolErr = defaultStringPoolBytesUncached()
	})
	return defaultStringPoolResult, defaultStringPoolErr
}

// defaultStringPoolBytesUncached performs the actual read, used both by the
// cached DefaultStringPool and internally by DefaultTypeMetadata (which
// needs the pool before the cached accessor has necessarily run, to avoid a
// circular Once dependency).
func defaultStringPoolBytesUncached() ([]byte, error) {
	path := filepath.Join(resourcesDir(), "strings.dat")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ResourceError{Msg: fmt.Sprintf("reading %s: %v", path, err)}
	}
	return data, nil
}

// defaultStringPoolBytes is the call sites outside resources.go use; it
// goes through the cached singleton.
func defaultStringPoolBytes() ([]byte, error) {
	return DefaultStringPool()
}

// ClassIDMap lazily loads and parses res/classes.json, a {"<id>": "<name>"}
// object, into a map[int32]string.
func ClassIDMap() (map[int32]string, error) {
	classIDMapOnce.Do(func() {
		path := filepath.Join(resourcesDir(), "classes.json")
		data, err := os.ReadFile(path)
		if err != nil {
			classIDMapErr = &ResourceError{Msg: fmt.Sprintf("reading %s: %v", path, err)}
			return
		}
		var raw map[string]string
		if err := json.Unmarshal(data, &raw); err != nil {
			classIDMapErr = &ResourceError{Msg: fmt.Sprintf("parsing %s: %v", path, err)}
			return
		}
		m := make(map[int32]string, len(raw))
		for k, v := range raw {
			var id int32
			if _, err := fmt.Sscanf(k, "%d", &id); err != nil {
				continue
			}
			m[id] = v
		}
		classIDMapResult = m
	})
	return classIDMapResult, classIDMapErr
}

// ClassIDName looks up id in the class-id map, reporting whether it was found.
func ClassIDName(id int32) (string, bool) {
	m, err := ClassIDMap()
	if err != nil {
		return "", false
	}
	name, ok := m[id]
	return name, ok
}
