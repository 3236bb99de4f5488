// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package main exports a minimal C ABI over the bundle decoder, built with
// -buildmode=c-shared. Bundles and assets are referred to by opaque
// handles owned by the library; strings returned to C must be released
// through unitybundle_free_string, bundles through
// unitybundle_destroy_bundle.
package main

/*
#include <stdint.h>
#include <stdlib.h>
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/grove-tools/unitybundle"
)

var (
	mu         sync.Mutex
	nextHandle C.uint64_t = 1
	bundles               = make(map[C.uint64_t]*unitybundle.Bundle)
	assets                = make(map[C.uint64_t]*assetRef)
)

type assetRef struct {
	bundle C.uint64_t
	asset  *unitybundle.Asset
}

//export unitybundle_open_bundle
func unitybundle_open_bundle(path *C.char) C.uint64_t {
	b, err := unitybundle.OpenBundle(C.GoString(path), nil)
	if err != nil {
		return 0
	}
	mu.Lock()
	defer mu.Unlock()
	h := nextHandle
	nextHandle++
	bundles[h] = b
	return h
}

//export unitybundle_destroy_bundle
func unitybundle_destroy_bundle(handle C.uint64_t) {
	mu.Lock()
	defer mu.Unlock()
	b, ok := bundles[handle]
	if !ok {
		return
	}
	b.Close()
	delete(bundles, handle)
	for h, ref := range assets {
		if ref.bundle == handle {
			delete(assets, h)
		}
	}
}

//export unitybundle_num_assets
func unitybundle_num_assets(handle C.uint64_t) C.uint32_t {
	mu.Lock()
	defer mu.Unlock()
	b, ok := bundles[handle]
	if !ok {
		return 0
	}
	return C.uint32_t(b.NumAssets())
}

//export unitybundle_get_asset
func unitybundle_get_asset(handle C.uint64_t, i C.uint32_t) C.uint64_t {
	mu.Lock()
	defer mu.Unlock()
	b, ok := bundles[handle]
	if !ok || int(i) >= b.NumAssets() {
		return 0
	}
	h := nextHandle
	nextHandle++
	assets[h] = &assetRef{bundle: handle, asset: b.Assets[i]}
	return h
}

//export unitybundle_get_asset_name
func unitybundle_get_asset_name(handle C.uint64_t) *C.char {
	mu.Lock()
	defer mu.Unlock()
	ref, ok := assets[handle]
	if !ok {
		return nil
	}
	return C.CString(ref.asset.Name)
}

//export unitybundle_free_string
func unitybundle_free_string(s *C.char) {
	if s == nil {
		return
	}
	C.free(unsafe.Pointer(s))
}

//export unitybundle_num_objects
func unitybundle_num_objects(bundleHandle C.uint64_t, assetHandle C.uint64_t) C.uint32_t {
	mu.Lock()
	b, okB := bundles[bundleHandle]
	ref, okA := assets[assetHandle]
	mu.Unlock()
	if !okB || !okA || ref.bundle != bundleHandle {
		return 0
	}
	for i := 0; i < b.NumAssets(); i++ {
		if b.Assets[i] == ref.asset {
			if err := b.ResolveAsset(i); err != nil {
				return 0
			}
			break
		}
	}
	return C.uint32_t(len(ref.asset.Objects))
}

func main() {}
