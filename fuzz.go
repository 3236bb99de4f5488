// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitybundle

// Fuzz is the go-fuzz entry point: parse an in-memory bundle and walk every
// asset's object table.
func Fuzz(data []byte) int {
	b, err := NewBytes(data, &Options{})
	if err != nil {
		return 0
	}
	for i := 0; i < b.NumAssets(); i++ {
		if err := b.ResolveAsset(i); err != nil {
			return 0
		}
	}
	return 1
}
