// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/grove-tools/unitybundle"
	"github.com/spf13/cobra"
)

type bundleHeader struct {
	Name             string `json:"name"`
	FormatVersion    uint32 `json:"format_version"`
	TargetVersion    string `json:"target_version"`
	GeneratorVersion string `json:"generator_version"`
	Compressed       bool   `json:"compressed"`
	NumAssets        int    `json:"num_assets"`
}

type assetSummary struct {
	Name       string `json:"name"`
	Format     uint32 `json:"format"`
	NumObjects int    `json:"num_objects"`
	NumRefs    int    `json:"num_refs"`
}

type objectSummary struct {
	PathID   int64  `json:"path_id"`
	TypeID   int64  `json:"type_id"`
	ClassID  int16  `json:"class_id"`
	Size     uint32 `json:"size"`
	TypeName string `json:"type_name"`
}

func prettyPrint(v interface{}) string {
	buff, err := json.MarshalIndent(v, "", "\t")
	if err != nil {
		log.Println("JSON marshal error: ", err)
		return ""
	}
	return string(buff)
}

func dumpBundle(filename string, cmd *cobra.Command) {
	log.Printf("Processing filename %s", filename)

	b, err := unitybundle.OpenBundle(filename, &unitybundle.Options{})
	if err != nil {
		log.Printf("Error while opening file: %s, reason: %s", filename, err)
		return
	}
	defer b.Close()

	for i := 0; i < b.NumAssets(); i++ {
		if err := b.ResolveAsset(i); err != nil {
			log.Printf("Error while loading asset %d of %s, reason: %s", i, filename, err)
			return
		}
	}

	wantAll, _ := cmd.Flags().GetBool("all")

	wantHeader, _ := cmd.Flags().GetBool("header")
	if wantHeader || wantAll {
		fmt.Println(prettyPrint(bundleHeader{
			Name:             b.Name,
			FormatVersion:    b.FormatVersion,
			TargetVersion:    b.TargetVersion,
			GeneratorVersion: b.GeneratorVersion,
			Compressed:       b.IsCompressed(),
			NumAssets:        b.NumAssets(),
		}))
	}

	wantAssets, _ := cmd.Flags().GetBool("assets")
	if wantAssets || wantAll {
		summaries := make([]assetSummary, 0, b.NumAssets())
		for _, asset := range b.Assets {
			summaries = append(summaries, assetSummary{
				Name:       asset.Name,
				Format:     asset.Format,
				NumObjects: len(asset.Objects),
				NumRefs:    len(asset.Refs),
			})
		}
		fmt.Println(prettyPrint(summaries))
	}

	wantObjects, _ := cmd.Flags().GetBool("objects")
	if wantObjects || wantAll {
		for _, asset := range b.Assets {
			summaries := make([]objectSummary, 0, len(asset.Objects))
			for _, info := range asset.Objects {
				name, err := info.TypeName(asset)
				if err != nil {
					name = "<unresolved>"
				}
				summaries = append(summaries, objectSummary{
					PathID:   info.PathID,
					TypeID:   info.TypeID,
					ClassID:  info.ClassID,
					Size:     info.Size,
					TypeName: name,
				})
			}
			fmt.Println(prettyPrint(summaries))
		}
	}
}
