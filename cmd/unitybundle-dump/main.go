// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	verbose bool
	header  bool
	assets  bool
	objects bool
	all     bool
)

func isDirectory(path string) bool {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fileInfo.IsDir()
}

func dump(cmd *cobra.Command, args []string) {
	filePath := args[0]

	// filePath points to a file.
	if !isDirectory(filePath) {
		dumpBundle(filePath, cmd)

	} else {
		// filePath points to a directory,
		// walk recursively through all files.
		fileList := []string{}
		filepath.Walk(filePath, func(path string, f os.FileInfo, err error) error {
			if !isDirectory(path) {
				fileList = append(fileList, path)
			}
			return nil
		})

		for _, file := range fileList {
			dumpBundle(file, cmd)
		}
	}
}

func main() {

	var rootCmd = &cobra.Command{
		Use:   "unitybundle-dump",
		Short: "A Unity AssetBundle parser",
		Long:  "A read-only decoder for Unity AssetBundle and SerializedFile formats",
		Run: func(cmd *cobra.Command, args []string) {
		},
	}

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Long:  "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print("You are using version 0.0.1")
		},
	}

	var dumpCmd = &cobra.Command{
		Use:   "dump",
		Short: "Dumps the bundle",
		Long:  "Dumps interesting structure of a Unity AssetBundle file",
		Args:  cobra.MinimumNArgs(1),
		Run:   dump,
	}

	// Init root command.
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(dumpCmd)

	// Init flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	dumpCmd.Flags().BoolVarP(&header, "header", "", false, "Dump bundle header")
	dumpCmd.Flags().BoolVarP(&assets, "assets", "", false, "Dump asset list")
	dumpCmd.Flags().BoolVarP(&objects, "objects", "", false, "Dump object tables")
	dumpCmd.Flags().BoolVarP(&all, "all", "", false, "Dump everything")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

}
