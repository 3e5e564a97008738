// Package cli holds terminal helpers shared by the grokconv commands:
// output formatting, file locations, request file loading and styles.
//
// Configuration lives in ~/.grokconv/config.yaml unless --config names
// another file.
package cli
