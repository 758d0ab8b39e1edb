package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// expandInputs resolves glob patterns. Matches are restricted to .pdf files
// and sorted per pattern; literal paths are kept as given, existing or not,
// so that a missing file is reported by the loader.
func expandInputs(inputs []string) ([]string, error) {
	var out []string
	for _, in := range inputs {
		if !hasMeta(in) {
			out = append(out, in)
			continue
		}
		matches, err := filepath.Glob(in)
		if err != nil {
			return nil, fmt.Errorf("input pattern %q: %w", in, err)
		}
		var pdfs []string
		for _, m := range matches {
			if strings.EqualFold(filepath.Ext(m), ".pdf") {
				pdfs = append(pdfs, m)
			}
		}
		sort.Strings(pdfs)
		out = append(out, pdfs...)
	}
	return out, nil
}

func hasMeta(path string) bool {
	return strings.ContainsAny(path, `*?[`)
}
