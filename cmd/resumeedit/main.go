/*
 * This file is subject to the terms and conditions defined in
 * file 'LICENSE.md', which is part of this source code package.
 */

// Command resumeedit is the CLI entry point for the form-map/patch/verify
// pipeline: it either dumps a PDF's editable FormMap as JSON, or applies a
// caller-supplied replacement set and writes the patched PDF plus a JSON
// report of what changed, what was dropped, and the post-patch verification.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/resumeforge/pdfedit/formmap"
	"github.com/resumeforge/pdfedit/pdfmodel"
)

type options struct {
	pdfPath          string
	mode             string // "formmap" or "apply"
	replacementsPath string
	outPath          string
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "resumeedit: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "resumeedit: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: resumeedit [flags] <pdf>\n")
		flag.PrintDefaults()
	}
	replacements := flag.String("replacements", "", "Path to a JSON array of {field_id, new_text, reasoning} replacements; when set, runs apply mode instead of dumping the form map")
	out := flag.String("out", "output.pdf", "Output PDF path (apply mode only)")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return options{}, fmt.Errorf("missing pdf path")
	}
	opts.pdfPath = flag.Arg(0)
	opts.replacementsPath = *replacements
	opts.outPath = *out
	opts.mode = "formmap"
	if opts.replacementsPath != "" {
		opts.mode = "apply"
	}
	return opts, nil
}

func run(opts options) error {
	data, err := os.ReadFile(opts.pdfPath)
	if err != nil {
		return fmt.Errorf("read pdf: %w", err)
	}
	doc, err := pdfmodel.Load(data)
	if err != nil {
		return fmt.Errorf("load pdf: %w", err)
	}

	fm, idx := formmap.BuildFormMap(doc)

	if opts.mode == "formmap" {
		return emitSection("form_map", fm)
	}

	raw, err := os.ReadFile(opts.replacementsPath)
	if err != nil {
		return fmt.Errorf("read replacements: %w", err)
	}
	var replacements []formmap.Replacement
	if err := json.Unmarshal(raw, &replacements); err != nil {
		return fmt.Errorf("parse replacements: %w", err)
	}

	newBytes, changes, dropped, report, err := formmap.ApplyEdits(doc, idx, replacements)
	if err != nil {
		return fmt.Errorf("apply edits: %w", err)
	}
	if err := os.WriteFile(opts.outPath, newBytes, 0o644); err != nil {
		return fmt.Errorf("write output pdf %q: %w", opts.outPath, err)
	}

	result := struct {
		OutputPath string            `json:"output_path"`
		Changes    []formmap.Change  `json:"changes"`
		Dropped    []formmap.Dropped `json:"dropped"`
		Verified   bool              `json:"verified"`
		Report     interface{}       `json:"report"`
	}{
		OutputPath: opts.outPath,
		Changes:    changes,
		Dropped:    dropped,
		Verified:   report.OK(),
		Report:     report,
	}
	return emitSection("apply_result", result)
}

func emitSection(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	fmt.Printf("%s\n", data)
	return nil
}
