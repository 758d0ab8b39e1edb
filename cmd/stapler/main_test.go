package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExpandInputs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.PDF", "c.txt", "d.pdf"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := expandInputs([]string{
		filepath.Join(dir, "d.pdf"),
		filepath.Join(dir, "*"),
		filepath.Join(dir, "missing.pdf"),
		filepath.Join(dir, "none-*.pdf"),
	})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	want := []string{
		filepath.Join(dir, "d.pdf"),
		filepath.Join(dir, "a.PDF"),
		filepath.Join(dir, "b.pdf"),
		filepath.Join(dir, "d.pdf"),
		filepath.Join(dir, "missing.pdf"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("inputs (-want +got):\n%s", diff)
	}
	if _, err := expandInputs([]string{"["}); err == nil {
		t.Fatalf("expected a pattern error")
	}
}

func TestParseFlagsInputs(t *testing.T) {
	opts, err := parseFlags([]string{"-i", "a.pdf b.pdf", "-i", "c.pdf", "-o", "out.pdf", "-c", "d.pdf"}, io.Discard)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if diff := cmp.Diff([]string{"a.pdf", "b.pdf", "c.pdf", "d.pdf"}, opts.job.Inputs); diff != "" {
		t.Fatalf("inputs (-want +got):\n%s", diff)
	}
	if opts.job.Output != "out.pdf" || !opts.job.Compress || !opts.job.IsStrict() || opts.job.Parallelism != 1 {
		t.Fatalf("unexpected job %+v", opts.job)
	}
	if opts.logLevel != slog.LevelInfo {
		t.Fatalf("default level should be info, got %v", opts.logLevel)
	}
}

func TestParseFlagsOverrideJobFile(t *testing.T) {
	dir := t.TempDir()
	job := filepath.Join(dir, "job.yaml")
	src := "inputs: [x.pdf, y.pdf]\noutput: job.pdf\ncompress: true\nstrict: false\nparallelism: 3\nlog-level: warn\n"
	if err := os.WriteFile(job, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	opts, err := parseFlags([]string{"-config", job, "-o", "flag.pdf", "-v"}, io.Discard)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.job.Output != "flag.pdf" {
		t.Fatalf("flag should override output, got %q", opts.job.Output)
	}
	if diff := cmp.Diff([]string{"x.pdf", "y.pdf"}, opts.job.Inputs); diff != "" {
		t.Fatalf("inputs (-want +got):\n%s", diff)
	}
	if opts.job.IsStrict() || opts.job.Parallelism != 3 || !opts.job.Compress {
		t.Fatalf("job file values lost: %+v", opts.job)
	}
	if opts.logLevel != slog.LevelDebug {
		t.Fatalf("-v should select debug, got %v", opts.logLevel)
	}
}

func TestParseFlagsUsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{"a.pdf", "b.pdf"},
		{"-o", "out.pdf"},
		{"-unknown"},
		{"-j", "-2", "-o", "out.pdf", "a.pdf"},
	} {
		if _, err := parseFlags(args, io.Discard); err == nil {
			t.Fatalf("%q: expected an error", args)
		}
	}
}

func TestParseFlagsCompleteIncompleteJobFile(t *testing.T) {
	dir := t.TempDir()
	job := filepath.Join(dir, "job.yaml")
	if err := os.WriteFile(job, []byte("inputs: [a.pdf, b.pdf]\ncompress: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	opts, err := parseFlags([]string{"-config", job, "-o", "out.pdf"}, io.Discard)
	if err != nil {
		t.Fatalf("-o should supply the missing output: %v", err)
	}
	if opts.job.Output != "out.pdf" || !opts.job.Compress {
		t.Fatalf("unexpected job %+v", opts.job)
	}

	if _, err := parseFlags([]string{"-config", job}, io.Discard); err == nil {
		t.Fatalf("a job without output and no -o must be rejected")
	}
}
