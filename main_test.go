// ABOUTME: Tests for CLI helpers
// ABOUTME: Covers flag override mapping and TUI log output filtering
package main

import (
	"flag"
	"reflect"
	"testing"
)

func TestFileOutputs(t *testing.T) {
	tests := []struct {
		name    string
		outputs []string
		want    []string
	}{
		{"nil", nil, []string{defaultLogFile}},
		{"terminal only", []string{"stdout", "stderr"}, []string{defaultLogFile}},
		{"mixed", []string{"stdout", "logs/a.log"}, []string{"logs/a.log"}},
		{"files", []string{"a.log", "b.log"}, []string{"a.log", "b.log"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fileOutputs(tt.outputs); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFlagOverridesOnlySetFlags(t *testing.T) {
	if got := flagOverrides(); len(got) != 0 {
		t.Fatalf("expected no overrides before parsing, got %v", got)
	}

	if err := flag.CommandLine.Parse([]string{"-pitch", "1.5", "-log-file", "out.log", "-no-tui", "song.mp3"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	t.Cleanup(func() { _ = flag.CommandLine.Parse(nil) })

	got := flagOverrides()
	want := map[string]any{
		"pitch":       1.5,
		"log.outputs": []string{"stdout", "out.log"},
		"no_tui":      true,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if flag.Arg(0) != "song.mp3" {
		t.Errorf("expected positional file, got %q", flag.Arg(0))
	}
}
