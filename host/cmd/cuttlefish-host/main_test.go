package main

import (
	"bytes"
	"flag"
	"testing"
)

func TestExecLineFlag(t *testing.T) {
	f := flag.Lookup("c")
	if f == nil {
		t.Fatal("Expected a -c flag")
	}
	if f.DefValue != "" || *execLine != "" {
		t.Errorf("Expected an empty default, got %q", f.DefValue)
	}

	// -c runs through the same dispatcher as the REPL
	fc := &fakeClient{}
	if err := flag.Set("c", "dir 0x03"); err != nil {
		t.Fatalf("Setting -c failed: %v", err)
	}
	defer flag.Set("c", "")
	if err := runLine(fc, *execLine, &bytes.Buffer{}); err != nil {
		t.Fatalf("runLine(%q) failed: %v", *execLine, err)
	}
	if fc.dir != 0x03 {
		t.Errorf("Expected direction 0x03, got 0x%x", fc.dir)
	}
}
