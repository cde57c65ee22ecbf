package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestAllowlistAddListRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allow.toml")
	var out bytes.Buffer

	if code := run([]string{"allowlist", "--allowlist", path, "add", "Finn"}, &out, &out); code != 0 {
		t.Fatalf("add: exit code %d, output %q", code, out.String())
	}
	out.Reset()

	if code := run([]string{"allowlist", "--allowlist", path, "list"}, &out, &out); code != 0 {
		t.Fatalf("list: exit code %d, output %q", code, out.String())
	}
	if !strings.Contains(out.String(), "Finn") {
		t.Fatalf("expected Finn in output, got %q", out.String())
	}
}

func TestUnknownCommandFails(t *testing.T) {
	var out bytes.Buffer
	if code := run([]string{"bogus"}, &out, &out); code == 0 {
		t.Fatalf("expected a non-zero exit code for an unknown command")
	}
}
