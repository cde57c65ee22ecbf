package console

import (
	"context"
	"strings"
	"testing"
	"time"
)

type recordingCommand struct {
	calls [][]string
}

func (c *recordingCommand) Name() string  { return "echo" }
func (c *recordingCommand) Usage() string { return "echo <text>" }
func (c *recordingCommand) Run(args []string, o *Output) {
	c.calls = append(c.calls, args)
	o.Print(strings.Join(args, " "))
}

func TestRegistryExecuteDispatchesByNameAndAlias(t *testing.T) {
	r := NewRegistry()
	cmd := &recordingCommand{}
	r.Register(cmd, "say")

	out := r.Execute("echo hello world")
	if len(cmd.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(cmd.calls))
	}
	if got := out.Lines(); len(got) != 1 || got[0] != "hello world" {
		t.Fatalf("got lines %v", got)
	}

	r.Execute("say again")
	if len(cmd.calls) != 2 {
		t.Fatalf("expected alias dispatch to also run the command, got %d calls", len(cmd.calls))
	}
}

func TestRegistryExecuteUnknownCommandReportsError(t *testing.T) {
	r := NewRegistry()
	out := r.Execute("nonexistent")
	if len(out.Errors()) != 1 {
		t.Fatalf("expected 1 error, got %v", out.Errors())
	}
}

func TestRegistryExecuteEmptyLineIsNoop(t *testing.T) {
	r := NewRegistry()
	out := r.Execute("   ")
	if len(out.Lines()) != 0 || len(out.Errors()) != 0 {
		t.Fatalf("expected empty output, got lines=%v errors=%v", out.Lines(), out.Errors())
	}
}

func TestConsoleRunScannerExecutesEachLine(t *testing.T) {
	r := NewRegistry()
	cmd := &recordingCommand{}
	r.Register(cmd)

	c := New(r, nil).WithReader(strings.NewReader("echo one\necho two\n"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c.Run(ctx)

	if len(cmd.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(cmd.calls))
	}
}

func TestAllowlistCommandRequiresConfiguration(t *testing.T) {
	cmd := allowlistCommand{allowlist: nil}
	out := &Output{}
	cmd.Run([]string{"on"}, out)
	if len(out.Errors()) != 1 {
		t.Fatalf("expected an error when no allowlist is configured, got %v", out.Errors())
	}
}

type fakeAllowlist struct {
	enabled bool
	names   map[string]bool
}

func newFakeAllowlist() *fakeAllowlist { return &fakeAllowlist{names: make(map[string]bool)} }

func (f *fakeAllowlist) Enabled() bool      { return f.enabled }
func (f *fakeAllowlist) SetEnabled(b bool)  { f.enabled = b }
func (f *fakeAllowlist) Players() []string {
	out := make([]string, 0, len(f.names))
	for n := range f.names {
		out = append(out, n)
	}
	return out
}
func (f *fakeAllowlist) Add(name string) (bool, error) {
	if f.names[name] {
		return false, nil
	}
	f.names[name] = true
	return true, nil
}
func (f *fakeAllowlist) Remove(name string) (bool, error) {
	if !f.names[name] {
		return false, nil
	}
	delete(f.names, name)
	return true, nil
}

func TestAllowlistCommandAddRemove(t *testing.T) {
	fa := newFakeAllowlist()
	cmd := allowlistCommand{allowlist: fa}

	out := &Output{}
	cmd.Run([]string{"add", "Mallory"}, out)
	if !fa.names["Mallory"] {
		t.Fatalf("expected Mallory to be added")
	}

	out = &Output{}
	cmd.Run([]string{"remove", "Mallory"}, out)
	if fa.names["Mallory"] {
		t.Fatalf("expected Mallory to be removed")
	}
}

func TestHelpCommandListsRegisteredUsages(t *testing.T) {
	r := NewRegistry()
	r.Register(&recordingCommand{})
	help := helpCommand{r: r}
	out := &Output{}
	help.Run(nil, out)
	if len(out.Lines()) != 1 || out.Lines()[0] != "echo <text>" {
		t.Fatalf("got %v", out.Lines())
	}
}
