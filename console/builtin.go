package console

import (
	"fmt"
	"sort"
	"strings"

	"github.com/thinkofname/univercity-core/univercity"
)

// ServerAdapter is the subset of *univercity.Server the builtin commands
// need, narrowed to an interface (mirroring the teacher's serverAdapter)
// so tests can exercise the commands against a fake.
type ServerAdapter interface {
	Players() []*univercity.Player
	Close() error
}

// AllowlistAdapter is the subset of *univercity.Allowlist the allowlist
// command needs.
type AllowlistAdapter interface {
	Enabled() bool
	SetEnabled(bool)
	Add(name string) (bool, error)
	Remove(name string) (bool, error)
	Players() []string
}

// RegisterBuiltins adds the standard operator commands to r.
func RegisterBuiltins(r *Registry, srv ServerAdapter, allowlist AllowlistAdapter) {
	r.Register(stopCommand{srv: srv})
	r.Register(listCommand{srv: srv}, "players")
	r.Register(kickCommand{srv: srv})
	r.Register(allowlistCommand{allowlist: allowlist}, "whitelist")
	r.Register(helpCommand{r: r})
}

type stopCommand struct{ srv ServerAdapter }

func (stopCommand) Name() string  { return "stop" }
func (stopCommand) Usage() string { return "stop" }
func (c stopCommand) Run(_ []string, o *Output) {
	o.Print("stopping server...")
	if err := c.srv.Close(); err != nil {
		o.Error(err)
	}
}

type listCommand struct{ srv ServerAdapter }

func (listCommand) Name() string  { return "list" }
func (listCommand) Usage() string { return "list" }
func (c listCommand) Run(_ []string, o *Output) {
	players := c.srv.Players()
	names := make([]string, 0, len(players))
	for _, p := range players {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	o.Printf("%d player(s) online", len(names))
	if len(names) != 0 {
		o.Print(strings.Join(names, ", "))
	}
}

type kickCommand struct{ srv ServerAdapter }

func (kickCommand) Name() string  { return "kick" }
func (kickCommand) Usage() string { return "kick <player>" }
func (c kickCommand) Run(args []string, o *Output) {
	if len(args) == 0 {
		o.Error(fmt.Errorf("usage: %s", kickCommand{}.Usage()))
		return
	}
	target := args[0]
	for _, p := range c.srv.Players() {
		if strings.EqualFold(p.Name, target) {
			p.Session.Close()
			o.Printf("kicked %s", p.Name)
			return
		}
	}
	o.Error(fmt.Errorf("no player named %q online", target))
}

type allowlistCommand struct{ allowlist AllowlistAdapter }

func (allowlistCommand) Name() string { return "allowlist" }
func (allowlistCommand) Usage() string {
	return "allowlist <on|off|add|remove|list> [name]"
}
func (c allowlistCommand) Run(args []string, o *Output) {
	if c.allowlist == nil {
		o.Error(fmt.Errorf("allowlist is not configured"))
		return
	}
	if len(args) == 0 {
		o.Error(fmt.Errorf("usage: %s", allowlistCommand{}.Usage()))
		return
	}
	switch strings.ToLower(args[0]) {
	case "on":
		c.allowlist.SetEnabled(true)
		o.Print("allowlist enabled")
	case "off":
		c.allowlist.SetEnabled(false)
		o.Print("allowlist disabled")
	case "add":
		if len(args) < 2 {
			o.Error(fmt.Errorf("usage: allowlist add <name>"))
			return
		}
		added, err := c.allowlist.Add(args[1])
		if err != nil {
			o.Error(err)
			return
		}
		if added {
			o.Printf("added %s to the allowlist", args[1])
		} else {
			o.Printf("%s is already on the allowlist", args[1])
		}
	case "remove":
		if len(args) < 2 {
			o.Error(fmt.Errorf("usage: allowlist remove <name>"))
			return
		}
		removed, err := c.allowlist.Remove(args[1])
		if err != nil {
			o.Error(err)
			return
		}
		if removed {
			o.Printf("removed %s from the allowlist", args[1])
		} else {
			o.Printf("%s was not on the allowlist", args[1])
		}
	case "list":
		names := c.allowlist.Players()
		o.Printf("%d name(s) on the allowlist", len(names))
		if len(names) != 0 {
			o.Print(strings.Join(names, ", "))
		}
	default:
		o.Error(fmt.Errorf("usage: %s", allowlistCommand{}.Usage()))
	}
}

type helpCommand struct{ r *Registry }

func (helpCommand) Name() string  { return "help" }
func (helpCommand) Usage() string { return "help" }
func (c helpCommand) Run(_ []string, o *Output) {
	for _, name := range c.r.Names() {
		cmd, _ := c.r.Lookup(name)
		o.Print(cmd.Usage())
	}
}
