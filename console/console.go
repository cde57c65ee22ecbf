package console

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	prompt "github.com/c-bata/go-prompt"
)

const (
	defaultPromptPrefix = "> "
	maxHistoryEntries   = 128
)

// Console reads operator commands from an io.Reader (os.Stdin by
// default) and dispatches them through a Registry, exactly as the
// teacher's Console does against its own cmd registry.
type Console struct {
	registry *Registry
	log      *slog.Logger
	reader   io.Reader
	history  []string
}

// New returns a Console dispatching through registry, logging command
// output through log (slog.Default() if nil).
func New(registry *Registry, log *slog.Logger) *Console {
	if log == nil {
		log = slog.Default()
	}
	return &Console{registry: registry, log: log, reader: os.Stdin}
}

// WithReader overrides the input source, for driving a Console from a
// script or a test without os.Stdin.
func (c *Console) WithReader(r io.Reader) *Console {
	if r != nil {
		c.reader = r
	}
	return c
}

// Run consumes commands until ctx is done or the reader reaches EOF.
func (c *Console) Run(ctx context.Context) {
	if c.reader != os.Stdin {
		c.runScanner(ctx)
		return
	}
	c.runInteractive(ctx)
}

func (c *Console) runScanner(ctx context.Context) {
	scanner := bufio.NewScanner(c.reader)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				c.log.Error("console input error", "err", err)
			}
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c.execute(line)
	}
}

func (c *Console) runInteractive(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		line := prompt.Input(defaultPromptPrefix, c.complete,
			prompt.OptionTitle("UniverCity Server Console"),
			prompt.OptionHistory(c.history),
			prompt.OptionPrefix(defaultPromptPrefix),
			prompt.OptionCompletionOnDown(),
			prompt.OptionMaxSuggestion(12),
		)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		c.execute(line)
	}
}

func (c *Console) execute(line string) {
	c.history = append(c.history, line)
	if len(c.history) > maxHistoryEntries {
		c.history = c.history[len(c.history)-maxHistoryEntries:]
	}
	out := c.registry.Execute(line)
	for _, msg := range out.Lines() {
		c.log.Info(msg)
	}
	for _, msg := range out.Errors() {
		c.log.Error(msg)
	}
}

func (c *Console) complete(doc prompt.Document) []prompt.Suggest {
	word := strings.TrimSpace(doc.GetWordBeforeCursor())
	if strings.Contains(strings.TrimRight(doc.TextBeforeCursor(), " "), " ") {
		// Only the command token itself is completed; per-command
		// argument completion is left to the command's own Usage line.
		return nil
	}

	names := c.registry.Names()
	suggestions := make([]prompt.Suggest, 0, len(names))
	for _, name := range names {
		cmd, _ := c.registry.Lookup(name)
		suggestions = append(suggestions, prompt.Suggest{Text: name, Description: cmd.Usage()})
	}
	sort.Slice(suggestions, func(i, j int) bool { return suggestions[i].Text < suggestions[j].Text })
	return prompt.FilterHasPrefix(suggestions, word, true)
}
