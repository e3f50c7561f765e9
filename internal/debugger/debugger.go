// Package debugger is the interactive REPL for a live [engine.Engine]:
// a small debugger-command subprotocol (help, print_stats,
// print_pmem_regions, print_log_regions), fronted by a liner-based
// readline loop.
package debugger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/calvinalkan/pmemcheck/internal/router"
)

// commands is the known command set, used for both tab completion and the
// "type help" banner.
var commands = []string{
	"help", "print_stats", "print_pmem_regions", "print_log_regions",
	"exit", "quit", "q",
}

// REPL drives router.DispatchText from a liner prompt.
type REPL struct {
	router *router.Router
	liner  *liner.State
	out    router.Printer
}

// New constructs a REPL bound to r. out is used for the startup banner and
// the "unknown command" message; every recognised command's own output
// goes through r via [router.Router.DispatchText].
func New(r *router.Router, out router.Printer) *REPL {
	return &REPL{router: r, out: out}
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".pmemcheck_history")
}

// Run starts the REPL loop and blocks until the user exits or input hits
// EOF. It never returns an error for "not handled" commands; those are
// printed and the loop continues.
func (d *REPL) Run() error {
	d.liner = liner.NewLiner()
	defer d.liner.Close()

	d.liner.SetCtrlCAborts(true)
	d.liner.SetCompleter(d.completer)

	if f, err := os.Open(historyFile()); err == nil {
		d.liner.ReadHistory(f)
		f.Close()
	}

	d.out.Println("pmemcheck debugger. Type 'help' for available commands.")

	for {
		line, err := d.liner.Prompt("pmemcheck> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				d.out.Println("bye")

				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		d.liner.AppendHistory(line)

		switch line {
		case "exit", "quit", "q":
			d.saveHistory()

			return nil
		}

		if err := d.router.DispatchText(line); err != nil {
			d.out.Printf("not handled: %s\n", line)
		}
	}

	d.saveHistory()

	return nil
}

func (d *REPL) saveHistory() {
	path := historyFile()
	if path == "" {
		return
	}

	if f, err := os.Create(path); err == nil {
		d.liner.WriteHistory(f)
		f.Close()
	}
}

func (d *REPL) completer(line string) []string {
	var out []string

	lower := strings.ToLower(line)
	for _, c := range commands {
		if strings.HasPrefix(c, lower) {
			out = append(out, c)
		}
	}

	return out
}
