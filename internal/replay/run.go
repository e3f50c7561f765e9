package replay

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/pmemcheck/internal/checkerconfig"
)

// Run is pmemcheck's entry point. Returns the process exit code. sigCh may
// be nil when signal handling isn't needed (tests).
func Run(_ io.Reader, out, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	globalFlags := flag.NewFlagSet("pmemcheck", flag.ContinueOnError)
	globalFlags.SetInterspersed(false)
	globalFlags.Usage = func() {}
	globalFlags.SetOutput(&strings.Builder{})

	flagHelp := globalFlags.BoolP("help", "h", false, "Show help")
	flagCwd := globalFlags.StringP("cwd", "C", "", "Run as if started in `dir`")
	flagConfigPath := globalFlags.StringP("config", "c", "", "Use specified config `file`")
	flagMultStores := globalFlags.String("mult-stores", "", "Track overwrites: yes|no")
	flagIndiff := globalFlags.Uint64("indiff", 0, "Superblock indifference window")
	flagIndiffSet := false
	flagLogStores := globalFlags.String("log-stores", "", "Emit the durability log stream: yes|no")
	flagPrintSummary := globalFlags.String("print-summary", "", "Print the reporter summary at teardown: yes|no")
	flagFlushCheck := globalFlags.String("flush-check", "", "Detect redundant flushes: yes|no")
	flagFlushAlign := globalFlags.Uint64("flush-align", 0, "Override the cache-line size used for flush alignment")

	if err := globalFlags.Parse(args[1:]); err != nil {
		fprintln(errOut, "error:", err)
		printGlobalOptions(errOut)

		return 1
	}

	flagIndiffSet = globalFlags.Changed("indiff")

	overrides, err := parseOverrides(*flagMultStores, *flagLogStores, *flagPrintSummary, *flagFlushCheck, *flagIndiff, flagIndiffSet, *flagFlushAlign)
	if err != nil {
		fprintln(errOut, "error:", err)
		printGlobalOptions(errOut)

		return 1
	}

	cfg, err := checkerconfig.Load(checkerconfig.LoadInput{
		WorkDirOverride: *flagCwd,
		ConfigPath:      *flagConfigPath,
		Env:             env,
		CLI:             overrides,
	})
	if err != nil {
		fprintln(errOut, "error:", err)
		printGlobalOptions(errOut)

		return 1
	}

	commands := allCommands(cfg)

	commandMap := make(map[string]*Command, len(commands))
	for _, cmd := range commands {
		commandMap[cmd.Name()] = cmd
	}

	commandAndArgs := globalFlags.Args()

	if *flagHelp || (len(commandAndArgs) == 0 && globalFlags.NFlag() == 0) {
		printUsage(out, commands)

		return 0
	}

	if len(commandAndArgs) == 0 {
		fprintln(errOut, "error: no command provided")
		printUsage(errOut, commands)

		return 1
	}

	cmdName := commandAndArgs[0]

	cmd, ok := commandMap[cmdName]
	if !ok {
		fprintln(errOut, "error: unknown command:", cmdName)
		printUsage(errOut, commands)

		return 1
	}

	cmdIO := NewIO(out, errOut)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan int, 1)

	go func() {
		done <- cmd.Run(ctx, cmdIO, commandAndArgs[1:])
	}()

	select {
	case exitCode := <-done:
		if exitCode != 0 {
			return exitCode
		}

		return cmdIO.Finish()
	case <-sigCh:
		fprintln(errOut, "shutting down with 5s timeout...")
		cancel()
	}

	select {
	case <-done:
		fprintln(errOut, "graceful shutdown ok (130)")

		return 130
	case <-time.After(5 * time.Second):
		fprintln(errOut, "graceful shutdown timed out, forced exit (130)")

		return 130
	case <-sigCh:
		fprintln(errOut, "graceful shutdown interrupted, forced exit (130)")

		return 130
	}
}

func parseOverrides(multStores, logStores, printSummary, flushCheck string, indiff uint64, indiffSet bool, flushAlign uint64) (checkerconfig.Overrides, error) {
	var o checkerconfig.Overrides

	var err error

	if o.MultStores, err = yesNoFlag(multStores); err != nil {
		return o, fmt.Errorf("--mult-stores: %w", err)
	}

	if o.LogStores, err = yesNoFlag(logStores); err != nil {
		return o, fmt.Errorf("--log-stores: %w", err)
	}

	if o.PrintSummary, err = yesNoFlag(printSummary); err != nil {
		return o, fmt.Errorf("--print-summary: %w", err)
	}

	if o.FlushCheck, err = yesNoFlag(flushCheck); err != nil {
		return o, fmt.Errorf("--flush-check: %w", err)
	}

	if indiffSet {
		o.Indiff = &indiff
	}

	if flushAlign != 0 {
		o.FlushAlign = &flushAlign
	}

	return o, nil
}

func yesNoFlag(v string) (*bool, error) {
	switch v {
	case "":
		return nil, nil
	case "yes":
		b := true

		return &b, nil
	case "no":
		b := false

		return &b, nil
	default:
		return nil, fmt.Errorf("expected yes|no, got %q", v)
	}
}

// allCommands returns every subcommand in display order. Dependencies are
// captured via closures in each constructor.
func allCommands(cfg checkerconfig.Config) []*Command {
	return []*Command{
		TraceCmd(cfg),
		DebugCmd(cfg),
		QueryCmd(cfg),
	}
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

const globalOptionsHelp = `  -h, --help                 Show help
  -C, --cwd <dir>            Run as if started in <dir>
  -c, --config <file>        Use specified config file
  --mult-stores=<yes|no>     Track overwrites (default no)
  --indiff=<uint>            Superblock indifference window (default 0)
  --log-stores=<yes|no>      Emit the durability log stream (default no)
  --print-summary=<yes|no>   Print the reporter summary at teardown (default yes)
  --flush-check=<yes|no>     Detect redundant flushes (default no)
  --flush-align=<uint>       Override the cache-line size used for flush alignment`

func printGlobalOptions(w io.Writer) {
	fprintln(w, "Usage: pmemcheck [flags] <command> [args]")
	fprintln(w)
	fprintln(w, "Global flags:")
	fprintln(w, globalOptionsHelp)
	fprintln(w)
	fprintln(w, "Run 'pmemcheck --help' for a list of commands.")
}

func printUsage(w io.Writer, commands []*Command) {
	fprintln(w, "pmemcheck - a persistent-memory correctness checker")
	fprintln(w)
	fprintln(w, "Usage: pmemcheck [flags] <command> [args]")
	fprintln(w)
	fprintln(w, "Flags:")
	fprintln(w, globalOptionsHelp)
	fprintln(w)
	fprintln(w, "Commands:")

	for _, cmd := range commands {
		fprintln(w, cmd.HelpLine())
	}
}
