package replay

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/pmemcheck/internal/checkerconfig"
	"github.com/calvinalkan/pmemcheck/internal/checkpoint"
	"github.com/calvinalkan/pmemcheck/internal/debugger"
	"github.com/calvinalkan/pmemcheck/internal/engine"
	"github.com/calvinalkan/pmemcheck/internal/fs"
	"github.com/calvinalkan/pmemcheck/internal/router"
)

// DebugCmd replays a recorded event stream, then drops into an interactive
// REPL over the resulting engine state. With --checkpoint, the session
// resumes from (and, on exit, saves back to) a checkpoint file instead of
// starting from a fresh engine, so a long debugging session survives a
// restart.
func DebugCmd(cfg checkerconfig.Config) *Command {
	flags := flag.NewFlagSet("debug", flag.ContinueOnError)
	checkpointPath := flags.String("checkpoint", "", "Resume from (and save back to) this checkpoint file")

	return &Command{
		Flags: flags,
		Usage: "debug <event-file>",
		Short: "Replay an event stream, then inspect it interactively",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one event-file argument, got %d", len(args))
			}

			e, r, err := buildEngine(cfg, o)
			if err != nil {
				return err
			}

			fsys := fs.NewReal()

			if *checkpointPath == "" {
				if err := replayInto(e, r, o, args[0]); err != nil {
					return err
				}

				repl := debugger.New(r, o)

				return repl.Run()
			}

			lock, err := checkpoint.Lock(fsys, *checkpointPath)
			if err != nil {
				return fmt.Errorf("acquiring checkpoint lock: %w", err)
			}
			defer lock.Close()

			if exists, err := fsys.Exists(*checkpointPath); err != nil {
				return fmt.Errorf("checking checkpoint: %w", err)
			} else if exists {
				state, err := checkpoint.Load(fsys, *checkpointPath)
				if err != nil {
					return err
				}

				if err := e.Restore(state.Snapshot); err != nil {
					return fmt.Errorf("restoring checkpoint: %w", err)
				}

				o.Printf("resumed from checkpoint %s\n", *checkpointPath)
			} else if err := replayInto(e, r, o, args[0]); err != nil {
				return err
			}

			repl := debugger.New(r, o)
			replErr := repl.Run()

			saveErr := checkpoint.Save(fsys, *checkpointPath, checkpoint.State{Snapshot: e.Snapshot()})
			if saveErr != nil {
				o.WarnLLM(fmt.Sprintf("could not save checkpoint: %v", saveErr), "check that the checkpoint path is writable")
			}

			return replErr
		},
	}
}

func replayInto(e *engine.Engine, r *router.Router, o *IO, eventFile string) error {
	events, err := loadEventFile(eventFile)
	if err != nil {
		return err
	}

	return Apply(events, e, r, o)
}
