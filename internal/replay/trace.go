package replay

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/pmemcheck/internal/checkerconfig"
	"github.com/calvinalkan/pmemcheck/internal/engine"
	"github.com/calvinalkan/pmemcheck/internal/host"
	"github.com/calvinalkan/pmemcheck/internal/logsink"
	"github.com/calvinalkan/pmemcheck/internal/router"
	"github.com/calvinalkan/pmemcheck/internal/sessionstore"
)

// TraceCmd replays a recorded event stream through a fresh engine and
// prints the reporter summary, persisting it to the session store unless
// --no-persist is given.
func TraceCmd(cfg checkerconfig.Config) *Command {
	flags := flag.NewFlagSet("trace", flag.ContinueOnError)
	noPersist := flags.Bool("no-persist", false, "Don't write the run's summary to the session store")

	return &Command{
		Flags: flags,
		Usage: "trace <event-file>",
		Short: "Replay a recorded event stream and print the durability summary",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one event-file argument, got %d", len(args))
			}

			e, r, err := buildEngine(cfg, o)
			if err != nil {
				return err
			}

			events, err := loadEventFile(args[0])
			if err != nil {
				return err
			}

			if err := Apply(events, e, r, o); err != nil {
				return err
			}

			summary := e.Teardown()
			if cfg.Global.PrintSummary {
				printSummaryLines(o, summary)
			}

			if !*noPersist {
				if err := persistSummary(ctx, cfg, summary); err != nil {
					o.WarnLLM(fmt.Sprintf("could not persist session summary: %v", err), "check that the session store directory is writable")
				}
			}

			return nil
		},
	}
}

func buildEngine(cfg checkerconfig.Config, o *IO) (*engine.Engine, *router.Router, error) {
	probe := host.NewReal()

	globalCfg := cfg.Global
	if globalCfg.FlushAlign == 0 {
		globalCfg.FlushAlign = probe.CacheLineSize()
	}

	var logger engine.Logger
	if globalCfg.LogStores {
		logger = logsink.New(o.out)
	}

	callSite := func() engine.CallSite {
		return engine.CallSite{Frames: host.CallSite(1)}
	}

	e := engine.New(globalCfg, callSite, logger)
	r := router.New(e, o, nil)

	return e, r, nil
}

func loadEventFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening event file: %w", err)
	}
	defer f.Close()

	events, err := ParseEventStream(f)
	if err != nil {
		return nil, err
	}

	return events, nil
}

func printSummaryLines(o *IO, s engine.Summary) {
	o.Printf("non-persistent stores: %d (%d bytes)\n", len(s.NonPersistent), s.NonPersistentBytes)

	for _, d := range s.NonPersistent {
		o.Printf("  0x%x (%d bytes) state=%s at %s\n", d.Addr, d.Size, d.State, d.CallSite)
	}

	if s.Overwrites != nil {
		o.Printf("overwrites: %d\n", len(s.Overwrites))
	}

	if s.MultiFlushes != nil {
		o.Printf("redundant flushes: %d\n", len(s.MultiFlushes))
	}
}

func persistSummary(ctx context.Context, cfg checkerconfig.Config, s engine.Summary) error {
	dir := sessionStoreDir(cfg)

	store, err := sessionstore.Open(ctx, dir)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer store.Close()

	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	now := time.Now()

	rec := sessionstore.Record{
		Host:               host,
		ConfigDigest:       configDigest(cfg.Global),
		StartedAt:          now,
		FinishedAt:         now,
		NonPersistentBytes: s.NonPersistentBytes,
		NonPersistentCount: len(s.NonPersistent),
		OverwriteCount:     len(s.Overwrites),
		MultiFlushCount:    len(s.MultiFlushes),
		NonPersistent:      toDetailRecords(s.NonPersistent),
		Overwrites:         toDetailRecords(s.Overwrites),
		MultiFlushes:       toDetailRecords(s.MultiFlushes),
	}

	_, err = store.Append(ctx, rec)

	return err
}

func toDetailRecords(ds []engine.Detail) []sessionstore.DetailRecord {
	out := make([]sessionstore.DetailRecord, 0, len(ds))

	for _, d := range ds {
		out = append(out, sessionstore.DetailRecord{
			Addr:     d.Addr,
			Size:     d.Size,
			State:    d.State.String(),
			CallSite: d.CallSite.String(),
		})
	}

	return out
}

func configDigest(c engine.GlobalConfig) string {
	return fmt.Sprintf("mult=%v log=%v summary=%v flushcheck=%v indiff=%d align=%d",
		c.TrackMultipleStores, c.LogStores, c.PrintSummary, c.CheckFlush, c.StoreSBIndiff, c.FlushAlign)
}

func sessionStoreDir(cfg checkerconfig.Config) string {
	return filepath.Join(cfg.EffectiveCwd, ".pmemcheck-sessions")
}
