package replay

import (
	"context"
	"fmt"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/pmemcheck/internal/checkerconfig"
	"github.com/calvinalkan/pmemcheck/internal/sessionstore"
)

const queryTimeLayout = "2006-01-02T15:04:05"

// QueryCmd lists past checker runs from the session store, filtered the
// same way [internal/sessionstore.Store.Query]'s dynamic WHERE clause
// supports.
func QueryCmd(cfg checkerconfig.Config) *Command {
	flags := flag.NewFlagSet("query", flag.ContinueOnError)
	host := flags.String("host", "", "Filter by hostname")
	sessionID := flags.String("session", "", "Filter by exact session ID")
	minBytes := flags.Uint64("min-bytes", 0, "Filter by minimum non-persistent byte count")
	after := flags.String("after", "", "Only sessions started at or after this time (2006-01-02T15:04:05)")
	before := flags.String("before", "", "Only sessions started at or before this time (2006-01-02T15:04:05)")
	limit := flags.Int("limit", 20, "Maximum number of sessions to return")
	offset := flags.Int("offset", 0, "Number of sessions to skip")

	return &Command{
		Flags: flags,
		Usage: "query",
		Short: "List past checker runs from the session store",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			opts, err := buildQueryOptions(*host, *sessionID, *minBytes, *after, *before, *limit, *offset)
			if err != nil {
				return err
			}

			store, err := sessionstore.Open(ctx, sessionStoreDir(cfg))
			if err != nil {
				return fmt.Errorf("opening session store: %w", err)
			}
			defer store.Close()

			records, err := store.Query(ctx, opts)
			if err != nil {
				return err
			}

			if len(records) == 0 {
				o.Println("no sessions recorded yet")

				return nil
			}

			for _, rec := range records {
				o.Printf("%s  host=%s  started=%s  non-persistent=%d (%d bytes)  overwrites=%d  multi-flushes=%d\n",
					rec.SessionID, rec.Host, rec.StartedAt.Format(time.RFC3339),
					rec.NonPersistentCount, rec.NonPersistentBytes, rec.OverwriteCount, rec.MultiFlushCount)
			}

			return nil
		},
	}
}

func buildQueryOptions(host, sessionID string, minBytes uint64, after, before string, limit, offset int) (*sessionstore.QueryOptions, error) {
	opts := &sessionstore.QueryOptions{
		Host:                  host,
		SessionID:             sessionID,
		MinNonPersistentBytes: minBytes,
		Limit:                 limit,
		Offset:                offset,
	}

	if after != "" {
		t, err := time.Parse(queryTimeLayout, after)
		if err != nil {
			return nil, fmt.Errorf("--after: %w", err)
		}

		opts.StartedAfter = t
	}

	if before != "" {
		t, err := time.Parse(queryTimeLayout, before)
		if err != nil {
			return nil, fmt.Errorf("--before: %w", err)
		}

		opts.StartedBefore = t
	}

	return opts, nil
}
