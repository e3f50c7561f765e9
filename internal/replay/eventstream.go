// Package replay is the CLI entrypoint for pmemcheck: it assembles the
// engine, the router, and the reporter/debugger surfaces, and drives them
// either from a recorded event file (trace/debug) or from the historical
// session-report store (query).
package replay

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/calvinalkan/pmemcheck/internal/router"
)

// Event is one parsed line of a recorded client-event-stream file: a verb
// plus its positional arguments, already resolved to the shape the router
// or engine instrumentation callback expects. This is the host-independent
// stand-in for a live dynamic-binary-translation callback stream.
type Event struct {
	Verb string
	Args []string
}

// ParseEventStream reads one event per non-blank, non-comment ('#') line.
// Fields are whitespace-separated; numeric fields accept a "0x"-prefixed
// hex or plain decimal literal.
func ParseEventStream(r io.Reader) ([]Event, error) {
	scanner := bufio.NewScanner(r)

	var events []Event

	lineNum := 0

	for scanner.Scan() {
		lineNum++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)

		events = append(events, Event{Verb: strings.ToLower(fields[0]), Args: fields[1:]})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("replay: reading event stream at line %d: %w", lineNum, err)
	}

	return events, nil
}

func parseUint(s string) (uint64, error) {
	if hex, ok := strings.CutPrefix(s, "0x"); ok {
		return strconv.ParseUint(hex, 16, 64)
	}

	return strconv.ParseUint(s, 10, 64)
}

// Applier is the set of calls an [Event] can drive: the engine's
// instrumentation callbacks (store, sb_enter) plus the router's numbered
// client-request table. A recorded file exercises the same surface a live
// host would, without needing a real dynamic-binary-translation layer.
type Applier interface {
	TraceStore(addr, size, value uint64) error
	OnSBEnter()
}

// Apply replays events through applier and r in order. An opcode or
// instrumentation verb it doesn't recognise is reported via out.WarnLLM
// and otherwise skipped: unknown opcodes produce a warning and are not
// handled, rather than aborting the whole replay. A malformed argument is
// a hard parse error: a recorded event file is expected to be
// well-formed, unlike live host input.
func Apply(events []Event, applier Applier, r *router.Router, out *IO) error {
	for i, ev := range events {
		if err := applyOne(ev, applier, r, out); err != nil {
			return fmt.Errorf("replay: event %d (%s): %w", i, ev.Verb, err)
		}
	}

	return nil
}

func applyOne(ev Event, applier Applier, r *router.Router, out *IO) error {
	switch ev.Verb {
	case "store":
		addr, size, value, err := args3(ev.Args)
		if err != nil {
			return err
		}

		return applier.TraceStore(addr, size, value)

	case "sb_enter":
		applier.OnSBEnter()

		return nil

	case "register_mapping":
		return dispatchAddrSize(ev, r, router.RegisterMapping)
	case "remove_mapping":
		return dispatchAddrSize(ev, r, router.RemoveMapping)
	case "check_is_mapping":
		return dispatchAddrSize(ev, r, router.CheckIsMapping)
	case "do_flush":
		return dispatchAddrSize(ev, r, router.DoFlush)
	case "add_log_region":
		return dispatchAddrSize(ev, r, router.AddLogRegion)
	case "remove_log_region":
		return dispatchAddrSize(ev, r, router.RemoveLogRegion)

	case "do_fence":
		return dispatchNoArgs(r, router.DoFence)
	case "do_commit":
		return dispatchNoArgs(r, router.DoCommit)
	case "write_stats":
		return dispatchNoArgs(r, router.WriteStats)
	case "log_stores":
		return dispatchNoArgs(r, router.LogStores)
	case "no_log_stores":
		return dispatchNoArgs(r, router.NoLogStores)
	case "full_reorder":
		return dispatchNoArgs(r, router.FullReorder)
	case "partial_reorder":
		return dispatchNoArgs(r, router.PartialReorder)
	case "only_fault":
		return dispatchNoArgs(r, router.OnlyFault)
	case "stop_reorder_fault":
		return dispatchNoArgs(r, router.StopReorderFault)
	case "print_pmem_mappings":
		return dispatchNoArgs(r, router.PrintPmemMappings)

	case "register_file":
		return applyRegisterFile(ev, r)

	default:
		out.WarnLLM(fmt.Sprintf("unrecognized event %q", ev.Verb), "check the event file for a typo or an opcode this build doesn't support")

		return nil
	}
}

func args2(args []string) (uint64, uint64, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("expected 2 arguments, got %d", len(args))
	}

	a, err := parseUint(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("arg 0: %w", err)
	}

	b, err := parseUint(args[1])
	if err != nil {
		return 0, 0, fmt.Errorf("arg 1: %w", err)
	}

	return a, b, nil
}

func args3(args []string) (uint64, uint64, uint64, error) {
	if len(args) != 3 {
		return 0, 0, 0, fmt.Errorf("expected 3 arguments, got %d", len(args))
	}

	a, b, err := args2(args[:2])
	if err != nil {
		return 0, 0, 0, err
	}

	c, err := parseUint(args[2])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("arg 2: %w", err)
	}

	return a, b, c, nil
}

func dispatchAddrSize(ev Event, r *router.Router, op router.Opcode) error {
	addr, size, err := args2(ev.Args)
	if err != nil {
		return err
	}

	_, err = r.Dispatch(router.Request{Op: op, Arg0: addr, Arg1: size})

	return err
}

func dispatchNoArgs(r *router.Router, op router.Opcode) error {
	_, err := r.Dispatch(router.Request{Op: op})

	return err
}

// applyRegisterFile parses "register_file PATH ADDR SIZE OFFSET": the
// recorded event stream carries the already-resolved path (fd-to-pathname
// resolution is a live host concern this format has no use for), so it is
// applied via [router.Router.RegisterResolvedFile] rather than through
// the router's fd-resolving dispatch path.
func applyRegisterFile(ev Event, r *router.Router) error {
	if len(ev.Args) != 4 {
		return fmt.Errorf("register_file: expected 4 arguments, got %d", len(ev.Args))
	}

	addr, err := parseUint(ev.Args[1])
	if err != nil {
		return fmt.Errorf("register_file addr: %w", err)
	}

	size, err := parseUint(ev.Args[2])
	if err != nil {
		return fmt.Errorf("register_file size: %w", err)
	}

	offset, err := parseUint(ev.Args[3])
	if err != nil {
		return fmt.Errorf("register_file offset: %w", err)
	}

	r.RegisterResolvedFile(ev.Args[0], addr, size, offset)

	return nil
}
