// Package router dispatches numbered client-request opcodes (and, for the
// interactive debugger, a parallel textual command set) to engine calls and
// reporter output. It is the one place that translates the host's wire
// shape into calls on [engine.Engine].
package router

import (
	"fmt"

	"github.com/calvinalkan/pmemcheck/internal/engine"
)

// Opcode numbers the recognised client requests.
type Opcode int

const (
	RegisterMapping Opcode = iota
	RemoveMapping
	RegisterFile
	CheckIsMapping
	DoFlush
	DoFence
	DoCommit
	WriteStats
	LogStores
	NoLogStores
	AddLogRegion
	RemoveLogRegion
	FullReorder
	PartialReorder
	OnlyFault
	StopReorderFault
	PrintPmemMappings
)

// Request is one host-forwarded client request: an opcode plus up to four
// word-sized arguments, used positionally according to the opcode (see the
// per-field comments below for which fields a given opcode reads).
type Request struct {
	Op   Opcode
	Arg0 uint64 // addr, or fd for RegisterFile
	Arg1 uint64 // size, or addr for RegisterFile
	Arg2 uint64 // size, RegisterFile only
	Arg3 uint64 // offset, RegisterFile only
}

// Result is what a successfully dispatched request hands back to the host.
// Value is opcode-specific: CheckIsMapping returns the classification
// (0/1/2/3); RegisterFile returns 1 on success, 0 on resolution failure;
// every other opcode returns 0.
type Result struct {
	Value uint64
}

// ErrUnhandled is returned for an opcode (or, from [Router.DispatchText], a
// textual command) the router does not recognise. Both dispatch paths
// share this sentinel so a host or REPL can report "not handled" uniformly.
var ErrUnhandled = fmt.Errorf("router: request not handled")

// FileResolver resolves a host file descriptor to the absolute path it
// refers to. This is a host concern (the router never opens /proc itself);
// a resolution failure is not an error, it is the "0 on resolution
// failure" branch of REGISTER_FILE.
type FileResolver func(fd uint64) (path string, ok bool)

// Printer is the narrow output surface the router's reporter-dump opcodes
// (WRITE_STATS, PRINT_PMEM_MAPPINGS) write through. [internal/replay.IO]
// satisfies this.
type Printer interface {
	Println(args ...any)
	Printf(format string, args ...any)
}

// Router binds an [engine.Engine] to the numbered client-request dispatch
// table.
type Router struct {
	engine   *engine.Engine
	out      Printer
	resolver FileResolver
}

// New constructs a Router. resolver may be nil, in which case RegisterFile
// always reports resolution failure (value 0).
func New(e *engine.Engine, out Printer, resolver FileResolver) *Router {
	return &Router{engine: e, out: out, resolver: resolver}
}

// Dispatch routes req to the matching engine call. An unrecognised opcode
// returns [ErrUnhandled]; every recognised opcode returns a nil error. No
// request opcode calls TraceStore, so [engine.ErrOverwriteFlood] never
// comes out of Dispatch.
func (r *Router) Dispatch(req Request) (Result, error) {
	switch req.Op {
	case RegisterMapping:
		r.engine.RegisterMapping(req.Arg0, req.Arg1)

		return Result{}, nil

	case RemoveMapping:
		r.engine.RemoveMapping(req.Arg0, req.Arg1)

		return Result{}, nil

	case RegisterFile:
		return r.dispatchRegisterFile(req)

	case CheckIsMapping:
		class := r.engine.ClassifyMapping(req.Arg0, req.Arg1)

		return Result{Value: uint64(class)}, nil

	case DoFlush:
		r.engine.Flush(req.Arg0, req.Arg1)

		return Result{}, nil

	case DoFence:
		r.engine.Fence()

		return Result{}, nil

	case DoCommit:
		r.engine.Commit()

		return Result{}, nil

	case WriteStats:
		printSummary(r.out, r.engine.Report())

		return Result{}, nil

	case LogStores:
		r.engine.StartLogging()

		return Result{}, nil

	case NoLogStores:
		r.engine.StopLogging()

		return Result{}, nil

	case AddLogRegion:
		r.engine.AddLogRegion(req.Arg0, req.Arg1)

		return Result{}, nil

	case RemoveLogRegion:
		r.engine.RemoveLogRegion(req.Arg0, req.Arg1)

		return Result{}, nil

	case FullReorder:
		r.engine.Marker("full_reorder")

		return Result{}, nil

	case PartialReorder:
		r.engine.Marker("partial_reorder")

		return Result{}, nil

	case OnlyFault:
		r.engine.Marker("only_fault")

		return Result{}, nil

	case StopReorderFault:
		r.engine.Marker("stop_reorder_fault")

		return Result{}, nil

	case PrintPmemMappings:
		printRegions(r.out, "Persistent mappings", r.engine.PersistentRegions())

		return Result{}, nil

	default:
		return Result{}, ErrUnhandled
	}
}

// helpText lists the debugger's independently-matched textual commands
// (see [Router.DispatchText]): four read-only dumps, not the numbered
// opcode set. Unknown or ambiguous input returns [ErrUnhandled], mirroring
// the numbered-opcode path.
var helpText = "commands: help, print_stats, print_pmem_regions, print_log_regions"

// DispatchText routes a debugger textual command to the matching reporter
// or registry dump. It never touches the tracker's state machine: the
// debugger can only look, not drive.
func (r *Router) DispatchText(cmd string) error {
	switch cmd {
	case "help":
		r.out.Println(helpText)

		return nil

	case "print_stats":
		printSummary(r.out, r.engine.Report())

		return nil

	case "print_pmem_regions":
		printRegions(r.out, "Persistent mappings", r.engine.PersistentRegions())

		return nil

	case "print_log_regions":
		printRegions(r.out, "Loggable regions", r.engine.LoggableRegions())

		return nil

	default:
		return ErrUnhandled
	}
}

// RegisterResolvedFile applies REGISTER_FILE's engine-visible effect for a
// caller that has already resolved a path itself (the replay driver,
// reading it straight from a recorded event line, rather than resolving a
// live file descriptor). Unlike [Router.Dispatch]'s RegisterFile case, this
// never reports a resolution failure, there is nothing left to resolve.
func (r *Router) RegisterResolvedFile(path string, addr, size, offset uint64) {
	r.engine.RegisterFile(path, addr, size, offset)
}

func (r *Router) dispatchRegisterFile(req Request) (Result, error) {
	if r.resolver == nil {
		return Result{Value: 0}, nil
	}

	path, ok := r.resolver(req.Arg0)
	if !ok {
		return Result{Value: 0}, nil
	}

	addr, size, offset := req.Arg1, req.Arg2, req.Arg3
	r.engine.RegisterFile(path, addr, size, offset)

	return Result{Value: 1}, nil
}
