// Package host provides the thin adapters between a real instrumentation
// host and [internal/engine.Engine]. The dynamic binary translation layer
// itself is out of scope here: this package only supplies what a
// host needs to drive the engine correctly, namely a cache-line size probe
// for FlushAlign and a [engine.CallSiteProvider] built from [runtime.Callers].
package host

import (
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// CacheLineProbe reports the host's cache-line size, used to default
// [engine.GlobalConfig.FlushAlign] when the client doesn't override it.
type CacheLineProbe interface {
	CacheLineSize() uint64
}

// defaultCacheLineSize is the near-universal x86-64/ARM64 cache-line size,
// used whenever [Real] can't read the sysfs coherency_line_size file.
const defaultCacheLineSize = 64

// cacheLineSizePath is read once by [Real.CacheLineSize]; it's the kernel's
// reported L1 cache-line size for logical CPU 0.
const cacheLineSizePath = "/sys/devices/system/cpu/cpu0/cache/index0/coherency_line_size"

// Real is the production [CacheLineProbe]. It reads the kernel-reported
// coherency line size via raw syscalls rather than [os], since this is a
// one-shot read of a tiny pseudo-file on a known path, not a general file
// operation that benefits from [os.File]'s buffering or portability shims.
type Real struct{}

// NewReal returns a new [Real] probe.
func NewReal() *Real { return &Real{} }

func (r *Real) CacheLineSize() uint64 {
	if size, ok := readCacheLineSize(cacheLineSizePath); ok {
		return size
	}

	return defaultCacheLineSize
}

func readCacheLineSize(path string) (uint64, bool) {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return 0, false
	}
	defer unix.Close(fd)

	buf := make([]byte, 32)

	n, err := unix.Read(fd, buf)
	if err != nil || n <= 0 {
		return 0, false
	}

	size, err := strconv.ParseUint(strings.TrimSpace(string(buf[:n])), 10, 64)
	if err != nil || size == 0 {
		return 0, false
	}

	return size, true
}

// Fake is a [CacheLineProbe] with a fixed, caller-chosen size, for tests
// that need to exercise non-default alignment.
type Fake struct {
	Size uint64
}

func (f *Fake) CacheLineSize() uint64 { return f.Size }

// MaxCallSiteDepth bounds how many frames [CallSite] captures above its own
// caller, keeping the common case (one store site, rarely more than a
// handful of inlined callers) allocation-cheap.
const MaxCallSiteDepth = 16

// CallSite captures up to [MaxCallSiteDepth] frames of the current
// goroutine's call stack, starting skip frames above its caller (skip=0
// means "my immediate caller"), as a slice of function names, in
// innermost-first order. It is meant to be passed as an
// [engine.CallSiteProvider] via a closure: func() engine.CallSite { return
// engine.CallSite{Frames: host.CallSite(0)} }.
func CallSite(skip int) []string {
	pcs := make([]uintptr, MaxCallSiteDepth)
	n := runtime.Callers(skip+2, pcs)

	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	out := make([]string, 0, n)

	for {
		frame, more := frames.Next()
		out = append(out, frame.Function)

		if !more {
			break
		}
	}

	return out
}
