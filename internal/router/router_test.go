package router_test

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/pmemcheck/internal/engine"
	"github.com/calvinalkan/pmemcheck/internal/router"
)

type bufPrinter struct {
	buf bytes.Buffer
}

func (p *bufPrinter) Println(args ...any) {
	fmt.Fprintln(&p.buf, args...)
}

func (p *bufPrinter) Printf(format string, args ...any) {
	fmt.Fprintf(&p.buf, format, args...)
}

func Test_Dispatch_Register_And_Check_Mapping(t *testing.T) {
	t.Parallel()

	e := engine.New(engine.DefaultGlobalConfig(), nil, nil)
	out := &bufPrinter{}
	r := router.New(e, out, nil)

	_, err := r.Dispatch(router.Request{Op: router.RegisterMapping, Arg0: 0x1000, Arg1: 0x40})
	require.NoError(t, err)

	res, err := r.Dispatch(router.Request{Op: router.CheckIsMapping, Arg0: 0x1000, Arg1: 0x10})
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.Value) // FullyInside
}

func Test_Dispatch_Unknown_Opcode_Is_Unhandled(t *testing.T) {
	t.Parallel()

	e := engine.New(engine.DefaultGlobalConfig(), nil, nil)
	r := router.New(e, &bufPrinter{}, nil)

	_, err := r.Dispatch(router.Request{Op: router.Opcode(999)})
	require.True(t, errors.Is(err, router.ErrUnhandled))
}

func Test_Dispatch_RegisterFile_Reports_Resolution_Failure(t *testing.T) {
	t.Parallel()

	e := engine.New(engine.DefaultGlobalConfig(), nil, nil)
	r := router.New(e, &bufPrinter{}, nil)

	res, err := r.Dispatch(router.Request{Op: router.RegisterFile, Arg0: 3})
	require.NoError(t, err)
	require.Equal(t, uint64(0), res.Value)
}

func Test_Dispatch_RegisterFile_Succeeds_With_Resolver(t *testing.T) {
	t.Parallel()

	e := engine.New(engine.DefaultGlobalConfig(), nil, nil)
	resolver := func(fd uint64) (string, bool) {
		if fd == 3 {
			return "/tmp/backing.bin", true
		}

		return "", false
	}

	r := router.New(e, &bufPrinter{}, resolver)

	res, err := r.Dispatch(router.Request{Op: router.RegisterFile, Arg0: 3, Arg1: 0x1000, Arg2: 0x2000, Arg3: 0})
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.Value)
}

func Test_Dispatch_WriteStats_Prints_Summary(t *testing.T) {
	t.Parallel()

	e := engine.New(engine.DefaultGlobalConfig(), nil, nil)
	require.NoError(t, e.TraceStore(0x1000, 8, 0xdead))

	out := &bufPrinter{}
	r := router.New(e, out, nil)

	_, err := r.Dispatch(router.Request{Op: router.WriteStats})
	require.NoError(t, err)
	require.Contains(t, out.buf.String(), "non-persistent stores: 0")
}

func Test_DispatchText_Known_Commands_Succeed(t *testing.T) {
	t.Parallel()

	e := engine.New(engine.DefaultGlobalConfig(), nil, nil)
	out := &bufPrinter{}
	r := router.New(e, out, nil)

	for _, cmd := range []string{"help", "print_stats", "print_pmem_regions", "print_log_regions"} {
		require.NoError(t, r.DispatchText(cmd))
	}
}

func Test_DispatchText_Unknown_Command_Is_Unhandled(t *testing.T) {
	t.Parallel()

	e := engine.New(engine.DefaultGlobalConfig(), nil, nil)
	r := router.New(e, &bufPrinter{}, nil)

	require.True(t, errors.Is(r.DispatchText("explode"), router.ErrUnhandled))
}
