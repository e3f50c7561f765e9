package router

import (
	"github.com/calvinalkan/pmemcheck/internal/engine"
	"github.com/calvinalkan/pmemcheck/pkg/interval"
)

// printSummary renders an [engine.Summary] the way WRITE_STATS / Teardown
// report it: counts up front, detail lines after.
func printSummary(out Printer, s engine.Summary) {
	out.Printf("non-persistent stores: %d (%d bytes)\n", len(s.NonPersistent), s.NonPersistentBytes)

	for _, d := range s.NonPersistent {
		printDetail(out, d)
	}

	if s.Overwrites != nil {
		out.Printf("overwrites: %d\n", len(s.Overwrites))

		for _, d := range s.Overwrites {
			printDetail(out, d)
		}
	}

	if s.MultiFlushes != nil {
		out.Printf("multi-flushes: %d\n", len(s.MultiFlushes))

		for _, d := range s.MultiFlushes {
			printDetail(out, d)
		}
	}
}

func printDetail(out Printer, d engine.Detail) {
	out.Printf("  0x%x size=%d state=%s site=%s\n", d.Addr, d.Size, d.State, d.CallSite)
}

// printRegions renders a registry dump for PRINT_PMEM_MAPPINGS /
// print_pmem_regions and print_log_regions.
func printRegions(out Printer, label string, regions []interval.Interval) {
	out.Printf("%s: %d\n", label, len(regions))

	for _, r := range regions {
		out.Printf("  %s\n", r)
	}
}
