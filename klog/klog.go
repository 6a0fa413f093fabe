// Package klog is the kernel's only logging surface: a thin wrapper
// around fmt.Printf, the same convention the teacher uses directly in
// mem.Phys_init and vm/as.go rather than reaching for a logging
// framework. Kept as its own package (instead of scattering
// fmt.Printf calls) so user-error paths can be kept silent per
// spec.md §7 while invariant-violation paths stay loud.
package klog

import "fmt"

// Bootstrap reports a one-time initialization fact, matching the
// teacher's "Reserved %v pages (%vMB)\n" style in mem.Phys_init.
func Bootstrap(format string, args ...interface{}) {
	fmt.Printf("[boot] "+format+"\n", args...)
}

// Hardfault reports a segmentation violation. Per spec.md §4.4 step 4,
// this is the only user-error path that still gets a kernel-side log
// line, since an absent page-table entry always indicates a bug in
// the faulting program rather than ordinary error flow.
func Hardfault(format string, args ...interface{}) {
	fmt.Printf("[hardfault] "+format+"\n", args...)
}

// Debug prints a low-traffic diagnostic line, mirroring the DEBUG(DB_VM, ...)
// call sites of the original C kernel this core was distilled from.
func Debug(format string, args ...interface{}) {
	fmt.Printf("[debug] "+format+"\n", args...)
}
