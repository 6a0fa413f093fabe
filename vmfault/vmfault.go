// Package vmfault implements the TLB-refill fault handler described
// in spec.md §4.4, the kernel's one on-demand-paging entry point. It
// is grounded on the teacher's Vm_t.Sys_pgfault (biscuit/src/vm/as.go)
// and the original arch/mips/vm/vm.c's vm_fault, which this core
// follows step for step rather than biscuit's COW-aware fault path
// (this kernel has no copy-on-write; every mapped page is already a
// private frame).
package vmfault

import (
	"teachkernel/addrspace"
	"teachkernel/config"
	"teachkernel/coremap"
	"teachkernel/errs"
	"teachkernel/klog"
	"teachkernel/pagetable"
	"teachkernel/tlb"
)

// FaultType distinguishes why the TLB missed, matching the original's
// VM_FAULT_READ/WRITE/READONLY.
type FaultType int

const (
	Read FaultType = iota
	Write
	ReadOnly
)

// Handle runs the seven-step refill algorithm of spec.md §4.4:
//
//  1. Page-align the faulting address.
//  2. A ReadOnly fault is always a kernel bug (the hardware itself
//     raised it only for a TLB-modify on a page this kernel never
//     marks read-only) — panic rather than return an error.
//  3. No address space bound to this pid is EFAULT.
//  4. An absent page table entry is a segmentation violation: log it
//     at Hardfault level and return EFAULT. This is the sole path
//     that is both a "normal" error return and still logged, per
//     spec.md §7.
//  5. A Reserved entry means "valid but not yet backed"; claim a
//     fresh frame, zero it, and install the real mapping.
//  6. Write the first invalid TLB slot with the resolved translation.
//  7. If every slot was already valid, return EFAULT rather than
//     evict one — this kernel does not implement TLB replacement.
func Handle(as *addrspace.AddressSpace_t, tl *tlb.TLB_t, pid int, faultAddr int, ft FaultType) errs.Err_t {
	if ft == ReadOnly {
		panic("vmfault: read-only fault on a kernel that never marks pages read-only")
	}

	if as == nil {
		return -errs.EFAULT
	}

	faultAddr &^= config.PageOffsetMask
	vpage := faultAddr >> config.PageShift

	as.Lock()
	defer as.Unlock()

	pt := as.PageTable()
	if !pt.Contains(vpage) {
		klog.Hardfault("pid %d: no mapping for vaddr 0x%x", pid, faultAddr)
		return -errs.EFAULT
	}

	ppage := pt.Read(vpage)
	if ppage == pagetable.Reserved {
		cm := as.CoreMap()
		newPpage, err := cm.ClaimFor(1, coremap.Owner(pid))
		if err != 0 {
			return err
		}
		frame := cm.Frame(newPpage)
		for i := range frame {
			frame[i] = 0
		}
		pt.Write(vpage, newPpage)
		ppage = newPpage
	}

	// Every region is RW (spec.md §4.4 step 6: "LO = paddr | DIRTY |
	// VALID"), so the dirty bit is set unconditionally regardless of
	// fault type rather than only on a write fault.
	paddr := ppage << config.PageShift
	if !tl.WriteFirstInvalid(faultAddr, pid, paddr, true) {
		return -errs.EFAULT
	}
	return 0
}
