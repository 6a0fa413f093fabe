package vmfault

import (
	"testing"

	"teachkernel/addrspace"
	"teachkernel/coremap"
	"teachkernel/config"
	"teachkernel/errs"
	"teachkernel/tlb"
)

func newEnv(t *testing.T) (*coremap.CoreMap_t, *tlb.TLB_t, *addrspace.AddressSpace_t) {
	t.Helper()
	cm := coremap.Bootstrap(4096)
	tb := tlb.New()
	as := addrspace.Create(cm, tb, 2)
	return cm, tb, as
}

func TestHandleNilAddressSpaceIsEfault(t *testing.T) {
	_, tb, _ := newEnv(t)
	if err := Handle(nil, tb, 2, 0x1000, Read); err != -errs.EFAULT {
		t.Fatalf("Handle(nil as) = %v, want EFAULT", err)
	}
}

func TestHandleAbsentMappingIsHardFault(t *testing.T) {
	_, tb, as := newEnv(t)
	if err := Handle(as, tb, 2, 0x1000, Read); err != -errs.EFAULT {
		t.Fatalf("Handle on unmapped vaddr = %v, want EFAULT", err)
	}
}

func TestHandleReservedMaterializesFrame(t *testing.T) {
	_, tb, as := newEnv(t)
	as.DefineRegion(0, config.PageSize, true, true, false)

	if err := Handle(as, tb, 2, 0, Read); err != 0 {
		t.Fatalf("Handle on Reserved vaddr = %v, want success", err)
	}
	if !as.PageTable().Contains(0) {
		t.Fatalf("page table lost the mapping after fault handling")
	}
	if as.PageTable().Read(0) < 0 {
		t.Fatalf("vpage 0 still Reserved after fault handling")
	}
}

func TestHandleInstallsTLBEntry(t *testing.T) {
	_, tb, as := newEnv(t)
	as.DefineRegion(0, config.PageSize, true, true, false)

	if err := Handle(as, tb, 2, 0, Write); err != 0 {
		t.Fatalf("Handle failed: %v", err)
	}
	slot, ok := tb.Lookup(0, 2)
	if !ok {
		t.Fatalf("no TLB entry installed for faulting address")
	}
	if !slot.Dirty {
		t.Fatalf("write fault should mark the TLB entry dirty")
	}
}

func TestHandleReadonlyPanics(t *testing.T) {
	_, tb, as := newEnv(t)
	defer func() {
		if recover() == nil {
			t.Fatalf("ReadOnly fault should panic")
		}
	}()
	Handle(as, tb, 2, 0, ReadOnly)
}

func TestHandleFullTLBReturnsEfault(t *testing.T) {
	_, tb, as := newEnv(t)
	as.DefineRegion(0, config.PageSize*(tlb.NumSlots+1), true, true, false)

	for i := 0; i < tlb.NumSlots; i++ {
		addr := i * config.PageSize
		if err := Handle(as, tb, 2, addr, Read); err != 0 {
			t.Fatalf("Handle(%d) failed before TLB was full: %v", i, err)
		}
	}
	lastAddr := tlb.NumSlots * config.PageSize
	if err := Handle(as, tb, 2, lastAddr, Read); err != -errs.EFAULT {
		t.Fatalf("Handle on a full TLB = %v, want EFAULT", err)
	}
}
