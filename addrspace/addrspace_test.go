package addrspace

import (
	"testing"

	"teachkernel/coremap"
	"teachkernel/config"
	"teachkernel/errs"
	"teachkernel/pagetable"
	"teachkernel/tlb"
)

func newTestEnv(t *testing.T) (*coremap.CoreMap_t, *tlb.TLB_t) {
	t.Helper()
	return coremap.Bootstrap(4096), tlb.New()
}

func TestDefineRegionAdvancesHeapStart(t *testing.T) {
	cm, tb := newTestEnv(t)
	as := Create(cm, tb, 2)
	as.DefineRegion(0, config.PageSize*3, true, true, false)
	if as.HeapStart != config.PageSize*3 {
		t.Fatalf("HeapStart = %#x, want %#x", as.HeapStart, config.PageSize*3)
	}
	if as.HeapEnd != as.HeapStart {
		t.Fatalf("HeapEnd != HeapStart after DefineRegion")
	}
}

func TestDefineRegionOverlapPanics(t *testing.T) {
	cm, tb := newTestEnv(t)
	as := Create(cm, tb, 2)
	as.DefineRegion(0, config.PageSize, true, true, false)
	defer func() {
		if recover() == nil {
			t.Fatalf("overlapping DefineRegion should panic")
		}
	}()
	as.DefineRegion(0, config.PageSize, true, true, false)
}

func TestDefineStackReturnsUserStack(t *testing.T) {
	cm, tb := newTestEnv(t)
	as := Create(cm, tb, 2)
	sp := as.DefineStack()
	if sp != config.UserStack {
		t.Fatalf("DefineStack() = %#x, want %#x", sp, config.UserStack)
	}
}

func TestCopySharesReservedCopiesFrames(t *testing.T) {
	cm, tb := newTestEnv(t)
	parent := Create(cm, tb, 2)
	parent.DefineRegion(0, config.PageSize*2, true, true, false)

	// materialize a real frame at vpage 0, as vmfault would; vpage 1
	// stays Reserved.
	ppage, err := cm.ClaimFor(1, coremap.Owner(2))
	if err != 0 {
		t.Fatalf("ClaimFor failed: %v", err)
	}
	copy(cm.Frame(ppage), []byte("hello"))
	parent.PageTable().Write(0, ppage)

	child, err := Copy(parent, 3)
	if err != 0 {
		t.Fatalf("Copy failed: %v", err)
	}
	childPpage := child.PageTable().Read(0)
	if childPpage == ppage {
		t.Fatalf("child shares the same frame as parent; Copy must allocate a fresh one")
	}
	if string(cm.Frame(childPpage)[:5]) != "hello" {
		t.Fatalf("child frame contents = %q, want %q", cm.Frame(childPpage)[:5], "hello")
	}
	if cm.OwnerOf(childPpage) != coremap.Owner(3) {
		t.Fatalf("child frame owner = %v, want 3", cm.OwnerOf(childPpage))
	}
	if got := child.PageTable().Read(1); got != pagetable.Reserved {
		t.Fatalf("child vpage 1 = %d, want Reserved", got)
	}
}

func TestCopyPropagatesReservedEntries(t *testing.T) {
	cm, tb := newTestEnv(t)
	parent := Create(cm, tb, 2)
	parent.DefineRegion(0, config.PageSize, true, true, false)

	child, err := Copy(parent, 3)
	if err != 0 {
		t.Fatalf("Copy failed: %v", err)
	}
	if got := child.PageTable().Read(0); got != pagetable.Reserved {
		t.Fatalf("child vpage 0 = %d, want Reserved", got)
	}
}

func TestDestroyReleasesFrames(t *testing.T) {
	cm, tb := newTestEnv(t)
	as := Create(cm, tb, 2)
	as.DefineRegion(0, config.PageSize, true, true, false)
	ppage, _ := cm.ClaimFor(1, coremap.Owner(2))
	as.PageTable().Write(0, ppage)

	as.Destroy()
	if cm.OwnerOf(ppage) != coremap.Free {
		t.Fatalf("frame not released after Destroy")
	}
}

func TestSbrkZeroReturnsBreakUnchanged(t *testing.T) {
	cm, tb := newTestEnv(t)
	as := Create(cm, tb, 2)
	as.HeapStart, as.HeapEnd = config.PageSize, config.PageSize

	old, err := as.Sbrk(0)
	if err != 0 || old != config.PageSize {
		t.Fatalf("Sbrk(0) = (%d, %v), want (%d, 0)", old, err, config.PageSize)
	}
}

func TestSbrkGrowThenShrink(t *testing.T) {
	cm, tb := newTestEnv(t)
	as := Create(cm, tb, 2)
	as.HeapStart, as.HeapEnd = config.PageSize, config.PageSize

	old, err := as.Sbrk(2 * config.PageSize)
	if err != 0 {
		t.Fatalf("Sbrk grow failed: %v", err)
	}
	if old != config.PageSize {
		t.Fatalf("Sbrk grow returned %d, want old break %d", old, config.PageSize)
	}
	if as.HeapEnd != config.PageSize*3 {
		t.Fatalf("HeapEnd = %d, want %d", as.HeapEnd, config.PageSize*3)
	}

	old, err = as.Sbrk(-config.PageSize)
	if err != 0 {
		t.Fatalf("Sbrk shrink failed: %v", err)
	}
	if old != config.PageSize*3 {
		t.Fatalf("Sbrk shrink returned %d, want %d", old, config.PageSize*3)
	}
	if as.PageTable().Contains(2) {
		t.Fatalf("freed page still present in page table")
	}
}

func TestSbrkRejectsStackEncroachment(t *testing.T) {
	cm, tb := newTestEnv(t)
	as := Create(cm, tb, 2)
	boundary := StackBottom()
	as.HeapStart, as.HeapEnd = boundary-config.PageSize, boundary-config.PageSize

	_, err := as.Sbrk(config.PageSize)
	if err != -errs.ENOMEM {
		t.Fatalf("Sbrk into stack window returned %v, want ENOMEM", err)
	}
}

func TestSbrkMisalignedIsEinval(t *testing.T) {
	cm, tb := newTestEnv(t)
	as := Create(cm, tb, 2)
	as.HeapStart, as.HeapEnd = config.PageSize, config.PageSize
	if _, err := as.Sbrk(1); err != -errs.EINVAL {
		t.Fatalf("Sbrk(1) = %v, want EINVAL", err)
	}
}
