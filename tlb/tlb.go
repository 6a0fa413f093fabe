// Package tlb models the 64-entry software-managed translation
// look-aside buffer named in the GLOSSARY of spec.md. The teacher's
// vm/as.go owns TLB invalidation directly on Vm_t (Tlbshoot,
// as_activate's splhigh/tlb_write loop in the original addrspace.c);
// this core pulls the same shape into its own small package since
// spec.md treats the TLB as a leaf collaborator of both AddressSpace
// (full flush on activate) and vmfault (refill on miss).
package tlb

import "sync"

// NumSlots is the number of hardware TLB entries, per the GLOSSARY.
const NumSlots = 64

const (
	DirtyBit uint = 1 << 0
	ValidBit uint = 1 << 1
)

// Slot is one hardware TLB entry: EntryHi/EntryLo collapsed into
// named fields instead of packed bitfields, since nothing here needs
// to match an actual MIPS register layout byte-for-byte.
type Slot struct {
	Valid bool
	Vaddr int
	Pid   int
	Paddr int
	Dirty bool
}

// TLB_t is the whole set of hardware-managed slots. Mutated only while
// interrupts are conceptually masked (spec.md §5, "TLB mutation
// window"); callers serialize access with the embedded mutex, which
// stands in for raising IPL on the real hardware.
type TLB_t struct {
	mu    sync.Mutex
	slots [NumSlots]Slot
}

// New returns a TLB with every slot invalid, as after a cold boot.
func New() *TLB_t {
	return &TLB_t{}
}

// FlushAll invalidates every slot. Called by AddressSpace.Activate on
// every context switch because a per-process TLB tag via the pid
// field was attempted but proved unreliable on the target hardware
// (spec.md §4.3, §9) — so the core falls back to a full flush.
func (t *TLB_t) FlushAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slots {
		t.slots[i] = Slot{}
	}
}

// WriteFirstInvalid finds the first slot whose valid bit is clear and
// installs the given mapping, matching spec.md §4.4 step 6's
// tie-break ("first matching invalid TLB slot wins"). It reports
// false if every slot is already valid.
func (t *TLB_t) WriteFirstInvalid(vaddr, pid, paddr int, dirty bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slots {
		if !t.slots[i].Valid {
			t.slots[i] = Slot{Valid: true, Vaddr: vaddr, Pid: pid, Paddr: paddr, Dirty: dirty}
			return true
		}
	}
	return false
}

// Lookup returns the slot mapping vaddr for pid, if any, and whether
// it was found — used only by tests to assert refill behavior.
func (t *TLB_t) Lookup(vaddr, pid int) (Slot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.slots {
		if s.Valid && s.Vaddr == vaddr && s.Pid == pid {
			return s, true
		}
	}
	return Slot{}, false
}
