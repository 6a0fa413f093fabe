// Package addrspace implements the per-process address space
// described in spec.md §3/§4.3: one page table, a heap window, and an
// implicit user stack window. It is grounded on the teacher's Vm_t
// (biscuit/src/vm/as.go) — same mutex-guards-the-pagemap shape,
// here an embedded sync.Mutex — adapted from biscuit's COW/
// vmregion design down to the simpler reserve-then-fault model the
// original addrspace.c/page_table.c implement.
package addrspace

import (
	"sync"

	"teachkernel/config"
	"teachkernel/coremap"
	"teachkernel/errs"
	"teachkernel/pagetable"
	"teachkernel/tlb"
)

// AddressSpace_t owns one page table plus the heap and stack windows.
// The mutex protects every mutation of the page table, exactly as
// Vm_t's embedded sync.Mutex protects Vmregion/Pmap in the teacher.
type AddressSpace_t struct {
	sync.Mutex

	pt *pagetable.PageTable_t

	HeapStart int
	HeapEnd   int

	cm  *coremap.CoreMap_t
	tlb *tlb.TLB_t
	pid int
}

// stackBottom returns the lowest byte address in the stack window,
// [stackBottom, config.UserStack).
func stackBottom() int {
	return config.UserStack - config.StackPages*config.PageSize
}

// Create installs an empty page table of the original kernel's
// documented initial capacity (as_create: "My best guess for now of a good
// initial capacity" -> page_table_init_with_capacity(32)) and leaves
// heap_start == heap_end == 0 until the first region is defined.
func Create(cm *coremap.CoreMap_t, t *tlb.TLB_t, pid int) *AddressSpace_t {
	return &AddressSpace_t{
		pt:  pagetable.NewWithCapacity(config.AddrSpaceInitialCapacity),
		cm:  cm,
		tlb: t,
		pid: pid,
	}
}

func addrToPage(addr int) int {
	return addr >> config.PageShift
}

func pageToAddr(vpage int) int {
	return vpage << config.PageShift
}

// reserve writes Reserved into every page table slot vpage spans,
// panicking if any target vpage is already mapped — callers must not
// overlap regions, matching the original's reserve_vpage KASSERT.
func (as *AddressSpace_t) reserve(vpage int) {
	if as.pt.Contains(vpage) {
		panic("addrspace: region overlaps an existing mapping")
	}
	as.pt.Write(vpage, pagetable.Reserved)
}

// DefineRegion reserves every virtual page fully or partially covered
// by [base, base+size), then advances heap_start past the region if
// needed. Protection bits are accepted but not enforced — all pages
// stay read-write, matching spec.md §4.3 and the original
// as_define_region's "Not using these yet" comment.
func (as *AddressSpace_t) DefineRegion(base, size int, readable, writable, executable bool) {
	_ = readable
	_ = writable
	_ = executable

	as.Lock()
	defer as.Unlock()

	vaddrMax := base + size - 1
	vpageMin := addrToPage(base)
	vpageMax := addrToPage(vaddrMax)
	for vpage := vpageMin; vpage <= vpageMax; vpage++ {
		as.reserve(vpage)
	}

	for vaddrMax >= as.HeapStart {
		as.HeapStart += config.PageSize
		as.HeapEnd = as.HeapStart
	}
}

// DefineStack reserves STACKPAGES pages ending at UserStack and
// returns UserStack as the initial stack pointer, mirroring
// as_define_stack exactly (including its descending reservation
// order, which does not matter for the final state but matches the
// original for fidelity).
func (as *AddressSpace_t) DefineStack() int {
	as.Lock()
	defer as.Unlock()

	stackTop := addrToPage(config.UserStack)
	stackBottomPage := stackTop - config.StackPages
	for vpage := stackTop - 1; vpage >= stackBottomPage; vpage-- {
		as.reserve(vpage)
	}
	return config.UserStack
}

// Copy implements fork's address-space duplication (spec.md §4.3):
// every Reserved entry is copied as Reserved; every real mapping gets
// a freshly claimed frame with its contents memcpy'd through the
// coremap's direct-map window, mirroring copy_to_new_page in the
// original addrspace.c. childPid is the already-reserved child
// process's pid, which owns every frame this call claims.
//
// If a frame claim fails partway through, every frame already claimed
// for the child is released and ENOMEM is returned — the conservative
// policy spec.md §9 recommends for this documented open question,
// instead of leaving the child with a silently incomplete mapping.
func Copy(old *AddressSpace_t, childPid int) (*AddressSpace_t, errs.Err_t) {
	old.Lock()
	defer old.Unlock()

	next := Create(old.cm, old.tlb, childPid)
	next.HeapStart = old.HeapStart
	next.HeapEnd = old.HeapEnd

	var failed errs.Err_t
	var claimed []int
	old.pt.Each(func(vpage, ppage int) {
		if failed != 0 {
			return
		}
		if ppage == pagetable.Reserved {
			next.pt.Write(vpage, pagetable.Reserved)
			return
		}
		newPpage, err := old.cm.ClaimFor(1, coremap.Owner(childPid))
		if err != 0 {
			failed = err
			return
		}
		copy(old.cm.Frame(newPpage), old.cm.Frame(ppage))
		next.pt.Write(vpage, newPpage)
		claimed = append(claimed, newPpage)
	})
	if failed != 0 {
		for _, ppage := range claimed {
			old.cm.Release(ppage)
		}
		return nil, failed
	}
	return next, 0
}

// Activate flushes the entire TLB. Deliberately coarse: a per-process
// TLB tag via EntryHi's pid field was attempted but proved unreliable
// on the target hardware (spec.md §4.3, §9), so every context switch
// starts every user-mode TLB entry empty.
func (as *AddressSpace_t) Activate() {
	as.tlb.FlushAll()
}

// Destroy releases every real frame the page table references, then
// discards the table. spec.md §4.3 notes the original leaves this as
// an acknowledged leak and that "a correct implementation walks the
// table and calls release(ppage) for every real mapping" — the policy
// this core adopts per the §9 Open Question resolution.
func (as *AddressSpace_t) Destroy() {
	as.Lock()
	defer as.Unlock()
	as.pt.Each(func(vpage, ppage int) {
		if ppage != pagetable.Reserved {
			as.cm.Release(ppage)
		}
	})
	as.pt = pagetable.New()
}

// PageTable exposes the underlying table to vmfault and syscalldispatch,
// which must hold AddressSpace's lock for the duration of any call —
// the same Lockassert_pmap discipline vm/as.go enforces around Pmap.
func (as *AddressSpace_t) PageTable() *pagetable.PageTable_t {
	return as.pt
}

// CoreMap exposes the owning coremap for vmfault's frame materialization.
func (as *AddressSpace_t) CoreMap() *coremap.CoreMap_t {
	return as.cm
}

// Pid reports the owning process's pid, used to tag newly claimed
// frames and TLB entries.
func (as *AddressSpace_t) Pid() int {
	return as.pid
}

// InStackWindow reports whether addr falls inside the implicit user
// stack window [StackBottom(), config.UserStack).
func InStackWindow(addr int) bool {
	return addr >= stackBottom() && addr < config.UserStack
}

// StackBottom exposes the computed stack window floor for sbrk's
// boundary check (spec.md §4.8, §8 boundary behaviors).
func StackBottom() int {
	return stackBottom()
}

// Sbrk implements spec.md §4.8: amount must be a multiple of
// PageSize; EINVAL if misaligned or the new break would fall below
// heap_start; ENOMEM if the new break would enter the stack window.
// Growing writes Reserved entries for the new pages; shrinking
// releases any real frame a freed page held and removes its page
// table entry. Returns the break's old value.
func (as *AddressSpace_t) Sbrk(amount int) (int, errs.Err_t) {
	if amount%config.PageSize != 0 {
		return 0, -errs.EINVAL
	}

	as.Lock()
	defer as.Unlock()

	oldEnd := as.HeapEnd
	newEnd := oldEnd + amount

	if newEnd < as.HeapStart {
		return 0, -errs.EINVAL
	}
	if newEnd >= stackBottom() {
		return 0, -errs.ENOMEM
	}

	if amount > 0 {
		for addr := oldEnd; addr < newEnd; addr += config.PageSize {
			as.pt.Write(addrToPage(addr), pagetable.Reserved)
		}
	} else if amount < 0 {
		for addr := oldEnd - config.PageSize; addr >= newEnd; addr -= config.PageSize {
			vpage := addrToPage(addr)
			if as.pt.Contains(vpage) {
				if ppage := as.pt.Read(vpage); ppage != pagetable.Reserved {
					as.cm.Release(ppage)
				}
				as.pt.Remove(vpage)
			}
		}
	}

	as.HeapEnd = newEnd
	return oldEnd, 0
}
