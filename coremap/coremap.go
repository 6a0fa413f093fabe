// Package coremap owns every physical page frame of simulated RAM: it
// hands out contiguous runs, releases individual pages, and provides
// the kernel-virtual alloc_kpages/free_kpages wrappers used before any
// address space exists. It is grounded on the teacher's mem.Physmem_t
// (biscuit/src/mem/mem.go), adapted from biscuit's free-list/refcount
// design to the simpler first-fit owner-tag design spec.md §4.1 and
// the original vm/coremap.c describe.
package coremap

import (
	"sync"

	"teachkernel/config"
	"teachkernel/errs"
)

// Owner tags a physical page's occupant. Free and Kernel are
// sentinels; any other value is a user pid, exactly as the original
// core_map_entry.cme_pid uses PID_INVALID/PID_KERN alongside real pids.
type Owner int

const (
	// Free marks a physical page available for claim.
	Free Owner = -1
	// Kernel marks a page as permanently reserved for kernel use
	// (the coremap's own metadata array, or kernel-virtual allocations).
	Kernel Owner = Owner(config.PidKern)
)

// Entry_t is one physical page's metadata (CoreMapEntry in spec.md §3).
type Entry_t struct {
	Owner Owner
}

// CoreMap_t owns the frame metadata array and the simulated RAM backing
// it. A single mutex protects the whole array, matching spec.md's
// "Protected by a single spinlock" and the teacher's stealmem_lock.
type CoreMap_t struct {
	sync.Mutex

	entries []Entry_t
	ram     []byte // simulated physical RAM, PageSize-aligned per entry

	firstPage int // index of the first usable physical page
}

// Bootstrap sizes and installs the coremap over numPages of simulated
// RAM, reserving as many leading pages as the metadata array itself
// needs — mirroring coremap_bootstrap in the original vm/coremap.c,
// which places the coremap at ram's first free physical page and
// marks those pages Kernel before anything else can run.
func Bootstrap(numPages int) *CoreMap_t {
	if numPages <= 0 {
		panic("coremap: bad numPages")
	}
	cm := &CoreMap_t{
		entries: make([]Entry_t, numPages),
		ram:     make([]byte, numPages*config.PageSize),
	}

	entryBytes := 8 // sizeof(Entry_t) is small; round up generously like the original's sizeof(core_map_entry)
	metaBytes := entryBytes * numPages
	metaPages := (metaBytes + config.PageSize - 1) / config.PageSize
	if metaPages < 1 {
		metaPages = 1
	}
	if metaPages > numPages {
		panic("coremap: RAM too small to hold its own metadata")
	}

	cm.firstPage = metaPages
	for i := 0; i < metaPages; i++ {
		cm.entries[i].Owner = Kernel
	}
	for i := metaPages; i < numPages; i++ {
		cm.entries[i].Owner = Free
	}
	return cm
}

// NumPages reports the number of physical pages the coremap tracks.
func (cm *CoreMap_t) NumPages() int {
	return len(cm.entries)
}

// Claim finds the lowest-indexed run of n contiguous Free pages,
// marks them Kernel, and returns the base physical page index. It
// returns ENOMEM if no such run exists. The whole scan+mark runs
// under the coremap lock, a documented bottleneck per spec.md §5.
func (cm *CoreMap_t) Claim(n int) (int, errs.Err_t) {
	if n <= 0 {
		panic("coremap: bad claim size")
	}
	cm.Lock()
	defer cm.Unlock()

	base, ok := cm.findFreeRun(n)
	if !ok {
		return 0, -errs.ENOMEM
	}
	for i := base; i < base+n; i++ {
		cm.entries[i].Owner = Kernel
	}
	return base, 0
}

// ClaimFor is like Claim but tags the run with owner instead of Kernel,
// used by address-space frame allocation where the owning pid matters.
func (cm *CoreMap_t) ClaimFor(n int, owner Owner) (int, errs.Err_t) {
	if owner == Free {
		panic("coremap: cannot claim as Free")
	}
	cm.Lock()
	defer cm.Unlock()

	base, ok := cm.findFreeRun(n)
	if !ok {
		return 0, -errs.ENOMEM
	}
	for i := base; i < base+n; i++ {
		cm.entries[i].Owner = owner
	}
	return base, 0
}

func (cm *CoreMap_t) findFreeRun(n int) (int, bool) {
	run := 0
	for i := 0; i < len(cm.entries); i++ {
		if cm.entries[i].Owner == Free {
			run++
			if run == n {
				return i - n + 1, true
			}
		} else {
			run = 0
		}
	}
	return 0, false
}

// Release marks ppage Free. It does not zero the frame's contents,
// matching spec.md §4.1 exactly.
func (cm *CoreMap_t) Release(ppage int) {
	cm.Lock()
	defer cm.Unlock()
	cm.releaseLocked(ppage)
}

func (cm *CoreMap_t) releaseLocked(ppage int) {
	if ppage < 0 || ppage >= len(cm.entries) {
		panic("coremap: release out of range")
	}
	if cm.entries[ppage].Owner == Free {
		panic("coremap: double free")
	}
	cm.entries[ppage].Owner = Free
}

// OwnerOf reports the current owner of ppage, used by tests and by
// the §8 invariant that every mapped page table entry is in use (not
// Free) in the coremap; frames claimed through ClaimFor carry the
// owning pid rather than Kernel.
func (cm *CoreMap_t) OwnerOf(ppage int) Owner {
	cm.Lock()
	defer cm.Unlock()
	return cm.entries[ppage].Owner
}

// Frame returns a byte slice over the PageSize bytes backing ppage —
// the direct-map window of spec.md §4.1/§4.3, implemented here as a
// plain slice into simulated RAM rather than a KSEG0-style pointer
// cast, since this kernel runs as an ordinary Go process rather than
// bare metal. Used by AddressSpace.Copy to memcpy page contents and by
// AllocKpages callers that need a byte view of a kernel page.
func (cm *CoreMap_t) Frame(ppage int) []byte {
	if ppage < 0 || ppage >= len(cm.entries) {
		panic("coremap: frame out of range")
	}
	off := ppage * config.PageSize
	return cm.ram[off : off+config.PageSize]
}

// AllocKpages claims n contiguous frames for kernel use and returns
// the base physical page index, or ENOMEM. It is the direct Go
// analogue of alloc_kpages/getppages in the original coremap.c.
func (cm *CoreMap_t) AllocKpages(n int) (int, errs.Err_t) {
	return cm.Claim(n)
}

// FreeKpages releases the frame at ppage, the analogue of free_kpages.
func (cm *CoreMap_t) FreeKpages(ppage int) {
	cm.Release(ppage)
}
