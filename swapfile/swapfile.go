// Package swapfile implements the optional swap-file collaborator of
// spec.md §3/§4.9: a bitmap of fixed-size slots over a disk-backed
// vnode, with page_file_write/page_file_read_and_free/page_file_free
// primitives. Eviction policy and wiring into coremap.Claim are
// deliberately unspecified by spec.md and left unwired here. Grounded
// on the teacher's pci.Disk_i (biscuit/src/pci/olddiski.go) for the
// block-device shape, adapted from its Idebuf_t/interrupt-driven
// Start/Complete protocol to a simpler synchronous read/write pair
// matching vfs.Vnode_i.
package swapfile

import (
	"teachkernel/config"
	"teachkernel/errs"
	"teachkernel/vfs"
)

// Invalid is the sentinel slot index meaning "no slot available",
// page_file_write's failure return in spec.md §4.9.
const Invalid = -1

// SwapFile_t is a bitmap of fixed PageSize slots over a backing vnode.
type SwapFile_t struct {
	backing vfs.Vnode_i
	busy    []bool
}

// New wraps backing as a swap file with the given slot count.
func New(backing vfs.Vnode_i, slots int) *SwapFile_t {
	return &SwapFile_t{backing: backing, busy: make([]bool, slots)}
}

func (s *SwapFile_t) findFree() int {
	for i, b := range s.busy {
		if !b {
			return i
		}
	}
	return Invalid
}

// Write finds the first free slot, writes PageSize bytes of src into
// it, marks it busy, and returns the slot index (or Invalid if the
// swap file is full).
func (s *SwapFile_t) Write(src []byte) (int, errs.Err_t) {
	if len(src) != config.PageSize {
		panic("swapfile: write requires exactly one page")
	}
	slot := s.findFree()
	if slot == Invalid {
		return Invalid, -errs.ENOSPC
	}
	if _, err := s.backing.Write(src, slot*config.PageSize); err != 0 {
		return Invalid, err
	}
	s.busy[slot] = true
	return slot, 0
}

// ReadAndFree reads slot's page into dst and marks the slot free.
func (s *SwapFile_t) ReadAndFree(slot int, dst []byte) errs.Err_t {
	if len(dst) != config.PageSize {
		panic("swapfile: read requires exactly one page")
	}
	if _, err := s.backing.Read(dst, slot*config.PageSize); err != 0 {
		return err
	}
	s.busy[slot] = false
	return 0
}

// Free marks slot free without reading it back, used when a page is
// dropped rather than paged in (e.g. the owning process exited).
func (s *SwapFile_t) Free(slot int) {
	s.busy[slot] = false
}
