// Package fdtable implements the per-process file-descriptor table of
// spec.md §4.6: a fixed OPEN_MAX-sized vector of shared references to
// refcounted file-table entries, the way dup2 and fork alias slots
// without copying state. Grounded on the teacher's fd.Fd_t/Copyfd
// (biscuit/src/fd/fd.go), adapted from biscuit's per-fd Fops interface
// copy (Copyfd reopens the vnode) to spec.md's simpler shared-entry
// model where dup2 and fork increment a refcount instead of reopening.
package fdtable

import (
	"sync"

	"teachkernel/errs"
	"teachkernel/vfs"
)

// reservedSlots is the count of descriptors sys_open never reuses:
// stdin, stdout, stderr (spec.md §4.6).
const reservedSlots = 3

// Entry is one open-file-table entry (spec.md §3's File-table entry):
// a vnode, a seek offset, the flags it was opened with, and a
// refcount of every fd slot (across every process) currently
// referencing it. Its mutex serializes concurrent read/write/seek
// from descriptors sharing it via dup2 or fork, per spec.md's
// "Ordering guarantees".
type Entry struct {
	mu       sync.Mutex
	vnode    vfs.Vnode_i
	offset   int
	flags    int
	refcount int
}

// newEntry creates a file-table entry with one reference.
func newEntry(v vfs.Vnode_i, flags int) *Entry {
	return &Entry{vnode: v, flags: flags, refcount: 1}
}

func (e *Entry) addref() {
	e.mu.Lock()
	e.refcount++
	e.mu.Unlock()
}

// release decrements the refcount and, at zero, closes the vnode —
// the file-table entry's destruction per spec.md §3's lifetime
// invariant.
func (e *Entry) release() errs.Err_t {
	e.mu.Lock()
	e.refcount--
	dead := e.refcount == 0
	e.mu.Unlock()
	if !dead {
		return 0
	}
	return e.vnode.Close()
}

// Read reads from the entry at its current offset, advancing it, with
// the entry's mutex serializing concurrent access from descriptors
// sharing it.
func (e *Entry) Read(buf []byte) (int, errs.Err_t) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, err := e.vnode.Read(buf, e.offset)
	if err != 0 {
		return 0, err
	}
	e.offset += n
	return n, 0
}

// Write writes to the entry at its current offset, advancing it.
func (e *Entry) Write(buf []byte) (int, errs.Err_t) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, err := e.vnode.Write(buf, e.offset)
	if err != 0 {
		return 0, err
	}
	e.offset += n
	return n, 0
}

// Seek repositions the entry's offset per lseek's whence argument
// (0=set, 1=cur, 2=end).
func (e *Entry) Seek(off int, whence int) (int, errs.Err_t) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch whence {
	case 0:
		e.offset = off
	case 1:
		e.offset += off
	case 2:
		size, err := e.vnode.Len()
		if err != 0 {
			return 0, err
		}
		e.offset = size + off
	default:
		return 0, -errs.EINVAL
	}
	if e.offset < 0 {
		return 0, -errs.EINVAL
	}
	return e.offset, 0
}

// Table_t is a process's fixed-size descriptor vector. A nil slot means
// the descriptor is closed. The mutex guards the slot array itself
// (which slots are occupied); each occupied slot's Entry has its own
// mutex for I/O serialization, the same split the teacher's Fd_t (bare
// struct) versus Cwd_t (embedded sync.Mutex) draws between fd state
// and directory state.
type Table_t struct {
	mu    sync.Mutex
	slots []*Entry
}

// New returns an empty table sized openMax, per spec.md §4.6's
// OPEN_MAX-sized fixed array.
func New(openMax int) *Table_t {
	return &Table_t{slots: make([]*Entry, openMax)}
}

// Install binds stdin/stdout/stderr (descriptors 0-2) to the given
// vnodes, used once at process creation.
func (t *Table_t) Install(fd int, v vfs.Vnode_i, flags int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slots[fd] = newEntry(v, flags)
}

// Open allocates the lowest-numbered free descriptor at or above
// fd 3 (descriptors 0-2 are reserved, per spec.md §4.6), binds it to a
// freshly opened vnode, and returns it. EMFILE if every slot above the
// reserved range is already taken.
func (t *Table_t) Open(v vfs.Vnode_i, flags int) (int, errs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for fd := reservedSlots; fd < len(t.slots); fd++ {
		if t.slots[fd] == nil {
			t.slots[fd] = newEntry(v, flags)
			return fd, 0
		}
	}
	return -1, -errs.EMFILE
}

func (t *Table_t) get(fd int) (*Entry, errs.Err_t) {
	if fd < 0 || fd >= len(t.slots) {
		return nil, -errs.EBADF
	}
	e := t.slots[fd]
	if e == nil {
		return nil, -errs.EBADF
	}
	return e, 0
}

// Get returns the entry bound to fd, or EBADF.
func (t *Table_t) Get(fd int) (*Entry, errs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.get(fd)
}

// Close decrements fd's entry refcount (closing the vnode at zero)
// and clears the slot.
func (t *Table_t) Close(fd int) errs.Err_t {
	t.mu.Lock()
	e, err := t.get(fd)
	if err != 0 {
		t.mu.Unlock()
		return err
	}
	t.slots[fd] = nil
	t.mu.Unlock()
	return e.release()
}

// Dup2 aliases new to old's entry, incrementing its refcount, after
// closing whatever new previously referenced. dup2(fd, fd) is a
// documented no-op returning fd unchanged, matching spec.md §4.6
// exactly.
func (t *Table_t) Dup2(old, new int) (int, errs.Err_t) {
	if old == new {
		t.mu.Lock()
		_, err := t.get(old)
		t.mu.Unlock()
		if err != 0 {
			return -1, err
		}
		return new, 0
	}

	t.mu.Lock()
	src, err := t.get(old)
	if err != 0 {
		t.mu.Unlock()
		return -1, err
	}
	if new < 0 || new >= len(t.slots) {
		t.mu.Unlock()
		return -1, -errs.EBADF
	}
	prev := t.slots[new]
	src.addref()
	t.slots[new] = src
	t.mu.Unlock()

	if prev != nil {
		prev.release()
	}
	return new, 0
}

// Fork returns a copy of the table sharing every live entry by
// refcount, matching spec.md §4.6's "fork copies the table by
// incrementing refcounts of all live entries" and the fork invariant
// in §8 that parent and child fd_table[i] point to the same entry for
// every i in use.
func (t *Table_t) Fork() *Table_t {
	t.mu.Lock()
	defer t.mu.Unlock()
	child := New(len(t.slots))
	for i, e := range t.slots {
		if e == nil {
			continue
		}
		e.addref()
		child.slots[i] = e
	}
	return child
}

// Teardown releases every live slot, used when a process exits.
func (t *Table_t) Teardown() {
	t.mu.Lock()
	slots := t.slots
	t.slots = make([]*Entry, len(slots))
	t.mu.Unlock()
	for _, e := range slots {
		if e != nil {
			e.release()
		}
	}
}
