// Package proctable implements the pid-indexed process table of
// spec.md §4.5: a fixed vector of slots, one mutex per slot, tracking
// parent/children/exit status and a waitpid condition variable. It is
// the Go-native analogue of the original kern/proc/proc.c's global
// proctable + proclocks arrays, restructured around one struct per
// slot the way the teacher structures per-resource state with an
// embedded sync.Mutex (tinfo.Tnote_t, biscuit/src/tinfo/tinfo.go).
package proctable

import (
	"sync"

	"teachkernel/config"
	"teachkernel/errs"
)

// Invalid is the sentinel pid meaning "no such process" (PID_INVALID
// in the original), used for Entry.Parent when a process has none.
const Invalid = -1

// Entry is one process-table slot (spec.md §3's Process-table entry).
// Guarded by its own mutex rather than a single table-wide lock, so
// unrelated pids never contend — the design spec.md §5 calls out as
// "per-pid mutex: the matching process-table entry's fields".
type Entry struct {
	mu sync.Mutex
	cv *sync.Cond

	pid        int
	parent     int
	children   []int
	hasExited  bool
	exitStatus int
	occupied   bool
}

// Table_t is the fixed PID_MAX-length vector of slots, initialized once
// at boot (spec.md §9: "initialize during boot in a fixed order").
type Table_t struct {
	slots []Entry
}

// New allocates a table with config.PidMax slots, each pre-wired with
// its own condition variable so Lock/Unlock never need to allocate.
func New() *Table_t {
	t := &Table_t{slots: make([]Entry, config.PidMax)}
	for i := range t.slots {
		t.slots[i].pid = i
		t.slots[i].cv = sync.NewCond(&t.slots[i].mu)
	}
	return t
}

// Lock acquires pid's slot mutex. Panics on an out-of-range pid,
// an invariant violation rather than recoverable user error.
func (t *Table_t) Lock(pid int) {
	t.slots[pid].mu.Lock()
}

// Unlock releases pid's slot mutex.
func (t *Table_t) Unlock(pid int) {
	t.slots[pid].mu.Unlock()
}

// ReservePid implements reserve_pid(parent_pid): a linear scan from
// PID_MIN upward, skipping parentPid to avoid reacquiring the
// caller-held lock, installing a new occupied entry in the first free
// slot found and registering it with the parent. Returns Invalid (and
// ENPROC) if the pid space is exhausted.
//
// The caller must already hold parentPid's lock — ReservePid appends
// to its children slice directly rather than re-locking it.
func (t *Table_t) ReservePid(parentPid int) (int, errs.Err_t) {
	for pid := config.PidMin; pid < len(t.slots); pid++ {
		if pid == parentPid {
			continue
		}
		e := &t.slots[pid]
		e.mu.Lock()
		if e.occupied {
			e.mu.Unlock()
			continue
		}
		e.occupied = true
		e.parent = parentPid
		e.children = nil
		e.hasExited = false
		e.exitStatus = 0
		e.mu.Unlock()

		if parentPid != Invalid {
			t.slots[parentPid].children = append(t.slots[parentPid].children, pid)
		}
		return pid, 0
	}
	return Invalid, -errs.ENPROC
}

// InstallRoot occupies pid with no parent, used once at boot for the
// first user process (spec.md §9's fixed boot order predates any
// fork, so there is nothing to call ReservePid against yet).
func (t *Table_t) InstallRoot(pid int) {
	e := &t.slots[pid]
	e.mu.Lock()
	defer e.mu.Unlock()
	e.occupied = true
	e.parent = Invalid
	e.children = nil
	e.hasExited = false
	e.exitStatus = 0
}

// Remove tears down pid's entry, clearing its children and parent
// links. The caller must hold pid's lock (spec.md §4.5).
func (t *Table_t) Remove(pid int) {
	e := &t.slots[pid]
	e.occupied = false
	e.parent = Invalid
	e.children = nil
	e.hasExited = false
	e.exitStatus = 0
}

// WaitOnPid blocks until pid has exited, then removes its entry and
// returns the collected status. The caller must hold pid's lock;
// sync.Cond.Wait releases and reacquires it atomically across the
// sleep, the same contract cv_wait(lock) offers in the original.
func (t *Table_t) WaitOnPid(pid int) int {
	e := &t.slots[pid]
	for !e.hasExited {
		e.cv.Wait()
	}
	status := e.exitStatus
	t.Remove(pid)
	return status
}

// Exit marks pid exited with status and wakes every waiter. The
// caller must hold pid's lock.
func (t *Table_t) Exit(pid int, status int) {
	e := &t.slots[pid]
	e.hasExited = true
	e.exitStatus = status
	e.cv.Broadcast()
}

// HasExited reports whether pid's entry is marked exited. The caller
// must hold pid's lock.
func (t *Table_t) HasExited(pid int) bool {
	return t.slots[pid].hasExited
}

// Exists reports whether pid names a live, occupied slot. Safe to
// call without holding pid's lock only as a racy pre-check — every
// caller that depends on the answer re-verifies after locking, per
// spec.md §4.7's "re-check parentage" rule.
func (t *Table_t) Exists(pid int) bool {
	if pid < 0 || pid >= len(t.slots) {
		return false
	}
	t.slots[pid].mu.Lock()
	defer t.slots[pid].mu.Unlock()
	return t.slots[pid].occupied
}

// Parent returns pid's recorded parent. The caller must hold pid's lock.
func (t *Table_t) Parent(pid int) int {
	return t.slots[pid].parent
}

// Children returns a copy of pid's children slice. The caller must
// hold pid's lock.
func (t *Table_t) Children(pid int) []int {
	out := make([]int, len(t.slots[pid].children))
	copy(out, t.slots[pid].children)
	return out
}

// RemoveChild deletes childPid from pid's children list. The caller
// must hold pid's lock.
func (t *Table_t) RemoveChild(pid int, childPid int) {
	e := &t.slots[pid]
	for i, c := range e.children {
		if c == childPid {
			e.children = append(e.children[:i], e.children[i+1:]...)
			return
		}
	}
}

// IsChildOf reports whether childPid is in parentPid's children list.
// The caller must hold parentPid's lock.
func (t *Table_t) IsChildOf(parentPid, childPid int) bool {
	for _, c := range t.slots[parentPid].children {
		if c == childPid {
			return true
		}
	}
	return false
}
