// Package process defines the Process_t object of spec.md §3/§4.5-4.7:
// the binding of name, pid, address space, current working directory,
// thread set, and file-descriptor table that syscalldispatch operates
// on. Grounded on the teacher's fd.Cwd_t (biscuit/src/fd/fd.go, the
// per-process cwd with its own mutex) and tinfo.Threadinfo_t
// (biscuit/src/tinfo/tinfo.go) for the thread-set shape, adapted away
// from tinfo's runtime.Gptr thread-local-storage trick (which depends
// on a custom-patched Go runtime this core does not have) to an
// explicit tid-keyed map guarded by the process's own mutex.
package process

import (
	"sync"

	"teachkernel/addrspace"
	"teachkernel/fdtable"
	"teachkernel/vfs"
)

// Cwd tracks the current working directory, mirroring fd.Cwd_t: an
// embedded mutex serializes concurrent chdir calls against readers of
// Vnode/Path.
type Cwd struct {
	mu    sync.Mutex
	Vnode vfs.Vnode_i
	Path  vfs.Path
}

// Set atomically installs a new vnode/path pair, the role
// vfs_chdir plays against fd.Cwd_t in the original.
func (c *Cwd) Set(v vfs.Vnode_i, p vfs.Path) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Vnode = v
	c.Path = p
}

// Get returns the current vnode/path pair.
func (c *Cwd) Get() (vfs.Vnode_i, vfs.Path) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Vnode, c.Path
}

// Process_t binds everything a running user program needs: its pid,
// address space, file descriptors, cwd, and the set of thread ids
// currently executing inside it (spec.md §3's `thread_set`).
type Process_t struct {
	mu sync.Mutex

	Name string
	Pid  int

	AS  *addrspace.AddressSpace_t
	FD  *fdtable.Table_t
	Cwd *Cwd

	threads map[int]struct{}
}

// Create builds a plain process entry (proc_create in the original):
// a name, a pid, an empty thread set, an empty cwd, and an empty
// openMax-slot file table. The address space is installed separately
// by the caller, and fork replaces the empty file table with a shared
// copy of the parent's, since their construction differs between
// "clone an existing process" and "launch a fresh user program".
func Create(name string, pid int, openMax int) *Process_t {
	return &Process_t{
		Name:    name,
		Pid:     pid,
		FD:      fdtable.New(openMax),
		Cwd:     &Cwd{},
		threads: make(map[int]struct{}),
	}
}

// AddThread records tid as running inside this process.
func (p *Process_t) AddThread(tid int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.threads[tid] = struct{}{}
}

// RemoveThread drops tid from the thread set and reports whether any
// threads remain, the signal _exit's caller uses to decide whether
// thread_exit_destroy_proc should actually tear the process down.
func (p *Process_t) RemoveThread(tid int) (remaining int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.threads, tid)
	return len(p.threads)
}
