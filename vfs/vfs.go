// Package vfs declares the narrow filesystem contract the process and
// file-descriptor subsystems depend on, without implementing one.
// spec.md is explicit that the filesystem itself is "deliberately out
// of scope... consumed as a stable interface" — this package is that
// interface, shaped after the teacher's fd.Fd_t/fdops.Fdops_i split
// (biscuit/src/fd/fd.go, biscuit/src/fdops) and ufs.Ufs_t
// (biscuit/src/ufs/ufs.go), so a real implementation can be dropped in
// behind Vnode_i without touching fdtable, proctable, or
// syscalldispatch.
package vfs

import "teachkernel/errs"

// Vnode_i is the minimal VOP set a file-table entry needs: the
// original VOP_READ/VOP_WRITE/VOP_STAT trio plus Close for refcount
// teardown. A concrete filesystem binds this to its own inode type,
// the way ufs.Ufs_t binds Fdops_i to a disk-backed inode.
type Vnode_i interface {
	Read(buf []byte, offset int) (int, errs.Err_t)
	Write(buf []byte, offset int) (int, errs.Err_t)
	Len() (int, errs.Err_t)
	Close() errs.Err_t
}

// Path is a canonicalized filesystem path, the role ustr.Ustr plays in
// the teacher (bpath.Canonicalize, ustr.Ustr).
type Path string

// Stat_t is the subset of file metadata sys_stat's callers observe.
type Stat_t struct {
	Size int
}

// Fs_i is the contract a filesystem implementation offers vfs_open,
// load_elf, vfs_chdir, and vfs_getcwd (spec.md §4.6/§4.7's consumed
// surface). A stub satisfying it is enough to exercise
// syscalldispatch's open/exec paths in tests without a real disk.
type Fs_i interface {
	Open(path Path, flags int) (Vnode_i, errs.Err_t)
	Stat(v Vnode_i) (Stat_t, errs.Err_t)
	LoadExecutable(path Path) (entry int, err errs.Err_t)
	Root() Vnode_i
}
