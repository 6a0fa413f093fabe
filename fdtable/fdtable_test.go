package fdtable

import (
	"testing"

	"teachkernel/errs"
	"teachkernel/vfs"
)

// memVnode is an in-memory fake vfs.Vnode_i, the same function-variable
// substitution spirit gopher-os uses for hardware-touching calls,
// applied here to the VFS contract this package depends on.
type memVnode struct {
	data   []byte
	closed bool
}

func (v *memVnode) Read(buf []byte, offset int) (int, errs.Err_t) {
	if offset >= len(v.data) {
		return 0, 0
	}
	n := copy(buf, v.data[offset:])
	return n, 0
}

func (v *memVnode) Write(buf []byte, offset int) (int, errs.Err_t) {
	end := offset + len(buf)
	if end > len(v.data) {
		grown := make([]byte, end)
		copy(grown, v.data)
		v.data = grown
	}
	copy(v.data[offset:end], buf)
	return len(buf), 0
}

func (v *memVnode) Len() (int, errs.Err_t) { return len(v.data), 0 }
func (v *memVnode) Close() errs.Err_t      { v.closed = true; return 0 }

var _ vfs.Vnode_i = (*memVnode)(nil)

func TestOpenSkipsReservedDescriptors(t *testing.T) {
	tbl := New(8)
	fd, err := tbl.Open(&memVnode{}, 0)
	if err != 0 {
		t.Fatalf("Open failed: %v", err)
	}
	if fd != 3 {
		t.Fatalf("Open returned fd %d, want 3", fd)
	}
}

func TestOpenEmfileWhenFull(t *testing.T) {
	tbl := New(4) // slots 0-2 reserved, only fd 3 available
	if _, err := tbl.Open(&memVnode{}, 0); err != 0 {
		t.Fatalf("first Open failed: %v", err)
	}
	if _, err := tbl.Open(&memVnode{}, 0); err != -errs.EMFILE {
		t.Fatalf("second Open = %v, want EMFILE", err)
	}
}

func TestDup2SameFdIsNoop(t *testing.T) {
	tbl := New(8)
	fd, _ := tbl.Open(&memVnode{}, 0)
	got, err := tbl.Dup2(fd, fd)
	if err != 0 || got != fd {
		t.Fatalf("Dup2(fd, fd) = (%d, %v), want (%d, 0)", got, err, fd)
	}
}

func TestDup2OutOfRangeNewFdIsEbadf(t *testing.T) {
	tbl := New(8)
	fd, _ := tbl.Open(&memVnode{}, 0)
	if _, err := tbl.Dup2(fd, 100); err != -errs.EBADF {
		t.Fatalf("Dup2(fd, 100) = %v, want EBADF", err)
	}
	if _, err := tbl.Dup2(fd, -1); err != -errs.EBADF {
		t.Fatalf("Dup2(fd, -1) = %v, want EBADF", err)
	}
}

func TestDup2ThenCloseSharesOffset(t *testing.T) {
	tbl := New(8)
	v := &memVnode{}
	a, _ := tbl.Open(v, 0)
	entry, _ := tbl.Get(a)
	entry.Write([]byte("AB"))

	b, err := tbl.Dup2(a, 6)
	if err != 0 {
		t.Fatalf("Dup2 failed: %v", err)
	}
	tbl.Close(a)

	eb, err := tbl.Get(b)
	if err != 0 {
		t.Fatalf("Get(b) failed: %v", err)
	}
	buf := make([]byte, 1)
	if _, err := eb.Read(buf); err != 0 {
		t.Fatalf("Read via b failed: %v", err)
	}
	// offset was already at 2 (after the write of "AB"); read should
	// return nothing more, proving b saw the same offset close(a) left.
	if string(buf) == "A" {
		t.Fatalf("b's offset was not shared with a's prior writes")
	}
}

func TestForkSharesEntriesByRefcount(t *testing.T) {
	tbl := New(8)
	v := &memVnode{}
	fd, _ := tbl.Open(v, 0)
	entry, _ := tbl.Get(fd)

	child := tbl.Fork()
	childEntry, err := child.Get(fd)
	if err != 0 {
		t.Fatalf("child Get(fd) failed: %v", err)
	}
	if childEntry != entry {
		t.Fatalf("fork did not share the same file-table entry")
	}

	tbl.Close(fd)
	if v.closed {
		t.Fatalf("vnode closed while child still references it")
	}
	child.Close(fd)
	if !v.closed {
		t.Fatalf("vnode not closed once every referencing fd closed")
	}
}

func TestCloseBadFdReturnsEbadf(t *testing.T) {
	tbl := New(8)
	if err := tbl.Close(3); err != -errs.EBADF {
		t.Fatalf("Close on unopened fd = %v, want EBADF", err)
	}
}

func TestSeekNegativeIsEinval(t *testing.T) {
	tbl := New(8)
	fd, _ := tbl.Open(&memVnode{}, 0)
	entry, _ := tbl.Get(fd)
	if _, err := entry.Seek(-1, 0); err != -errs.EINVAL {
		t.Fatalf("Seek to negative offset = %v, want EINVAL", err)
	}
}
