package coremap

import "testing"

func TestBootstrapReservesMetadataPages(t *testing.T) {
	cm := Bootstrap(64)
	if cm.NumPages() != 64 {
		t.Fatalf("NumPages() = %d, want 64", cm.NumPages())
	}
	if cm.OwnerOf(0) != Kernel {
		t.Fatalf("OwnerOf(0) = %v, want Kernel (coremap metadata)", cm.OwnerOf(0))
	}
	if cm.OwnerOf(cm.NumPages()-1) != Free {
		t.Fatalf("last page should start Free")
	}
}

func TestClaimFirstFitLowestIndex(t *testing.T) {
	cm := Bootstrap(64)
	base, err := cm.Claim(4)
	if err != 0 {
		t.Fatalf("Claim(4) returned err %v", err)
	}
	// 64 entries of 8 bytes fit in one metadata page, so page 1 is the
	// lowest Free index.
	if base != 1 {
		t.Fatalf("Claim(4) base = %d, want 1", base)
	}
	for i := base; i < base+4; i++ {
		if cm.OwnerOf(i) != Kernel {
			t.Errorf("page %d not marked Kernel after claim", i)
		}
	}
}

func TestReleaseThenReclaim(t *testing.T) {
	cm := Bootstrap(16)
	base, err := cm.Claim(2)
	if err != 0 {
		t.Fatalf("Claim failed: %v", err)
	}
	cm.Release(base)
	if cm.OwnerOf(base) != Free {
		t.Fatalf("page not Free after Release")
	}
	again, err := cm.Claim(1)
	if err != 0 || again != base {
		t.Fatalf("Claim(1) after Release = (%d, %v), want (%d, 0)", again, err, base)
	}
}

func TestDoubleFreePanics(t *testing.T) {
	cm := Bootstrap(16)
	defer func() {
		if recover() == nil {
			t.Fatalf("double Release should panic")
		}
	}()
	base, _ := cm.Claim(1)
	cm.Release(base)
	cm.Release(base)
}

func TestClaimOutOfMemory(t *testing.T) {
	cm := Bootstrap(8)
	_, err := cm.Claim(cm.NumPages())
	if err == 0 {
		t.Fatalf("Claim should fail when metadata pages already occupy part of RAM")
	}
}

func TestFrameIsPageSized(t *testing.T) {
	cm := Bootstrap(16)
	base, _ := cm.Claim(1)
	if got := len(cm.Frame(base)); got != 4096 {
		t.Fatalf("len(Frame) = %d, want 4096", got)
	}
}
