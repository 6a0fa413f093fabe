package proctable

import (
	"testing"

	"teachkernel/config"
)

func TestReservePidSkipsParent(t *testing.T) {
	pt := New()
	pt.Lock(config.PidMin)
	child, err := pt.ReservePid(config.PidMin)
	pt.Unlock(config.PidMin)
	if err != 0 {
		t.Fatalf("ReservePid failed: %v", err)
	}
	if child == config.PidMin {
		t.Fatalf("ReservePid returned the parent's own pid")
	}
	pt.Lock(config.PidMin)
	if !pt.IsChildOf(config.PidMin, child) {
		t.Fatalf("parent does not list the reserved pid as a child")
	}
	pt.Unlock(config.PidMin)
}

func TestExitThenWaitOnPidCollectsStatus(t *testing.T) {
	pt := New()
	pt.Lock(config.PidMin)
	child, err := pt.ReservePid(config.PidMin)
	pt.Unlock(config.PidMin)
	if err != 0 {
		t.Fatalf("ReservePid failed: %v", err)
	}

	done := make(chan int)
	go func() {
		pt.Lock(child)
		status := pt.WaitOnPid(child)
		pt.Unlock(child)
		done <- status
	}()

	pt.Lock(child)
	pt.Exit(child, 42)
	pt.Unlock(child)

	if got := <-done; got != 42 {
		t.Fatalf("WaitOnPid returned status %d, want 42", got)
	}
}

func TestRemoveChildClearsEntry(t *testing.T) {
	pt := New()
	pt.Lock(config.PidMin)
	child, _ := pt.ReservePid(config.PidMin)
	pt.RemoveChild(config.PidMin, child)
	pt.Unlock(config.PidMin)

	pt.Lock(config.PidMin)
	if pt.IsChildOf(config.PidMin, child) {
		t.Fatalf("child still listed after RemoveChild")
	}
	pt.Unlock(config.PidMin)
}

func TestReservePidExhaustion(t *testing.T) {
	pt := New()
	pt.Lock(config.PidMin)
	defer pt.Unlock(config.PidMin)

	for {
		_, err := pt.ReservePid(config.PidMin)
		if err != 0 {
			break
		}
	}
	if _, err := pt.ReservePid(config.PidMin); err == 0 {
		t.Fatalf("ReservePid should fail once the pid space is exhausted")
	}
}
