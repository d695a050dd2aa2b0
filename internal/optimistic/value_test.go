package optimistic

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestValue_BeginCommit(t *testing.T) {
	v := New(false)
	tok := v.Begin(true)

	if !v.Displayed() || !v.Pending() {
		t.Fatalf("after Begin: displayed=%v pending=%v", v.Displayed(), v.Pending())
	}
	if v.Confirmed() {
		t.Error("confirmed must not change before Commit")
	}

	v.Commit(tok, true)
	if !v.Displayed() || !v.Confirmed() || v.Pending() {
		t.Errorf("after Commit: displayed=%v confirmed=%v pending=%v", v.Displayed(), v.Confirmed(), v.Pending())
	}
}

func TestValue_FailRollsBack(t *testing.T) {
	v := New(false)
	tok := v.Begin(true)
	if got := v.Fail(tok); got {
		t.Errorf("Fail returned %v, want false", got)
	}
	if v.Displayed() || v.Pending() {
		t.Errorf("after Fail: displayed=%v pending=%v", v.Displayed(), v.Pending())
	}
}

func TestValue_SupersededWrite(t *testing.T) {
	v := New(0)
	first := v.Begin(1)
	second := v.Begin(2)

	// The first write failing must not undo the second one's display.
	v.Fail(first)
	if v.Displayed() != 2 || !v.Pending() {
		t.Fatalf("displayed=%d pending=%v, want 2 and pending", v.Displayed(), v.Pending())
	}

	// A late commit of the first write updates only the confirmed value.
	v.Commit(first, 1)
	if v.Displayed() != 2 || v.Confirmed() != 1 {
		t.Fatalf("displayed=%d confirmed=%d", v.Displayed(), v.Confirmed())
	}

	v.Commit(second, 2)
	if v.Displayed() != 2 || v.Confirmed() != 2 || v.Pending() {
		t.Errorf("displayed=%d confirmed=%d pending=%v", v.Displayed(), v.Confirmed(), v.Pending())
	}
}

func TestValue_StaleCommitAfterNewer(t *testing.T) {
	v := New(0)
	first := v.Begin(1)
	second := v.Begin(2)

	v.Commit(second, 2)
	v.Commit(first, 1)
	if v.Displayed() != 2 || v.Confirmed() != 2 {
		t.Errorf("displayed=%d confirmed=%d, want 2 and 2", v.Displayed(), v.Confirmed())
	}
}

func TestValue_ApplyFuncFlipsEveryCall(t *testing.T) {
	ctx := context.Background()
	v := New(false)
	flip := func(b bool) bool { return !b }
	write := func(_ context.Context, next bool) (bool, error) { return next, nil }

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v.ApplyFunc(ctx, flip, write)
		}()
	}
	wg.Wait()

	if v.Displayed() || v.Confirmed() || v.Pending() {
		t.Errorf("after 10 flips: displayed=%v confirmed=%v pending=%v, want false false false",
			v.Displayed(), v.Confirmed(), v.Pending())
	}
}

func TestValue_Rollback(t *testing.T) {
	v := New("a")
	tok := v.Begin("b")
	if got := v.Rollback(); got != "a" {
		t.Fatalf("Rollback = %q, want a", got)
	}
	v.Commit(tok, "b")
	if v.Displayed() != "a" {
		t.Errorf("a write cancelled by Rollback changed the display to %q", v.Displayed())
	}
	if v.Confirmed() != "b" {
		t.Errorf("confirmed = %q, want b", v.Confirmed())
	}
}

func TestValue_Reconcile(t *testing.T) {
	v := New(false)
	v.Reconcile(true)
	if !v.Displayed() || !v.Confirmed() {
		t.Fatal("idle value should follow the observation")
	}

	v.Begin(false)
	v.Reconcile(true)
	if v.Displayed() {
		t.Error("observation must not override a pending write's display")
	}
	if !v.Confirmed() {
		t.Error("confirmed should take the observation")
	}
}

func TestValue_Apply(t *testing.T) {
	ctx := context.Background()
	v := New(false)

	got, err := v.Apply(ctx, true, func(context.Context) (bool, error) {
		if !v.Displayed() {
			t.Error("next value should be displayed while the write runs")
		}
		return true, nil
	})
	if err != nil || !got {
		t.Fatalf("Apply = (%v, %v)", got, err)
	}

	boom := errors.New("boom")
	got, err = v.Apply(ctx, false, func(context.Context) (bool, error) {
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if !got || !v.Displayed() {
		t.Errorf("failed Apply should roll back to true, got %v", got)
	}
}
