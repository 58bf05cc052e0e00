package notify

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

type fakeSink struct {
	failTimes int
	calls     int
}

func (f *fakeSink) Send(ctx context.Context, n Notification) error {
	f.calls++
	if f.calls <= f.failTimes {
		return errors.New("simulated transient failure")
	}
	return nil
}

func TestRetryingSinkRetriesThenSucceeds(t *testing.T) {
	fake := &fakeSink{failTimes: 2}
	receipts := NewReceiptLog(filepath.Join(t.TempDir(), "receipts.jsonl"))
	sink := NewRetryingSink(fake, receipts, time.Second, time.Millisecond)

	err := sink.Send(context.Background(), Notification{OwnerID: "owner-1", Message: "hi"})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if fake.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", fake.calls)
	}
}

func TestRetryingSinkGivesUpAfterDeadline(t *testing.T) {
	fake := &fakeSink{failTimes: 1000}
	receipts := NewReceiptLog(filepath.Join(t.TempDir(), "receipts.jsonl"))
	sink := NewRetryingSink(fake, receipts, 20*time.Millisecond, 5*time.Millisecond)

	err := sink.Send(context.Background(), Notification{OwnerID: "owner-1", Message: "hi"})
	if err == nil {
		t.Fatalf("expected failure after retry deadline elapses")
	}
}
