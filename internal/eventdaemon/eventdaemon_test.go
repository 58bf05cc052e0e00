package eventdaemon

import (
	"context"
	"testing"
	"time"

	"github.com/vthunder/attnmem/internal/config"
	"github.com/vthunder/attnmem/internal/notify"
)

type recordingSink struct {
	notifications []notify.Notification
}

func (r *recordingSink) Send(ctx context.Context, n notify.Notification) error {
	r.notifications = append(r.notifications, n)
	return nil
}

func newTestDaemon(sink notify.Sink) *Daemon {
	cfg := config.NewStore(config.Defaults())
	return NewDaemon(cfg, nil, sink, nil)
}

func TestConsumeInterceptsGiftCardScam(t *testing.T) {
	sink := &recordingSink{}
	d := newTestDaemon(sink)

	action, err := d.Consume(context.Background(), Event{
		OwnerID: "owner-1", Kind: EventPhoneCallContent,
		Content:   "Hi grandma, I need you to buy a gift card and send me the code right away",
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action == nil || action.Kind != ActionIntercept {
		t.Fatalf("expected intercept action, got %+v", action)
	}
	if len(sink.notifications) != 1 {
		t.Fatalf("expected one notification sent to care circle, got %d", len(sink.notifications))
	}
}

func TestConsumeTakesNoActionForBenignContent(t *testing.T) {
	sink := &recordingSink{}
	d := newTestDaemon(sink)

	action, err := d.Consume(context.Background(), Event{
		OwnerID: "owner-1", Kind: EventPhoneCallContent,
		Content:   "Hey, want to grab lunch on Friday?",
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action != nil {
		t.Fatalf("expected no action for benign content, got %+v", action)
	}
	if len(sink.notifications) != 0 {
		t.Fatalf("expected no notification for benign content")
	}
}

func TestConsumeRejectsOutOfOrderEvents(t *testing.T) {
	d := newTestDaemon(&recordingSink{})
	base := time.Now()

	_, err := d.Consume(context.Background(), Event{OwnerID: "owner-1", Kind: EventMessageContent, Content: "hi", Timestamp: base})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	action, err := d.Consume(context.Background(), Event{
		OwnerID: "owner-1", Kind: EventMessageContent, Content: "gift card code please pay now",
		Timestamp: base.Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action != nil {
		t.Fatalf("expected out-of-order event to be dropped, got %+v", action)
	}
}

func TestConsumeDropsNonThreatEventsUnderBackpressure(t *testing.T) {
	d := newTestDaemon(&recordingSink{})
	base := time.Now()

	// Prime the rolling average at 1 with the first event.
	_, _ = d.Consume(context.Background(), Event{OwnerID: "owner-2", Kind: EventMessageContent, Content: "hi", Timestamp: base})

	var lastAction *Action
	for i := 0; i < 20; i++ {
		a, err := d.Consume(context.Background(), Event{
			OwnerID: "owner-2", Kind: EventMessageContent, Content: "ordinary chatter",
			Timestamp: base.Add(time.Duration(i+1) * time.Second),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		lastAction = a
	}
	if lastAction != nil {
		t.Fatalf("expected overflowing non-threat events to be dropped, got %+v", lastAction)
	}

	threatAction, err := d.Consume(context.Background(), Event{
		OwnerID: "owner-2", Kind: EventMessageContent,
		Content:   "verify your bank account card number now",
		Timestamp: base.Add(21 * time.Second),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if threatAction == nil || threatAction.Kind != ActionIntercept {
		t.Fatalf("expected threat event to survive backpressure drop, got %+v", threatAction)
	}
}

func TestConsumeAlertsOnSensorEvent(t *testing.T) {
	sink := &recordingSink{}
	d := newTestDaemon(sink)

	action, err := d.Consume(context.Background(), Event{
		OwnerID: "owner-4", Kind: EventSensorAlert, Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action == nil || action.Kind != ActionAlert {
		t.Fatalf("expected alert action for sensor event, got %+v", action)
	}
	if len(sink.notifications) != 1 {
		t.Fatalf("expected alert to be delivered to the sink, got %d", len(sink.notifications))
	}
}

func TestConsumeRemindsOnCalendarEvent(t *testing.T) {
	d := newTestDaemon(&recordingSink{})

	action, err := d.Consume(context.Background(), Event{
		OwnerID: "owner-5", Kind: EventCalendarReminder, Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action == nil || action.Kind != ActionRemind {
		t.Fatalf("expected remind action for calendar event, got %+v", action)
	}
}

func TestConsumeLogsCustomWebhook(t *testing.T) {
	d := newTestDaemon(&recordingSink{})

	action, err := d.Consume(context.Background(), Event{
		OwnerID: "owner-6", Kind: EventCustomWebhook, Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action == nil || action.Kind != ActionLog {
		t.Fatalf("expected log action for custom webhook, got %+v", action)
	}
}

func TestScheduledCheckTriggersNotify(t *testing.T) {
	triggered := false
	checks := []ScheduledCheck{
		{
			Name: "daily-checkin-silence", Kind: EventSilence, Severity: 50,
			Predicate: func(ev Event, lastSeen, now time.Time) bool {
				triggered = true
				return true
			},
		},
	}
	cfg := config.NewStore(config.Defaults())
	sink := &recordingSink{}
	d := NewDaemon(cfg, nil, sink, checks)

	action, err := d.Consume(context.Background(), Event{
		OwnerID: "owner-3", Kind: EventSilence, Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !triggered {
		t.Fatalf("expected scheduled check predicate to run")
	}
	if action == nil || action.Kind != ActionNotify {
		t.Fatalf("expected notify action from scheduled check, got %+v", action)
	}
}
