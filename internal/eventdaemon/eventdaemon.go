// Package eventdaemon implements the Event Daemon: a proactive arm that
// consumes an external event stream, matches threat patterns and scheduled
// checks, consults the Pattern Detector for anomalies, and emits the
// highest-severity action per event — independent of the passive
// store/recall path. Grounded on internal/reflex/engine.go's priority-
// ordered, config-driven matching shape and internal/senses/discord.go's
// external-event-adapter-feeding-a-queue pattern, reinterpreted around a
// fixed threat-pattern enumeration instead of user-authored reflexes.
package eventdaemon

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/vthunder/attnmem/internal/config"
	"github.com/vthunder/attnmem/internal/logging"
	"github.com/vthunder/attnmem/internal/notify"
	"github.com/vthunder/attnmem/internal/pattern"
)

const component = "eventdaemon"

// EventKind names the external event types the daemon understands: the
// twelve kinds of spec §4.6 plus message_content, the text-message
// counterpart of phone_call_content.
type EventKind string

const (
	EventPhoneCallContent EventKind = "phone_call_content"
	EventMessageContent   EventKind = "message_content"
	EventPhoneRing        EventKind = "phone_ring"
	EventDoorbell         EventKind = "doorbell"
	EventEmailReceived    EventKind = "email_received"
	EventCalendarReminder EventKind = "calendar_reminder"
	EventTimer            EventKind = "time_trigger"
	EventSensorAlert      EventKind = "sensor_alert"
	EventDeviceInput      EventKind = "device_input"
	EventSilence          EventKind = "silence_detected"
	EventLocationChange   EventKind = "location_change"
	EventMarketData       EventKind = "market_data"
	EventCustomWebhook    EventKind = "custom_webhook"
)

// Event is one item on an owner's event stream.
type Event struct {
	OwnerID   string
	Kind      EventKind
	Content   string
	Timestamp time.Time
}

// ActionKind is the daemon's output action (spec §4.6's fixed six-kind
// enumeration).
type ActionKind string

const (
	ActionLog       ActionKind = "log"
	ActionNotify    ActionKind = "notify"
	ActionRemind    ActionKind = "remind"
	ActionAssist    ActionKind = "assist"
	ActionAlert     ActionKind = "alert"
	ActionIntercept ActionKind = "intercept"
)

// Action is the daemon's decision for one event.
type Action struct {
	Kind          ActionKind
	Severity      int // higher = more severe; intercept > notify > log
	ThreatPattern string
	Confidence    float64
	OwnerID       string
	Note          string
}

// threatPattern pairs a compiled content matcher with its name, severity,
// and the event kinds it applies to — the fixed enumeration from spec §4.6.
type threatPattern struct {
	name     string
	re       *regexp.Regexp
	severity int
	kinds    map[EventKind]bool
}

var threatPatterns = []threatPattern{
	{
		name:     "bank-card-scam",
		re:       regexp.MustCompile(`(?i)(card (number|pin)|verify your (card|account)).{0,80}(bank|account)|(bank|account).{0,80}card (number|pin)`),
		severity: 90,
		kinds:    map[EventKind]bool{EventPhoneCallContent: true, EventMessageContent: true},
	},
	{
		name:     "ssn-scam",
		re:       regexp.MustCompile(`(?i)(social security|ssn).{0,80}(suspend|verify|arrest|warrant)`),
		severity: 90,
		kinds:    map[EventKind]bool{EventPhoneCallContent: true, EventMessageContent: true},
	},
	{
		name:     "gift-card-scam",
		re:       regexp.MustCompile(`(?i)(gift card|itunes card|google play card).{0,80}(pay|purchase|send|code)`),
		severity: 85,
		kinds:    map[EventKind]bool{EventPhoneCallContent: true, EventMessageContent: true},
	},
	{
		name:     "irs-impersonation",
		re:       regexp.MustCompile(`(?i)(irs|internal revenue).{0,80}(arrest|warrant|owe|pay now)`),
		severity: 85,
		kinds:    map[EventKind]bool{EventPhoneCallContent: true},
	},
	{
		name:     "grandchild-emergency",
		re:       regexp.MustCompile(`(?i)(grandma|grandpa|it'?s me).{0,80}(jail|accident|hospital|bail|wire money)`),
		severity: 95,
		kinds:    map[EventKind]bool{EventPhoneCallContent: true},
	},
	{
		name:     "tech-support-scam",
		re:       regexp.MustCompile(`(?i)(microsoft|apple|tech support|your computer).{0,80}(virus|infected|remote access|call this number)`),
		severity: 80,
		kinds:    map[EventKind]bool{EventPhoneCallContent: true, EventMessageContent: true},
	},
}

// kindDefault is the baseline action taken for an event kind that carries
// no content to run threat patterns against. Every kind listed in
// kindDefaults maps to one of the six action kinds; phone_call_content,
// message_content, time_trigger and silence_detected have no default and
// produce an action only when a threat pattern, scheduled check, or anomaly
// matches (otherwise Consume returns no action). A default is overridden
// whenever one of those produces a higher-severity candidate for the same
// event.
type kindDefault struct {
	action   ActionKind
	severity int
	note     string
}

var kindDefaults = map[EventKind]kindDefault{
	EventPhoneRing:        {ActionNotify, 30, "incoming call"},
	EventDoorbell:         {ActionNotify, 30, "doorbell"},
	EventEmailReceived:    {ActionLog, 10, "email received"},
	EventCalendarReminder: {ActionRemind, 40, "calendar reminder due"},
	EventSensorAlert:      {ActionAlert, 70, "sensor alert"},
	EventDeviceInput:      {ActionAssist, 20, "device needs input assistance"},
	EventLocationChange:   {ActionLog, 10, "location changed"},
	EventMarketData:       {ActionAssist, 25, "market data update"},
	EventCustomWebhook:    {ActionLog, 10, "custom webhook received"},
}

// ScheduledCheck is a timer/silence watchdog (spec §4.6 pipeline stage b).
type ScheduledCheck struct {
	Name      string
	Kind      EventKind // EventTimer or EventSilence
	Severity  int
	Predicate func(ev Event, lastSeen time.Time, now time.Time) bool
}

// Daemon consumes events per owner, in monotonic per-owner order, and
// produces the highest-severity Action for each.
type Daemon struct {
	cfg      *config.Store
	patterns *pattern.Detector
	sink     notify.Sink
	checks   []ScheduledCheck

	mu          sync.Mutex
	lastEventAt map[string]time.Time // ownerID -> last processed event timestamp, for ordering
	queueDepth  map[string]int
	avgHourly   map[string]float64
}

// NewDaemon builds a Daemon. sink may be nil to disable notification
// delivery (log-only mode).
func NewDaemon(cfg *config.Store, patterns *pattern.Detector, sink notify.Sink, checks []ScheduledCheck) *Daemon {
	return &Daemon{
		cfg: cfg, patterns: patterns, sink: sink, checks: checks,
		lastEventAt: make(map[string]time.Time),
		queueDepth:  make(map[string]int),
		avgHourly:   make(map[string]float64),
	}
}

// Consume processes one event, enforcing monotonic per-owner timestamp
// ordering (spec §4.6: "events for a single owner are processed in
// monotonic timestamp order"). An out-of-order event for the same owner is
// rejected rather than silently reordered.
func (d *Daemon) Consume(ctx context.Context, ev Event) (*Action, error) {
	d.mu.Lock()
	last, seen := d.lastEventAt[ev.OwnerID]
	if seen && ev.Timestamp.Before(last) {
		d.mu.Unlock()
		logging.Warn(component, "owner=%s dropped out-of-order event (ts=%s before last=%s)", ev.OwnerID, ev.Timestamp, last)
		return nil, nil
	}
	d.lastEventAt[ev.OwnerID] = ev.Timestamp
	d.mu.Unlock()

	if dropped := d.applyBackpressure(ev); dropped {
		return nil, nil
	}

	action := d.evaluate(ctx, ev)
	if action == nil {
		return nil, nil
	}

	switch action.Kind {
	case ActionNotify, ActionIntercept, ActionRemind, ActionAssist, ActionAlert:
		if d.sink != nil {
			_ = d.sink.Send(ctx, notify.Notification{
				OwnerID: ev.OwnerID, Severity: severityLabel(action.Severity),
				Message: action.Note, CreatedAt: time.Now(),
			})
		}
	default:
		logging.Info(component, "owner=%s action=log threat=%s confidence=%.2f", ev.OwnerID, action.ThreatPattern, action.Confidence)
	}
	return action, nil
}

// applyBackpressure tracks a simple rolling queue-depth estimate and drops
// the event if non-threat volume exceeds 10x the owner's hourly average
// (spec §4.6: "threat-pattern events are never dropped").
func (d *Daemon) applyBackpressure(ev Event) bool {
	snap := d.cfg.Get()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.queueDepth[ev.OwnerID]++
	avg := d.avgHourly[ev.OwnerID]
	if avg == 0 {
		d.avgHourly[ev.OwnerID] = 1
		return false
	}

	if float64(d.queueDepth[ev.OwnerID]) > avg*snap.EventDaemon.QueueOverflowMultiple && !matchesAnyThreat(ev) {
		logging.Warn(component, "owner=%s queue overflow, dropping non-threat event kind=%s (load=%s)", ev.OwnerID, ev.Kind, selfLoadLabel())
		return true
	}
	return false
}

// selfLoadLabel annotates a drop-event log line with this process's current
// CPU usage, so an operator reading the log can distinguish genuine
// per-owner traffic spikes from host-wide contention. Best-effort: a
// failure to sample just omits the annotation.
func selfLoadLabel() string {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return "unknown"
	}
	pct, err := proc.CPUPercent()
	if err != nil {
		return "unknown"
	}
	return fmt.Sprintf("cpu=%.1f%%", pct)
}

func matchesAnyThreat(ev Event) bool {
	for _, tp := range threatPatterns {
		if tp.kinds[ev.Kind] && tp.re.MatchString(ev.Content) {
			return true
		}
	}
	return false
}

// evaluate runs the full pipeline for one event: threat patterns,
// scheduled checks, pattern-detector anomaly, picking the single
// highest-severity action (spec §4.6 pipeline a-d).
func (d *Daemon) evaluate(ctx context.Context, ev Event) *Action {
	snap := d.cfg.Get()
	var best *Action

	for _, tp := range threatPatterns {
		if !tp.kinds[ev.Kind] || !tp.re.MatchString(ev.Content) {
			continue
		}
		confidence := 0.9 // fixed-pattern match; a richer scorer could vary this
		kind := ActionLog
		if confidence >= snap.EventDaemon.ThreatConfidenceThreshold {
			kind = ActionIntercept
		}
		candidate := &Action{
			Kind: kind, Severity: tp.severity, ThreatPattern: tp.name,
			Confidence: confidence, OwnerID: ev.OwnerID,
			Note: "possible " + tp.name + " detected",
		}
		best = higherSeverity(best, candidate)
	}

	for _, check := range d.checks {
		if check.Kind != ev.Kind {
			continue
		}
		d.mu.Lock()
		last := d.lastEventAt[ev.OwnerID]
		d.mu.Unlock()
		if check.Predicate(ev, last, ev.Timestamp) {
			candidate := &Action{
				Kind: ActionNotify, Severity: check.Severity, OwnerID: ev.OwnerID,
				Note: "scheduled check triggered: " + check.Name,
			}
			best = higherSeverity(best, candidate)
		}
	}

	if d.patterns != nil {
		if p, err := d.patterns.Detect(ctx, ev.OwnerID, string(ev.Kind), ev.Timestamp); err == nil && p != nil {
			if anomaly := anomalyAction(ev, p.Confidence); anomaly != nil {
				best = higherSeverity(best, anomaly)
			}
		}
	}

	if kd, ok := kindDefaults[ev.Kind]; ok {
		candidate := &Action{Kind: kd.action, Severity: kd.severity, OwnerID: ev.OwnerID, Note: kd.note}
		best = higherSeverity(best, candidate)
	}

	return best
}

func anomalyAction(ev Event, confidence float64) *Action {
	if confidence < 0.5 {
		return nil
	}
	return &Action{
		Kind: ActionLog, Severity: 20, OwnerID: ev.OwnerID,
		Note: "access pattern anomaly detected", Confidence: confidence,
	}
}

func higherSeverity(current, candidate *Action) *Action {
	if current == nil || candidate.Severity > current.Severity {
		return candidate
	}
	return current
}

func severityLabel(severity int) string {
	switch {
	case severity >= 80:
		return "critical"
	case severity >= 40:
		return "warning"
	default:
		return "info"
	}
}
