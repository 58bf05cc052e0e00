// Package notify implements the notification sink: at-least-once delivery
// to external channels with an append-only delivery-receipt log. Grounded
// on internal/effectors/discord.go's retry/send shape (pending queue,
// bounded retry duration) and internal/journal/journal.go's append-only
// JSON-lines log.
package notify

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/zeebo/blake3"

	"github.com/vthunder/attnmem/internal/coreerr"
	"github.com/vthunder/attnmem/internal/logging"
)

const component = "notify"

// MaxDiscordMessageLength mirrors Discord's hard per-message cap.
const MaxDiscordMessageLength = 2000

// Notification is one unit of outbound proactive output (spec §4.6: event
// daemon actions, open-loop nudges).
type Notification struct {
	OwnerID   string
	ChannelID string
	Severity  string // e.g. "info", "warning", "critical"
	Message   string
	CreatedAt time.Time
}

// Sink delivers a Notification to an external channel.
type Sink interface {
	Send(ctx context.Context, n Notification) error
}

// DiscordSink delivers notifications over a Discord session, grounded on
// internal/effectors/discord.go's send shape but without that file's
// typing-indicator/slash-command bookkeeping, which has no analogue here.
type DiscordSink struct {
	getSession func() *discordgo.Session
}

// NewDiscordSink builds a DiscordSink around a session accessor so the
// caller can swap sessions on reconnect without reconstructing the sink.
func NewDiscordSink(getSession func() *discordgo.Session) *DiscordSink {
	return &DiscordSink{getSession: getSession}
}

// Send posts n.Message to n.ChannelID, truncating to Discord's message
// length cap.
func (s *DiscordSink) Send(ctx context.Context, n Notification) error {
	session := s.getSession()
	if session == nil {
		return coreerr.New(coreerr.Transient, component, n.OwnerID, fmt.Errorf("no active discord session"))
	}

	content := n.Message
	if len(content) > MaxDiscordMessageLength {
		content = content[:MaxDiscordMessageLength-3] + "..."
	}

	if _, err := session.ChannelMessageSend(n.ChannelID, content); err != nil {
		return coreerr.New(coreerr.Transient, component, n.OwnerID, err)
	}
	return nil
}

// ReceiptLog is an append-only JSON-lines record of delivery attempts,
// grounded on internal/journal/journal.go's append-only log shape.
type ReceiptLog struct {
	mu   sync.Mutex
	path string
}

// NewReceiptLog builds a ReceiptLog writing to path.
func NewReceiptLog(path string) *ReceiptLog {
	return &ReceiptLog{path: path}
}

// Receipt is one delivery-attempt record.
type Receipt struct {
	OwnerID       string    `json:"owner_id"`
	ChannelID     string    `json:"channel_id"`
	Severity      string    `json:"severity"`
	Message       string    `json:"message"`
	Delivered     bool      `json:"delivered"`
	Error         string    `json:"error,omitempty"`
	Attempt       int       `json:"attempt"`
	At            time.Time `json:"at"`
	CorrelationID string    `json:"correlation_id"`
}

// correlationID derives a short, stable id for a notification from its
// owner/channel/message/creation time so repeated retry attempts for the
// same logical notification share one id in the receipt log, mirroring
// internal/graph/episodes.go's generateShortID short-hash convention.
func correlationID(n Notification) string {
	h := blake3.Sum256([]byte(n.OwnerID + "|" + n.ChannelID + "|" + n.Message + "|" + n.CreatedAt.String()))
	return hex.EncodeToString(h[:])[:10]
}

// Append writes a receipt, never returning an error to the caller's
// delivery path — a logging failure must not block notification retries.
func (l *ReceiptLog) Append(r Receipt) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(r)
	if err != nil {
		logging.Warn(component, "failed to marshal receipt: %v", err)
		return
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logging.Warn(component, "failed to open receipt log: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		logging.Warn(component, "failed to append receipt: %v", err)
	}
}

// RetryingSink wraps a Sink with bounded retry and a receipt log, grounded
// on internal/effectors/discord.go's retryState/maxRetryDuration shape
// (spec §4.6: "at-least-once delivery with receipts").
type RetryingSink struct {
	inner            Sink
	receipts         *ReceiptLog
	maxRetryDuration time.Duration
	retryInterval    time.Duration
}

// NewRetryingSink wraps inner with retry/receipt behavior.
func NewRetryingSink(inner Sink, receipts *ReceiptLog, maxRetryDuration, retryInterval time.Duration) *RetryingSink {
	return &RetryingSink{inner: inner, receipts: receipts, maxRetryDuration: maxRetryDuration, retryInterval: retryInterval}
}

// Send attempts delivery, retrying on transient failure until
// maxRetryDuration elapses, logging a receipt for every attempt.
func (s *RetryingSink) Send(ctx context.Context, n Notification) error {
	deadline := time.Now().Add(s.maxRetryDuration)
	attempt := 0
	corrID := correlationID(n)

	for {
		attempt++
		err := s.inner.Send(ctx, n)
		receipt := Receipt{
			OwnerID: n.OwnerID, ChannelID: n.ChannelID, Severity: n.Severity,
			Message: n.Message, Delivered: err == nil, Attempt: attempt, At: time.Now(),
			CorrelationID: corrID,
		}
		if err != nil {
			receipt.Error = err.Error()
		}
		s.receipts.Append(receipt)

		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.retryInterval):
		}
	}
}
