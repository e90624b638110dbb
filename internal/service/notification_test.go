package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"

	"pickem/internal/ledger"
	"pickem/internal/money"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	to   []telebot.Recipient
	fail error
}

func (f *fakeSender) Send(to telebot.Recipient, what interface{}, _ ...interface{}) (*telebot.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.sent = append(f.sent, what.(string))
	f.to = append(f.to, to)
	return &telebot.Message{}, nil
}

func (f *fakeSender) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{name: "string shorter than max", input: "Hello", maxLen: 10, expected: "Hello"},
		{name: "string equal to max", input: "Hello", maxLen: 5, expected: "Hello"},
		{name: "string longer than max", input: "Hello World", maxLen: 8, expected: "Hello..."},
		{name: "empty string", input: "", maxLen: 10, expected: ""},
		{name: "cut inside a multi-byte rune", input: "Sporting Clube de Portugal Lisboa FCöö Extra", maxLen: 40, expected: "Sporting Clube de Portugal Lisboa FC..."},
		{name: "cut after a multi-byte rune", input: "Atlético Madrid B", maxLen: 12, expected: "Atlético..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateString(tt.input, tt.maxLen)
			assert.Equal(t, tt.expected, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, len(got), tt.maxLen)
		})
	}
}

func TestParseChannelID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
	}{
		{name: "username format", input: "@pickem", expected: 0},
		{name: "supergroup format", input: "-1001234567890", expected: -1001234567890},
		{name: "plain positive number", input: "123456789", expected: 123456789},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseChannelID(tt.input))
		})
	}
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `0\.01`, escapeMarkdown("0.01"))
	assert.Equal(t, `St\. Louis \(A\)`, escapeMarkdown("St. Louis (A)"))
	assert.Equal(t, `\#nba\_final`, escapeMarkdown("#nba_final"))
	assert.Equal(t, "plain", escapeMarkdown("plain"))
}

func TestHashtags(t *testing.T) {
	assert.Equal(t, `\#nba\_final\_g7 \#los\_angeles\_lakers \#celtics`,
		hashtags("nba-final-g7", "Los Angeles Lakers", "Celtics"))
	// duplicates and empty slugs are dropped
	assert.Equal(t, `\#lakers`, hashtags("lakers", "Lakers", "!!!"))
}

func TestFormatEvent(t *testing.T) {
	deadline := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		event    ledger.Event
		contains []string
	}{
		{
			name: "created",
			event: ledger.Event{Type: ledger.EventSeriesCreated, SeriesKey: "g7", TeamA: "Lakers", TeamB: "Celtics",
				Amount: money.MustParse("0.01"), LockDeadline: deadline},
			contains: []string{"New Series", "*Lakers* vs *Celtics*", `0\.01`, "2026\\-06\\-01 18:00 UTC", `\#g7`},
		},
		{
			name:     "settled",
			event:    ledger.Event{Type: ledger.EventSeriesSettled, SeriesKey: "g7", TeamA: "Lakers", TeamB: "Celtics", Side: ledger.SideTeamB, Amount: money.MustParse("1.5")},
			contains: []string{"Series Settled", "*Celtics win*", `1\.5`},
		},
		{
			name:     "draw",
			event:    ledger.Event{Type: ledger.EventSeriesSettled, SeriesKey: "g7", TeamA: "Lakers", TeamB: "Celtics", Side: ledger.SideDraw},
			contains: []string{"*Draw*"},
		},
		{
			name:     "cancelled",
			event:    ledger.Event{Type: ledger.EventSeriesCancelled, SeriesKey: "g7", TeamA: "Lakers", TeamB: "Celtics"},
			contains: []string{"Series Cancelled", "refunds"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := formatEvent(tt.event)
			for _, want := range tt.contains {
				assert.Contains(t, msg, want)
			}
		})
	}

	assert.Empty(t, formatEvent(ledger.Event{Type: ledger.EventEntrySubmitted}))
	assert.Empty(t, formatEvent(ledger.Event{Type: ledger.EventPrizeClaimed}))
}

func TestNotificationServiceRun(t *testing.T) {
	fake := &fakeSender{}
	ns := newNotificationService(fake, "-100123")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ns.Run(ctx) }()

	ns.Publish(ctx, ledger.Event{Type: ledger.EventEntrySubmitted, SeriesKey: "g7"})
	ns.Publish(ctx, ledger.Event{Type: ledger.EventSeriesCancelled, SeriesKey: "g7", TeamA: "A", TeamB: "B"})
	ns.AnnounceLocked(ctx, &ledger.Series{Key: "g7", TeamA: "A", TeamB: "B", EntryCount: 3, Picks: ledger.PickCounts{TeamA: 2, TeamB: 1}})

	require.Eventually(t, func() bool { return len(fake.messages()) == 2 }, time.Second, 5*time.Millisecond)
	msgs := fake.messages()
	assert.Contains(t, msgs[0], "Series Cancelled")
	assert.Contains(t, msgs[1], `Entries: 3 \(2 / 1\)`)
	assert.Equal(t, "-100123", fake.to[0].Recipient())

	cancel()
	require.NoError(t, <-done)
}

func TestNotificationServiceSendFailureDoesNotStop(t *testing.T) {
	fake := &fakeSender{fail: errors.New("telegram down")}
	ns := newNotificationService(fake, "@pickem")
	ns.send("hello")
	assert.Empty(t, fake.messages())
}

func TestNotificationServiceDropsWhenFull(t *testing.T) {
	ns := newNotificationService(&fakeSender{}, "1")
	for i := 0; i < queueSize+10; i++ {
		ns.enqueue("k", "msg")
	}
	assert.Len(t, ns.queue, queueSize)
}

func TestNewNotificationServiceRequiresConfig(t *testing.T) {
	_, err := NewNotificationService("", "@pickem")
	assert.Error(t, err)
	_, err = NewNotificationService("token", "")
	assert.Error(t, err)
}
