package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gosimple/slug"
	"gopkg.in/telebot.v3"

	"pickem/internal/ledger"
	"pickem/internal/logger"
	"pickem/internal/money"
)

// queueSize bounds broadcasts waiting for the Telegram API.
const queueSize = 256

// sender is the part of *telebot.Bot the broadcaster needs.
type sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// NotificationService broadcasts public series news to a Telegram channel.
// It implements ledger.EventSink; Publish only formats and queues, Run sends.
type NotificationService struct {
	bot       sender
	mu        sync.Mutex
	channelID string
	queue     chan string
}

// NewNotificationService connects to Telegram with token and targets channelID
// (a numeric chat ID or an @username).
func NewNotificationService(token, channelID string) (*NotificationService, error) {
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN not set")
	}
	if channelID == "" {
		return nil, fmt.Errorf("CHANNEL_ID not set")
	}

	b, err := telebot.NewBot(telebot.Settings{
		Token: token,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return newNotificationService(b, channelID), nil
}

func newNotificationService(bot sender, channelID string) *NotificationService {
	return &NotificationService{
		bot:       bot,
		channelID: channelID,
		queue:     make(chan string, queueSize),
	}
}

// Publish queues a broadcast for events the channel cares about. Entries and
// claims are private and never broadcast.
func (s *NotificationService) Publish(_ context.Context, e ledger.Event) {
	msg := formatEvent(e)
	if msg == "" {
		return
	}
	s.enqueue(e.SeriesKey, msg)
}

// AnnounceLocked queues the "picks closed" broadcast for a series.
func (s *NotificationService) AnnounceLocked(_ context.Context, series *ledger.Series) {
	s.enqueue(series.Key, formatLocked(series))
}

func (s *NotificationService) enqueue(key, msg string) {
	select {
	case s.queue <- msg:
	default:
		logger.Error("", "broadcast_dropped", "queue full series="+key)
	}
}

// Run sends queued broadcasts until ctx is done.
func (s *NotificationService) Run(ctx context.Context) error {
	logger.Debug("", "broadcaster_started", "channel="+s.channelID)
	for {
		select {
		case <-ctx.Done():
			logger.Debug("", "broadcaster_stopped", fmt.Sprintf("pending=%d", len(s.queue)))
			return nil
		case msg := <-s.queue:
			s.send(msg)
		}
	}
}

func (s *NotificationService) send(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.bot.Send(s.getChannelRecipient(), message, &telebot.SendOptions{
		ParseMode: telebot.ModeMarkdownV2,
	})
	if err != nil {
		logger.Error("", "broadcast_error", fmt.Sprintf("channel=%s error=%v", s.channelID, err))
		return
	}
	logger.Debug("", "broadcast_sent", fmt.Sprintf("channel=%s length=%d", s.channelID, len(message)))
}

func formatEvent(e ledger.Event) string {
	switch e.Type {
	case ledger.EventSeriesCreated:
		return fmt.Sprintf("🆕 *New Series*\n\n*%s* vs *%s*\n\n💵 Entry fee: %s\n⏰ Picks close: %s\n\n%s",
			escapeMarkdown(truncateString(e.TeamA, 40)),
			escapeMarkdown(truncateString(e.TeamB, 40)),
			escapeMarkdown(formatAmount(e.Amount)),
			escapeMarkdown(e.LockDeadline.Format("2006-01-02 15:04 MST")),
			hashtags(e.SeriesKey, e.TeamA, e.TeamB))
	case ledger.EventSeriesSettled:
		outcome := "Draw"
		switch e.Side {
		case ledger.SideTeamA:
			outcome = e.TeamA + " win"
		case ledger.SideTeamB:
			outcome = e.TeamB + " win"
		}
		return fmt.Sprintf("🏁 *Series Settled*\n\n*%s* vs *%s*\n\n✅ Result: *%s*\n💰 Prize pool: %s\n\n%s",
			escapeMarkdown(truncateString(e.TeamA, 40)),
			escapeMarkdown(truncateString(e.TeamB, 40)),
			escapeMarkdown(outcome),
			escapeMarkdown(formatAmount(e.Amount)),
			hashtags(e.SeriesKey, e.TeamA, e.TeamB))
	case ledger.EventSeriesCancelled:
		return fmt.Sprintf("🚫 *Series Cancelled*\n\n*%s* vs *%s*\n\nEntry fees can be reclaimed as refunds\\.\n\n%s",
			escapeMarkdown(truncateString(e.TeamA, 40)),
			escapeMarkdown(truncateString(e.TeamB, 40)),
			hashtags(e.SeriesKey, e.TeamA, e.TeamB))
	}
	return ""
}

func formatLocked(s *ledger.Series) string {
	return fmt.Sprintf("🔒 *Picks Closed*\n\n*%s* vs *%s*\n\n👥 Entries: %d \\(%d / %d\\)\n💰 Prize pool: %s\n\n%s",
		escapeMarkdown(truncateString(s.TeamA, 40)),
		escapeMarkdown(truncateString(s.TeamB, 40)),
		s.EntryCount, s.Picks.TeamA, s.Picks.TeamB,
		escapeMarkdown(formatAmount(s.PrizePool)),
		hashtags(s.Key, s.TeamA, s.TeamB))
}

// hashtags turns the series key and team names into escaped Telegram hashtags.
func hashtags(parts ...string) string {
	seen := make(map[string]bool, len(parts))
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		tag := strings.ReplaceAll(slug.Make(p), "-", "_")
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, escapeMarkdown("#"+tag))
	}
	return strings.Join(tags, " ")
}

// formatAmount renders an amount in whole units.
func formatAmount(a money.Amount) string {
	return a.Display()
}

// truncateString truncates a string to maxLen and adds ellipsis if needed
// truncateString shortens s to at most maxLen bytes without splitting a rune.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut]) + "..."
}

// getChannelRecipient returns the appropriate recipient for the configured channel
func (s *NotificationService) getChannelRecipient() telebot.Recipient {
	if strings.HasPrefix(s.channelID, "@") {
		return &telebot.Chat{Username: s.channelID}
	}
	return &telebot.Chat{ID: parseChannelID(s.channelID)}
}

// parseChannelID parses a channel ID string (supports numeric IDs)
func parseChannelID(channelID string) int64 {
	id, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// escapeMarkdown escapes special characters for Telegram MarkdownV2
func escapeMarkdown(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune("\\_*[]()~`>#+-=|{}.!", r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
