package reminder

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/hpungsan/agenda/internal/planner"
	"github.com/hpungsan/agenda/internal/timeutil"
)

// Notifier delivers one reminder.
type Notifier interface {
	Notify(ctx context.Context, user string, o planner.Occurrence) error
}

// Message renders the reminder text for an occurrence.
func Message(user string, o planner.Occurrence) string {
	category := ""
	if o.Category != nil {
		category = " [" + o.Category.Name + "]"
	}
	return fmt.Sprintf("%s%s\n%s %s-%s (%s)",
		o.Title, category,
		timeutil.DateOf(o.Start), timeutil.TimeOfDayOf(o.Start), timeutil.TimeOfDayOf(o.End),
		user,
	)
}

// LogNotifier writes reminders to the log. It is used when no chat
// transport is configured.
type LogNotifier struct {
	Log zerolog.Logger
}

// Notify logs the reminder.
func (n LogNotifier) Notify(_ context.Context, user string, o planner.Occurrence) error {
	n.Log.Info().
		Str("user", user).
		Str("event_id", o.EventID).
		Str("start", timeutil.FormatDateTime(o.Start)).
		Msg(o.Title)
	return nil
}

// messageSender is the part of *tgbotapi.BotAPI the notifier needs.
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends reminders to a single Telegram chat. Sends are
// rate limited to stay under the Bot API flood limits.
type TelegramNotifier struct {
	bot     messageSender
	chatID  int64
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewTelegramNotifier connects to the Bot API. An empty token yields a
// notifier that only logs.
func NewTelegramNotifier(token string, chatID int64, log zerolog.Logger) (*TelegramNotifier, error) {
	n := &TelegramNotifier{
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Limit(1), 5),
		log:     log,
	}
	if token == "" {
		log.Warn().Msg("telegram token is empty, reminders are only logged")
		return n, nil
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram_chat_id is required when a telegram token is set")
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	n.bot = bot
	return n, nil
}

// Notify sends the reminder, waiting for the rate limiter first.
func (n *TelegramNotifier) Notify(ctx context.Context, user string, o planner.Occurrence) error {
	text := Message(user, o)
	if n.bot == nil {
		n.log.Debug().Str("text", text).Msg("reminder skipped (bot disabled)")
		return nil
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}

	if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, text)); err != nil {
		return fmt.Errorf("send telegram reminder: %w", err)
	}
	return nil
}
