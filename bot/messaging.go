package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"evsync/entity"
	"evsync/lib/sl"
)

// Send implements the core's Notifier contract. Each recipient gets an
// audit copy in storage and, when a chat is linked, a Telegram message.
// Failures are logged and swallowed: losing a notification is an accepted
// degradation, never a correctness violation for the business operation
// that produced it.
func (t *TgBot) Send(n *entity.Notification, recipients []*entity.User) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	text := fmt.Sprintf("*%s*\n%s", Sanitize(n.Title), Sanitize(n.Message))

	for _, user := range recipients {
		if err := t.db.SaveNotification(ctx, user.Email, n); err != nil {
			t.log.With(
				slog.String("recipient", user.Email),
			).Warn("save notification audit copy", sl.Err(err))
		}
		if !user.Reachable() {
			continue
		}
		t.plainResponse(user.TelegramId, text)
	}
}

// SendMessageWithLevel pushes an operational message to admin chats; used
// by the slog Telegram handler for ERROR+ records. The message arrives
// pre-formatted, the level only gates delivery here.
func (t *TgBot) SendMessageWithLevel(msg string, level slog.Level) {
	if level < slog.LevelError {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	admins, err := t.db.GetAdmins(ctx)
	if err != nil {
		t.log.Warn("resolve admins", sl.Err(err))
		return
	}
	for _, admin := range admins {
		if !admin.Reachable() {
			continue
		}
		t.plainResponse(admin.TelegramId, msg)
	}
}
