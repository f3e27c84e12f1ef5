// Package bot delivers event notifications over Telegram. It is the
// concrete notification gateway behind the core's Notifier interface:
// delivery is best-effort, failures are logged and swallowed, and an audit
// copy of every notification is kept per recipient.
//
// Users link their chat with `/start <api-token>`; the bot resolves the
// token to an account and stores the chat id on the user document.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"evsync/entity"
	"evsync/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
)

// Database defines the storage operations the bot depends on.
// Implemented by internal/database/mongo.go.
type Database interface {
	GetUser(ctx context.Context, token string) (*entity.User, error)
	GetAdmins(ctx context.Context) ([]*entity.User, error)
	SetTelegramLink(ctx context.Context, email string, telegramId int64, username string) error
	SaveNotification(ctx context.Context, recipient string, n *entity.Notification) error
}

type TgBot struct {
	log     *slog.Logger
	api     *tgbotapi.Bot
	db      Database
	updater *ext.Updater
}

func NewTgBot(apiKey string, db Database, log *slog.Logger) (*TgBot, error) {
	tgBot := &TgBot{
		log: log.With(sl.Module("tgbot")),
		db:  db,
	}

	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	tgBot.api = api

	return tgBot, nil
}

func (t *TgBot) Start() error {
	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(b *tgbotapi.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			t.log.Error("handling update:", sl.Err(err))
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})
	t.updater = ext.NewUpdater(dispatcher, nil)

	dispatcher.AddHandler(handlers.NewCommand("start", t.commandStart))

	err := t.updater.StartPolling(t.api, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &tgbotapi.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &tgbotapi.RequestOpts{
				Timeout: 10 * time.Second,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("start polling: %w", err)
	}

	t.log.With(
		slog.String("username", t.api.Username),
	).Info("bot started")

	go t.updater.Idle()
	return nil
}

func (t *TgBot) Stop() {
	if t.updater != nil {
		_ = t.updater.Stop()
	}
}

// commandStart links a chat to an account: `/start <api-token>`.
func (t *TgBot) commandStart(b *tgbotapi.Bot, c *ext.Context) error {
	chatId := c.EffectiveChat.Id
	args := strings.Fields(c.EffectiveMessage.Text)

	if len(args) < 2 {
		t.plainResponse(chatId, "Send /start with your API token to link this chat\\.")
		return nil
	}
	token := args[1]

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	user, err := t.db.GetUser(ctx, token)
	if err != nil || user == nil {
		t.log.With(
			slog.Int64("chat_id", chatId),
			sl.Secret("token", token),
		).Warn("start command with unknown token")
		t.plainResponse(chatId, "Token not recognized\\.")
		return nil
	}

	username := ""
	if c.EffectiveUser != nil {
		username = c.EffectiveUser.Username
	}
	if err = t.db.SetTelegramLink(ctx, user.Email, chatId, username); err != nil {
		t.log.With(
			slog.String("email", user.Email),
			slog.Int64("chat_id", chatId),
		).Error("link telegram chat", sl.Err(err))
		t.plainResponse(chatId, "Could not link this chat, try again later\\.")
		return nil
	}

	t.log.With(
		slog.String("email", user.Email),
		slog.Int64("chat_id", chatId),
	).Info("telegram chat linked")
	t.plainResponse(chatId, fmt.Sprintf("Linked to %s\\. You will receive event updates here\\.", Sanitize(user.Email)))
	return nil
}
