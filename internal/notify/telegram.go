package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Telegram struct {
	bot *tgbotapi.BotAPI
	log *slog.Logger
}

// NewTelegram returns a disabled notifier when token is empty. A disabled
// notifier accepts every message and delivers none.
func NewTelegram(token string, log *slog.Logger) (*Telegram, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "notify.telegram"))

	if strings.TrimSpace(token) == "" {
		log.Warn("telegram bot token is empty, notifications disabled")
		return &Telegram{log: log}, nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Telegram{bot: bot, log: log}, nil
}

func (n *Telegram) Enabled() bool {
	return n.bot != nil
}

func (n *Telegram) SendMessage(ctx context.Context, channelID, text string) (string, error) {
	if n.bot == nil {
		n.log.Debug("message skipped (bot disabled)", slog.String("channel_id", channelID))
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target, err := parseChat(channelID)
	if err != nil {
		return "", err
	}

	var msg tgbotapi.MessageConfig
	if target.username != "" {
		msg = tgbotapi.NewMessageToChannel(target.username, text)
	} else {
		msg = tgbotapi.NewMessage(target.chatID, text)
	}
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	sent, err := n.bot.Send(msg)
	if err != nil {
		return "", fmt.Errorf("%w: send to %s: %v", ErrUnavailable, channelID, err)
	}
	return strconv.Itoa(sent.MessageID), nil
}

func (n *Telegram) EditMessage(ctx context.Context, channelID, messageID, text string) error {
	if n.bot == nil {
		n.log.Debug("edit skipped (bot disabled)", slog.String("channel_id", channelID))
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := parseChat(channelID)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(messageID)
	if err != nil {
		return fmt.Errorf("invalid message id %q", messageID)
	}

	edit := tgbotapi.NewEditMessageText(target.chatID, id, text)
	edit.ChannelUsername = target.username
	edit.ParseMode = tgbotapi.ModeMarkdown
	edit.DisableWebPagePreview = true

	if _, err := n.bot.Send(edit); err != nil {
		if isNotModified(err) {
			return nil
		}
		return fmt.Errorf("%w: edit %s/%s: %v", ErrUnavailable, channelID, messageID, err)
	}
	return nil
}

// Escape makes user-supplied text safe inside a Markdown message.
func Escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

type chat struct {
	chatID   int64
	username string
}

func parseChat(channelID string) (chat, error) {
	id := strings.TrimSpace(channelID)
	if id == "" {
		return chat{}, errors.New("channel id is required")
	}
	if strings.HasPrefix(id, "@") {
		return chat{username: id}, nil
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return chat{}, fmt.Errorf("invalid channel id %q", channelID)
	}
	return chat{chatID: n}, nil
}

// The bot API rejects edits that leave the text unchanged.
func isNotModified(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return strings.Contains(apiErr.Message, "message is not modified")
	}
	return strings.Contains(err.Error(), "message is not modified")
}
