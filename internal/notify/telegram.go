// Package notify sends one-way operator notifications about posting
// runs. Disabled when no bot token is configured.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"twiper/internal/logging"
)

type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *logging.Logger
}

// New returns nil (a valid no-op notifier) when token or chatID is
// unset.
func New(token string, chatID int64, log *logging.Logger) (*Notifier, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &Notifier{bot: bot, chatID: chatID, log: log}, nil
}

func (n *Notifier) PostSucceeded(tweetID string, count int) {
	if n == nil {
		return
	}
	n.send(fmt.Sprintf("posted %d item(s), last tweet id %s", count, tweetID))
}

func (n *Notifier) PostFailed(err error) {
	if n == nil {
		return
	}
	n.send(fmt.Sprintf("posting run failed: %v", err))
}

func (n *Notifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Warnf("telegram notify failed: %v", err)
	}
}
