package telegram

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotConfig bot settings
type BotConfig struct {
	Token          string
	Debug          bool
	UpdatesTimeout int
}

// Bot wraps the transport API. The send funcs and sleep are swappable so the
// retry behavior is testable without the network.
type Bot struct {
	Bot    *tgbotapi.BotAPI
	Config BotConfig

	send      func(c tgbotapi.Chattable) (tgbotapi.Message, error)
	sendMedia func(c tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
	sleep     func(d time.Duration)
}

// Message is an outbound rich-text message.
type Message struct {
	ChatID              int64
	Text                string
	ReplyToMessageID    int
	DisableNotification bool
	ReplyMarkup         interface{}
}
