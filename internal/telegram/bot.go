package telegram

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// NewBot creates bot instance with given config
func NewBot(config BotConfig) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(config.Token)
	if err != nil {
		return nil, errors.Wrap(err, "could not create bot api")
	}
	api.Debug = config.Debug
	log.Infof("Authorized on account %s", api.Self.UserName)

	return &Bot{
		Bot:       api,
		Config:    config,
		send:      api.Send,
		sendMedia: api.SendMediaGroup,
		sleep:     time.Sleep,
	}, nil
}

// GetUpdatesChannel starts long polling and returns the updates channel.
func (b *Bot) GetUpdatesChannel() tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.Config.UpdatesTimeout
	return b.Bot.GetUpdatesChan(u)
}

// SendMessage delivers an HTML-formatted message. Flood-control rejections
// are waited out and the same message is resent; any other failure is
// returned to the caller.
func (b *Bot) SendMessage(m Message) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(m.ChatID, m.Text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	msg.DisableNotification = m.DisableNotification
	if m.ReplyToMessageID != 0 {
		msg.ReplyToMessageID = m.ReplyToMessageID
	}
	if m.ReplyMarkup != nil {
		msg.ReplyMarkup = m.ReplyMarkup
	}

	for {
		sent, err := b.send(msg)
		if wait, ok := floodWait(err); ok {
			log.Warnf("⏳ Flood control: waiting %s before resending message to %d", wait, m.ChatID)
			b.sleep(wait)
			continue
		}
		if err != nil {
			return sent, errors.Wrapf(err, "could not send message to chat %d", m.ChatID)
		}
		return sent, nil
	}
}

// SendPhoto delivers a photo with an HTML caption, honoring flood control the
// same way SendMessage does.
func (b *Bot) SendPhoto(chatID int64, file tgbotapi.RequestFileData, caption string) (tgbotapi.Message, error) {
	photo := tgbotapi.NewPhoto(chatID, file)
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeHTML

	for {
		sent, err := b.send(photo)
		if wait, ok := floodWait(err); ok {
			log.Warnf("⏳ Flood control: waiting %s before resending photo to %d", wait, chatID)
			b.sleep(wait)
			continue
		}
		if err != nil {
			return sent, errors.Wrapf(err, "could not send photo to chat %d", chatID)
		}
		return sent, nil
	}
}

// SendAlbum delivers a photo album with an HTML caption on the first photo.
// When the transport rejects the album (usually an oversized caption), the
// photos are resent without a caption and the text follows as its own
// message; if even that fails, a plain text message keeps the notification
// from being lost.
func (b *Bot) SendAlbum(chatID int64, photoURLs []string, caption string) ([]tgbotapi.Message, error) {
	if len(photoURLs) == 0 {
		sent, err := b.SendMessage(Message{ChatID: chatID, Text: caption})
		return []tgbotapi.Message{sent}, err
	}

	sent, err := b.sendAlbumOnce(chatID, photoURLs, caption)
	if err == nil {
		return sent, nil
	}

	log.Warnf("Album rejected for chat %d, resending without caption: %v", chatID, err)
	sent, err = b.sendAlbumOnce(chatID, photoURLs, "")
	if err != nil {
		log.Warnf("Captionless album rejected for chat %d, falling back to text: %v", chatID, err)
		fallback, err := b.SendMessage(Message{ChatID: chatID, Text: caption})
		if err != nil {
			return nil, errors.Wrapf(err, "could not send album fallback to chat %d", chatID)
		}
		return []tgbotapi.Message{fallback}, nil
	}

	if _, err := b.SendMessage(Message{ChatID: chatID, Text: caption}); err != nil {
		return sent, errors.Wrapf(err, "could not send album caption to chat %d", chatID)
	}
	return sent, nil
}

func (b *Bot) sendAlbumOnce(chatID int64, photoURLs []string, caption string) ([]tgbotapi.Message, error) {
	media := make([]interface{}, 0, len(photoURLs))
	for i, photoURL := range photoURLs {
		photo := tgbotapi.NewInputMediaPhoto(tgbotapi.FileURL(photoURL))
		if i == 0 && caption != "" {
			photo.Caption = caption
			photo.ParseMode = tgbotapi.ModeHTML
		}
		media = append(media, photo)
	}
	group := tgbotapi.NewMediaGroup(chatID, media)

	for {
		sent, err := b.sendMedia(group)
		if wait, ok := floodWait(err); ok {
			log.Warnf("⏳ Flood control: waiting %s before resending album to %d", wait, chatID)
			b.sleep(wait)
			continue
		}
		return sent, err
	}
}

// floodWait extracts the flood-control pause from a transport error. The
// extra second matches the server's rounding of the retry window.
func floodWait(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return time.Duration(apiErr.RetryAfter+1) * time.Second, true
	}
	return 0, false
}
