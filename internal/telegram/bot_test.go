package telegram

import (
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floodErr(after int) error {
	return &tgbotapi.Error{
		Code:    429,
		Message: "Too Many Requests",
		ResponseParameters: tgbotapi.ResponseParameters{
			RetryAfter: after,
		},
	}
}

func newTestBot(send func(tgbotapi.Chattable) (tgbotapi.Message, error)) (*Bot, *time.Duration) {
	slept := new(time.Duration)
	return &Bot{
		send:  send,
		sleep: func(d time.Duration) { *slept += d },
	}, slept
}

func TestSendMessageRetriesAfterFloodControl(t *testing.T) {
	calls := 0
	bot, slept := newTestBot(func(c tgbotapi.Chattable) (tgbotapi.Message, error) {
		calls++
		if calls <= 3 {
			return tgbotapi.Message{}, floodErr(5)
		}
		return tgbotapi.Message{MessageID: 42}, nil
	})

	sent, err := bot.SendMessage(Message{ChatID: 1, Text: "hello"})

	require.NoError(t, err)
	assert.Equal(t, 42, sent.MessageID)
	assert.Equal(t, 4, calls)
	// Each pause is retry_after plus one second of slack.
	assert.Equal(t, 18*time.Second, *slept)
}

func TestSendMessagePropagatesOtherErrors(t *testing.T) {
	calls := 0
	bot, slept := newTestBot(func(c tgbotapi.Chattable) (tgbotapi.Message, error) {
		calls++
		return tgbotapi.Message{}, errors.New("chat not found")
	})

	_, err := bot.SendMessage(Message{ChatID: 1, Text: "hello"})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Zero(t, *slept)
}

func TestSendAlbumResendsCaptionlessOnOverflow(t *testing.T) {
	mediaCalls := 0
	var sentText string
	bot, _ := newTestBot(func(c tgbotapi.Chattable) (tgbotapi.Message, error) {
		msg, ok := c.(tgbotapi.MessageConfig)
		require.True(t, ok)
		sentText = msg.Text
		return tgbotapi.Message{MessageID: 7}, nil
	})
	bot.sendMedia = func(c tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error) {
		mediaCalls++
		first, ok := c.Media[0].(tgbotapi.InputMediaPhoto)
		require.True(t, ok)
		if first.Caption != "" {
			return nil, &tgbotapi.Error{Code: 400, Message: "Bad Request: message caption is too long"}
		}
		return []tgbotapi.Message{{MessageID: 9}}, nil
	}

	sent, err := bot.SendAlbum(1, []string{"https://ci.encar.com/a.jpg"}, "caption")

	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, 9, sent[0].MessageID)
	assert.Equal(t, 2, mediaCalls)
	assert.Equal(t, "caption", sentText)
}

func TestSendAlbumFallsBackToTextWhenPhotosUnsendable(t *testing.T) {
	mediaCalls := 0
	var sentText string
	bot, _ := newTestBot(func(c tgbotapi.Chattable) (tgbotapi.Message, error) {
		msg, ok := c.(tgbotapi.MessageConfig)
		require.True(t, ok)
		sentText = msg.Text
		return tgbotapi.Message{MessageID: 7}, nil
	})
	bot.sendMedia = func(c tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error) {
		mediaCalls++
		return nil, &tgbotapi.Error{Code: 400, Message: "Bad Request: failed to get HTTP URL content"}
	}

	sent, err := bot.SendAlbum(1, []string{"https://ci.encar.com/a.jpg"}, "caption")

	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, 7, sent[0].MessageID)
	assert.Equal(t, 2, mediaCalls)
	assert.Equal(t, "caption", sentText)
}

func TestSendAlbumRetriesFloodBeforeFallback(t *testing.T) {
	mediaCalls := 0
	bot, slept := newTestBot(nil)
	bot.sendMedia = func(c tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error) {
		mediaCalls++
		if mediaCalls == 1 {
			return nil, floodErr(3)
		}
		return []tgbotapi.Message{{MessageID: 9}}, nil
	}

	sent, err := bot.SendAlbum(1, []string{"https://ci.encar.com/a.jpg"}, "caption")

	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, 9, sent[0].MessageID)
	assert.Equal(t, 2, mediaCalls)
	assert.Equal(t, 4*time.Second, *slept)
}

func TestSendAlbumWithoutPhotosSendsMessage(t *testing.T) {
	bot, _ := newTestBot(func(c tgbotapi.Chattable) (tgbotapi.Message, error) {
		return tgbotapi.Message{MessageID: 3}, nil
	})

	sent, err := bot.SendAlbum(1, nil, "caption")

	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, 3, sent[0].MessageID)
}
