package tracker

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"encar-telegram-bot/internal/database"
	"encar-telegram-bot/internal/quote"
	"encar-telegram-bot/internal/rates"
	"encar-telegram-bot/internal/telegram"
	"encar-telegram-bot/internal/types"
	"encar-telegram-bot/lib/helpers"
	"encar-telegram-bot/lib/translation"
)

// photoBaseURL hosts the listing photos referenced by relative paths.
const photoBaseURL = "https://ci.encar.com"

// albumLimit is the messenger's cap on photos per album.
const albumLimit = 10

// TelegramNotifier delivers new-listing cards to tracking owners and mirrors
// each event to the operations log chat.
type TelegramNotifier struct {
	bot       *telegram.Bot
	logChatID int64
	location  *time.Location
}

func NewTelegramNotifier(bot *telegram.Bot, logChatID int64, location *time.Location) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, logChatID: logChatID, location: location}
}

// NotifyNewCar sends the quoted listing card to the owner, tags it with the
// tracking summary, and repeats both to the log chat. The mirror is best
// effort: its failure does not fail the notification.
func (n *TelegramNotifier) NotifyNewCar(ctx context.Context, track *types.Tracking, car *types.CarInfo) error {
	caption, disclaimer := quote.RenderCarInfo(car, rates.Current(), time.Now().In(n.location))
	summary := Summary(track, "🔔 Появился новый автомобиль по вашему отслеживанию:")

	sent, err := n.sendCard(track.UserID, car, caption, disclaimer)
	if err != nil {
		return err
	}
	if _, err := n.bot.SendMessage(telegram.Message{
		ChatID:           track.UserID,
		Text:             summary,
		ReplyToMessageID: sent,
	}); err != nil {
		return err
	}

	n.mirrorToLog(track, car, caption, disclaimer)
	return nil
}

func (n *TelegramNotifier) mirrorToLog(track *types.Tracking, car *types.CarInfo, caption, disclaimer string) {
	if n.logChatID == 0 {
		return
	}

	title := "У пользователя появилось новое авто по отслеживанию"
	if owner, err := database.GetUser(track.UserID); err == nil && owner != nil {
		username := ""
		if owner.Username != "" {
			username = " @" + owner.Username
		}
		title = fmt.Sprintf(
			`У пользователя <a href="tg://user?id=%d">%s</a>%s (ID: %d) появилось новое авто по отслеживанию`,
			owner.ID, owner.FirstName, username, owner.ID)
	}

	sent, err := n.sendCard(n.logChatID, car, caption, disclaimer)
	if err != nil {
		log.Errorf("❌ Could not mirror listing %d to log chat: %v", car.CarID, err)
		return
	}
	if _, err := n.bot.SendMessage(telegram.Message{
		ChatID:              n.logChatID,
		Text:                Summary(track, title),
		ReplyToMessageID:    sent,
		DisableNotification: true,
	}); err != nil {
		log.Errorf("❌ Could not mirror tracking summary to log chat: %v", err)
	}
}

// SendCard renders the listing's quote and sends it as a captioned photo
// album to the given chat, returning the first sent message id.
func (n *TelegramNotifier) SendCard(chatID int64, car *types.CarInfo) (int, error) {
	caption, disclaimer := quote.RenderCarInfo(car, rates.Current(), time.Now().In(n.location))
	return n.sendCard(chatID, car, caption, disclaimer)
}

// sendCard sends the listing as a photo album captioned with the quote.
// Caption overflow is handled inside SendAlbum.
func (n *TelegramNotifier) sendCard(chatID int64, car *types.CarInfo, caption, disclaimer string) (int, error) {
	var photos []string
	for _, photo := range car.Photos {
		if photo.Type != "OUTER" {
			continue
		}
		photos = append(photos, photoBaseURL+photo.Path)
		if len(photos) == albumLimit {
			break
		}
	}

	sent, err := n.bot.SendAlbum(chatID, photos, caption+disclaimer)
	if err != nil {
		return 0, err
	}
	if len(sent) == 0 {
		return 0, nil
	}
	return sent[0].MessageID, nil
}

// Summary renders the tracking's taxonomy path and filter bounds under a
// title line.
func Summary(track *types.Tracking, title string) string {
	text := title + "\n\n"

	if path, err := database.TaxonomyPath(track.Filter.ConfigurationID); err == nil {
		text += fmt.Sprintf(
			"Марка: %s\nМодель: %s\nПоколение: %s\nМодификация: %s\nКомплектация: %s",
			path[0], path[1],
			translation.Translate(path[2]),
			translation.Translate(path[3]),
			translation.Translate(path[4]),
		)
	}

	if r := track.Filter.ReleaseYear; r != nil {
		text += "\nГод: " + r.String()
	}
	if r := track.Filter.Mileage; r != nil {
		text += "\nПробег: " + helpers.FormatRangeText(r.Low, r.High, r.Dual, "км.")
	}
	if r := track.Filter.Price; r != nil {
		text += "\nЦена: " + helpers.FormatRangeText(r.Low, r.High, r.Dual, "руб.")
	}
	return text
}

// DBStore adapts the database package to the reconciler's Store interface.
type DBStore struct{}

func (DBStore) AllTrackings() ([]*types.Tracking, error) { return database.AllTrackings() }

func (DBStore) UpdateCarIDs(trackID int64, carIDs []int64) error {
	return database.UpdateCarIDs(trackID, carIDs)
}

func (DBStore) ActivateTracking(trackID int64) error { return database.ActivateTracking(trackID) }

func (DBStore) ConfigurationAction(configurationID int64) (string, error) {
	return database.ConfigurationAction(configurationID)
}
