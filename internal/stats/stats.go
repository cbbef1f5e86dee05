package stats

import (
	"bytes"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
	chart "github.com/wcharczuk/go-chart/v2"

	"encar-telegram-bot/internal/database"
	"encar-telegram-bot/internal/telegram"
	"encar-telegram-bot/internal/types"
	"encar-telegram-bot/lib/helpers"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Reporter sends the daily usage digest to the statistics chat.
type Reporter struct {
	bot    *telegram.Bot
	chatID int64
}

func NewReporter(bot *telegram.Bot, chatID int64) *Reporter {
	return &Reporter{bot: bot, chatID: chatID}
}

// SendDigest posts yesterday's bot-start statistics with a 7-day chart.
// A chart rendering failure degrades to a text-only digest.
func (r *Reporter) SendDigest() {
	if r.chatID == 0 {
		return
	}

	stats, err := database.StartStatistics()
	if err != nil {
		log.Errorf("❌ Could not compute start statistics: %v", err)
		return
	}

	text := renderDigest(stats)

	png, err := renderChart(stats)
	if err != nil {
		log.Errorf("❌ Could not render statistics chart: %v", err)
		if _, err := r.bot.SendMessage(telegram.Message{ChatID: r.chatID, Text: text}); err != nil {
			log.Errorf("❌ Could not send statistics digest: %v", err)
		}
		return
	}

	file := tgbotapi.FileBytes{Name: "starts.png", Bytes: png}
	if _, err := r.bot.SendPhoto(r.chatID, file, text); err != nil {
		log.Errorf("❌ Could not send statistics digest: %v", err)
	}
}

func renderDigest(stats *types.StartStats) string {
	return fmt.Sprintf(
		"<b>📊 Статистика запусков бота</b>\n"+
			"\n"+
			"Сегодня: %s\n"+
			"Вчера: %s\n"+
			"За 3 дня: %s\n"+
			"За 7 дней: %s",
		helpers.FormatNumberSpaces(stats.Today),
		helpers.FormatNumberSpaces(stats.Yesterday),
		helpers.FormatNumberSpaces(stats.Last3Days),
		helpers.FormatNumberSpaces(stats.Last7Days),
	)
}

func renderChart(stats *types.StartStats) ([]byte, error) {
	days := make([]string, 0, len(stats.ByDay))
	for day := range stats.ByDay {
		days = append(days, day)
	}
	sort.Strings(days)

	bars := make([]chart.Value, 0, len(days))
	for _, day := range days {
		label := day
		if len(label) > 5 {
			label = label[5:] // MM-DD
		}
		bars = append(bars, chart.Value{
			Value: float64(stats.ByDay[day]),
			Label: label,
		})
	}
	if len(bars) == 0 {
		bars = append(bars, chart.Value{Value: 0, Label: "-"})
	}

	graph := chart.BarChart{
		Title:    "Starts per day",
		Width:    1024,
		Height:   512,
		BarWidth: 80,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
