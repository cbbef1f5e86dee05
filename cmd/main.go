package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"encar-telegram-bot/config"
	"encar-telegram-bot/internal/auth"
	"encar-telegram-bot/internal/catalog"
	"encar-telegram-bot/internal/database"
	"encar-telegram-bot/internal/rates"
	"encar-telegram-bot/internal/scheduler"
	"encar-telegram-bot/internal/stats"
	"encar-telegram-bot/internal/telegram"
	"encar-telegram-bot/internal/tracker"
	"encar-telegram-bot/internal/types"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/leonelquinteros/gotext"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"
)

type BotMetrics struct {
	CommandsProcessed *prometheus.CounterVec
	MessagesHandled   prometheus.Counter
	Mutex             sync.Mutex
}

var (
	metrics = NewBotMetrics()

	carIDPattern = regexp.MustCompile(`\d{6,}`)
)

func init() {
	config.InitConfig()
	setupLogging()
}

func NewBotMetrics() *BotMetrics {
	metrics := &BotMetrics{
		CommandsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "encar",
			Subsystem: "telegram_bot",
			Name:      "commands_processed",
			Help:      "The total number of processed commands",
		}, []string{"command"}),
		MessagesHandled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "encar",
			Subsystem: "telegram_bot",
			Name:      "messages_handled",
			Help:      "The total number of handled messages",
		}),
	}

	prometheus.MustRegister(metrics.CommandsProcessed)
	prometheus.MustRegister(metrics.MessagesHandled)

	return metrics
}

func main() {
	gotext.Configure("locales", strings.ToLower(config.GetString("lang")), "default")

	err := database.InitDB(config.GetString("db_path"))
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.CloseDB()

	LoadMetricsFromDB()

	rates.Init(config.GetFloat("krw_rate"), config.GetFloat("eur_rate"))

	location, err := time.LoadLocation(config.GetString("timezone"))
	if err != nil {
		log.Fatalf("Failed to load timezone: %v", err)
	}

	bot, err := telegram.NewBot(telegram.BotConfig{
		Token:          config.GetString("telegram_bot_token"),
		Debug:          config.GetBool("debug"),
		UpdatesTimeout: 60,
	})
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	client := catalog.NewClient(config.GetString("encar_api_url"), config.GetString("encar_site_url"))

	authenticator := auth.New(
		client,
		auth.NewChromeOpener(auth.BrowserOptions{
			SiteURL:  config.GetString("encar_site_url"),
			Headless: !config.GetBool("debug"),
		}),
		auth.NewTwoCaptchaSolver(config.GetString("two_captcha_key")),
	)

	notifier := tracker.NewTelegramNotifier(bot, config.GetInt64("log_chat_id"), location)
	reconciler := tracker.New(client, tracker.DBStore{}, notifier)
	reporter := stats.NewReporter(bot, config.GetInt64("statistics_chat_id"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, err := scheduler.New(config.GetString("timezone"))
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	sched.AddInterval("session auth", 8*time.Hour, true, func(ctx context.Context) {
		_ = authenticator.EnsureAuthenticated(ctx)
	})
	sched.AddInterval("currency rates", time.Hour, true, func(ctx context.Context) {
		if err := rates.Update(config.GetString("cbr_rates_url")); err != nil {
			log.Errorf("❌ Could not refresh currency rates: %v", err)
		}
	})
	sched.AddInterval("tracking sweep", 30*time.Minute, true, reconciler.Sweep)
	sched.AddDaily("taxonomy refresh", 0, 0, client.RefreshTaxonomy)
	sched.AddDaily("statistics digest", 0, 0, func(ctx context.Context) {
		reporter.SendDigest()
	})
	sched.Start(ctx)

	handler := &botHandler{
		bot:      bot,
		client:   client,
		notifier: notifier,
		reporter: reporter,
	}

	updates := bot.GetUpdatesChannel()
	go handler.handleUpdates(updates)

	go func() {
		for {
			time.Sleep(5 * time.Minute)
			SaveMetricsToDB()
		}
	}()

	go func() {
		<-ctx.Done()
		SaveMetricsToDB()
		log.Println("Metrics saved, shutting down...")
		os.Exit(0)
	}()

	if err := launchMetricsAndHealthServer(config.GetInt("metrics_port")); err != nil {
		log.Fatalf("Failed to start metrics and health server: %v", err)
	}
}

func setupLogging() {
	log.SetLevel(log.InfoLevel)
	if config.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}
	log.Debug("Starting telegram bot...")
}

// botHandler routes incoming commands to the bot's features.
type botHandler struct {
	bot      *telegram.Bot
	client   *catalog.Client
	notifier *tracker.TelegramNotifier
	reporter *stats.Reporter
}

func (h *botHandler) handleUpdates(updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		if update.Message == nil || !update.Message.IsCommand() {
			log.Debug("Received non-message or non-command")
			continue
		}

		metrics.MessagesHandled.Inc()

		if blocked, err := database.IsBlocked(update.Message.From.ID); err == nil && blocked {
			log.Debugf("Ignoring command from blocked user %d", update.Message.From.ID)
			continue
		}

		h.handleCommand(update)
	}
}

func (h *botHandler) handleCommand(update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			stackBuf := make([]byte, 1024)
			stackSize := runtime.Stack(stackBuf, false)
			stackTrace := bytes.TrimRight(stackBuf[:stackSize], "\x00")
			log.Errorf("Recovered from panic: %v\nStack trace: %s", r, stackTrace)
		}
	}()

	message := update.Message

	switch message.Command() {
	case "start":
		h.handleStart(message)
	case "quote":
		h.handleQuote(message)
	case "tracks":
		h.handleTracks(message)
	case "stats":
		h.handleStats(message)
	default:
		return
	}

	metrics.CommandsProcessed.WithLabelValues(message.Command()).Inc()
}

func (h *botHandler) handleStart(message *tgbotapi.Message) {
	bot := h.bot
	isNew, err := database.UpsertUser(types.User{
		ID:        message.From.ID,
		Username:  message.From.UserName,
		FirstName: message.From.FirstName,
		LastName:  message.From.LastName,
	})
	if err != nil {
		log.Errorf("❌ Could not upsert user %d: %v", message.From.ID, err)
	}

	if isNew {
		notifyFirstStart(bot, message.From)
	}

	text := fmt.Sprintf(
		"<b>Привет, %s!</b>\n"+
			"Данный бот синхронизирован с Encar, благодаря чему вы сможете быстро получить примерный расчет по интересующему вас автомобилю.\n"+
			"\n"+
			"Отправьте /quote со ссылкой на авто или его номером, чтобы получить расчет.\n"+
			"Отправьте /tracks, чтобы посмотреть ваши отслеживания.",
		message.From.FirstName,
	)
	if _, err := bot.SendMessage(telegram.Message{ChatID: message.Chat.ID, Text: text}); err != nil {
		log.Errorf("Failed to send message: %v", err)
	}
}

func notifyFirstStart(bot *telegram.Bot, user *tgbotapi.User) {
	logChatID := config.GetInt64("log_chat_id")
	if logChatID == 0 {
		return
	}

	username := ""
	if user.UserName != "" {
		username = " @" + user.UserName
	}
	text := fmt.Sprintf(
		`<b>Пользователь <a href="tg://user?id=%d">%s</a>%s (ID: %d) запустил бота</b>`,
		user.ID, user.FirstName, username, user.ID)

	if _, err := bot.SendMessage(telegram.Message{ChatID: logChatID, Text: text}); err != nil {
		log.Errorf("❌ Could not notify log chat about new user: %v", err)
	}
}

func (h *botHandler) handleQuote(message *tgbotapi.Message) {
	carID, _ := strconv.ParseInt(carIDPattern.FindString(message.CommandArguments()), 10, 64)
	if carID == 0 {
		_, _ = h.bot.SendMessage(telegram.Message{
			ChatID: message.Chat.ID,
			Text:   "Отправьте ссылку на авто или его номер, например:\n<code>/quote 38637340</code>",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	car, err := h.client.FetchDetail(ctx, carID)
	if err != nil {
		log.Errorf("❌ Could not fetch listing %d: %v", carID, err)
		_, _ = h.bot.SendMessage(telegram.Message{
			ChatID: message.Chat.ID,
			Text:   "Не удалось получить информацию об автомобиле. Проверьте номер и попробуйте еще раз.",
		})
		return
	}

	if _, err := h.notifier.SendCard(message.Chat.ID, car); err != nil {
		log.Errorf("Failed to send message: %v", err)
		return
	}
	if err := database.RecordCarView(message.From.ID, carID); err != nil {
		log.Errorf("❌ Could not record car view: %v", err)
	}
}

func (h *botHandler) handleTracks(message *tgbotapi.Message) {
	trackings, err := database.TrackingsByUser(message.From.ID, 0)
	if err != nil {
		log.Errorf("❌ Could not load trackings of user %d: %v", message.From.ID, err)
		return
	}
	if len(trackings) == 0 {
		_, _ = h.bot.SendMessage(telegram.Message{ChatID: message.Chat.ID, Text: "У вас пока нет отслеживаний."})
		return
	}

	var parts []string
	for i, track := range trackings {
		parts = append(parts, tracker.Summary(track, fmt.Sprintf("<b>Отслеживание %d</b>", i+1)))
	}
	_, err = h.bot.SendMessage(telegram.Message{
		ChatID: message.Chat.ID,
		Text:   "<b>Ваши отслеживания</b>\n\n" + strings.Join(parts, "\n\n"),
	})
	if err != nil {
		log.Errorf("Failed to send message: %v", err)
	}
}

// handleStats lets admins request the usage digest out of schedule.
func (h *botHandler) handleStats(message *tgbotapi.Message) {
	for _, adminID := range config.GetInt64Slice("admin_ids") {
		if adminID == message.From.ID {
			h.reporter.SendDigest()
			return
		}
	}
	log.Debugf("User %d requested stats without admin rights", message.From.ID)
}

func launchMetricsAndHealthServer(port int) error {
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", healthCheckHandler)

	log.Infof("Launching metrics and health endpoint on :%d", port)
	return http.ListenAndServe(fmt.Sprintf(":%d", port), http.DefaultServeMux)
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func LoadMetricsFromDB() {
	metrics.Mutex.Lock()
	defer metrics.Mutex.Unlock()

	commandsProcessed, err := database.GetMetricsWithLabels("commands_processed")
	if err != nil {
		log.Printf("Failed to load command metrics: %v", err)
	}
	for command, value := range commandsProcessed["command"] {
		metrics.CommandsProcessed.WithLabelValues(command).Add(value)
	}

	messagesHandled, _ := database.GetMetric("messages_handled")
	metrics.MessagesHandled.Add(messagesHandled)

	log.Println("Metrics loaded from database.")
}

func SaveMetricsToDB() {
	metrics.Mutex.Lock()
	defer metrics.Mutex.Unlock()

	SaveCounterVec("commands_processed", "command", metrics.CommandsProcessed)
	database.SaveMetric("messages_handled", "", "", GetMetricValue(metrics.MessagesHandled))

	log.Println("Metrics saved to database.")
}

// SaveCounterVec persists every child of a labeled counter, one metrics row
// per label value.
func SaveCounterVec(metricName, labelKey string, vec *prometheus.CounterVec) {
	metricChan := make(chan prometheus.Metric, 64)
	vec.Collect(metricChan)
	close(metricChan)

	for metric := range metricChan {
		metricProto := &dto.Metric{}
		if err := metric.Write(metricProto); err != nil {
			log.Printf("Failed to read metric value: %v", err)
			continue
		}

		labelValue := ""
		for _, label := range metricProto.Label {
			if label.GetName() == labelKey {
				labelValue = label.GetValue()
			}
		}
		database.SaveMetric(metricName, labelKey, labelValue, metricProto.Counter.GetValue())
	}
}

func GetMetricValue(metric prometheus.Collector) float64 {
	var metricValue float64
	metricChan := make(chan prometheus.Metric, 1)
	metric.Collect(metricChan)
	close(metricChan)

	metricProto := &dto.Metric{}
	if err := (<-metricChan).Write(metricProto); err != nil {
		log.Printf("Failed to read metric value: %v", err)
		return 0
	}

	if metricProto.Counter != nil {
		metricValue = metricProto.Counter.GetValue()
	} else if metricProto.Gauge != nil {
		metricValue = metricProto.Gauge.GetValue()
	}
	return metricValue
}
