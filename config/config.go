package config

import (
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

var once sync.Once

func InitConfig() {
	once.Do(func() {
		viper.AutomaticEnv()

		viper.BindEnv("metrics_port", "METRICS_PORT")
		viper.BindEnv("telegram_bot_token", "TELEGRAM_BOT_TOKEN")
		viper.BindEnv("two_captcha_key", "TWO_CAPTCHA_KEY")
		viper.BindEnv("log_chat_id", "LOG_CHAT_ID")
		viper.BindEnv("statistics_chat_id", "STATISTICS_CHAT_ID")
		viper.BindEnv("admin_ids", "ADMIN_IDS")
		viper.BindEnv("eur_rate", "EUR_RATE")
		viper.BindEnv("krw_rate", "KRW_RATE")
		viper.BindEnv("db_path", "DB_PATH")
		viper.BindEnv("debug", "DEBUG")
		viper.BindEnv("lang", "BOT_LANG")
		viper.BindEnv("timezone", "TIMEZONE")
		viper.BindEnv("encar_api_url", "ENCAR_API_URL")
		viper.BindEnv("encar_site_url", "ENCAR_SITE_URL")
		viper.BindEnv("cbr_rates_url", "CBR_RATES_URL")

		viper.SetDefault("metrics_port", 9090)
		viper.SetDefault("debug", false)
		viper.SetDefault("lang", "ru")
		viper.SetDefault("timezone", "Europe/Moscow")
		viper.SetDefault("db_path", "/app/data/bot.db")
		viper.SetDefault("eur_rate", 94.04)
		viper.SetDefault("krw_rate", 0.06058)
		viper.SetDefault("encar_api_url", "https://api.encar.com")
		viper.SetDefault("encar_site_url", "https://fem.encar.com")
		viper.SetDefault("cbr_rates_url", "https://www.cbr-xml-daily.ru/daily_json.js")
	})
}

func GetString(key string) string {
	InitConfig()
	return viper.GetString(key)
}

func GetInt(key string) int {
	InitConfig()
	return viper.GetInt(key)
}

func GetInt64(key string) int64 {
	InitConfig()
	return viper.GetInt64(key)
}

func GetFloat(key string) float64 {
	InitConfig()
	return viper.GetFloat64(key)
}

func GetBool(key string) bool {
	InitConfig()
	return viper.GetBool(key)
}

// GetInt64Slice parses comma/space separated id lists, e.g. ADMIN_IDS="1,2,3".
func GetInt64Slice(key string) []int64 {
	InitConfig()
	raw := strings.FieldsFunc(viper.GetString(key), func(r rune) bool {
		return r == ',' || r == ' ' || r == '[' || r == ']'
	})
	ids := make([]int64, 0, len(raw))
	for _, part := range raw {
		if n, err := strconv.ParseInt(part, 10, 64); err == nil {
			ids = append(ids, n)
		}
	}
	return ids
}
