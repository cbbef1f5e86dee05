package rates

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// Snapshot is an immutable pair of currency rates. Readers always see both
// values from the same refresh; the updater swaps whole snapshots, never
// individual fields.
type Snapshot struct {
	KRW float64 // RUB per 1 KRW
	EUR float64 // RUB per 1 EUR
}

var current atomic.Pointer[Snapshot]

// Init seeds the snapshot with configured fallback rates so quote math works
// before the first successful refresh.
func Init(krw, eur float64) {
	current.Store(&Snapshot{KRW: krw, EUR: eur})
}

// Current returns the latest consistent snapshot.
func Current() Snapshot {
	return *current.Load()
}

type cbrFeed struct {
	Valute map[string]struct {
		Nominal float64 `json:"Nominal"`
		Value   float64 `json:"Value"`
	} `json:"Valute"`
}

// Update fetches the central bank daily feed and swaps the snapshot. A
// transport or decode failure keeps the previous snapshot in place.
func Update(feedURL string) error {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(feedURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var feed cbrFeed
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return err
	}

	krw, okKRW := feed.Valute["KRW"]
	eur, okEUR := feed.Valute["EUR"]
	if !okKRW || !okEUR || krw.Nominal == 0 || eur.Nominal == 0 {
		log.Errorf("rates feed is missing KRW/EUR quotes")
		return nil
	}

	next := &Snapshot{
		KRW: krw.Value / krw.Nominal,
		EUR: eur.Value / eur.Nominal,
	}
	current.Store(next)

	log.Infof("💱 Currency rates updated: KRW=%.5f EUR=%.2f", next.KRW, next.EUR)
	return nil
}
