package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"encar-telegram-bot/internal/types"
)

// PageSize is the fixed page length of the marketplace search endpoint.
const PageSize = 20

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 YaBrowser/25.2.0.0 Safari/537.36"

// stateMarker precedes the JSON state blob embedded in listing detail pages.
const stateMarker = "__PRELOADED_STATE__"

// Client fetches the marketplace search API and listing detail pages.
// Requests are paced by a shared limiter so per-record pagination stays
// polite; searches swallow transport errors and return nil, leaving retry
// decisions to the next reconciliation cycle.
type Client struct {
	apiBase  string
	siteBase string
	http     *http.Client
	limiter  *rate.Limiter
}

func NewClient(apiBase, siteBase string) *Client {
	return &Client{
		apiBase:  strings.TrimRight(apiBase, "/"),
		siteBase: strings.TrimRight(siteBase, "/"),
		http:     &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Search runs one page of a catalog search. It returns nil on any transport
// or HTTP failure: intermittent marketplace errors are expected and must not
// abort a reconciliation cycle, so they are logged and treated as "no data
// this cycle" by callers.
func (c *Client) Search(ctx context.Context, action string, offset int) *types.SearchPage {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil
	}

	params := url.Values{}
	params.Set("count", "true")
	params.Set("q", action)
	params.Set("sr", fmt.Sprintf("|ModifiedDate|%d|%d", offset, PageSize))

	body, err := c.doGET(ctx, c.apiBase+"/search/car/list/premium?"+params.Encode(), "application/json")
	if err != nil {
		log.Errorf("❌ Catalog search failed (offset %d): %v", offset, err)
		return nil
	}

	var page types.SearchPage
	if err := json.Unmarshal(body, &page); err != nil {
		log.Errorf("❌ Catalog search payload parse failed: %v", err)
		return nil
	}
	return &page
}

// Probe is the lightweight API check the authenticator uses to decide
// whether the scraper's IP is still authorized.
func (c *Client) Probe(ctx context.Context) bool {
	page := c.Search(ctx, "(And.Hierarchy.ModelGroup.)", 0)
	return page != nil
}

// FetchDetail loads a listing page and decodes the embedded state blob.
// Unlike Search this propagates errors: per-listing failures are isolated by
// the reconciler, not hidden here.
func (c *Client) FetchDetail(ctx context.Context, carID int64) (*types.CarInfo, error) {
	html, err := c.doGET(ctx, fmt.Sprintf("%s/cars/detail/%d", c.siteBase, carID), "text/html")
	if err != nil {
		return nil, errors.Wrapf(err, "could not fetch detail page for car %d", carID)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(html)))
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse detail page for car %d", carID)
	}

	var blob string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if idx := strings.Index(text, stateMarker); idx >= 0 {
			if _, after, ok := strings.Cut(text[idx:], " = "); ok {
				blob = strings.TrimSpace(after)
				return false
			}
		}
		return true
	})
	if blob == "" {
		return nil, errors.Errorf("no embedded state found for car %d", carID)
	}

	var state preloadedState
	if err := json.Unmarshal([]byte(strings.TrimSuffix(blob, ";")), &state); err != nil {
		return nil, errors.Wrapf(err, "could not decode state blob for car %d", carID)
	}

	info := state.toCarInfo(carID)
	log.Debugf("Fetched car %d detail:\n%s", carID, spew.Sdump(info))
	return info, nil
}

func (c *Client) doGET(ctx context.Context, rawURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", accept)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}
	return body, nil
}

type preloadedState struct {
	Cars struct {
		Base struct {
			QueryCarID string `json:"queryCarId"`
			Category   struct {
				ManufacturerEnglishName string      `json:"manufacturerEnglishName"`
				ModelName               string      `json:"modelName"`
				GradeEnglishName        string      `json:"gradeEnglishName"`
				YearMonth               json.Number `json:"yearMonth"`
			} `json:"category"`
			Spec struct {
				Mileage      int64  `json:"mileage"`
				FuelName     string `json:"fuelName"`
				Displacement int64  `json:"displacement"`
			} `json:"spec"`
			Advertisement struct {
				Price float64 `json:"price"`
			} `json:"advertisement"`
			Photos []types.CarPhoto `json:"photos"`
		} `json:"base"`
	} `json:"cars"`
}

func (s *preloadedState) toCarInfo(fallbackID int64) *types.CarInfo {
	base := s.Cars.Base

	carID := fallbackID
	if id, err := strconv.ParseInt(base.QueryCarID, 10, 64); err == nil && id > 0 {
		carID = id
	}

	return &types.CarInfo{
		CarID:        carID,
		Manufacturer: base.Category.ManufacturerEnglishName,
		ModelName:    base.Category.ModelName,
		GradeName:    base.Category.GradeEnglishName,
		YearMonth:    base.Category.YearMonth.String(),
		Mileage:      base.Spec.Mileage,
		FuelName:     base.Spec.FuelName,
		Displacement: base.Spec.Displacement,
		PriceMan:     int64(base.Advertisement.Price),
		Photos:       base.Photos,
	}
}
