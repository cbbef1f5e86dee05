package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Range is an optional filter bound serialized as "N" or "N-M".
// A single value means "from 0 up to N" for mileage and price, and the exact
// year for release-year filters.
type Range struct {
	Low  int64
	High int64
	Dual bool
}

// ParseRange decodes "N" or "N-M". Empty input returns (nil, nil).
func ParseRange(s string) (*Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if lo, hi, ok := strings.Cut(s, "-"); ok {
		low, err := strconv.ParseInt(lo, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid range %q: %w", s, err)
		}
		high, err := strconv.ParseInt(hi, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid range %q: %w", s, err)
		}
		if low > high {
			return nil, fmt.Errorf("invalid range %q: low > high", s)
		}
		return &Range{Low: low, High: high, Dual: true}, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid range %q: %w", s, err)
	}
	return &Range{Low: v, High: v}, nil
}

func (r *Range) String() string {
	if r == nil {
		return ""
	}
	if r.Dual {
		return fmt.Sprintf("%d-%d", r.Low, r.High)
	}
	return strconv.FormatInt(r.Low, 10)
}

// FilterSpec is the saved search a tracking reconciles against.
// ConfigurationID points at the taxonomy leaf whose action string seeds the
// search expression.
type FilterSpec struct {
	ConfigurationID int64
	ReleaseYear     *Range
	Mileage         *Range
	Price           *Range
}

// Tracking is a persisted filter plus the set of listing ids already seen.
type Tracking struct {
	ID       int64
	UserID   int64
	Filter   FilterSpec
	CarIDs   []int64
	IsActive bool
	AddedAt  string
}

// KnownSet returns the id set for membership checks.
func (t *Tracking) KnownSet() map[int64]struct{} {
	set := make(map[int64]struct{}, len(t.CarIDs))
	for _, id := range t.CarIDs {
		set[id] = struct{}{}
	}
	return set
}

// TaxonomyNode is one row of the brand/model/generation/modification/
// configuration reference tables. Action carries the server-side query
// fragment for the node; Code is the upsert key within the parent.
type TaxonomyNode struct {
	ID           int64
	Code         string
	Action       string
	DisplayValue string
	EngName      string
	ParentID     int64
	StartYear    int64
	EndYear      int64
	Count        int64
}

// SearchResult is one listing row of a catalog search page.
type SearchResult struct {
	ID           string  `json:"Id"`
	Manufacturer string  `json:"Manufacturer"`
	Model        string  `json:"Model"`
	Badge        string  `json:"Badge"`
	Year         float64 `json:"Year"`
	Mileage      float64 `json:"Mileage"`
	Price        float64 `json:"Price"`
	FuelType     string  `json:"FuelType"`
}

// NumericID parses the listing id, returning 0 for a malformed one.
func (r *SearchResult) NumericID() int64 {
	id, err := strconv.ParseInt(r.ID, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// SearchPage is one page of the marketplace search endpoint.
type SearchPage struct {
	Count   int64          `json:"Count"`
	Results []SearchResult `json:"SearchResults"`
}

// CarPhoto is a photo reference on a listing detail page.
type CarPhoto struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// CarInfo is the decoded listing detail state blob.
type CarInfo struct {
	CarID        int64
	Manufacturer string
	ModelName    string
	GradeName    string
	YearMonth    string // YYYYMM registration date
	Mileage      int64
	FuelName     string
	Displacement int64 // cm3, 0 when the source omits it
	PriceMan     int64 // price in 10,000 KRW units as advertised
	Photos       []CarPhoto
}

// RegistrationYearMonth splits YearMonth into numeric year and month.
func (c *CarInfo) RegistrationYearMonth() (int, int) {
	if len(c.YearMonth) < 6 {
		return 0, 0
	}
	year, _ := strconv.Atoi(c.YearMonth[:4])
	month, _ := strconv.Atoi(c.YearMonth[4:6])
	return year, month
}

// User mirrors the users table.
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	IsBlocked bool
	StartedAt string
}

// StartStats is the daily statistics digest payload.
type StartStats struct {
	Today     int64
	Yesterday int64
	Last3Days int64
	Last7Days int64
	ByDay     map[string]int64 // YYYY-MM-DD -> starts, last 7 days
}
