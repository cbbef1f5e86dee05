package catalog

import (
	"fmt"
	"strings"

	"encar-telegram-bot/internal/types"
)

// ActionQuery composes the marketplace's action expression from a taxonomy
// node's precomputed base action plus optional range clauses. The base is an
// opaque server-defined fragment of the form "(...Term._.Term.)"; clauses are
// appended as additional "_.<Term>." members before the closing sentinel,
// never by slicing characters off the base. Setting the same dimension twice
// replaces the previous clause, so rebuilding is idempotent.
type ActionQuery struct {
	base    string
	clauses map[string]string
	order   []string
}

func NewActionQuery(base string) *ActionQuery {
	return &ActionQuery{
		base:    strings.TrimSpace(base),
		clauses: make(map[string]string),
	}
}

// SetClause registers or replaces a filter dimension's rendered term.
func (q *ActionQuery) SetClause(dimension, clause string) {
	if _, exists := q.clauses[dimension]; !exists {
		q.order = append(q.order, dimension)
	}
	q.clauses[dimension] = clause
}

// Build renders the full action expression. The base is left untouched when
// no clauses are set.
func (q *ActionQuery) Build() string {
	if len(q.order) == 0 {
		return q.base
	}

	body, closed := strings.CutSuffix(q.base, ")")
	var sb strings.Builder
	sb.WriteString(body)
	for _, dim := range q.order {
		sb.WriteString("_.")
		sb.WriteString(q.clauses[dim])
		sb.WriteString(".")
	}
	if closed {
		sb.WriteString(")")
	}
	return sb.String()
}

// MileageBucket is the granularity mileage bounds snap to before rendering.
const MileageBucket = 10_000

// BuildAction translates a filter spec into the effective action expression,
// converting the stored RUB price bounds into the marketplace's 10k-KRW units
// with the given rate.
func BuildAction(baseAction string, filter types.FilterSpec, krwRate float64) string {
	q := NewActionQuery(baseAction)

	if r := filter.ReleaseYear; r != nil {
		// Year terms carry a YYYYMM-style suffix: 00 for the range start,
		// 99 for the open end of the year.
		q.SetClause("year", fmt.Sprintf("Year.range(%d00..%d99)", r.Low, r.High))
	}

	if r := filter.Mileage; r != nil {
		low, high := int64(0), r.Low
		if r.Dual {
			low, high = r.Low, r.High
		}
		low = low / MileageBucket * MileageBucket
		high = (high + MileageBucket - 1) / MileageBucket * MileageBucket
		q.SetClause("mileage", fmt.Sprintf("Mileage.range(%d..%d)", low, high))
	}

	if r := filter.Price; r != nil && krwRate > 0 {
		low, high := int64(0), r.Low
		if r.Dual {
			low, high = r.Low, r.High
		}
		q.SetClause("price", fmt.Sprintf(
			"Price.range(%s..%s)",
			formatManKRW(rubToManKRW(low, krwRate)),
			formatManKRW(rubToManKRW(high, krwRate)),
		))
	}

	return q.Build()
}

// rubToManKRW converts a RUB amount into 10,000-KRW units.
func rubToManKRW(rub int64, krwRate float64) float64 {
	return float64(rub) / krwRate / 10_000
}

// formatManKRW renders a price bound with the marketplace's comma decimal
// separator and exactly three fractional digits.
func formatManKRW(v float64) string {
	return strings.Replace(fmt.Sprintf("%.3f", v), ".", ",", 1)
}
