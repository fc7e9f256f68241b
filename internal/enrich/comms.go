package enrich

import (
	"context"
	"time"

	"github.com/stayops/guest-insights/internal/openphone"
)

// arrivalFormats are accepted date layouts for the Arrival Date column.
var arrivalFormats = []string{
	"2006-01-02",
	time.RFC3339,
	"01/02/2006",
	"1/2/2006",
}

func parseArrival(row Row) *time.Time {
	raw := rowString(row, ColArrival, "Check-in Date")
	if raw == "" {
		return nil
	}
	for _, layout := range arrivalFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

// CommsEnricher annotates rows with the guest's communication history
// summary. Lookups fan out across a bounded worker pool; each worker runs
// its own sequential paginated fetch, so the effective global request rate
// is the per-client pace times the worker count.
type CommsEnricher struct {
	agg     *openphone.Aggregator
	workers int
}

// NewCommsEnricher creates a communications enricher over the aggregator.
func NewCommsEnricher(agg *openphone.Aggregator, workers int) *CommsEnricher {
	if workers <= 0 {
		workers = 5
	}
	return &CommsEnricher{agg: agg, workers: workers}
}

func (c *CommsEnricher) Kind() string         { return "communications" }
func (c *CommsEnricher) TargetColumn() string { return ColCommStatus }
func (c *CommsEnricher) Concurrency() int     { return c.workers }

func (c *CommsEnricher) Columns() []string {
	return []string{
		ColCommStatus, ColLastContact, ColTotalMessages, ColTotalCalls,
		ColAnsweredCalls, ColMissedCalls, ColCallAttempts,
		ColPreCalls, ColPostCalls, ColPreTexts, ColPostTexts, ColShortCalls,
	}
}

// Sentinel marks a row whose lookup errored outright.
func (c *CommsEnricher) Sentinel() map[string]any {
	return map[string]any{
		ColCommStatus:    openphone.StatusError,
		ColLastContact:   "",
		ColTotalMessages: 0,
		ColTotalCalls:    0,
		ColAnsweredCalls: 0,
		ColMissedCalls:   0,
		ColCallAttempts:  0,
		ColPreCalls:      0,
		ColPostCalls:     0,
		ColPreTexts:      0,
		ColPostTexts:     0,
		ColShortCalls:    0,
	}
}

func (c *CommsEnricher) EnrichRow(ctx context.Context, row Row) (map[string]any, error) {
	phone := rowString(row, ColPhone, "Phone")
	summary := c.agg.Aggregate(ctx, phone, parseArrival(row))
	return SummaryColumns(summary), nil
}

// SummaryColumns flattens a CommunicationSummary into dataset columns.
func SummaryColumns(s openphone.CommunicationSummary) map[string]any {
	lastContact := ""
	if s.LastContactAt != nil {
		lastContact = s.LastContactAt.Format("2006-01-02 15:04")
	}
	return map[string]any{
		ColCommStatus:    s.Status,
		ColLastContact:   lastContact,
		ColTotalMessages: s.TotalMessages,
		ColTotalCalls:    s.TotalCalls,
		ColAnsweredCalls: s.AnsweredCalls,
		ColMissedCalls:   s.MissedCalls,
		ColCallAttempts:  s.CallAttempts,
		ColPreCalls:      s.PreArrivalCalls,
		ColPostCalls:     s.PostArrivalCalls,
		ColPreTexts:      s.PreArrivalMessages,
		ColPostTexts:     s.PostArrivalMessages,
		ColShortCalls:    s.ShortCalls,
	}
}
