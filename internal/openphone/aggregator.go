package openphone

import (
	"context"
	"fmt"
	"time"

	"github.com/stayops/guest-insights/internal/config"
	"github.com/stayops/guest-insights/internal/pkg/logger"
)

// callAnswered is the single provider status that counts as answered.
const callAnswered = "completed"

// callMissedStatuses are the non-completion outcomes that count as missed.
// Anything outside this set and "completed" counts as neither.
var callMissedStatuses = map[string]bool{
	"missed":    true,
	"no-answer": true,
	"busy":      true,
	"failed":    true,
	"abandoned": true,
}

// Aggregator folds the full call and message history for one guest phone
// number into a CommunicationSummary. It walks every phone number on every
// configured credential, so activity scattered across provider accounts is
// summed together.
type Aggregator struct {
	clients   []*Client
	tz        *time.Location
	pageSize  int
	resultCap int
}

// NewAggregator builds an aggregator with one client per configured API key.
func NewAggregator(cfg config.OpenPhoneConfig) (*Aggregator, error) {
	tz, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", cfg.Timezone, err)
	}

	clients := make([]*Client, 0, len(cfg.APIKeys))
	for _, key := range cfg.APIKeys {
		clients = append(clients, NewClient(cfg, key))
	}

	return &Aggregator{
		clients:   clients,
		tz:        tz,
		pageSize:  cfg.PageSize,
		resultCap: cfg.EventCap,
	}, nil
}

// NewAggregatorWithClients builds an aggregator over pre-built clients
// (useful for testing).
func NewAggregatorWithClients(clients []*Client, tz *time.Location, pageSize, resultCap int) *Aggregator {
	return &Aggregator{clients: clients, tz: tz, pageSize: pageSize, resultCap: resultCap}
}

// Aggregate fetches and folds every known event for the guest's phone
// number. arrival, when set, splits events into pre/post-arrival buckets
// by calendar date in the configured time zone; without it events land in
// the Unclassified counter.
//
// Failures degrade rather than abort: an unreachable credential or channel
// contributes nothing, and the summary reports whatever was obtained from
// the rest. Only a malformed phone number short-circuits entirely.
func (a *Aggregator) Aggregate(ctx context.Context, phone string, arrival *time.Time) CommunicationSummary {
	identity, err := NormalizePhone(phone)
	if err != nil {
		logger.Warn("aggregate: invalid phone", "phone", phone)
		return CommunicationSummary{Status: StatusInvalid}
	}

	var summary CommunicationSummary
	channelsFound := 0

	for i, client := range a.clients {
		numbers, err := client.ListPhoneNumbers(ctx)
		if err != nil {
			logger.Warn("aggregate: channel discovery failed", "credential", i, "err", err)
			continue
		}
		channelsFound += len(numbers)

		for _, pn := range numbers {
			summary.Add(a.aggregateChannel(ctx, client, pn.ID, identity, arrival))
		}
	}

	if channelsFound == 0 {
		return CommunicationSummary{Status: StatusNoComms}
	}

	if summary.TotalCalls == 0 && summary.TotalMessages == 0 {
		summary.Status = StatusNoComms
	} else {
		summary.Status = StatusActive
	}
	return summary
}

// aggregateChannel folds one channel's calls and messages. Fetch errors
// degrade to whatever pages were already collected.
func (a *Aggregator) aggregateChannel(ctx context.Context, client *Client, channelID, identity string, arrival *time.Time) CommunicationSummary {
	var s CommunicationSummary

	calls, err := client.ListCalls(ctx, channelID, identity, a.pageSize, a.resultCap)
	if err != nil {
		logger.Warn("aggregate: call fetch failed", "channel", channelID, "err", err)
	}
	for _, call := range calls {
		a.foldCall(&s, call, arrival)
	}

	messages, err := client.ListMessages(ctx, channelID, identity, a.pageSize, a.resultCap)
	if err != nil {
		logger.Warn("aggregate: message fetch failed", "channel", channelID, "err", err)
	}
	for _, msg := range messages {
		a.foldMessage(&s, msg, arrival)
	}

	return s
}

func (a *Aggregator) foldCall(s *CommunicationSummary, call Call, arrival *time.Time) {
	s.TotalCalls++

	if call.Direction == "incoming" {
		s.InboundCalls++
	} else {
		s.OutboundCalls++
	}

	switch {
	case call.Status == callAnswered:
		s.AnsweredCalls++
		s.CallAttempts++
	case callMissedStatuses[call.Status]:
		s.MissedCalls++
		s.CallAttempts++
	}

	if call.Duration < shortCallCutoff {
		s.ShortCalls++
	}

	switch a.classify(call.CreatedAt, arrival) {
	case classPre:
		s.PreArrivalCalls++
	case classPost:
		s.PostArrivalCalls++
	default:
		s.Unclassified++
	}

	if s.LastContactAt == nil || call.CreatedAt.After(*s.LastContactAt) {
		at := call.CreatedAt
		s.LastContactAt = &at
		s.LastEventType = "Call"
		s.LastEventDir = call.Direction
		s.LastCallDuration = call.Duration
		s.LastCallAgentName = call.AgentName
	}
}

func (a *Aggregator) foldMessage(s *CommunicationSummary, msg Message, arrival *time.Time) {
	s.TotalMessages++

	if msg.Direction == "incoming" {
		s.InboundMessages++
	} else {
		s.OutboundMessages++
	}

	switch a.classify(msg.CreatedAt, arrival) {
	case classPre:
		s.PreArrivalMessages++
	case classPost:
		s.PostArrivalMessages++
	default:
		s.Unclassified++
	}

	if s.LastContactAt == nil || msg.CreatedAt.After(*s.LastContactAt) {
		at := msg.CreatedAt
		s.LastContactAt = &at
		s.LastEventType = "Message"
		s.LastEventDir = msg.Direction
		s.LastCallDuration = 0
		s.LastCallAgentName = ""
	}
}

type classification int

const (
	classUnknown classification = iota
	classPre
	classPost
)

// classify compares the event's calendar date, taken in the target time
// zone, against the arrival date. An event at 23:59 on the arrival date is
// still pre-arrival; 00:00 the next day is post-arrival.
//
// The arrival is a civil date: its own location is ignored, so a date
// parsed at UTC midnight stays on the day it names regardless of the
// configured zone.
func (a *Aggregator) classify(eventAt time.Time, arrival *time.Time) classification {
	if arrival == nil {
		return classUnknown
	}
	ey, em, ed := eventAt.In(a.tz).Date()
	ay, am, ad := arrival.Date()
	eventDate := time.Date(ey, em, ed, 0, 0, 0, 0, a.tz)
	arrivalDate := time.Date(ay, am, ad, 0, 0, 0, 0, a.tz)

	if eventDate.After(arrivalDate) {
		return classPost
	}
	return classPre
}
