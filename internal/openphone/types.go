package openphone

import "time"

// PhoneNumber is an account phone number (a channel through which calls
// and messages for a guest may appear).
type PhoneNumber struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	Name   string `json:"name"`
}

// Call is a single call event. Events are immutable once fetched.
type Call struct {
	ID        string    `json:"id"`
	Direction string    `json:"direction"` // "incoming" or "outgoing"
	Status    string    `json:"status"`
	Duration  int       `json:"duration"` // seconds
	AgentName string    `json:"agentName"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is a single SMS event.
type Message struct {
	ID        string    `json:"id"`
	Direction string    `json:"direction"`
	Status    string    `json:"status"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// page is the provider's cursor-paginated list envelope.
type page[T any] struct {
	Data          []T    `json:"data"`
	NextPageToken string `json:"nextPageToken"`
}

// CommunicationSummary is the aggregate over every call and message for
// one guest phone number across all channels and credentials.
//
// Pre/post splits classify events against the guest's arrival date by
// calendar date in the configured time zone. Events folded while no
// arrival date is known land in Unclassified, never in either split.
type CommunicationSummary struct {
	Status string `json:"status"`

	TotalCalls    int `json:"total_calls"`
	TotalMessages int `json:"total_messages"`

	InboundCalls     int `json:"inbound_calls"`
	OutboundCalls    int `json:"outbound_calls"`
	InboundMessages  int `json:"inbound_messages"`
	OutboundMessages int `json:"outbound_messages"`

	AnsweredCalls int `json:"answered_calls"`
	MissedCalls   int `json:"missed_calls"`
	CallAttempts  int `json:"call_attempts"`
	ShortCalls    int `json:"short_calls"` // calls under 40s, any status

	PreArrivalCalls     int `json:"pre_arrival_calls"`
	PostArrivalCalls    int `json:"post_arrival_calls"`
	PreArrivalMessages  int `json:"pre_arrival_messages"`
	PostArrivalMessages int `json:"post_arrival_messages"`
	Unclassified        int `json:"unclassified"`

	LastContactAt     *time.Time `json:"last_contact_at,omitempty"`
	LastEventType     string     `json:"last_event_type,omitempty"` // "Call" or "Message"
	LastEventDir      string     `json:"last_event_direction,omitempty"`
	LastCallDuration  int        `json:"last_call_duration,omitempty"`
	LastCallAgentName string     `json:"last_call_agent,omitempty"`
}

// Aggregate status values surfaced in the enriched dataset.
const (
	StatusActive    = "Active"
	StatusNoComms   = "No Communications"
	StatusInvalid   = "Invalid Number"
	StatusError     = "Error"
	shortCallCutoff = 40 // seconds
)

// Add folds another summary's counters into s field-by-field. The last
// event is kept by timestamp comparison. Per-credential scopes are assumed
// disjoint, so no event deduplication happens here.
func (s *CommunicationSummary) Add(o CommunicationSummary) {
	s.TotalCalls += o.TotalCalls
	s.TotalMessages += o.TotalMessages
	s.InboundCalls += o.InboundCalls
	s.OutboundCalls += o.OutboundCalls
	s.InboundMessages += o.InboundMessages
	s.OutboundMessages += o.OutboundMessages
	s.AnsweredCalls += o.AnsweredCalls
	s.MissedCalls += o.MissedCalls
	s.CallAttempts += o.CallAttempts
	s.ShortCalls += o.ShortCalls
	s.PreArrivalCalls += o.PreArrivalCalls
	s.PostArrivalCalls += o.PostArrivalCalls
	s.PreArrivalMessages += o.PreArrivalMessages
	s.PostArrivalMessages += o.PostArrivalMessages
	s.Unclassified += o.Unclassified

	if o.LastContactAt != nil &&
		(s.LastContactAt == nil || o.LastContactAt.After(*s.LastContactAt)) {
		s.LastContactAt = o.LastContactAt
		s.LastEventType = o.LastEventType
		s.LastEventDir = o.LastEventDir
		s.LastCallDuration = o.LastCallDuration
		s.LastCallAgentName = o.LastCallAgentName
	}
}
