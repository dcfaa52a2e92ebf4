package domain

import "time"

// ConnectivityState is the process-wide availability of the matching service.
type ConnectivityState string

const (
	ConnectivityChecking     ConnectivityState = "checking"
	ConnectivityConnected    ConnectivityState = "connected"
	ConnectivityDisconnected ConnectivityState = "disconnected"
)

// DiscoveryPath identifies which execution path a discovery session took.
type DiscoveryPath string

const (
	DiscoveryPathNone      DiscoveryPath = ""
	DiscoveryPathLive      DiscoveryPath = "live"
	DiscoveryPathSimulated DiscoveryPath = "simulated"
)

// LogLine is a single timestamped line of a discovery log stream.
type LogLine struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// MatchResult is the best comparable competitor listing found for a product.
type MatchResult struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Price      float64 `json:"price"`
	Currency   string  `json:"currency"`
	Sales      *int64  `json:"sales,omitempty"`
	Similarity float64 `json:"similarity"` // 0.0 - 1.0
	MatchType  string  `json:"match_type"`
	Features   string  `json:"features"`
}

// DiscoverySession is one run of the competitor-matching workflow.
type DiscoverySession struct {
	ID          string        `json:"id"`
	Generation  uint64        `json:"generation"`
	Keyword     string        `json:"keyword"`
	Description string        `json:"description"`
	Path        DiscoveryPath `json:"path"`
	Logs        []LogLine     `json:"logs"`
	Result      *MatchResult  `json:"result,omitempty"`
	InProgress  bool          `json:"in_progress"`
	Fallback    bool          `json:"fallback"`
	Pending     int           `json:"pending"` // scheduled appends not yet delivered
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// Clone returns a deep copy that shares no mutable state with s.
func (s DiscoverySession) Clone() DiscoverySession {
	out := s
	out.Logs = append([]LogLine(nil), s.Logs...)
	if s.Result != nil {
		r := *s.Result
		if s.Result.Sales != nil {
			sales := *s.Result.Sales
			r.Sales = &sales
		}
		out.Result = &r
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
