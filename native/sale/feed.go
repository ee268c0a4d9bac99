package sale

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
)

// RoundData mirrors the standard aggregator "latest round" surface. Only the
// signed Answer is consumed by the sale; the remaining fields are carried for
// completeness.
type RoundData struct {
	RoundID         *big.Int
	Answer          *big.Int
	StartedAt       int64
	UpdatedAt       int64
	AnsweredInRound *big.Int
}

// PriceFeed resolves the latest native-asset/USD round from an external
// oracle.
type PriceFeed interface {
	LatestRoundData() (RoundData, error)
}

// StaticFeed is an in-memory feed implementation used for tests and manual
// overrides during incident response.
type StaticFeed struct {
	mu    sync.RWMutex
	round RoundData
}

// NewStaticFeed constructs a feed pinned to the supplied answer and update
// time.
func NewStaticFeed(answer *big.Int, updatedAt int64) *StaticFeed {
	feed := &StaticFeed{}
	feed.SetRound(RoundData{
		RoundID:         big.NewInt(1),
		Answer:          answer,
		StartedAt:       updatedAt,
		UpdatedAt:       updatedAt,
		AnsweredInRound: big.NewInt(1),
	})
	return feed
}

// SetRound replaces the stored round.
func (f *StaticFeed) SetRound(round RoundData) {
	if f == nil {
		return
	}
	f.mu.Lock()
	f.round = cloneRound(round)
	f.mu.Unlock()
}

// LatestRoundData returns the stored round.
func (f *StaticFeed) LatestRoundData() (RoundData, error) {
	if f == nil {
		return RoundData{}, fmt.Errorf("static feed not configured")
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.round.Answer == nil {
		return RoundData{}, fmt.Errorf("static feed: no round recorded")
	}
	return cloneRound(f.round), nil
}

// HTTPDoer abstracts http.Client for ease of testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPFeed fetches round data from a JSON endpoint exposing the aggregator
// fields as decimal strings.
type HTTPFeed struct {
	client   HTTPDoer
	endpoint string
}

// NewHTTPFeed constructs an HTTP feed adapter. When the client is nil
// http.DefaultClient is used.
func NewHTTPFeed(client HTTPDoer, endpoint string) (*HTTPFeed, error) {
	ep := strings.TrimSpace(endpoint)
	if ep == "" {
		return nil, fmt.Errorf("sale: feed endpoint required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFeed{client: client, endpoint: ep}, nil
}

type httpRoundPayload struct {
	RoundID         string `json:"roundId"`
	Answer          string `json:"answer"`
	StartedAt       int64  `json:"startedAt"`
	UpdatedAt       int64  `json:"updatedAt"`
	AnsweredInRound string `json:"answeredInRound"`
}

// LatestRoundData queries the endpoint and decodes the latest round.
func (f *HTTPFeed) LatestRoundData() (RoundData, error) {
	if f == nil {
		return RoundData{}, fmt.Errorf("http feed not configured")
	}
	req, err := http.NewRequest(http.MethodGet, f.endpoint, nil)
	if err != nil {
		return RoundData{}, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return RoundData{}, fmt.Errorf("sale: feed request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return RoundData{}, fmt.Errorf("sale: feed returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return RoundData{}, err
	}
	var payload httpRoundPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return RoundData{}, fmt.Errorf("sale: feed payload invalid: %w", err)
	}
	answer, ok := new(big.Int).SetString(strings.TrimSpace(payload.Answer), 10)
	if !ok {
		return RoundData{}, fmt.Errorf("sale: feed answer invalid: %q", payload.Answer)
	}
	round := RoundData{
		Answer:    answer,
		StartedAt: payload.StartedAt,
		UpdatedAt: payload.UpdatedAt,
	}
	if trimmed := strings.TrimSpace(payload.RoundID); trimmed != "" {
		if id, ok := new(big.Int).SetString(trimmed, 10); ok {
			round.RoundID = id
		}
	}
	if trimmed := strings.TrimSpace(payload.AnsweredInRound); trimmed != "" {
		if id, ok := new(big.Int).SetString(trimmed, 10); ok {
			round.AnsweredInRound = id
		}
	}
	return round, nil
}

func cloneRound(r RoundData) RoundData {
	clone := RoundData{StartedAt: r.StartedAt, UpdatedAt: r.UpdatedAt}
	if r.RoundID != nil {
		clone.RoundID = new(big.Int).Set(r.RoundID)
	}
	if r.Answer != nil {
		clone.Answer = new(big.Int).Set(r.Answer)
	}
	if r.AnsweredInRound != nil {
		clone.AnsweredInRound = new(big.Int).Set(r.AnsweredInRound)
	}
	return clone
}
