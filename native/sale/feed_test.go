package sale

import (
	"bytes"
	"io"
	"math/big"
	"net/http"
	"testing"
)

type stubDoer struct {
	status int
	body   string
	err    error
}

func (s *stubDoer) Do(req *http.Request) (*http.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &http.Response{
		StatusCode: s.status,
		Body:       io.NopCloser(bytes.NewReader([]byte(s.body))),
	}, nil
}

func TestStaticFeedRoundIsolation(t *testing.T) {
	feed := NewStaticFeed(big.NewInt(250_000_000_000), 1_700_000_000)
	round, err := feed.LatestRoundData()
	if err != nil {
		t.Fatalf("latest round: %v", err)
	}
	round.Answer.SetInt64(-1)

	again, err := feed.LatestRoundData()
	if err != nil {
		t.Fatalf("latest round: %v", err)
	}
	if again.Answer.Cmp(big.NewInt(250_000_000_000)) != 0 {
		t.Fatalf("stored round mutated: %s", again.Answer)
	}
}

func TestHTTPFeedDecodesRound(t *testing.T) {
	doer := &stubDoer{
		status: http.StatusOK,
		body:   `{"roundId":"7","answer":"250000000000","startedAt":1700000000,"updatedAt":1700000100,"answeredInRound":"7"}`,
	}
	feed, err := NewHTTPFeed(doer, "http://oracle.local/round")
	if err != nil {
		t.Fatalf("new feed: %v", err)
	}
	round, err := feed.LatestRoundData()
	if err != nil {
		t.Fatalf("latest round: %v", err)
	}
	if round.Answer.Cmp(big.NewInt(250_000_000_000)) != 0 {
		t.Fatalf("answer = %s", round.Answer)
	}
	if round.UpdatedAt != 1_700_000_100 {
		t.Fatalf("updatedAt = %d", round.UpdatedAt)
	}
	if round.RoundID == nil || round.RoundID.Int64() != 7 {
		t.Fatalf("roundId = %v", round.RoundID)
	}
}

func TestHTTPFeedRejectsBadResponses(t *testing.T) {
	feed, err := NewHTTPFeed(&stubDoer{status: http.StatusServiceUnavailable, body: "{}"}, "http://oracle.local/round")
	if err != nil {
		t.Fatalf("new feed: %v", err)
	}
	if _, err := feed.LatestRoundData(); err == nil {
		t.Fatal("expected error for 503 response")
	}

	feed, err = NewHTTPFeed(&stubDoer{status: http.StatusOK, body: `{"answer":"not-a-number"}`}, "http://oracle.local/round")
	if err != nil {
		t.Fatalf("new feed: %v", err)
	}
	if _, err := feed.LatestRoundData(); err == nil {
		t.Fatal("expected error for malformed answer")
	}

	if _, err := NewHTTPFeed(nil, "   "); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
}
