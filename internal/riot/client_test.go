package riot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tft-collector/tftcollector/internal/httpclient"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := &Client{
		http:          httpclient.New(httpclient.DefaultLimits(), httpclient.RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond, MinDelay: time.Millisecond, MaxRateLimitDelay: 10 * time.Millisecond, ExponentialBase: 2}, 2*time.Second, nil),
		apiKey:        "test-key",
		platformBase:  srv.URL,
		continentBase: srv.URL,
	}
	return c, srv
}

func TestGetMatch_Success(t *testing.T) {
	want := MatchResponse{
		Metadata: MatchMetadata{MatchID: "NA1_123"},
		Info:     MatchInfo{GameDatetime: 1000, Participants: []MatchParticipant{{PUUID: "p1", Placement: 1}}},
	}
	c, srv := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Riot-Token") != "test-key" {
			t.Errorf("missing api key header")
		}
		json.NewEncoder(w).Encode(want)
	})
	defer srv.Close()
	c.http = httpclient.New(httpclient.DefaultLimits(), httpclient.DefaultRetryPolicy(), 2*time.Second, nil)

	got, err := c.GetMatch(context.Background(), "NA1_123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Metadata.MatchID != want.Metadata.MatchID {
		t.Errorf("match id = %q, want %q", got.Metadata.MatchID, want.Metadata.MatchID)
	}
}

func TestGetMatch_NotFound(t *testing.T) {
	c, srv := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer srv.Close()

	_, err := c.GetMatch(context.Background(), "NA1_missing")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestMatrix_ApexFirstThenDivided(t *testing.T) {
	matrix := Matrix(nil)
	if len(matrix) != 3+6*4 {
		t.Fatalf("matrix length = %d, want %d", len(matrix), 3+6*4)
	}
	for i, tier := range ApexTiers {
		if matrix[i].Tier != tier || matrix[i].Division != "" {
			t.Errorf("matrix[%d] = %+v, want apex tier %s", i, matrix[i], tier)
		}
	}
}

func TestResumeFrom(t *testing.T) {
	matrix := Matrix(nil)
	cursor := Bucket{Tier: TierGold, Division: DivisionII}.String()
	resumed := ResumeFrom(matrix, cursor)
	if resumed[0].String() != cursor {
		t.Fatalf("resumed[0] = %s, want %s", resumed[0].String(), cursor)
	}
}
