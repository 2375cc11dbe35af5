package riot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tft-collector/tftcollector/internal/httpclient"
	"github.com/tft-collector/tftcollector/internal/identity"
)

// platformHosts maps a lowercase platform routing value to its API host,
// following Riot's own platform-host casing convention (platform codes
// lowercase, e.g. "na1"; continental routing values uppercase, e.g.
// "AMERICAS"). Resolving the Open Question on region casing, per DESIGN.md.
var platformHosts = map[string]string{
	"na1": "na1.api.riotgames.com",
	"euw1": "euw1.api.riotgames.com",
	"eun1": "eun1.api.riotgames.com",
	"kr":  "kr.api.riotgames.com",
	"br1": "br1.api.riotgames.com",
	"jp1": "jp1.api.riotgames.com",
	"oc1": "oc1.api.riotgames.com",
	"tr1": "tr1.api.riotgames.com",
	"ru":  "ru.api.riotgames.com",
	"la1": "la1.api.riotgames.com",
	"la2": "la2.api.riotgames.com",
}

// continentalHosts maps an uppercase continental routing value to its
// account-v1 API host.
var continentalHosts = map[string]string{
	"AMERICAS": "americas.api.riotgames.com",
	"ASIA":     "asia.api.riotgames.com",
	"EUROPE":   "europe.api.riotgames.com",
}

// PlatformFor resolves a platform routing value to its API base URL, and
// ok=false if the value is not a recognized platform.
func PlatformFor(platform string) (string, bool) {
	host, ok := platformHosts[strings.ToLower(platform)]
	if !ok {
		return "", false
	}
	return "https://" + host, true
}

// ContinentFor resolves a continental routing value to its API base URL.
func ContinentFor(continent string) (string, bool) {
	host, ok := continentalHosts[strings.ToUpper(continent)]
	if !ok {
		return "", false
	}
	return "https://" + host, true
}

// Client is the TFT-domain Riot API client. It wraps a shared
// httpclient.Client with the endpoint construction and header injection the
// Collection Engine needs, following the constructor shape of the teacher's
// riot.Client while delegating rate limiting and response classification to
// the standalone httpclient package.
type Client struct {
	http         *httpclient.Client
	apiKey       string
	platformBase string
	continentBase string
}

// New constructs a Client bound to a platform base URL (e.g.
// "https://na1.api.riotgames.com") and a continental base URL (e.g.
// "https://americas.api.riotgames.com"), as returned by PlatformFor and
// ContinentFor.
func New(apiKey, platformBase, continentBase string, limits httpclient.Limits, retry httpclient.RetryPolicy, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		http:          httpclient.New(limits, retry, timeout, logger),
		apiKey:        apiKey,
		platformBase:  platformBase,
		continentBase: continentBase,
	}
}

func (c *Client) header() http.Header {
	h := make(http.Header)
	h.Set("X-Riot-Token", c.apiKey)
	return h
}

// GetAccountByRiotID resolves a Riot ID to a puuid via ACCOUNT-V1, on the
// continental host.
func (c *Client) GetAccountByRiotID(ctx context.Context, gameName, tagLine string) (*AccountResponse, error) {
	gameName = identity.NormalizeRiotID(gameName)
	url := fmt.Sprintf("%s/riot/account/v1/accounts/by-riot-id/%s/%s", c.continentBase, gameName, tagLine)
	var account AccountResponse
	if err := c.http.Do(ctx, url, c.header(), &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// GetApexLeague fetches one of the flat apex leagues (challenger,
// grandmaster, master) via TFT-LEAGUE-V1.
func (c *Client) GetApexLeague(ctx context.Context, tier Tier) (*LeagueListResponse, error) {
	endpoint := strings.ToLower(string(tier))
	url := fmt.Sprintf("%s/tft/league/v1/%s", c.platformBase, endpoint)
	var out LeagueListResponse
	if err := c.http.Do(ctx, url, c.header(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetLeagueEntries fetches one tier/division page of league entries via
// TFT-LEAGUE-V1, for non-apex tiers.
func (c *Client) GetLeagueEntries(ctx context.Context, tier Tier, division Division, page int) ([]LeagueEntry, error) {
	url := fmt.Sprintf("%s/tft/league/v1/entries/%s/%s?page=%d", c.platformBase, tier, division, page)
	var entries []LeagueEntry
	if err := c.http.Do(ctx, url, c.header(), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetMatchHistory fetches match-IDs for a puuid within [startTime, endTime)
// (epoch seconds), via TFT-MATCH-V1, on the continental host.
func (c *Client) GetMatchHistory(ctx context.Context, puuid string, startTime, endTime int64, count int) ([]string, error) {
	url := fmt.Sprintf("%s/tft/match/v1/matches/by-puuid/%s/ids?startTime=%d&endTime=%d&count=%d",
		c.continentBase, puuid, startTime, endTime, count)
	var ids []string
	if err := c.http.Do(ctx, url, c.header(), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// GetMatch fetches match details via TFT-MATCH-V1, on the continental host.
func (c *Client) GetMatch(ctx context.Context, matchID string) (*MatchResponse, error) {
	url := fmt.Sprintf("%s/tft/match/v1/matches/%s", c.continentBase, matchID)
	var match MatchResponse
	if err := c.http.Do(ctx, url, c.header(), &match); err != nil {
		return nil, err
	}
	return &match, nil
}
