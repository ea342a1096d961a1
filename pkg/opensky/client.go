// Package opensky provides a client for the OpenSky Network live-state API.
//
// The /states/all endpoint returns an array of fixed-order positional tuples;
// this client decodes them into StateVector values and handles the OAuth2
// client-credentials session, including the refresh-once-on-401 contract used
// by the gateway's fetch cycle.
//
// API documentation: https://openskynetwork.github.io/opensky-api/rest.html
package opensky

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/unklstewy/skyfence/pkg/geo"
)

const (
	// DefaultAPIURL is the OpenSky REST API base URL
	DefaultAPIURL = "https://opensky-network.org/api"

	// DefaultTokenURL is the OpenSky OAuth2 token endpoint
	DefaultTokenURL = "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token"

	// DefaultTimeout for API requests
	DefaultTimeout = 15 * time.Second
)

// StateVector is one raw positional report from the upstream feed.
// Transient; never persisted.
type StateVector struct {
	// ICAO24 is the unique 24-bit transponder address, lowercase hex
	ICAO24 string

	// Callsign is the flight number or registration (trimmed; may be empty)
	Callsign string

	// OriginCountry is the country of registration
	OriginCountry string

	// Latitude and Longitude in decimal degrees (WGS84)
	Latitude  float64
	Longitude float64

	// BaroAltitude is barometric altitude in meters
	BaroAltitude float64

	// OnGround reports whether the position came from a surface report
	OnGround bool

	// Velocity is ground speed in m/s
	Velocity float64

	// TrueTrack is the heading in compass degrees (0 = north, 90 = east)
	TrueTrack float64

	// VerticalRate in m/s (positive = climbing)
	VerticalRate float64
}

// Config contains configuration for the OpenSky client.
type Config struct {
	APIURL       string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client fetches live state vectors from the OpenSky API.
type Client struct {
	apiURL     string
	httpClient *http.Client
	broker     *TokenBroker
}

// NewClient creates an OpenSky client. Zero-value config fields fall back to
// the production endpoints and the default timeout.
func NewClient(cfg Config) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		apiURL: cfg.APIURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		broker: NewTokenBroker(cfg.TokenURL, cfg.ClientID, cfg.ClientSecret),
	}
}

// statesResponse matches the /states/all payload: a timestamp plus an array
// of fixed-order tuples.
type statesResponse struct {
	Time   int64   `json:"time"`
	States [][]any `json:"states"`
}

// Tuple indices per the OpenSky REST documentation.
const (
	idxICAO24        = 0
	idxCallsign      = 1
	idxOriginCountry = 2
	idxLongitude     = 5
	idxLatitude      = 6
	idxBaroAltitude  = 7
	idxOnGround      = 8
	idxVelocity      = 9
	idxTrueTrack     = 10
	idxVerticalRate  = 11
)

// FetchStates returns the current state vectors, optionally restricted to a
// bounding box. Reports without a position are skipped. A box that crosses
// the antimeridian cannot be expressed as an upstream bbox query, so the full
// feed is requested and filtering is left to the caller.
//
// On a 401 the cached token is invalidated and a fresh grant attempted
// exactly once; a second 401 returns an AuthError without further retries.
func (c *Client) FetchStates(ctx context.Context, bounds *geo.Bounds) ([]StateVector, error) {
	states, err := c.fetchOnce(ctx, bounds)
	if uerr, ok := err.(*UpstreamError); ok && uerr.StatusCode == http.StatusUnauthorized {
		c.broker.Invalidate()
		states, err = c.fetchOnce(ctx, bounds)
		if uerr, ok := err.(*UpstreamError); ok && uerr.StatusCode == http.StatusUnauthorized {
			return nil, &AuthError{Op: "states fetch", Err: uerr}
		}
	}
	return states, err
}

func (c *Client) fetchOnce(ctx context.Context, bounds *geo.Bounds) ([]StateVector, error) {
	token, err := c.broker.Token(ctx)
	if err != nil {
		return nil, err
	}

	u := c.apiURL + "/states/all"
	if bounds != nil && bounds.West <= bounds.East {
		q := url.Values{}
		q.Set("lamin", fmt.Sprintf("%.4f", bounds.South))
		q.Set("lamax", fmt.Sprintf("%.4f", bounds.North))
		q.Set("lomin", fmt.Sprintf("%.4f", bounds.West))
		q.Set("lomax", fmt.Sprintf("%.4f", bounds.East))
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	var payload statesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &UpstreamError{Message: fmt.Sprintf("parse response: %v", err)}
	}

	states := make([]StateVector, 0, len(payload.States))
	for _, tuple := range payload.States {
		sv, ok := decodeTuple(tuple)
		if !ok {
			continue
		}
		states = append(states, sv)
	}
	return states, nil
}

// decodeTuple converts one fixed-order tuple into a StateVector.
// Returns false for tuples that are too short or lack a position.
func decodeTuple(tuple []any) (StateVector, bool) {
	if len(tuple) <= idxVerticalRate {
		return StateVector{}, false
	}

	lon, lonOK := tupleFloat(tuple[idxLongitude])
	lat, latOK := tupleFloat(tuple[idxLatitude])
	if !lonOK || !latOK {
		return StateVector{}, false
	}

	sv := StateVector{
		ICAO24:        strings.ToLower(tupleString(tuple[idxICAO24])),
		Callsign:      strings.TrimSpace(tupleString(tuple[idxCallsign])),
		OriginCountry: tupleString(tuple[idxOriginCountry]),
		Longitude:     lon,
		Latitude:      lat,
		OnGround:      tupleBool(tuple[idxOnGround]),
	}
	sv.BaroAltitude, _ = tupleFloat(tuple[idxBaroAltitude])
	sv.Velocity, _ = tupleFloat(tuple[idxVelocity])
	sv.TrueTrack, _ = tupleFloat(tuple[idxTrueTrack])
	sv.VerticalRate, _ = tupleFloat(tuple[idxVerticalRate])
	return sv, true
}

func tupleString(v any) string {
	s, _ := v.(string)
	return s
}

func tupleFloat(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func tupleBool(v any) bool {
	b, _ := v.(bool)
	return b
}
