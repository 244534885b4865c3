// Copyright 2025 Certen Protocol

package policy

import (
	"time"

	"github.com/sandhi-labs/aapi-vac/pkg/envelope"
)

// EvaluationContext is the full set of facts an Engine evaluates a
// request against: the envelope itself plus request metadata the
// gateway gathered out of band (source IP, geography, session, custom
// attributes).
type EvaluationContext struct {
	Envelope    *envelope.Envelope
	Timestamp   time.Time
	SourceIP    string
	Geo         *GeoContext
	Session     *SessionContext
	Environment string
	Attributes  map[string]any
}

// NewEvaluationContext wraps env with a context defaulting to the
// "production" environment and the current time.
func NewEvaluationContext(env *envelope.Envelope) *EvaluationContext {
	return &EvaluationContext{
		Envelope:    env,
		Timestamp:   time.Now().UTC(),
		Environment: "production",
		Attributes:  map[string]any{},
	}
}

func (c *EvaluationContext) WithSourceIP(ip string) *EvaluationContext { c.SourceIP = ip; return c }

func (c *EvaluationContext) WithGeo(geo GeoContext) *EvaluationContext { c.Geo = &geo; return c }

func (c *EvaluationContext) WithSession(s SessionContext) *EvaluationContext { c.Session = &s; return c }

func (c *EvaluationContext) WithEnvironment(env string) *EvaluationContext {
	c.Environment = env
	return c
}

func (c *EvaluationContext) WithAttribute(key string, value any) *EvaluationContext {
	c.Attributes[key] = value
	return c
}

// Actor returns the acting principal's id.
func (c *EvaluationContext) Actor() envelope.PrincipalID { return c.Envelope.Actor.PrincipalID }

// Action returns the dotted action name.
func (c *EvaluationContext) Action() string { return c.Envelope.Action.Name }

// Resource returns the target resource id.
func (c *EvaluationContext) Resource() envelope.ResourceID { return c.Envelope.Resource.ID }

// GetAttribute looks up a custom attribute.
func (c *EvaluationContext) GetAttribute(key string) (any, bool) {
	v, ok := c.Attributes[key]
	return v, ok
}

// IsProduction reports whether Environment is "production".
func (c *EvaluationContext) IsProduction() bool { return c.Environment == "production" }

// GeoContext is the resolved geographic origin of a request.
type GeoContext struct {
	Country   string
	Region    string
	City      string
	Latitude  *float64
	Longitude *float64
	Timezone  string
}

func NewGeoContext() GeoContext { return GeoContext{} }

func (g GeoContext) WithCountry(c string) GeoContext { g.Country = c; return g }
func (g GeoContext) WithRegion(r string) GeoContext  { g.Region = r; return g }
func (g GeoContext) WithCity(c string) GeoContext    { g.City = c; return g }

func (g GeoContext) WithCoordinates(lat, lon float64) GeoContext {
	g.Latitude = &lat
	g.Longitude = &lon
	return g
}

func (g GeoContext) WithTimezone(tz string) GeoContext { g.Timezone = tz; return g }

// SessionContext is the authenticated session a request was made under.
type SessionContext struct {
	SessionID    string
	StartedAt    time.Time
	LastActivity time.Time
	AuthMethod   string
	MFAVerified  bool
	Attributes   map[string]any
}

// NewSessionContext starts a session whose start and last-activity times
// are now.
func NewSessionContext(sessionID string) SessionContext {
	now := time.Now().UTC()
	return SessionContext{SessionID: sessionID, StartedAt: now, LastActivity: now, Attributes: map[string]any{}}
}

func (s SessionContext) WithAuthMethod(method string) SessionContext { s.AuthMethod = method; return s }

func (s SessionContext) WithMFA() SessionContext { s.MFAVerified = true; return s }

// DurationSecs is how long the session has existed.
func (s SessionContext) DurationSecs() int64 { return int64(time.Since(s.StartedAt).Seconds()) }

// IdleSecs is how long since the session's last recorded activity.
func (s SessionContext) IdleSecs() int64 { return int64(time.Since(s.LastActivity).Seconds()) }

// RateLimitContext tracks request counts within a sliding window for the
// rate_limit obligation and condition attribute.
type RateLimitContext struct {
	Key         string
	Count       uint64
	WindowStart time.Time
	WindowSecs  uint64
	Limit       uint64
}

// NewRateLimitContext starts a fresh window now.
func NewRateLimitContext(key string, limit, windowSecs uint64) RateLimitContext {
	return RateLimitContext{Key: key, WindowStart: time.Now().UTC(), WindowSecs: windowSecs, Limit: limit}
}

// IsExceeded reports whether Count has reached Limit.
func (r RateLimitContext) IsExceeded() bool { return r.Count >= r.Limit }

// Remaining is how many requests are left in the current window.
func (r RateLimitContext) Remaining() uint64 {
	if r.Count >= r.Limit {
		return 0
	}
	return r.Limit - r.Count
}

// ResetInSecs is the time remaining until the window resets.
func (r RateLimitContext) ResetInSecs() int64 {
	elapsed := int64(time.Since(r.WindowStart).Seconds())
	return int64(r.WindowSecs) - elapsed
}
