package model

import (
	"time"
)

// Credential is one row of the per-location ezyVet credential store.
// AccessToken and AccessTokenCreateTime are the only fields the client
// mutates; SystemTime is the database clock observed at read time and is
// the reference for all token-age checks.
type Credential struct {
	LocationID            int64      `db:"location_id"`
	PartnerID             string     `db:"partner_id"`
	ClientID              string     `db:"client_id"`
	ClientSecret          string     `db:"client_secret"`
	AccessToken           *string    `db:"access_token"`
	AccessTokenCreateTime *time.Time `db:"access_token_create_time"`
	SystemTime            time.Time  `db:"system_time"`
}

// HasToken reports whether a bearer token is cached at all.
func (c *Credential) HasToken() bool {
	return c.AccessToken != nil && *c.AccessToken != ""
}

// TokenExpired reports whether the cached token is older than ttl,
// measured against the server-observed clock.
func (c *Credential) TokenExpired(ttl time.Duration) bool {
	if !c.HasToken() || c.AccessTokenCreateTime == nil {
		return true
	}
	threshold := c.SystemTime.Add(-ttl)
	return threshold.After(*c.AccessTokenCreateTime)
}
