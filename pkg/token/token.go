// Package token holds the OAuth token set issued by the vendor identity provider.
//
// A [Set] is immutable once constructed. Code that renews tokens builds a new Set (see
// [FromResponse]) and swaps the pointer, so readers never observe a partially updated set.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/carnet-go/vehicle-command/internal/log"
)

// DefaultSkew is the minimum remaining lifetime a token must have to be used for a request. Tokens
// closer to expiry than this are refreshed proactively.
const DefaultSkew = 5 * time.Minute

var (
	ErrMissingAccessToken = errors.New("token response did not include an access token")
	ErrNoExpiry           = errors.New("could not determine token expiry")
)

// Set is a complete token set. The zero value is not valid.
type Set struct {
	AccessToken  string    `json:"access_token"`
	IDToken      string    `json:"id_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Response is the JSON body returned by the token endpoint for both authorization-code and
// refresh-token grants.
type Response struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Expiry returns the exp claim of a JWT without verifying its signature. The client only uses the
// claim to schedule refreshes; the backend remains responsible for validating tokens.
func Expiry(raw string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, ErrNoExpiry
	}
	return exp.Time, nil
}

// FromResponse builds a new Set from a token endpoint response.
//
// Refresh responses often omit the refresh and id tokens; in that case the values are carried over
// from previous, which may be nil. The expiry is the earliest exp claim of the access and id
// tokens, falling back to now + expires_in when neither token is a decodable JWT.
func FromResponse(rsp *Response, previous *Set, now time.Time) (*Set, error) {
	if rsp == nil || rsp.AccessToken == "" {
		return nil, ErrMissingAccessToken
	}
	set := &Set{
		AccessToken:  rsp.AccessToken,
		IDToken:      rsp.IDToken,
		RefreshToken: rsp.RefreshToken,
		TokenType:    normalizeType(rsp.TokenType),
	}
	if previous != nil {
		if set.RefreshToken == "" {
			set.RefreshToken = previous.RefreshToken
		}
		if set.IDToken == "" {
			set.IDToken = previous.IDToken
		}
	}

	for _, raw := range []string{set.AccessToken, set.IDToken} {
		if raw == "" {
			continue
		}
		exp, err := Expiry(raw)
		if err != nil {
			log.Debug("Could not decode token expiry: %s", err)
			continue
		}
		if set.ExpiresAt.IsZero() || exp.Before(set.ExpiresAt) {
			set.ExpiresAt = exp
		}
	}
	if set.ExpiresAt.IsZero() {
		if rsp.ExpiresIn <= 0 {
			return nil, ErrNoExpiry
		}
		set.ExpiresAt = now.Add(time.Duration(rsp.ExpiresIn) * time.Second)
	}
	return set, nil
}

func normalizeType(tokenType string) string {
	if tokenType == "" || strings.EqualFold(tokenType, "bearer") {
		return "Bearer"
	}
	return tokenType
}

// Valid returns true if the access token will still be valid skew from now.
func (s *Set) Valid(now time.Time, skew time.Duration) bool {
	if s == nil || s.AccessToken == "" {
		return false
	}
	return s.ExpiresAt.After(now.Add(skew))
}

// Remaining returns the lifetime left on the access token.
func (s *Set) Remaining(now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	return s.ExpiresAt.Sub(now)
}

// CanRefresh returns true if s carries a refresh token.
func (s *Set) CanRefresh() bool {
	return s != nil && s.RefreshToken != ""
}

// AuthorizationHeader returns the value of the Authorization header for API requests.
func (s *Set) AuthorizationHeader() string {
	return normalizeType(s.TokenType) + " " + s.AccessToken
}

func (s *Set) String() string {
	if s == nil {
		return "<nil>"
	}
	return fmt.Sprintf("token(%s, expires %s, refreshable=%v)", log.Redact(s.AccessToken), s.ExpiresAt.Format(time.RFC3339), s.CanRefresh())
}
