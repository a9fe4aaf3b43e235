// Package token mints and verifies the two HMAC-signed bearer tokens
// described in spec section 4.E: a session token for the gateway's own
// API and a broker token handed to the realtime broker so it can
// authenticate the client's WebSocket session. Grounded on
// internal/auth/jwt.go's use of golang-jwt/jwt/v5; golang-jwt already
// emits the literal {"alg":"HS256","typ":"JWT"} header spec section 9
// requires, so no hand-rolled encoding is needed.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers any parse/verify failure: bad signature, wrong
// algorithm, expired, or malformed claims.
var ErrInvalidToken = errors.New("token: invalid or expired")

// SessionClaims is what the gateway's own session token carries.
type SessionClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name"`
}

// BrokerInfo is the display-name payload nested in the broker token.
type BrokerInfo struct {
	Name string `json:"name"`
}

// BrokerClaims is what the broker token carries.
type BrokerClaims struct {
	jwt.RegisteredClaims
	Info BrokerInfo `json:"info"`
}

// Issuer mints and verifies both token kinds. The two secrets are
// independent so rotating one never invalidates the other (spec section 3).
type Issuer struct {
	sessionSecret []byte
	brokerSecret  []byte
	ttl           time.Duration
}

// NewIssuer builds an Issuer. ttl is used as given: neither NewIssuer nor
// config.LoadCallback (which defaults it to 1h) clamps it to a range.
func NewIssuer(sessionSecret, brokerSecret string, ttl time.Duration) *Issuer {
	return &Issuer{
		sessionSecret: []byte(sessionSecret),
		brokerSecret:  []byte(brokerSecret),
		ttl:           ttl,
	}
}

// IssueSessionToken mints {sub, name, iat, exp, jti} signed with the
// session secret.
func (i *Issuer) IssueSessionToken(userID, name string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.New().String(),
		},
		Name: name,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.sessionSecret)
	if err != nil {
		return "", fmt.Errorf("token: sign session token: %w", err)
	}
	return signed, nil
}

// IssueBrokerToken mints {sub, info:{name}, exp} signed with the broker
// secret.
func (i *Issuer) IssueBrokerToken(userID, name string) (string, error) {
	now := time.Now()
	claims := BrokerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Info: BrokerInfo{Name: name},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.brokerSecret)
	if err != nil {
		return "", fmt.Errorf("token: sign broker token: %w", err)
	}
	return signed, nil
}

// ParseSessionToken verifies a session token and returns its claims.
func (i *Issuer) ParseSessionToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.sessionSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseBrokerToken verifies a broker token and returns its claims. The
// gateway itself never needs to do this in production (the broker owns
// verification per spec section 1's non-goals); it exists so the
// round-trip property in spec section 8 is directly testable.
func (i *Issuer) ParseBrokerToken(tokenString string) (*BrokerClaims, error) {
	claims := &BrokerClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.brokerSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
