// Package auth implements bearer-token verification for the northbound
// API.
//
// Tokens are JWTs signed with HS256 (shared secret) or RS256 (PEM public
// key). Claims carry a subject, roles, and scopes; scopes gate the
// individual routes (read for queries and telemetry, control for anything
// that touches the transceiver).
package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Role constants.
const (
	RoleViewer     = "viewer"
	RoleController = "controller"
)

// Scope constants.
const (
	ScopeRead    = "read"
	ScopeControl = "control"
)

// Claims represents the parsed token claims.
type Claims struct {
	Subject string   `json:"sub"`
	Roles   []string `json:"roles"`
	Scopes  []string `json:"scopes"`
}

// HasScope reports whether the claims carry the given scope.
func (c *Claims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// VerifierConfig holds the key material. At least one of SecretKey and
// PublicKeyPEM must be set; when both are set the token's alg header
// selects the key.
type VerifierConfig struct {
	// SecretKey enables HS256 verification.
	SecretKey string

	// PublicKeyPEM enables RS256 verification.
	PublicKeyPEM string
}

// Verifier verifies JWT bearer tokens.
type Verifier struct {
	secret    []byte
	publicKey *rsa.PublicKey
}

// NewVerifier creates a verifier from the configured key material.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if cfg.SecretKey == "" && cfg.PublicKeyPEM == "" {
		return nil, fmt.Errorf("no verification key configured")
	}

	v := &Verifier{}
	if cfg.SecretKey != "" {
		v.secret = []byte(cfg.SecretKey)
	}
	if cfg.PublicKeyPEM != "" {
		key, err := parseRSAPublicKey(cfg.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("load public key: %w", err)
		}
		v.publicKey = key
	}
	return v, nil
}

// VerifyToken verifies a JWT and returns its claims.
func (v *Verifier) VerifyToken(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.MapClaims{}, v.keyFor)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	mapClaims, ok := token.Claims.(*jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	return extractClaims(mapClaims)
}

// keyFor selects the verification key by the token's signing algorithm.
func (v *Verifier) keyFor(token *jwt.Token) (interface{}, error) {
	switch token.Method.Alg() {
	case "HS256":
		if v.secret == nil {
			return nil, fmt.Errorf("HS256 not configured")
		}
		return v.secret, nil
	case "RS256":
		if v.publicKey == nil {
			return nil, fmt.Errorf("RS256 not configured")
		}
		return v.publicKey, nil
	default:
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
}

func extractClaims(claims *jwt.MapClaims) (*Claims, error) {
	sub, ok := (*claims)["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("missing or invalid 'sub' claim")
	}

	roles, err := extractStringSlice(claims, "roles")
	if err != nil {
		return nil, err
	}
	if !validValues(roles, RoleViewer, RoleController) {
		return nil, fmt.Errorf("invalid roles: %v", roles)
	}

	scopes, err := extractStringSlice(claims, "scopes")
	if err != nil {
		return nil, err
	}
	if !validValues(scopes, ScopeRead, ScopeControl) {
		return nil, fmt.Errorf("invalid scopes: %v", scopes)
	}

	return &Claims{Subject: sub, Roles: roles, Scopes: scopes}, nil
}

func extractStringSlice(claims *jwt.MapClaims, key string) ([]string, error) {
	value, ok := (*claims)[key]
	if !ok {
		return nil, fmt.Errorf("missing claim: %s", key)
	}

	items, ok := value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid %s claim: not a string array", key)
	}
	result := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("invalid %s claim: not a string", key)
		}
		result[i] = s
	}
	return result, nil
}

func validValues(values []string, allowed ...string) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		found := false
		for _, a := range allowed {
			if v == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func parseRSAPublicKey(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA public key")
	}
	return rsaPub, nil
}
