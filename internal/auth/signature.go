// Package auth verifies inbound webhook signatures and issues/parses the
// bearer tokens that guard the admin API.
//
// Webhook requests are signed with HMAC-SHA256 over "v0:<ts>:<body>" using
// the tenant's signing secret. Every configured tenant is tried in order; the
// first secret that reproduces the supplied signature identifies the tenant.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrAuthentication is the umbrella error for every rejected request.
	ErrAuthentication = errors.New("authentication failed")
	// ErrStaleTimestamp: |now - ts| exceeds the tolerance.
	ErrStaleTimestamp = errors.New("stale timestamp")
	// ErrBadSignature: no configured secret reproduces the signature.
	ErrBadSignature = errors.New("signature mismatch")
	// ErrMalformed: missing headers or unparsable timestamp.
	ErrMalformed = errors.New("malformed signature headers")
)

// DefaultTolerance is the replay window enforced when none is configured.
const DefaultTolerance = 300 * time.Second

const versionPrefix = "v0"

// Secret binds a tenant id to its signing secret.
type Secret struct {
	Tenant string
	Key    string
}

// Verifier checks Slack-style request signatures against a fixed set of
// tenant secrets. It holds no mutable state and is safe for concurrent use.
type Verifier struct {
	secrets   []Secret
	tolerance time.Duration
}

// NewVerifier returns a Verifier over the given secrets. A non-positive
// tolerance selects DefaultTolerance.
func NewVerifier(secrets []Secret, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	cp := make([]Secret, 0, len(secrets))
	for _, s := range secrets {
		if s.Key != "" {
			cp = append(cp, s)
		}
	}
	return &Verifier{secrets: cp, tolerance: tolerance}
}

// Verify authenticates body against the timestamp and signature headers and
// returns the matching tenant id. Stale timestamps are rejected before any
// HMAC is computed.
func (v *Verifier) Verify(body []byte, timestamp, signature string, now time.Time) (string, error) {
	timestamp = strings.TrimSpace(timestamp)
	signature = strings.TrimSpace(signature)
	if timestamp == "" || signature == "" {
		return "", fmt.Errorf("%w: %w", ErrAuthentication, ErrMalformed)
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthentication, ErrMalformed)
	}

	skew := now.Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.tolerance {
		return "", fmt.Errorf("%w: %w", ErrAuthentication, ErrStaleTimestamp)
	}

	hexSig, ok := strings.CutPrefix(signature, versionPrefix+"=")
	if !ok {
		return "", fmt.Errorf("%w: %w", ErrAuthentication, ErrBadSignature)
	}
	got, err := hex.DecodeString(hexSig)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthentication, ErrBadSignature)
	}

	for _, s := range v.secrets {
		if hmac.Equal(got, mac(s.Key, timestamp, body)) {
			return s.Tenant, nil
		}
	}
	return "", fmt.Errorf("%w: %w", ErrAuthentication, ErrBadSignature)
}

// Sign produces the "v0=<hex>" header value for body.
func Sign(secret, timestamp string, body []byte) string {
	return versionPrefix + "=" + hex.EncodeToString(mac(secret, timestamp, body))
}

func mac(secret, timestamp string, body []byte) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(versionPrefix + ":" + timestamp + ":"))
	h.Write(body)
	return h.Sum(nil)
}
