// Package tma verifies Telegram Mini App init data, the signed payload carried
// by the TON identity transport.
//
// The bot token never signs payloads directly. A per-deployment key is derived
// as HMAC-SHA256(key="WebAppData", msg=botToken), and the payload hash is
// HMAC-SHA256 of the sorted data-check string under that key.
package tma

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	domainSeparator = "WebAppData"

	// DefaultMaxAge is the replay window for auth_date.
	DefaultMaxAge = 24 * time.Hour

	// MaxClockSkew is how far auth_date may lie ahead of the local clock.
	MaxClockSkew = 5 * time.Minute

	fieldHash     = "hash"
	fieldAuthDate = "auth_date"
	fieldUser     = "user"
)

var (
	ErrMalformed         = errors.New("init data is malformed")
	ErrMissingHash       = errors.New("init data hash is missing")
	ErrStale             = errors.New("init data is older than the freshness window")
	ErrSignatureMismatch = errors.New("init data signature mismatch")
	ErrMalformedUserData = errors.New("init data user field is malformed")
)

// Verifier checks init data signatures for one bot token.
type Verifier struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithClock overrides the time source used for the freshness check.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithMaxAge overrides DefaultMaxAge.
func WithMaxAge(maxAge time.Duration) Option {
	return func(v *Verifier) {
		if maxAge > 0 {
			v.maxAge = maxAge
		}
	}
}

// NewVerifier derives the signing key for botToken.
func NewVerifier(botToken string, opts ...Option) (*Verifier, error) {
	botToken = strings.TrimSpace(botToken)
	if botToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	v := &Verifier{
		secret: deriveSecret(botToken),
		maxAge: DefaultMaxAge,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify checks raw and returns the embedded subject id. The subject id is
// only read after the signature has been confirmed.
func (v *Verifier) Verify(raw string) (string, error) {
	fields, err := parseFields(raw)
	if err != nil {
		return "", err
	}

	claimed, ok := fields[fieldHash]
	if !ok || claimed == "" {
		return "", ErrMissingHash
	}
	delete(fields, fieldHash)

	authDate, err := strconv.ParseInt(fields[fieldAuthDate], 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: auth_date", ErrMalformed)
	}
	age := v.now().Sub(time.Unix(authDate, 0))
	if age > v.maxAge {
		return "", ErrStale
	}
	if age < -MaxClockSkew {
		return "", fmt.Errorf("%w: auth_date is in the future", ErrStale)
	}

	expected := signHex(v.secret, dataCheckString(fields))
	if !hmac.Equal([]byte(expected), []byte(claimed)) {
		return "", ErrSignatureMismatch
	}

	subjectID, err := parseSubjectID(fields[fieldUser])
	if err != nil {
		return "", err
	}
	return subjectID, nil
}

// Sign returns fields encoded as init data with a valid hash for botToken.
// Any existing hash field is replaced.
func Sign(fields url.Values, botToken string) string {
	flat := make(map[string]string, len(fields))
	for key, values := range fields {
		if key == fieldHash || len(values) == 0 {
			continue
		}
		flat[key] = values[0]
	}
	signed := url.Values{}
	for key, value := range flat {
		signed.Set(key, value)
	}
	signed.Set(fieldHash, signHex(deriveSecret(strings.TrimSpace(botToken)), dataCheckString(flat)))
	return signed.Encode()
}

// parseFields decodes the query string, rejecting repeated keys so the signed
// content is never ambiguous.
func parseFields(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformed)
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	fields := make(map[string]string, len(values))
	for key, list := range values {
		if len(list) != 1 {
			return nil, fmt.Errorf("%w: repeated field %q", ErrMalformed, key)
		}
		fields[key] = list[0]
	}
	return fields, nil
}

func dataCheckString(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, key := range keys {
		lines[i] = key + "=" + fields[key]
	}
	return strings.Join(lines, "\n")
}

func deriveSecret(botToken string) []byte {
	mac := hmac.New(sha256.New, []byte(domainSeparator))
	mac.Write([]byte(botToken))
	return mac.Sum(nil)
}

func signHex(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

type userPayload struct {
	ID json.Number `json:"id"`
}

func parseSubjectID(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: user field missing", ErrMalformedUserData)
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var user userPayload
	if err := dec.Decode(&user); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedUserData, err)
	}
	id := user.ID.String()
	if id == "" {
		return "", fmt.Errorf("%w: user id missing", ErrMalformedUserData)
	}
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return "", fmt.Errorf("%w: user id %q is not an integer", ErrMalformedUserData, id)
	}
	return id, nil
}
