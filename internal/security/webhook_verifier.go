package security

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

// ErrInvalidSignature means the payload must not be processed as
// trusted. Callers respond with a client error and stop.
var ErrInvalidSignature = errors.New("webhook signature verification failed")

const DefaultTolerance = 5 * time.Minute

// WebhookVerifier authenticates inbound provider events against the
// shared endpoint secret. The scheme is the provider's v1 format: the
// signature header carries "t=<unix>,v1=<hex>" where the hex value is
// HMAC-SHA256(secret, "<unix>.<raw body>").
//
// Verification must run on the unmodified transport bytes. Any
// middleware that re-encodes or normalizes the body upstream of this
// check will make valid signatures fail.
type WebhookVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

func NewWebhookVerifier(secret string, tolerance time.Duration) *WebhookVerifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &WebhookVerifier{
		secret:    []byte(secret),
		tolerance: tolerance,
		now:       time.Now,
	}
}

// Verify reconstructs the signature over payload and compares it with
// every v1 candidate in the header (the provider sends more than one
// during secret rotation).
func (v *WebhookVerifier) Verify(payload []byte, header string) error {
	ts, candidates, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	if d := v.now().Sub(time.Unix(ts, 0)); d > v.tolerance || d < -v.tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	expected := computeSignature(ts, payload, v.secret)
	for _, sig := range candidates {
		if hmac.Equal(sig, expected) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// Sign produces a header that Verify accepts. Used by tests and by the
// local webhook replay tooling.
func (v *WebhookVerifier) Sign(at time.Time, payload []byte) string {
	sig := computeSignature(at.Unix(), payload, v.secret)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(sig))
}

func computeSignature(ts int64, payload, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

func parseSignatureHeader(header string) (ts int64, candidates [][]byte, err error) {
	if header == "" {
		return 0, nil, fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
	}
	sawTimestamp := false
	for _, part := range strings.Split(header, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err = strconv.ParseInt(val, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
			}
			sawTimestamp = true
		case "v1":
			sig, err := hex.DecodeString(val)
			if err != nil {
				// Skip garbage candidates; another v1 entry may still match.
				continue
			}
			candidates = append(candidates, sig)
		default:
			// Unknown schemes (v0, future versions) are ignored.
		}
	}
	if !sawTimestamp {
		return 0, nil, fmt.Errorf("%w: no timestamp in header", ErrInvalidSignature)
	}
	if len(candidates) == 0 {
		return 0, nil, fmt.Errorf("%w: no v1 signature in header", ErrInvalidSignature)
	}
	return ts, candidates, nil
}
