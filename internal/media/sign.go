package media

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Redemption faults. Handlers map both to 403 with a generic message —
// no detail beyond forbidden/expired may leak.
var (
	ErrExpired      = errors.New("media: capability expired")
	ErrBadSignature = errors.New("media: bad capability signature")
)

// DefaultStreamTTL is the playback capability lifetime when none is
// configured.
const DefaultStreamTTL = 900 * time.Second

// Signer issues and verifies playback capabilities. A capability is
// entirely self-describing: the signature binds the resource id and
// expiry, so neither can be altered without invalidating it, and no
// server-side state is kept. There is no revocation — the short TTL is
// the only mitigation.
type Signer struct {
	key []byte
	ttl time.Duration

	// now is the clock; tests substitute a fake.
	now func() time.Time
}

// NewSigner creates a Signer with the given secret and TTL.
// ttl <= 0 selects DefaultStreamTTL.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = DefaultStreamTTL
	}

	return &Signer{
		key: []byte(secret),
		ttl: ttl,
		now: time.Now,
	}
}

// Issue returns the expiry timestamp and hex signature for a resource.
func (s *Signer) Issue(resourceID string) (exp int64, sig string) {
	exp = s.now().Add(s.ttl).Unix()

	return exp, s.sign(resourceID, exp)
}

// Verify checks a presented capability. The expiry is validated before
// the signature; signature comparison is constant-time so mismatches
// leak no timing information about the secret.
func (s *Signer) Verify(resourceID, expParam, sig string) error {
	exp, err := strconv.ParseInt(expParam, 10, 64)
	if err != nil || exp <= 0 {
		return ErrExpired
	}

	if exp < s.now().Unix() {
		return ErrExpired
	}

	expected := s.sign(resourceID, exp)
	if sig == "" || !hmac.Equal([]byte(sig), []byte(expected)) {
		return ErrBadSignature
	}

	return nil
}

// sign computes hex(HMAC-SHA256(key, "{resourceID}:{exp}")).
func (s *Signer) sign(resourceID string, exp int64) string {
	mac := hmac.New(sha256.New, s.key)
	fmt.Fprintf(mac, "%s:%d", resourceID, exp)

	return hex.EncodeToString(mac.Sum(nil))
}
