// Package token issues and verifies the HMAC-signed, one-time-use tokens
// embedded in approval-decision email links (spec §3, §4.9, §6).
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/apcore/internal/domain"
)

var ErrMalformed = errors.New("token: malformed raw token")

// Issued is a freshly-minted token: the raw value goes into the email URL,
// the hash is the only part ever persisted (spec §3's ApprovalToken).
type Issued struct {
	Raw  string
	Hash string
}

// Issue produces a raw token of the form "task_id:action:opaque_uuid" and
// its HMAC-SHA256 hash under secret, exactly as spec §6 defines the wire
// format for an approval email link.
func Issue(secret []byte, taskID uuid.UUID, action domain.DecisionAction) (Issued, error) {
	nonce, err := uuid.NewRandom()
	if err != nil {
		return Issued{}, fmt.Errorf("token: generate nonce: %w", err)
	}
	raw := fmt.Sprintf("%s:%s:%s", taskID, action, nonce)
	return Issued{Raw: raw, Hash: hash(secret, raw)}, nil
}

// Verify recomputes the HMAC of raw under secret and compares it against
// the stored hash using constant-time comparison.
func Verify(secret []byte, raw, storedHash string) bool {
	return hmac.Equal([]byte(hash(secret, raw)), []byte(storedHash))
}

// Hash recomputes the HMAC-SHA256 digest of a raw token, letting a caller
// look a token up by hash without re-deriving it by hand (spec §4.9's
// email-channel decision lookup).
func Hash(secret []byte, raw string) string {
	return hash(secret, raw)
}

func hash(secret []byte, raw string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// Parse splits a raw token into its task ID and action without verifying
// the signature; callers must still call Verify against the stored hash
// for the (task_id, action) pair before trusting the result.
func Parse(raw string) (taskID uuid.UUID, action domain.DecisionAction, err error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 {
		return uuid.UUID{}, "", ErrMalformed
	}
	taskID, err = uuid.Parse(parts[0])
	if err != nil {
		return uuid.UUID{}, "", ErrMalformed
	}
	switch domain.DecisionAction(parts[1]) {
	case domain.ActionApprove, domain.ActionReject:
		action = domain.DecisionAction(parts[1])
	default:
		return uuid.UUID{}, "", ErrMalformed
	}
	return taskID, action, nil
}
