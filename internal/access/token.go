package access

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"

	"github.com/pkg/errors"
)

// TokenLength is the number of hex characters kept from the digest.
// Links already handed out to drivers depend on it staying 10.
const TokenLength = 10

var ErrAccessDenied = errors.New("access denied")

type Verifier struct {
	salt string
}

func NewVerifier(salt string) *Verifier {
	return &Verifier{salt: salt}
}

// Token returns the access token for orderID: the first TokenLength lowercase
// hex characters of md5(orderID + salt).
func (v *Verifier) Token(orderID string) string {
	sum := md5.Sum([]byte(orderID + v.salt))
	return hex.EncodeToString(sum[:])[:TokenLength]
}

func (v *Verifier) Verify(orderID, token string) bool {
	if orderID == "" || token == "" {
		return false
	}
	expected := v.Token(orderID)
	if len(token) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 1
}
