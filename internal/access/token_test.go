package access

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func hash10(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:10]
}

func TestVerifier_Token(t *testing.T) {
	v := NewVerifier("pepper")
	require.Equal(t, hash10("ORD123pepper"), v.Token("ORD123"))
	require.Len(t, v.Token("ORD123"), TokenLength)
	require.Equal(t, strings.ToLower(v.Token("X")), v.Token("X"))
}

func TestVerifier_Verify_roundTrip(t *testing.T) {
	for _, salt := range []string{"", "s", "長一點的鹽"} {
		v := NewVerifier(salt)
		for _, id := range []string{"ORD123", "1", "訂單-77", "a b c"} {
			require.True(t, v.Verify(id, hash10(id+salt)), "salt=%q id=%q", salt, id)
		}
	}
}

func TestVerifier_Verify_rejects(t *testing.T) {
	v := NewVerifier("pepper")
	good := v.Token("ORD123")

	require.False(t, v.Verify("", good))
	require.False(t, v.Verify("ORD123", ""))
	require.False(t, v.Verify("", ""))

	require.False(t, v.Verify("ORD124", good))
	if upper := strings.ToUpper(good); upper != good {
		require.False(t, v.Verify("ORD123", upper))
	}
	require.False(t, v.Verify("ORD123", good[:9]))
	require.False(t, v.Verify("ORD123", good+"0"))

	full := md5.Sum([]byte("ORD123pepper"))
	require.False(t, v.Verify("ORD123", hex.EncodeToString(full[:])))

	other := NewVerifier("salt2")
	require.False(t, other.Verify("ORD123", good))
}
