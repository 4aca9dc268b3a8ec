package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSigner_IssueVerify(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := &Signer{Secret: []byte("k"), TTL: time.Hour, Now: fixedClock(now)}

	tok, exp := s.Issue("admin")
	assert.Equal(t, now.Add(time.Hour), exp)
	assert.Len(t, strings.Split(tok, "."), 3)

	user, err := s.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "admin", user)
}

func TestSigner_Expired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := &Signer{Secret: []byte("k"), TTL: time.Minute, Now: fixedClock(now)}
	tok, _ := s.Issue("admin")

	s.Now = fixedClock(now.Add(time.Minute))
	_, err := s.Verify(tok)
	assert.ErrorIs(t, err, ErrExpiredSession)
}

func TestSigner_Tampered(t *testing.T) {
	s := &Signer{Secret: []byte("k")}
	tok, _ := s.Issue("admin")
	parts := strings.Split(tok, ".")

	cases := map[string]string{
		"empty":         "",
		"two parts":     parts[0] + "." + parts[1],
		"other user":    "cm9vdA." + parts[1] + "." + parts[2],
		"later expiry":  parts[0] + ".9999999999." + parts[2],
		"bad signature": parts[0] + "." + parts[1] + ".00",
	}
	for name, in := range cases {
		_, err := s.Verify(in)
		assert.ErrorIs(t, err, ErrInvalidSession, name)
	}

	other := &Signer{Secret: []byte("other")}
	_, err := other.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = (&Signer{}).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestCheckPassword(t *testing.T) {
	assert.True(t, CheckPassword("admin", "pw", "admin", "pw"))
	assert.False(t, CheckPassword("admin", "pw", "admin", "PW"))
	assert.False(t, CheckPassword("admin", "pw", "root", "pw"))
	assert.False(t, CheckPassword("admin", "", "admin", ""))
}
