// Package auth issues and verifies admin session tokens.
//
// A token is base64url(user) "." expiryUnix "." hex(hmac-sha256(secret, first two parts)).
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrExpiredSession = errors.New("session expired")
)

const DefaultTTL = 12 * time.Hour

type Signer struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func (s *Signer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Signer) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultTTL
}

// Issue returns a token for user and its expiry.
func (s *Signer) Issue(user string) (string, time.Time) {
	exp := s.now().Add(s.ttl()).Truncate(time.Second)
	payload := base64.RawURLEncoding.EncodeToString([]byte(user)) + "." + strconv.FormatInt(exp.Unix(), 10)
	return payload + "." + s.sign(payload), exp
}

// Verify checks the signature and expiry and returns the user.
func (s *Signer) Verify(token string) (string, error) {
	if len(s.Secret) == 0 {
		return "", ErrInvalidSession
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", ErrInvalidSession
	}
	payload := parts[0] + "." + parts[1]
	want := s.sign(payload)
	if !hmac.Equal([]byte(want), []byte(parts[2])) {
		return "", ErrInvalidSession
	}
	user, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil || len(user) == 0 {
		return "", ErrInvalidSession
	}
	exp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", ErrInvalidSession
	}
	if !s.now().Before(time.Unix(exp, 0)) {
		return "", ErrExpiredSession
	}
	return string(user), nil
}

func (s *Signer) sign(payload string) string {
	m := hmac.New(sha256.New, s.Secret)
	m.Write([]byte(payload))
	return hex.EncodeToString(m.Sum(nil))
}

// CheckPassword compares credentials in constant time. An empty configured
// password never matches.
func CheckPassword(wantUser, wantPass, user, pass string) bool {
	if wantPass == "" {
		return false
	}
	u := subtle.ConstantTimeCompare([]byte(wantUser), []byte(user))
	p := subtle.ConstantTimeCompare([]byte(wantPass), []byte(pass))
	return u&p == 1
}
