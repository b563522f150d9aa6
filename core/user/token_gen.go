package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strconv"
	"strings"
	"time"
)

const tokenSalt = "cadence.academy/user.password-reset"

var (
	NowFunc = time.Now // mockable

	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// EncodeUID hides the user ID in password reset links.
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

func decodeUID(uid string) (string, error) {
	id, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(id), nil
}

// tokenGenerator makes and checks password reset tokens of the form "<issued-at, base36>-<hmac>".
// The signature covers the password hash and the last login, so changing the password
// or logging in invalidates every token issued before.
type tokenGenerator struct {
	secretKey string
	timeout   time.Duration
}

func (g tokenGenerator) MakeToken(usr User) (string, error) {
	return g.tokenAt(usr, NowFunc().Unix()), nil
}

func (g tokenGenerator) verifyToken(usr User, token string) error {
	tsPart, sig, ok := strings.Cut(token, "-")
	if !ok || sig == "" {
		return errInvalidToken
	}
	issued, err := strconv.ParseInt(tsPart, 36, 64)
	if err != nil || issued <= 0 {
		return errInvalidToken
	}
	if !hmac.Equal([]byte(g.tokenAt(usr, issued)), []byte(token)) {
		return errInvalidToken
	}

	issuedAt := time.Unix(issued, 0)
	now := NowFunc()
	if issuedAt.After(now.Add(time.Minute)) {
		return errInvalidToken
	}
	if now.Sub(issuedAt) > g.timeout {
		return errTokenExpired
	}
	return nil
}

func (g tokenGenerator) tokenAt(usr User, issued int64) string {
	key := sha256.Sum256([]byte(tokenSalt + g.secretKey))
	mac := hmac.New(sha256.New, key[:])

	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(issued))
	mac.Write(n[:])
	mac.Write([]byte(usr.ID))
	mac.Write(usr.PasswordHash)
	if !usr.LastLogin.IsZero() {
		binary.BigEndian.PutUint64(n[:], uint64(usr.LastLogin.Unix()))
		mac.Write(n[:])
	}
	return strconv.FormatInt(issued, 36) + "-" + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
