package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenGenerator(t *testing.T) {
	gen := tokenGenerator{secretKey: "secret", timeout: 3 * 24 * time.Hour}
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	NowFunc = func() time.Time { return now }
	t.Cleanup(func() { NowFunc = time.Now })

	usr := User{ID: "8b7e0c34-63b1-4a4e-9b2f-2f3f0a5d7c11", Email: "t@cadence.test", LastLogin: now.Add(-time.Hour)}
	_ = usr.SetPassword("pwd")

	token, err := gen.MakeToken(usr)
	assert.NoError(t, err)

	loggedIn := usr
	loggedIn.LastLogin = now.Add(time.Minute)
	newPassword := usr
	_ = newPassword.SetPassword("other")

	tests := []struct {
		name    string
		gen     tokenGenerator
		usr     User
		token   string
		at      time.Time
		wantErr error
	}{
		{name: "valid", gen: gen, usr: usr, token: token, at: now},
		{name: "valid until timeout", gen: gen, usr: usr, token: token, at: now.Add(gen.timeout)},
		{name: "expired", gen: gen, usr: usr, token: token, at: now.Add(gen.timeout + time.Second), wantErr: errTokenExpired},
		{name: "issued in the future", gen: gen, usr: usr, token: token, at: now.Add(-time.Hour), wantErr: errInvalidToken},
		{name: "empty", gen: gen, usr: usr, at: now, wantErr: errInvalidToken},
		{name: "no signature", gen: gen, usr: usr, token: "lmaooolol", at: now, wantErr: errInvalidToken},
		{name: "bad timestamp", gen: gen, usr: usr, token: "!!-sigsig", at: now, wantErr: errInvalidToken},
		{name: "tampered signature", gen: gen, usr: usr, token: token + "x", at: now, wantErr: errInvalidToken},
		{name: "logged in since", gen: gen, usr: loggedIn, token: token, at: now, wantErr: errInvalidToken},
		{name: "password changed", gen: gen, usr: newPassword, token: token, at: now, wantErr: errInvalidToken},
		{name: "other secret key", gen: tokenGenerator{secretKey: "other", timeout: gen.timeout}, usr: usr, token: token, at: now, wantErr: errInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			NowFunc = func() time.Time { return tt.at }
			assert.Equal(t, tt.wantErr, tt.gen.verifyToken(tt.usr, tt.token))
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "8b7e0c34-63b1-4a4e-9b2f-2f3f0a5d7c11"}
	got, err := decodeUID(EncodeUID(usr))
	assert.NoError(t, err)
	assert.Equal(t, usr.ID, got)

	_, err = decodeUID("*not-base64*")
	assert.Error(t, err)
}
