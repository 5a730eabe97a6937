package http

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// SessionCookieName is the cookie carrying the signed session id.
const SessionCookieName = "memscope_session"

// sessionSigner signs and verifies session cookie values of the form
// "<uuid>.<base64url hmac-sha256>".
type sessionSigner struct {
	key []byte
}

func newSessionSigner(secret []byte) (*sessionSigner, error) {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
	}
	return &sessionSigner{key: secret}, nil
}

func (s *sessionSigner) mac(id string) string {
	m := hmac.New(sha256.New, s.key)
	m.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(m.Sum(nil))
}

func (s *sessionSigner) sign(id string) string {
	return id + "." + s.mac(id)
}

// verify returns the session id when value carries a valid signature.
func (s *sessionSigner) verify(value string) (string, bool) {
	id, sig, ok := strings.Cut(value, ".")
	if !ok || uuid.Validate(id) != nil {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(s.mac(id))) {
		return "", false
	}
	return id, true
}

// cookieCarrier stores the session id in a signed cookie on one request.
// A tampered or foreign cookie reads as no session.
type cookieCarrier struct {
	c      echo.Context
	signer *sessionSigner
	secure bool
	id     string
	loaded bool
}

func (s *Server) carrier(c echo.Context) *cookieCarrier {
	return &cookieCarrier{c: c, signer: s.signer, secure: s.config.SecureCookie}
}

func (cc *cookieCarrier) SessionID() (string, bool) {
	if !cc.loaded {
		cc.loaded = true
		if ck, err := cc.c.Cookie(SessionCookieName); err == nil {
			cc.id, _ = cc.signer.verify(ck.Value)
		}
	}
	return cc.id, cc.id != ""
}

func (cc *cookieCarrier) SetSessionID(id string) {
	cc.id, cc.loaded = id, true
	cc.c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    cc.signer.sign(id),
		Path:     "/",
		HttpOnly: true,
		Secure:   cc.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (cc *cookieCarrier) Clear() {
	cc.id, cc.loaded = "", true
	cc.c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cc.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
