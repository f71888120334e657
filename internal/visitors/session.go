// Package visitors identifies anonymous visitors through short-lived session cookies.
package visitors

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// SessionPolicy describes one visitor session cookie.
type SessionPolicy struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

const (
	VisitCookieName = "visit_session_id"
	ScanCookieName  = "scan_session_id"
)

// VisitPolicy is the policy for generic page visits.
func VisitPolicy(timeoutSeconds int, secure bool) SessionPolicy {
	return SessionPolicy{CookieName: VisitCookieName, TTL: time.Duration(timeoutSeconds) * time.Second, Secure: secure}
}

// ScanPolicy is the policy for QR station scans.
func ScanPolicy(timeoutSeconds int, secure bool) SessionPolicy {
	return SessionPolicy{CookieName: ScanCookieName, TTL: time.Duration(timeoutSeconds) * time.Second, Secure: secure}
}

// ResolveSessionID returns the existing session id when it is a well-formed
// uuid, otherwise a freshly minted one. The boolean reports whether it is new.
func ResolveSessionID(existing string) (string, bool) {
	if existing != "" {
		if id, err := uuid.Parse(existing); err == nil {
			return id.String(), false
		}
	}
	return uuid.NewString(), true
}

// Touch resolves the caller's session and (re)issues the cookie so the
// inactivity window starts over.
func (p SessionPolicy) Touch(c *fiber.Ctx) string {
	sessionID, _ := ResolveSessionID(c.Cookies(p.CookieName))

	c.Cookie(&fiber.Cookie{
		Name:     p.CookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(p.TTL.Seconds()),
		Expires:  time.Now().Add(p.TTL),
		Secure:   p.Secure,
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return sessionID
}
