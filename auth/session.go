package auth

import (
	"strings"
	"sync/atomic"
)

// Session is the ambient identity every backend call is scoped by. It is immutable;
// switching accounts means installing a new Session in the Holder.
type Session struct {
	Token        string `json:"token"`
	TenantID     string `json:"tenant_id"`
	SubsidiaryID string `json:"subsidiary_id"`
	UserID       string `json:"user_id"`
	Role         string `json:"role"`
	Currency     string `json:"currency"`
}

var allowedRoles = map[string]bool{
	"subsidiary_admin": true,
	"pharmacist":       true,
}

// Allowed reports whether the role may operate the till.
func (s Session) Allowed() bool {
	return allowedRoles[strings.ToLower(s.Role)]
}

// Scope identifies the catalog partition this session sees.
func (s Session) Scope() string {
	return s.TenantID + "/" + s.SubsidiaryID
}

// Holder is the single mutable "current session" cell. Only the composition root writes
// to it; everything else reads.
type Holder struct {
	cur atomic.Pointer[Session]
}

func NewHolder() *Holder {
	return &Holder{}
}

// Current returns the installed session, if any.
func (h *Holder) Current() (Session, bool) {
	s := h.cur.Load()
	if s == nil {
		return Session{}, false
	}
	return *s, true
}

// Set installs s and returns the session it replaced.
func (h *Holder) Set(s Session) (prev Session, had bool) {
	old := h.cur.Swap(&s)
	if old == nil {
		return Session{}, false
	}
	return *old, true
}

// Clear removes the session (logout).
func (h *Holder) Clear() {
	h.cur.Store(nil)
}
