package auth

import (
	"sync"

	"github.com/greenledger/verification-service/internal/models"
)

// Guard gates administrative operations on a single admin principal.
// The principal is process-wide mutable configuration; callers re-check
// it on every admin-gated call rather than caching the result.
type Guard struct {
	mu    sync.RWMutex
	admin string
}

// NewGuard creates a guard with the initial admin principal.
func NewGuard(admin string) *Guard {
	return &Guard{admin: admin}
}

// IsAdmin reports whether the caller is the current admin.
func (g *Guard) IsAdmin(caller string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return caller != "" && caller == g.admin
}

// Require returns ErrNotAuthorized unless the caller is the current admin.
func (g *Guard) Require(caller string) error {
	if !g.IsAdmin(caller) {
		return models.ErrNotAuthorized
	}
	return nil
}

// Transfer hands the admin role to a new principal. Only the current
// admin may transfer it.
func (g *Guard) Transfer(caller, newAdmin string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if caller == "" || caller != g.admin {
		return models.ErrNotAuthorized
	}
	g.admin = newAdmin
	return nil
}

// Admin returns the current admin principal.
func (g *Guard) Admin() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.admin
}
