package auth

import (
	"errors"
	"testing"

	"github.com/greenledger/verification-service/internal/models"
)

func TestGuardIsAdmin(t *testing.T) {
	guard := NewGuard("admin-1")

	if !guard.IsAdmin("admin-1") {
		t.Error("Expected admin-1 to be admin")
	}
	if guard.IsAdmin("someone-else") {
		t.Error("Expected someone-else not to be admin")
	}
	if guard.IsAdmin("") {
		t.Error("Empty caller must never be admin")
	}
}

func TestGuardRequire(t *testing.T) {
	guard := NewGuard("admin-1")

	if err := guard.Require("admin-1"); err != nil {
		t.Errorf("Unexpected error for admin: %v", err)
	}
	if err := guard.Require("intruder"); !errors.Is(err, models.ErrNotAuthorized) {
		t.Errorf("Expected ErrNotAuthorized, got %v", err)
	}
}

func TestGuardTransfer(t *testing.T) {
	guard := NewGuard("admin-1")

	// Non-admin cannot transfer.
	if err := guard.Transfer("intruder", "intruder"); !errors.Is(err, models.ErrNotAuthorized) {
		t.Errorf("Expected ErrNotAuthorized, got %v", err)
	}
	if guard.Admin() != "admin-1" {
		t.Errorf("Admin must be unchanged after failed transfer, got %s", guard.Admin())
	}

	// Current admin can hand off.
	if err := guard.Transfer("admin-1", "admin-2"); err != nil {
		t.Fatalf("Unexpected transfer error: %v", err)
	}
	if !guard.IsAdmin("admin-2") {
		t.Error("Expected admin-2 to be admin after transfer")
	}
	if guard.IsAdmin("admin-1") {
		t.Error("Expected admin-1 to lose admin after transfer")
	}
}
