package models

import (
	"time"
)

// ActivityStatus is the lifecycle state of a submitted activity.
// Pending is the only initial state; Verified and Rejected are terminal.
type ActivityStatus string

const (
	StatusPending  ActivityStatus = "pending"
	StatusVerified ActivityStatus = "verified"
	StatusRejected ActivityStatus = "rejected"
)

// Terminal reports whether no further transitions are permitted.
func (s ActivityStatus) Terminal() bool {
	return s == StatusVerified || s == StatusRejected
}

// VerificationMethod identifies how an activity claim is verified.
type VerificationMethod string

const (
	MethodSelfAttestation     VerificationMethod = "self_attestation"
	MethodPhotoEvidence       VerificationMethod = "photo_evidence"
	MethodVideoEvidence       VerificationMethod = "video_evidence"
	MethodCommunityValidation VerificationMethod = "community_validation"
	MethodIoTDevice           VerificationMethod = "iot_device"
	MethodThirdPartyService   VerificationMethod = "third_party_service"
)

// Valid reports whether the method is one of the known verification methods.
func (m VerificationMethod) Valid() bool {
	switch m {
	case MethodSelfAttestation, MethodPhotoEvidence, MethodVideoEvidence,
		MethodCommunityValidation, MethodIoTDevice, MethodThirdPartyService:
		return true
	}
	return false
}

// RequiresEvidence reports whether submission must carry an evidence hash.
func (m VerificationMethod) RequiresEvidence() bool {
	return m == MethodPhotoEvidence || m == MethodVideoEvidence
}

// Activity represents a single submitted claim of a real-world
// sustainability action. Confidence stays 0 while the activity is
// pending and is set exactly once, together with the terminal status.
type Activity struct {
	ID              uint               `gorm:"primaryKey" json:"id"`
	Reporter        string             `gorm:"size:128;index;not null" json:"reporter"`
	Category        string             `gorm:"size:64;not null" json:"category"`
	Description     string             `gorm:"size:512" json:"description"`
	Method          VerificationMethod `gorm:"size:32;not null" json:"method"`
	Status          ActivityStatus     `gorm:"size:16;not null;default:'pending';index" json:"status"`
	ConfidenceScore uint8              `gorm:"not null;default:0" json:"confidence_score"` // 0-100
	EvidenceHash    string             `gorm:"size:66" json:"evidence_hash,omitempty"`     // hex-encoded 32-byte hash, optional
	Latitude        *int32             `json:"latitude,omitempty"`
	Longitude       *int32             `json:"longitude,omitempty"`
	SubmittedAt     time.Time          `gorm:"not null" json:"submitted_at"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// VerificationRequest tracks per-activity verification metadata, 1:1 with
// Activity. RequiredValidators is fixed by the method at creation and
// never changes afterwards.
type VerificationRequest struct {
	ID                 uint               `gorm:"primaryKey" json:"id"`
	ActivityID         uint               `gorm:"uniqueIndex;not null" json:"activity_id"`
	Method             VerificationMethod `gorm:"size:32;not null" json:"method"`
	SubmittedAt        time.Time          `gorm:"not null" json:"submitted_at"`
	ExpiresAt          time.Time          `gorm:"not null;index" json:"expires_at"`
	EvidenceHash       string             `gorm:"size:66" json:"evidence_hash,omitempty"`
	RequiredValidators uint8              `gorm:"not null" json:"required_validators"`
	CurrentValidators  uint8              `gorm:"not null;default:0" json:"current_validators"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Validator is a party allowed to vote on community-validated activities.
// Records are never deleted; deactivation is a soft flag so historical
// votes stay attributable.
type Validator struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Address         string    `gorm:"uniqueIndex;size:128;not null" json:"address"`
	TrustScore      uint8     `gorm:"not null" json:"trust_score"` // 0-100
	ValidationCount uint32    `gorm:"not null;default:0" json:"validation_count"`
	Active          bool      `gorm:"not null;default:true" json:"active"`
	RegisteredAt    time.Time `gorm:"not null" json:"registered_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Validation is a single validator vote on one activity. The composite
// unique index enforces at most one vote per (activity, validator) pair.
type Validation struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ActivityID       uint      `gorm:"not null;uniqueIndex:idx_activity_validator" json:"activity_id"`
	ValidatorAddress string    `gorm:"size:128;not null;uniqueIndex:idx_activity_validator" json:"validator_address"`
	Approved         bool      `gorm:"not null" json:"approved"`
	Note             string    `gorm:"size:256" json:"note,omitempty"`
	VotedAt          time.Time `gorm:"not null" json:"voted_at"`
	CreatedAt        time.Time `json:"created_at"`
}

// AuditEntry records an administrative action. Reject reasons are kept
// here and nowhere else.
type AuditEntry struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"` // uuid
	Caller    string    `gorm:"size:128;not null;index" json:"caller"`
	Action    string    `gorm:"size:64;not null" json:"action"`
	Target    string    `gorm:"size:128" json:"target"`
	Detail    string    `gorm:"size:512" json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Attestation records a finalized outcome published to the downstream
// reward contract.
type Attestation struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ActivityID     uint           `gorm:"index;not null" json:"activity_id"`
	Reporter       string         `gorm:"size:128;not null" json:"reporter"`
	ActivityStatus ActivityStatus `gorm:"size:16;not null" json:"activity_status"`
	Confidence     uint8          `gorm:"not null" json:"confidence"`
	Digest         string         `gorm:"size:66" json:"digest"`
	Signature      string         `gorm:"size:132" json:"signature,omitempty"`
	TxHash         string         `gorm:"size:66" json:"tx_hash,omitempty"`
	Status         string         `gorm:"size:16;default:'pending'" json:"status"` // pending/confirmed/failed
	ErrorMessage   string         `gorm:"size:256" json:"error_message,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
