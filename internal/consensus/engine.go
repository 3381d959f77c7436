package consensus

import (
	"math"

	"github.com/greenledger/verification-service/internal/models"
)

// Confidence assigned by each direct-resolution verification path.
const (
	SelfAttestationConfidence = 30
	PhotoEvidenceConfidence   = 50
	VideoEvidenceConfidence   = 60
	ThirdPartyConfidence      = 80
	IoTDeviceConfidence       = 90

	// ApprovalThreshold is the trust-weighted approval ratio at or above
	// which a community-validated activity verifies. An exact split
	// resolves to Verified rather than discarding community-reviewed
	// evidence.
	ApprovalThreshold = 0.5

	// CommunityQuorum is the default validator count required before
	// community consensus is computed.
	CommunityQuorum = 3
)

// Outcome is a terminal verification decision.
type Outcome struct {
	Status     models.ActivityStatus
	Confidence uint8 // 0-100
}

// Engine decides verification outcomes: quorum sizing per method, the
// trust-weighted tally for community validation, and the fixed confidence
// table for the direct-resolution paths.
type Engine struct {
	quorum uint8
}

// NewEngine creates a consensus engine with the given community quorum.
func NewEngine(quorum uint8) *Engine {
	return &Engine{quorum: quorum}
}

// RequiredValidators returns the validator count a request needs before
// resolution. Only community validation accumulates votes.
func (e *Engine) RequiredValidators(method models.VerificationMethod) uint8 {
	if method == models.MethodCommunityValidation {
		return e.quorum
	}
	return 0
}

// Tally computes the trust-weighted quorum outcome from the accepted
// votes. Each vote is weighted by its validator's trust score at tally
// time:
//
//	R = sum(trust of approving validators) / sum(trust of all voters)
//
// R >= 0.5 verifies with confidence round(R*100) clamped to [0,100];
// anything below rejects with confidence 0. If every voter carries zero
// trust there is no signal to weigh and the activity rejects.
func (e *Engine) Tally(votes []*models.Validation, validators map[string]*models.Validator) Outcome {
	var approveTrust, totalTrust float64

	for _, vote := range votes {
		v, ok := validators[vote.ValidatorAddress]
		if !ok {
			continue
		}
		weight := float64(v.TrustScore)
		totalTrust += weight
		if vote.Approved {
			approveTrust += weight
		}
	}

	if totalTrust == 0 {
		return Outcome{Status: models.StatusRejected, Confidence: 0}
	}

	ratio := approveTrust / totalTrust
	if ratio < ApprovalThreshold {
		return Outcome{Status: models.StatusRejected, Confidence: 0}
	}

	return Outcome{
		Status:     models.StatusVerified,
		Confidence: clampConfidence(math.Round(ratio * 100)),
	}
}

// ResolveExternal returns the outcome for an external device or service
// attestation.
func (e *Engine) ResolveExternal(method models.VerificationMethod) (Outcome, error) {
	switch method {
	case models.MethodIoTDevice:
		return Outcome{Status: models.StatusVerified, Confidence: IoTDeviceConfidence}, nil
	case models.MethodThirdPartyService:
		return Outcome{Status: models.StatusVerified, Confidence: ThirdPartyConfidence}, nil
	}
	return Outcome{}, models.ErrInvalidMethod
}

// ResolveMediaReview returns the outcome of an admin media review.
// Rejection always carries confidence 0.
func (e *Engine) ResolveMediaReview(method models.VerificationMethod, approved bool) (Outcome, error) {
	if method != models.MethodPhotoEvidence && method != models.MethodVideoEvidence {
		return Outcome{}, models.ErrInvalidMethod
	}
	if !approved {
		return Outcome{Status: models.StatusRejected, Confidence: 0}, nil
	}
	confidence := uint8(PhotoEvidenceConfidence)
	if method == models.MethodVideoEvidence {
		confidence = VideoEvidenceConfidence
	}
	return Outcome{Status: models.StatusVerified, Confidence: confidence}, nil
}

// ResolveSelfAttestation returns the fixed self-attestation outcome
// applied at submission time.
func (e *Engine) ResolveSelfAttestation() Outcome {
	return Outcome{Status: models.StatusVerified, Confidence: SelfAttestationConfidence}
}

func clampConfidence(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return uint8(v)
}
