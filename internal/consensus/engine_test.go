package consensus

import (
	"testing"

	"github.com/greenledger/verification-service/internal/models"
)

func validatorSet(trust map[string]uint8) map[string]*models.Validator {
	set := make(map[string]*models.Validator, len(trust))
	for addr, score := range trust {
		set[addr] = &models.Validator{Address: addr, TrustScore: score, Active: true}
	}
	return set
}

func TestTally(t *testing.T) {
	engine := NewEngine(CommunityQuorum)

	tests := []struct {
		name               string
		votes              []*models.Validation
		trust              map[string]uint8
		expectedStatus     models.ActivityStatus
		expectedConfidence uint8
	}{
		{
			name: "Two approvals one rejection at equal trust",
			votes: []*models.Validation{
				{ValidatorAddress: "val-1", Approved: true},
				{ValidatorAddress: "val-2", Approved: true},
				{ValidatorAddress: "val-3", Approved: false},
			},
			trust:              map[string]uint8{"val-1": 100, "val-2": 100, "val-3": 100},
			expectedStatus:     models.StatusVerified,
			expectedConfidence: 67, // round(2/3 * 100)
		},
		{
			name: "One approval two rejections at equal trust",
			votes: []*models.Validation{
				{ValidatorAddress: "val-1", Approved: true},
				{ValidatorAddress: "val-2", Approved: false},
				{ValidatorAddress: "val-3", Approved: false},
			},
			trust:              map[string]uint8{"val-1": 100, "val-2": 100, "val-3": 100},
			expectedStatus:     models.StatusRejected,
			expectedConfidence: 0,
		},
		{
			name: "Exact split resolves to verified",
			votes: []*models.Validation{
				{ValidatorAddress: "val-1", Approved: true},
				{ValidatorAddress: "val-2", Approved: false},
			},
			trust:              map[string]uint8{"val-1": 50, "val-2": 50},
			expectedStatus:     models.StatusVerified,
			expectedConfidence: 50,
		},
		{
			name: "High trust approval outweighs low trust rejections",
			votes: []*models.Validation{
				{ValidatorAddress: "val-1", Approved: true},
				{ValidatorAddress: "val-2", Approved: false},
				{ValidatorAddress: "val-3", Approved: false},
			},
			trust:              map[string]uint8{"val-1": 90, "val-2": 20, "val-3": 20},
			expectedStatus:     models.StatusVerified,
			expectedConfidence: 69, // round(90/130 * 100)
		},
		{
			name: "Low trust approvals lose to high trust rejection",
			votes: []*models.Validation{
				{ValidatorAddress: "val-1", Approved: true},
				{ValidatorAddress: "val-2", Approved: true},
				{ValidatorAddress: "val-3", Approved: false},
			},
			trust:              map[string]uint8{"val-1": 10, "val-2": 10, "val-3": 100},
			expectedStatus:     models.StatusRejected,
			expectedConfidence: 0,
		},
		{
			name: "Unanimous approval",
			votes: []*models.Validation{
				{ValidatorAddress: "val-1", Approved: true},
				{ValidatorAddress: "val-2", Approved: true},
				{ValidatorAddress: "val-3", Approved: true},
			},
			trust:              map[string]uint8{"val-1": 40, "val-2": 70, "val-3": 100},
			expectedStatus:     models.StatusVerified,
			expectedConfidence: 100,
		},
		{
			name: "All voters carry zero trust",
			votes: []*models.Validation{
				{ValidatorAddress: "val-1", Approved: true},
				{ValidatorAddress: "val-2", Approved: true},
				{ValidatorAddress: "val-3", Approved: true},
			},
			trust:              map[string]uint8{"val-1": 0, "val-2": 0, "val-3": 0},
			expectedStatus:     models.StatusRejected,
			expectedConfidence: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := engine.Tally(tt.votes, validatorSet(tt.trust))

			if outcome.Status != tt.expectedStatus {
				t.Errorf("Expected status %s, got %s", tt.expectedStatus, outcome.Status)
			}

			if outcome.Confidence != tt.expectedConfidence {
				t.Errorf("Expected confidence %d, got %d", tt.expectedConfidence, outcome.Confidence)
			}

			if outcome.Confidence > 100 {
				t.Errorf("Confidence %d exceeds maximum of 100", outcome.Confidence)
			}

			if outcome.Status == models.StatusRejected && outcome.Confidence != 0 {
				t.Errorf("Rejected outcome must carry confidence 0, got %d", outcome.Confidence)
			}
		})
	}
}

func TestRequiredValidators(t *testing.T) {
	engine := NewEngine(CommunityQuorum)

	if got := engine.RequiredValidators(models.MethodCommunityValidation); got != CommunityQuorum {
		t.Errorf("Expected quorum %d for community validation, got %d", CommunityQuorum, got)
	}

	singleShot := []models.VerificationMethod{
		models.MethodSelfAttestation,
		models.MethodPhotoEvidence,
		models.MethodVideoEvidence,
		models.MethodIoTDevice,
		models.MethodThirdPartyService,
	}
	for _, method := range singleShot {
		if got := engine.RequiredValidators(method); got != 0 {
			t.Errorf("Expected 0 required validators for %s, got %d", method, got)
		}
	}
}

func TestResolveExternal(t *testing.T) {
	engine := NewEngine(CommunityQuorum)

	outcome, err := engine.ResolveExternal(models.MethodIoTDevice)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if outcome.Status != models.StatusVerified || outcome.Confidence != 90 {
		t.Errorf("IoT device: expected verified/90, got %s/%d", outcome.Status, outcome.Confidence)
	}

	outcome, err = engine.ResolveExternal(models.MethodThirdPartyService)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if outcome.Status != models.StatusVerified || outcome.Confidence != 80 {
		t.Errorf("Third party: expected verified/80, got %s/%d", outcome.Status, outcome.Confidence)
	}

	if _, err := engine.ResolveExternal(models.MethodPhotoEvidence); err == nil {
		t.Error("Expected error for non-external method")
	}
}

func TestResolveMediaReview(t *testing.T) {
	engine := NewEngine(CommunityQuorum)

	tests := []struct {
		name               string
		method             models.VerificationMethod
		approved           bool
		expectError        bool
		expectedStatus     models.ActivityStatus
		expectedConfidence uint8
	}{
		{"Photo approved", models.MethodPhotoEvidence, true, false, models.StatusVerified, 50},
		{"Video approved", models.MethodVideoEvidence, true, false, models.StatusVerified, 60},
		{"Photo rejected", models.MethodPhotoEvidence, false, false, models.StatusRejected, 0},
		{"Video rejected", models.MethodVideoEvidence, false, false, models.StatusRejected, 0},
		{"Non-media method", models.MethodIoTDevice, true, true, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := engine.ResolveMediaReview(tt.method, tt.approved)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if outcome.Status != tt.expectedStatus {
				t.Errorf("Expected status %s, got %s", tt.expectedStatus, outcome.Status)
			}
			if outcome.Confidence != tt.expectedConfidence {
				t.Errorf("Expected confidence %d, got %d", tt.expectedConfidence, outcome.Confidence)
			}
		})
	}
}

func TestResolveSelfAttestation(t *testing.T) {
	engine := NewEngine(CommunityQuorum)

	outcome := engine.ResolveSelfAttestation()
	if outcome.Status != models.StatusVerified {
		t.Errorf("Expected verified, got %s", outcome.Status)
	}
	if outcome.Confidence != 30 {
		t.Errorf("Expected confidence 30, got %d", outcome.Confidence)
	}
}

func BenchmarkTally(b *testing.B) {
	engine := NewEngine(CommunityQuorum)

	votes := []*models.Validation{
		{ValidatorAddress: "val-1", Approved: true},
		{ValidatorAddress: "val-2", Approved: true},
		{ValidatorAddress: "val-3", Approved: false},
	}
	validators := validatorSet(map[string]uint8{"val-1": 80, "val-2": 60, "val-3": 90})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.Tally(votes, validators)
	}
}
