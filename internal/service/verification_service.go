package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/greenledger/verification-service/internal/attestor"
	"github.com/greenledger/verification-service/internal/auth"
	"github.com/greenledger/verification-service/internal/consensus"
	"github.com/greenledger/verification-service/internal/models"
	"github.com/greenledger/verification-service/internal/repository"
	"github.com/greenledger/verification-service/pkg/logger"
	"go.uber.org/zap"
)

// Attestor publishes finalized outcomes for downstream reward systems.
type Attestor interface {
	PublishOutcome(ctx context.Context, activityID uint, reporter string, status models.ActivityStatus, confidence uint8) (string, error)
}

// VerificationService orchestrates the activity lifecycle: submission,
// validator registry, vote accumulation and consensus resolution. Every
// mutating call on an activity runs under that activity's lock and
// inside a single transaction, so no caller observes a partially
// applied update.
type VerificationService struct {
	repo     *repository.VerificationRepository
	engine   *consensus.Engine
	guard    *auth.Guard
	attestor Attestor
	window   time.Duration
	now      func() time.Time

	mu            sync.Mutex
	activityLocks map[uint]*sync.Mutex
}

// NewVerificationService creates a new verification service. The
// attestor may be nil when no downstream chain is configured.
func NewVerificationService(
	repo *repository.VerificationRepository,
	engine *consensus.Engine,
	guard *auth.Guard,
	att Attestor,
	window time.Duration,
) *VerificationService {
	return &VerificationService{
		repo:          repo,
		engine:        engine,
		guard:         guard,
		attestor:      att,
		window:        window,
		now:           time.Now,
		activityLocks: make(map[uint]*sync.Mutex),
	}
}

// SetClock overrides the service's time source. Used by tests to drive
// expiry without sleeping.
func (s *VerificationService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *VerificationService) lockActivity(id uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.activityLocks[id]
	if !ok {
		m = &sync.Mutex{}
		s.activityLocks[id] = m
	}
	return m
}

// SubmitActivityInput carries a new activity claim.
type SubmitActivityInput struct {
	Category     string
	Description  string
	Method       models.VerificationMethod
	EvidenceHash string
	Latitude     *int32
	Longitude    *int32
}

// SubmitActivity records a new claim in pending state with a paired
// verification request sized by method. Self-attested claims resolve
// before the call returns.
func (s *VerificationService) SubmitActivity(ctx context.Context, reporter string, input SubmitActivityInput) (*models.Activity, error) {
	if !input.Method.Valid() {
		return nil, models.ErrInvalidMethod
	}
	if input.Method.RequiresEvidence() && input.EvidenceHash == "" {
		return nil, models.ErrMissingEvidence
	}

	required := s.engine.RequiredValidators(input.Method)
	if input.Method == models.MethodCommunityValidation && required == 0 {
		logger.Error("Community validation configured with zero quorum")
		return nil, models.ErrInsufficientQuorumConfig
	}

	now := s.now()
	activity := &models.Activity{
		Reporter:        reporter,
		Category:        input.Category,
		Description:     input.Description,
		Method:          input.Method,
		Status:          models.StatusPending,
		ConfidenceScore: 0,
		EvidenceHash:    input.EvidenceHash,
		Latitude:        input.Latitude,
		Longitude:       input.Longitude,
		SubmittedAt:     now,
	}
	request := &models.VerificationRequest{
		Method:             input.Method,
		SubmittedAt:        now,
		ExpiresAt:          now.Add(s.window),
		EvidenceHash:       input.EvidenceHash,
		RequiredValidators: required,
	}

	err := s.repo.Transact(ctx, func(tx *repository.VerificationRepository) error {
		if err := tx.CreateActivityWithRequest(ctx, activity, request); err != nil {
			return err
		}
		// Self-attestation resolves at submission time.
		if input.Method == models.MethodSelfAttestation {
			outcome := s.engine.ResolveSelfAttestation()
			if err := tx.FinalizeActivity(ctx, activity.ID, outcome.Status, outcome.Confidence); err != nil {
				return err
			}
			activity.Status = outcome.Status
			activity.ConfidenceScore = outcome.Confidence
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit activity: %w", err)
	}

	logger.Info("Activity submitted",
		zap.Uint("activityID", activity.ID),
		zap.String("reporter", reporter),
		zap.String("method", string(input.Method)),
	)

	if activity.Status.Terminal() {
		s.attestOutcome(ctx, activity)
	}

	return activity, nil
}

// GetActivity retrieves an activity by ID.
func (s *VerificationService) GetActivity(ctx context.Context, id uint) (*models.Activity, error) {
	activity, err := s.repo.GetActivity(ctx, id)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, models.ErrActivityNotFound
	}
	return activity, nil
}

// ListActivities retrieves activities filtered by status. Downstream
// reward systems poll terminal records through this read.
func (s *VerificationService) ListActivities(ctx context.Context, status models.ActivityStatus, limit, offset int) ([]*models.Activity, error) {
	if status != "" && status != models.StatusPending && status != models.StatusVerified && status != models.StatusRejected {
		return nil, fmt.Errorf("unknown activity status %q", status)
	}
	return s.repo.ListActivities(ctx, status, limit, offset)
}

// GetVerificationRequest retrieves the verification request paired with
// an activity.
func (s *VerificationService) GetVerificationRequest(ctx context.Context, activityID uint) (*models.VerificationRequest, error) {
	request, err := s.repo.GetRequest(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, models.ErrActivityNotFound
	}
	return request, nil
}

// IsVerificationExpired reports whether the activity's verification
// window has passed. Pure read: an expired pending activity stays
// pending until an admin explicitly rejects it.
func (s *VerificationService) IsVerificationExpired(ctx context.Context, activityID uint) (bool, error) {
	request, err := s.GetVerificationRequest(ctx, activityID)
	if err != nil {
		return false, err
	}
	return s.now().After(request.ExpiresAt), nil
}

// RegisterValidator creates or replaces a validator record. Admin only.
func (s *VerificationService) RegisterValidator(ctx context.Context, caller, address string, trustScore int) error {
	if err := s.guard.Require(caller); err != nil {
		return err
	}
	if trustScore < 0 || trustScore > 100 {
		return models.ErrInvalidTrustScore
	}

	validator := &models.Validator{
		Address:         address,
		TrustScore:      uint8(trustScore),
		ValidationCount: 0,
		Active:          true,
		RegisteredAt:    s.now(),
	}
	if err := s.repo.SaveValidator(ctx, validator); err != nil {
		return fmt.Errorf("failed to register validator: %w", err)
	}

	s.audit(ctx, caller, "register_validator", address, fmt.Sprintf("trust_score=%d", trustScore))
	logger.Info("Validator registered",
		zap.String("address", address),
		zap.Int("trustScore", trustScore),
	)
	return nil
}

// DeactivateValidator soft-disables a validator. Past votes remain
// attributable and valid for already-computed outcomes. Admin only.
func (s *VerificationService) DeactivateValidator(ctx context.Context, caller, address string) error {
	if err := s.guard.Require(caller); err != nil {
		return err
	}

	validator, err := s.repo.GetValidator(ctx, address)
	if err != nil {
		return err
	}
	if validator == nil {
		return models.ErrValidatorNotRegistered
	}

	validator.Active = false
	if err := s.repo.UpdateValidator(ctx, validator); err != nil {
		return fmt.Errorf("failed to deactivate validator: %w", err)
	}

	s.audit(ctx, caller, "deactivate_validator", address, "")
	logger.Info("Validator deactivated", zap.String("address", address))
	return nil
}

// GetValidatorInfo retrieves a validator record.
func (s *VerificationService) GetValidatorInfo(ctx context.Context, address string) (*models.Validator, error) {
	validator, err := s.repo.GetValidator(ctx, address)
	if err != nil {
		return nil, err
	}
	if validator == nil {
		return nil, models.ErrValidatorNotRegistered
	}
	return validator, nil
}

// IsActiveValidator reports whether the address is a registered, active
// validator.
func (s *VerificationService) IsActiveValidator(ctx context.Context, address string) (bool, error) {
	validator, err := s.repo.GetValidator(ctx, address)
	if err != nil {
		return false, err
	}
	return validator != nil && validator.Active, nil
}

// CastVote records a community-validation vote. The vote insert, the
// request counter increment and, when the vote completes the quorum,
// the consensus tally and terminal transition all commit in one
// transaction under the activity's lock.
func (s *VerificationService) CastVote(ctx context.Context, caller string, activityID uint, approved bool, note string) (*models.Validation, error) {
	lock := s.lockActivity(activityID)
	lock.Lock()
	defer lock.Unlock()

	activity, err := s.repo.GetActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, models.ErrActivityNotFound
	}
	if activity.Status.Terminal() {
		return nil, models.ErrAlreadyVerified
	}
	if activity.Method != models.MethodCommunityValidation {
		return nil, models.ErrInvalidMethod
	}

	request, err := s.repo.GetRequest(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, models.ErrActivityNotFound
	}
	if request.RequiredValidators == 0 {
		logger.Error("Community request carries zero quorum", zap.Uint("activityID", activityID))
		return nil, models.ErrInsufficientQuorumConfig
	}
	if s.now().After(request.ExpiresAt) {
		return nil, models.ErrVerificationExpired
	}

	validator, err := s.repo.GetValidator(ctx, caller)
	if err != nil {
		return nil, err
	}
	if validator == nil {
		return nil, models.ErrValidatorNotRegistered
	}
	if !validator.Active {
		return nil, models.ErrValidatorInactive
	}

	existing, err := s.repo.GetValidation(ctx, activityID, caller)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.ErrDuplicateVote
	}

	vote := &models.Validation{
		ActivityID:       activityID,
		ValidatorAddress: caller,
		Approved:         approved,
		Note:             note,
		VotedAt:          s.now(),
	}

	var finalized *consensus.Outcome
	err = s.repo.Transact(ctx, func(tx *repository.VerificationRepository) error {
		if err := tx.CreateValidation(ctx, vote); err != nil {
			return fmt.Errorf("failed to record vote: %w", err)
		}
		count, err := tx.IncrementVoteCount(ctx, activityID)
		if err != nil {
			return err
		}
		if err := tx.IncrementValidationCount(ctx, caller); err != nil {
			return err
		}

		if count < request.RequiredValidators {
			return nil
		}

		// Quorum reached: aggregate exactly once, inside the same
		// transaction as the triggering vote.
		votes, err := tx.ListValidations(ctx, activityID)
		if err != nil {
			return err
		}
		addresses := make([]string, len(votes))
		for i, v := range votes {
			addresses[i] = v.ValidatorAddress
		}
		validators, err := tx.GetValidators(ctx, addresses)
		if err != nil {
			return err
		}

		outcome := s.engine.Tally(votes, validators)
		if err := tx.FinalizeActivity(ctx, activityID, outcome.Status, outcome.Confidence); err != nil {
			return err
		}
		finalized = &outcome
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Vote recorded",
		zap.Uint("activityID", activityID),
		zap.String("validator", caller),
		zap.Bool("approved", approved),
	)

	if finalized != nil {
		logger.Info("Consensus reached",
			zap.Uint("activityID", activityID),
			zap.String("status", string(finalized.Status)),
			zap.Uint8("confidence", finalized.Confidence),
		)
		activity.Status = finalized.Status
		activity.ConfidenceScore = finalized.Confidence
		s.attestOutcome(ctx, activity)
	}

	return vote, nil
}

// GetVote retrieves a vote by its (activity, validator) key.
func (s *VerificationService) GetVote(ctx context.Context, activityID uint, validatorAddress string) (*models.Validation, error) {
	if _, err := s.GetActivity(ctx, activityID); err != nil {
		return nil, err
	}
	vote, err := s.repo.GetValidation(ctx, activityID, validatorAddress)
	if err != nil {
		return nil, err
	}
	if vote == nil {
		return nil, models.ErrVoteNotFound
	}
	return vote, nil
}

// ListVotes retrieves all votes cast on an activity.
func (s *VerificationService) ListVotes(ctx context.Context, activityID uint) ([]*models.Validation, error) {
	if _, err := s.GetActivity(ctx, activityID); err != nil {
		return nil, err
	}
	return s.repo.ListValidations(ctx, activityID)
}

// SubmitExternalVerification resolves a pending activity from a device
// or third-party service attestation. Admin only; the supplied method
// must match the activity's declared method.
func (s *VerificationService) SubmitExternalVerification(ctx context.Context, caller string, activityID uint, method models.VerificationMethod, payload string) error {
	if err := s.guard.Require(caller); err != nil {
		return err
	}

	lock := s.lockActivity(activityID)
	lock.Lock()
	defer lock.Unlock()

	activity, err := s.repo.GetActivity(ctx, activityID)
	if err != nil {
		return err
	}
	if activity == nil {
		return models.ErrActivityNotFound
	}
	if activity.Status.Terminal() {
		return models.ErrAlreadyVerified
	}
	if method != activity.Method {
		return models.ErrInvalidMethod
	}

	outcome, err := s.engine.ResolveExternal(method)
	if err != nil {
		return err
	}

	if err := s.repo.FinalizeActivity(ctx, activityID, outcome.Status, outcome.Confidence); err != nil {
		return err
	}
	activity.Status = outcome.Status
	activity.ConfidenceScore = outcome.Confidence

	s.audit(ctx, caller, "external_verification", fmt.Sprintf("activity:%d", activityID), payload)
	logger.Info("External verification applied",
		zap.Uint("activityID", activityID),
		zap.String("method", string(method)),
		zap.Uint8("confidence", outcome.Confidence),
	)

	s.attestOutcome(ctx, activity)
	return nil
}

// ReviewMediaEvidence resolves a pending photo/video activity from an
// admin review. Admin only.
func (s *VerificationService) ReviewMediaEvidence(ctx context.Context, caller string, activityID uint, approved bool) error {
	if err := s.guard.Require(caller); err != nil {
		return err
	}

	lock := s.lockActivity(activityID)
	lock.Lock()
	defer lock.Unlock()

	activity, err := s.repo.GetActivity(ctx, activityID)
	if err != nil {
		return err
	}
	if activity == nil {
		return models.ErrActivityNotFound
	}
	if activity.Status.Terminal() {
		return models.ErrAlreadyVerified
	}

	outcome, err := s.engine.ResolveMediaReview(activity.Method, approved)
	if err != nil {
		return err
	}

	if err := s.repo.FinalizeActivity(ctx, activityID, outcome.Status, outcome.Confidence); err != nil {
		return err
	}
	activity.Status = outcome.Status
	activity.ConfidenceScore = outcome.Confidence

	s.audit(ctx, caller, "media_review", fmt.Sprintf("activity:%d", activityID), fmt.Sprintf("approved=%t", approved))
	logger.Info("Media evidence reviewed",
		zap.Uint("activityID", activityID),
		zap.Bool("approved", approved),
	)

	s.attestOutcome(ctx, activity)
	return nil
}

// RejectVerification explicitly rejects a pending activity. This is the
// only path out of pending for requests that expired before quorum.
// Admin only. The reason is kept in the audit log.
func (s *VerificationService) RejectVerification(ctx context.Context, caller string, activityID uint, reason string) error {
	if err := s.guard.Require(caller); err != nil {
		return err
	}

	lock := s.lockActivity(activityID)
	lock.Lock()
	defer lock.Unlock()

	activity, err := s.repo.GetActivity(ctx, activityID)
	if err != nil {
		return err
	}
	if activity == nil {
		return models.ErrActivityNotFound
	}
	if activity.Status.Terminal() {
		return models.ErrAlreadyVerified
	}

	if err := s.repo.FinalizeActivity(ctx, activityID, models.StatusRejected, 0); err != nil {
		return err
	}
	activity.Status = models.StatusRejected
	activity.ConfidenceScore = 0

	s.audit(ctx, caller, "reject_verification", fmt.Sprintf("activity:%d", activityID), reason)
	logger.Info("Verification rejected",
		zap.Uint("activityID", activityID),
		zap.String("caller", caller),
	)

	s.attestOutcome(ctx, activity)
	return nil
}

// TransferAdmin hands the admin role to a new principal. Current admin only.
func (s *VerificationService) TransferAdmin(ctx context.Context, caller, newAdmin string) error {
	if err := s.guard.Transfer(caller, newAdmin); err != nil {
		return err
	}
	s.audit(ctx, caller, "transfer_admin", newAdmin, "")
	logger.Info("Admin transferred",
		zap.String("from", caller),
		zap.String("to", newAdmin),
	)
	return nil
}

// GetStats retrieves registry statistics. Admin only.
func (s *VerificationService) GetStats(ctx context.Context, caller string) (map[string]interface{}, error) {
	if err := s.guard.Require(caller); err != nil {
		return nil, err
	}
	return s.repo.GetStats(ctx)
}

// attestOutcome publishes a finalized outcome to the downstream reward
// contract. Attestation failures are recorded, never surfaced to the
// verification caller.
func (s *VerificationService) attestOutcome(ctx context.Context, activity *models.Activity) {
	if s.attestor == nil {
		return
	}

	record := &models.Attestation{
		ActivityID:     activity.ID,
		Reporter:       activity.Reporter,
		ActivityStatus: activity.Status,
		Confidence:     activity.ConfidenceScore,
		Digest:         attestor.OutcomeDigest(activity.ID, activity.Reporter, activity.Status, activity.ConfidenceScore).Hex(),
		Status:         "pending",
	}

	signature, err := s.attestor.PublishOutcome(ctx, activity.ID, activity.Reporter, activity.Status, activity.ConfidenceScore)
	if err != nil {
		record.Status = "failed"
		record.ErrorMessage = err.Error()
		logger.Error("Failed to publish outcome", zap.Uint("activityID", activity.ID), zap.Error(err))
	} else {
		record.Signature = signature
	}

	if err := s.repo.CreateAttestation(ctx, record); err != nil {
		logger.Error("Failed to save attestation record", zap.Error(err))
	}
}

func (s *VerificationService) audit(ctx context.Context, caller, action, target, detail string) {
	entry := &models.AuditEntry{
		ID:     uuid.NewString(),
		Caller: caller,
		Action: action,
		Target: target,
		Detail: detail,
	}
	if err := s.repo.CreateAudit(ctx, entry); err != nil {
		logger.Error("Failed to write audit entry", zap.Error(err))
	}
}
