package repository

import (
	"context"
	"fmt"

	"github.com/greenledger/verification-service/internal/models"
	"gorm.io/gorm"
)

// VerificationRepository handles database operations for activities,
// verification requests, validators and votes.
type VerificationRepository struct {
	db *gorm.DB
}

// NewVerificationRepository creates a new verification repository.
func NewVerificationRepository(db *gorm.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Transact runs fn inside a single database transaction. The repository
// passed to fn shares the transaction handle, so every operation inside
// fn commits or rolls back as one unit.
func (r *VerificationRepository) Transact(ctx context.Context, fn func(tx *VerificationRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&VerificationRepository{db: tx})
	})
}

// CreateActivityWithRequest creates an activity and its paired
// verification request atomically. The activity ID is assigned by the
// store's auto-increment key and copied onto the request.
func (r *VerificationRepository) CreateActivityWithRequest(ctx context.Context, activity *models.Activity, request *models.VerificationRequest) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(activity).Error; err != nil {
			return fmt.Errorf("failed to create activity: %w", err)
		}
		request.ActivityID = activity.ID
		if err := tx.Create(request).Error; err != nil {
			return fmt.Errorf("failed to create verification request: %w", err)
		}
		return nil
	})
}

// GetActivity retrieves an activity by ID.
func (r *VerificationRepository) GetActivity(ctx context.Context, id uint) (*models.Activity, error) {
	var activity models.Activity
	err := r.db.WithContext(ctx).First(&activity, id).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}

	return &activity, nil
}

// ListActivities retrieves activities with optional status filter and
// pagination, newest first.
func (r *VerificationRepository) ListActivities(ctx context.Context, status models.ActivityStatus, limit, offset int) ([]*models.Activity, error) {
	var activities []*models.Activity
	query := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Offset(offset)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Find(&activities).Error; err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}

	return activities, nil
}

// FinalizeActivity moves a pending activity to a terminal status,
// setting the confidence score in the same update. The pending guard in
// the WHERE clause makes the transition single-shot: a second finalize
// attempt matches no rows.
func (r *VerificationRepository) FinalizeActivity(ctx context.Context, id uint, status models.ActivityStatus, confidence uint8) error {
	res := r.db.WithContext(ctx).
		Model(&models.Activity{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Updates(map[string]interface{}{
			"status":           status,
			"confidence_score": confidence,
		})

	if res.Error != nil {
		return fmt.Errorf("failed to finalize activity: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrAlreadyVerified
	}

	return nil
}

// GetRequest retrieves the verification request paired with an activity.
func (r *VerificationRepository) GetRequest(ctx context.Context, activityID uint) (*models.VerificationRequest, error) {
	var request models.VerificationRequest
	err := r.db.WithContext(ctx).
		Where("activity_id = ?", activityID).
		First(&request).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verification request: %w", err)
	}

	return &request, nil
}

// IncrementVoteCount bumps the request's current validator count with an
// atomic in-database increment and returns the new count. Read-then-write
// would lose updates under concurrent votes.
func (r *VerificationRepository) IncrementVoteCount(ctx context.Context, activityID uint) (uint8, error) {
	res := r.db.WithContext(ctx).
		Model(&models.VerificationRequest{}).
		Where("activity_id = ?", activityID).
		UpdateColumn("current_validators", gorm.Expr("current_validators + 1"))

	if res.Error != nil {
		return 0, fmt.Errorf("failed to increment vote count: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, models.ErrActivityNotFound
	}

	request, err := r.GetRequest(ctx, activityID)
	if err != nil {
		return 0, err
	}

	return request.CurrentValidators, nil
}

// SaveValidator creates or replaces a validator record by address.
func (r *VerificationRepository) SaveValidator(ctx context.Context, validator *models.Validator) error {
	var existing models.Validator
	err := r.db.WithContext(ctx).
		Where("address = ?", validator.Address).
		First(&existing).Error

	if err == gorm.ErrRecordNotFound {
		return r.db.WithContext(ctx).Create(validator).Error
	}
	if err != nil {
		return fmt.Errorf("failed to check existing validator: %w", err)
	}

	validator.ID = existing.ID
	validator.CreatedAt = existing.CreatedAt
	return r.db.WithContext(ctx).Save(validator).Error
}

// UpdateValidator persists changes to an existing validator record.
func (r *VerificationRepository) UpdateValidator(ctx context.Context, validator *models.Validator) error {
	return r.db.WithContext(ctx).Save(validator).Error
}

// GetValidator retrieves a validator by address.
func (r *VerificationRepository) GetValidator(ctx context.Context, address string) (*models.Validator, error) {
	var validator models.Validator
	err := r.db.WithContext(ctx).
		Where("address = ?", address).
		First(&validator).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get validator: %w", err)
	}

	return &validator, nil
}

// GetValidators retrieves validator records for a set of addresses,
// keyed by address.
func (r *VerificationRepository) GetValidators(ctx context.Context, addresses []string) (map[string]*models.Validator, error) {
	var validators []*models.Validator
	err := r.db.WithContext(ctx).
		Where("address IN ?", addresses).
		Find(&validators).Error

	if err != nil {
		return nil, fmt.Errorf("failed to get validators: %w", err)
	}

	byAddress := make(map[string]*models.Validator, len(validators))
	for _, v := range validators {
		byAddress[v.Address] = v
	}

	return byAddress, nil
}

// IncrementValidationCount bumps a validator's lifetime vote counter.
func (r *VerificationRepository) IncrementValidationCount(ctx context.Context, address string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Validator{}).
		Where("address = ?", address).
		UpdateColumn("validation_count", gorm.Expr("validation_count + 1"))

	if res.Error != nil {
		return fmt.Errorf("failed to increment validation count: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrValidatorNotRegistered
	}

	return nil
}

// CreateValidation records a vote. The composite unique index on
// (activity_id, validator_address) is the replay-protection backstop.
func (r *VerificationRepository) CreateValidation(ctx context.Context, validation *models.Validation) error {
	return r.db.WithContext(ctx).Create(validation).Error
}

// GetValidation retrieves a vote by its (activity, validator) key.
func (r *VerificationRepository) GetValidation(ctx context.Context, activityID uint, validatorAddress string) (*models.Validation, error) {
	var validation models.Validation
	err := r.db.WithContext(ctx).
		Where("activity_id = ? AND validator_address = ?", activityID, validatorAddress).
		First(&validation).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get validation: %w", err)
	}

	return &validation, nil
}

// ListValidations retrieves all votes cast on an activity in vote order.
func (r *VerificationRepository) ListValidations(ctx context.Context, activityID uint) ([]*models.Validation, error) {
	var validations []*models.Validation
	err := r.db.WithContext(ctx).
		Where("activity_id = ?", activityID).
		Order("voted_at ASC").
		Find(&validations).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list validations: %w", err)
	}

	return validations, nil
}

// CreateAudit appends an audit log entry.
func (r *VerificationRepository) CreateAudit(ctx context.Context, entry *models.AuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// CreateAttestation records an outcome publication attempt.
func (r *VerificationRepository) CreateAttestation(ctx context.Context, attestation *models.Attestation) error {
	return r.db.WithContext(ctx).Create(attestation).Error
}

// GetPendingAttestations retrieves attestations not yet confirmed.
func (r *VerificationRepository) GetPendingAttestations(ctx context.Context) ([]*models.Attestation, error) {
	var attestations []*models.Attestation
	err := r.db.WithContext(ctx).
		Where("status = ?", "pending").
		Order("created_at ASC").
		Find(&attestations).Error

	if err != nil {
		return nil, fmt.Errorf("failed to get pending attestations: %w", err)
	}

	return attestations, nil
}

// GetStats retrieves registry statistics.
func (r *VerificationRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	for _, status := range []models.ActivityStatus{models.StatusPending, models.StatusVerified, models.StatusRejected} {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.Activity{}).Where("status = ?", status).Count(&count).Error; err != nil {
			return nil, err
		}
		stats[fmt.Sprintf("activities_%s", status)] = count
	}

	var activeValidators int64
	if err := r.db.WithContext(ctx).Model(&models.Validator{}).Where("active = ?", true).Count(&activeValidators).Error; err != nil {
		return nil, err
	}
	stats["active_validators"] = activeValidators

	var votesCast int64
	if err := r.db.WithContext(ctx).Model(&models.Validation{}).Count(&votesCast).Error; err != nil {
		return nil, err
	}
	stats["votes_cast"] = votesCast

	var pendingAttestations int64
	if err := r.db.WithContext(ctx).Model(&models.Attestation{}).Where("status = ?", "pending").Count(&pendingAttestations).Error; err != nil {
		return nil, err
	}
	stats["pending_attestations"] = pendingAttestations

	return stats, nil
}
