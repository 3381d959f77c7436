package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/greenledger/verification-service/internal/models"
	"github.com/greenledger/verification-service/internal/service"
	"github.com/greenledger/verification-service/pkg/logger"
	"go.uber.org/zap"
)

// callerHeader carries the pre-validated caller identity supplied by the
// fronting gateway. The service performs all authorization checks.
const callerHeader = "X-Caller-Address"

// VerificationHandler handles verification API requests
type VerificationHandler struct {
	service *service.VerificationService
}

// NewVerificationHandler creates a new verification handler
func NewVerificationHandler(service *service.VerificationService) *VerificationHandler {
	return &VerificationHandler{
		service: service,
	}
}

// SubmitActivityRequest represents a new activity claim
type SubmitActivityRequest struct {
	Category     string `json:"category" binding:"required"`
	Description  string `json:"description" binding:"max=512"`
	Method       string `json:"method" binding:"required"`
	EvidenceHash string `json:"evidence_hash"`
	Latitude     *int32 `json:"latitude"`
	Longitude    *int32 `json:"longitude"`
}

// CastVoteRequest represents a validator vote
type CastVoteRequest struct {
	Approved bool   `json:"approved"`
	Note     string `json:"note" binding:"max=256"`
}

// ExternalVerificationRequest represents a device/service attestation
type ExternalVerificationRequest struct {
	Method  string `json:"method" binding:"required"`
	Payload string `json:"payload"`
}

// MediaReviewRequest represents an admin media review decision
type MediaReviewRequest struct {
	Approved bool `json:"approved"`
}

// RejectRequest represents an explicit admin rejection
type RejectRequest struct {
	Reason string `json:"reason" binding:"required,max=512"`
}

// RegisterValidatorRequest represents a validator registration
type RegisterValidatorRequest struct {
	Address    string `json:"address" binding:"required"`
	TrustScore int    `json:"trust_score"`
}

// TransferAdminRequest represents an admin hand-off
type TransferAdminRequest struct {
	NewAdmin string `json:"new_admin" binding:"required"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// SubmitActivity records a new activity claim
// @Router /api/v1/activities [post]
func (h *VerificationHandler) SubmitActivity(c *gin.Context) {
	var req SubmitActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	activity, err := h.service.SubmitActivity(c.Request.Context(), caller(c), service.SubmitActivityInput{
		Category:     req.Category,
		Description:  req.Description,
		Method:       models.VerificationMethod(req.Method),
		EvidenceHash: req.EvidenceHash,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
	})
	if err != nil {
		respondError(c, err, "Failed to submit activity")
		return
	}

	c.JSON(http.StatusCreated, activity)
}

// GetActivity retrieves an activity
// @Router /api/v1/activities/{id} [get]
func (h *VerificationHandler) GetActivity(c *gin.Context) {
	id, ok := activityID(c)
	if !ok {
		return
	}

	activity, err := h.service.GetActivity(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to retrieve activity")
		return
	}

	c.JSON(http.StatusOK, activity)
}

// ListActivities retrieves activities, optionally filtered by status
// @Router /api/v1/activities [get]
func (h *VerificationHandler) ListActivities(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	activities, err := h.service.ListActivities(c.Request.Context(), models.ActivityStatus(c.Query("status")), limit, offset)
	if err != nil {
		respondError(c, err, "Failed to list activities")
		return
	}

	c.JSON(http.StatusOK, activities)
}

// GetVerificationRequest retrieves the request paired with an activity
// @Router /api/v1/activities/{id}/request [get]
func (h *VerificationHandler) GetVerificationRequest(c *gin.Context) {
	id, ok := activityID(c)
	if !ok {
		return
	}

	request, err := h.service.GetVerificationRequest(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to retrieve verification request")
		return
	}

	c.JSON(http.StatusOK, request)
}

// IsExpired reports whether the activity's verification window passed
// @Router /api/v1/activities/{id}/expired [get]
func (h *VerificationHandler) IsExpired(c *gin.Context) {
	id, ok := activityID(c)
	if !ok {
		return
	}

	expired, err := h.service.IsVerificationExpired(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to check expiry")
		return
	}

	c.JSON(http.StatusOK, gin.H{"activity_id": id, "expired": expired})
}

// CastVote records a community-validation vote
// @Router /api/v1/activities/{id}/votes [post]
func (h *VerificationHandler) CastVote(c *gin.Context) {
	id, ok := activityID(c)
	if !ok {
		return
	}

	var req CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	vote, err := h.service.CastVote(c.Request.Context(), caller(c), id, req.Approved, req.Note)
	if err != nil {
		respondError(c, err, "Failed to cast vote")
		return
	}

	c.JSON(http.StatusCreated, vote)
}

// GetVote retrieves one validator's vote on an activity
// @Router /api/v1/activities/{id}/votes/{validator} [get]
func (h *VerificationHandler) GetVote(c *gin.Context) {
	id, ok := activityID(c)
	if !ok {
		return
	}

	vote, err := h.service.GetVote(c.Request.Context(), id, c.Param("validator"))
	if err != nil {
		respondError(c, err, "Failed to retrieve vote")
		return
	}

	c.JSON(http.StatusOK, vote)
}

// ListVotes retrieves all votes on an activity
// @Router /api/v1/activities/{id}/votes [get]
func (h *VerificationHandler) ListVotes(c *gin.Context) {
	id, ok := activityID(c)
	if !ok {
		return
	}

	votes, err := h.service.ListVotes(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to list votes")
		return
	}

	c.JSON(http.StatusOK, votes)
}

// SubmitExternalVerification applies a device/service attestation
// @Router /api/v1/activities/{id}/external [post]
func (h *VerificationHandler) SubmitExternalVerification(c *gin.Context) {
	id, ok := activityID(c)
	if !ok {
		return
	}

	var req ExternalVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	err := h.service.SubmitExternalVerification(c.Request.Context(), caller(c), id, models.VerificationMethod(req.Method), req.Payload)
	if err != nil {
		respondError(c, err, "Failed to apply external verification")
		return
	}

	c.JSON(http.StatusOK, gin.H{"activity_id": id, "status": "resolved"})
}

// ReviewMediaEvidence applies an admin media review decision
// @Router /api/v1/activities/{id}/review [post]
func (h *VerificationHandler) ReviewMediaEvidence(c *gin.Context) {
	id, ok := activityID(c)
	if !ok {
		return
	}

	var req MediaReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.service.ReviewMediaEvidence(c.Request.Context(), caller(c), id, req.Approved); err != nil {
		respondError(c, err, "Failed to review media evidence")
		return
	}

	c.JSON(http.StatusOK, gin.H{"activity_id": id, "status": "resolved"})
}

// RejectVerification explicitly rejects a pending activity
// @Router /api/v1/activities/{id}/reject [post]
func (h *VerificationHandler) RejectVerification(c *gin.Context) {
	id, ok := activityID(c)
	if !ok {
		return
	}

	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.service.RejectVerification(c.Request.Context(), caller(c), id, req.Reason); err != nil {
		respondError(c, err, "Failed to reject verification")
		return
	}

	c.JSON(http.StatusOK, gin.H{"activity_id": id, "status": "rejected"})
}

// RegisterValidator creates or replaces a validator record
// @Router /api/v1/validators [post]
func (h *VerificationHandler) RegisterValidator(c *gin.Context) {
	var req RegisterValidatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.service.RegisterValidator(c.Request.Context(), caller(c), req.Address, req.TrustScore); err != nil {
		respondError(c, err, "Failed to register validator")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"address": req.Address})
}

// DeactivateValidator soft-disables a validator
// @Router /api/v1/validators/{address}/deactivate [post]
func (h *VerificationHandler) DeactivateValidator(c *gin.Context) {
	address := c.Param("address")

	if err := h.service.DeactivateValidator(c.Request.Context(), caller(c), address); err != nil {
		respondError(c, err, "Failed to deactivate validator")
		return
	}

	c.JSON(http.StatusOK, gin.H{"address": address, "active": false})
}

// GetValidatorInfo retrieves a validator record
// @Router /api/v1/validators/{address} [get]
func (h *VerificationHandler) GetValidatorInfo(c *gin.Context) {
	validator, err := h.service.GetValidatorInfo(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondError(c, err, "Failed to retrieve validator")
		return
	}

	c.JSON(http.StatusOK, validator)
}

// TransferAdmin hands the admin role to a new principal
// @Router /api/v1/admin/transfer [post]
func (h *VerificationHandler) TransferAdmin(c *gin.Context) {
	var req TransferAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.service.TransferAdmin(c.Request.Context(), caller(c), req.NewAdmin); err != nil {
		respondError(c, err, "Failed to transfer admin")
		return
	}

	c.JSON(http.StatusOK, gin.H{"admin": req.NewAdmin})
}

// GetStats retrieves registry statistics
// @Router /api/v1/admin/stats [get]
func (h *VerificationHandler) GetStats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context(), caller(c))
	if err != nil {
		respondError(c, err, "Failed to retrieve statistics")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// HealthCheck reports service liveness
// @Router /health [get]
func (h *VerificationHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func caller(c *gin.Context) string {
	return c.GetHeader(callerHeader)
}

func activityID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid activity ID",
			Message: err.Error(),
		})
		return 0, false
	}
	return uint(id), true
}

func badRequest(c *gin.Context, err error) {
	logger.Error("Invalid request", zap.Error(err))
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "Invalid request",
		Message: err.Error(),
	})
}

func respondError(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, models.ErrNotAuthorized),
		errors.Is(err, models.ErrValidatorInactive):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrActivityNotFound),
		errors.Is(err, models.ErrValidatorNotRegistered),
		errors.Is(err, models.ErrVoteNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrAlreadyVerified),
		errors.Is(err, models.ErrDuplicateVote):
		status = http.StatusConflict
	case errors.Is(err, models.ErrVerificationExpired):
		status = http.StatusGone
	case errors.Is(err, models.ErrInvalidMethod),
		errors.Is(err, models.ErrInvalidTrustScore),
		errors.Is(err, models.ErrMissingEvidence):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		logger.Error(message, zap.Error(err))
	}

	c.JSON(status, ErrorResponse{
		Error:   message,
		Message: err.Error(),
	})
}
