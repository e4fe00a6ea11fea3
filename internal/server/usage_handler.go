package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joelbyler272/naturescripts-sub001/internal/server/middleware"
	"github.com/joelbyler272/naturescripts-sub001/pkg/usage"
)

type (
	usageServicer interface {
		CheckCanConsult(ctx context.Context, userID string) (usage.Status, error)
		Consume(ctx context.Context, userID string) (usage.Status, bool, error)
	}
	usageObserver interface {
		ObserveUsageCheck(tier string, allowed bool)
		ObserveUsageStoreError(operation string)
	}
	consultationResponseDTO struct {
		ConsultationID string       `json:"consultation_id"`
		Usage          usage.Status `json:"usage"`
	}
)

const upgradeRequiredCode = "upgrade_required"

// UsageHandler reports the weekly quota. Store failures are surfaced as 503, never as a quota answer.
func UsageHandler(s usageServicer, observer usageObserver) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		logger := middleware.Logger(ctx)
		userID, _ := middleware.UserID(ctx)

		status, err := s.CheckCanConsult(ctx.Request.Context(), userID)
		if err != nil {
			logger.Error("could not read usage status", "user_id", userID, "error", err)
			observer.ObserveUsageStoreError("status")
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "usage status unavailable"})
			return
		}

		ctx.JSON(http.StatusOK, status)
	}
}

// ConsultationHandler counts the consultation only while it fits the weekly quota and fails closed
// on store errors.
func ConsultationHandler(s usageServicer, observer usageObserver) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		logger := middleware.Logger(ctx)
		userID, _ := middleware.UserID(ctx)

		status, consumed, err := s.Consume(ctx.Request.Context(), userID)
		if err != nil {
			logger.Error("could not record consultation", "user_id", userID, "error", err)
			observer.ObserveUsageStoreError("consume")
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "usage status unavailable"})
			return
		}

		observer.ObserveUsageCheck(status.Tier.String(), consumed)
		if !consumed {
			logger.Info("weekly consultation quota reached", "user_id", userID, "count", status.CurrentCount, "limit", status.WeeklyLimit)
			ctx.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error": "upgrade required",
				"code":  upgradeRequiredCode,
				"usage": status,
			})
			return
		}

		consultationID := uuid.NewString()
		logger.Info("consultation created", "user_id", userID, "consultation_id", consultationID, "count", status.CurrentCount)

		ctx.JSON(http.StatusCreated, consultationResponseDTO{
			ConsultationID: consultationID,
			Usage:          status,
		})
	}
}
