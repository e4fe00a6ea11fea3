package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joelbyler272/naturescripts-sub001/internal/server/middleware"
	"github.com/joelbyler272/naturescripts-sub001/pkg/config"
	"github.com/joelbyler272/naturescripts-sub001/pkg/enum"
	"github.com/joelbyler272/naturescripts-sub001/pkg/rate_limiter"
)

type (
	rateLimitAdminServicer interface {
		Reset(ctx context.Context, identifier, policyName string) error
		Peek(ctx context.Context, identifier, policyName string) (rate_limiter.Entry, bool, error)
		HasPolicy(policyName string) bool
	}
	tierServicer interface {
		SetTier(ctx context.Context, userID string, tier enum.Tier) error
	}
	rateLimitStatusResponseDTO struct {
		Policy     string    `json:"policy"`
		Identifier string    `json:"identifier"`
		Count      int       `json:"count"`
		ResetAt    time.Time `json:"reset_at"`
	}
	setTierRequestDTO struct {
		Tier *enum.Tier `json:"tier" binding:"required"`
	}
)

func knownPolicy(s rateLimitAdminServicer, policy string) bool {
	return policy == config.DefaultRateLimitKey || s.HasPolicy(policy)
}

func GetRateLimitStatusHandler(s rateLimitAdminServicer) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		policy, identifier := ctx.Param("policy"), ctx.Param("identifier")
		if !knownPolicy(s, policy) {
			ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown policy"})
			return
		}

		entry, ok, err := s.Peek(ctx.Request.Context(), identifier, policy)
		if err != nil {
			middleware.Logger(ctx).Error("could not read rate limit entry", "policy", policy, "identifier", identifier, "error", err)
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "rate limiter unavailable"})
			return
		}
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no entry"})
			return
		}

		ctx.JSON(http.StatusOK, rateLimitStatusResponseDTO{
			Policy:     policy,
			Identifier: identifier,
			Count:      entry.Count,
			ResetAt:    entry.ResetTime,
		})
	}
}

func DeleteRateLimitHandler(s rateLimitAdminServicer) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		policy, identifier := ctx.Param("policy"), ctx.Param("identifier")
		if !knownPolicy(s, policy) {
			ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown policy"})
			return
		}

		if err := s.Reset(ctx.Request.Context(), identifier, policy); err != nil {
			middleware.Logger(ctx).Error("could not reset rate limit entry", "policy", policy, "identifier", identifier, "error", err)
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "rate limiter unavailable"})
			return
		}

		middleware.Logger(ctx).Info("rate limit entry reset", "policy", policy, "identifier", identifier)
		ctx.Status(http.StatusNoContent)
	}
}

func SetTierHandler(s tierServicer) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var reqDTO setTierRequestDTO
		if err := ctx.ShouldBindJSON(&reqDTO); err != nil {
			ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		userID := ctx.Param("id")
		if err := s.SetTier(ctx.Request.Context(), userID, *reqDTO.Tier); err != nil {
			middleware.Logger(ctx).Error("could not store tier", "user_id", userID, "error", err)
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "usage store unavailable"})
			return
		}

		ctx.JSON(http.StatusOK, gin.H{"user_id": userID, "tier": reqDTO.Tier.String()})
	}
}
