package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joelbyler272/naturescripts-sub001/internal/server/middleware"
)

func healthHandler(ctx *gin.Context) {
	if queueTime, ok := middleware.QueueTime(ctx); ok {
		middleware.Logger(ctx).Debug("health check", "handler", "health", "queue_time_us", queueTime.Microseconds())
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}
