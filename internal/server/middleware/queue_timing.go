package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const ReqArrivalTimeContextValueKey = "reqArrivalTime"

func QueueTimeMiddleware(c *gin.Context) {
	c.Set(ReqArrivalTimeContextValueKey, time.Now())
	c.Next()
}

// QueueTime is the time spent since the request reached the middleware chain.
func QueueTime(c *gin.Context) (time.Duration, bool) {
	arrival, exists := c.Get(ReqArrivalTimeContextValueKey)
	if !exists {
		return 0, false
	}
	return time.Since(arrival.(time.Time)), true
}
