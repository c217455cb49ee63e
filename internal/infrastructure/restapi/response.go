package restapi

import (
	"balance_aggregator/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

// APIResponse is the envelope every API endpoint answers with.
type APIResponse struct {
	Data          any                   `json:"data"`
	ServiceErrors []entity.ServiceError `json:"service_errors,omitempty"`
	StatusMessage string                `json:"status_message"`
}

func respond(c *gin.Context, status int, data any, message string, errs ...entity.ServiceError) {
	c.JSON(status, APIResponse{
		Data:          data,
		ServiceErrors: errs,
		StatusMessage: message,
	})
}

// Источники ошибок в service_errors.
const (
	sourceWallets  = "wallet-service"
	sourceRequest  = "request"
	sourceRealtime = "realtime"
)
