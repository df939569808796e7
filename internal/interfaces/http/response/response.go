package response

import (
	"sync/atomic"

	"github.com/gin-gonic/gin"
	domainerrors "stripe-minter.backend/internal/domain/errors"
)

var exposeCause atomic.Bool

func init() {
	exposeCause.Store(true)
}

// SetEnvironment controls whether error bodies carry the underlying cause.
// Causes are hidden in production.
func SetEnvironment(env string) {
	exposeCause.Store(env != "production")
}

// Success sends a success response
func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// Error sends an error response
func Error(c *gin.Context, err error) {
	appErr := domainerrors.FromError(err)

	body := gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
		"error":   appErr.Message,
	}
	if exposeCause.Load() && appErr.Err != nil {
		body["error"] = appErr.Err.Error()
	}
	if appErr.Code == domainerrors.CodeMetadataNotReady {
		body["ready"] = false
	}

	c.JSON(appErr.Status, body)
}
