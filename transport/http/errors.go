package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/payroll-auth/core"
)

// errorCodeKey holds the code of a failed request for the request logger
const errorCodeKey = "error_code"

// StatusFor maps an error code to its HTTP status
func StatusFor(code core.Code) int {
	switch code {
	case core.CodeInvalidInput:
		return http.StatusBadRequest
	case core.CodeRateLimited:
		return http.StatusTooManyRequests
	case core.CodeChallengeInvalid,
		core.CodeSignerMismatch,
		core.CodeInvalidSignature,
		core.CodeInvalidRefreshToken,
		core.CodeInvalidAccessToken:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes the error envelope. Only the code and public message
// leave the process.
func abortWithError(c *gin.Context, err error) {
	authErr := core.AsError(err)
	c.Set(errorCodeKey, string(authErr.Code))
	c.AbortWithStatusJSON(StatusFor(authErr.Code), gin.H{
		"error": gin.H{
			"code":    authErr.Code,
			"message": authErr.Message,
		},
	})
}
