package utils

import "github.com/gin-gonic/gin"

// JSONResponse defines the uniform structure for API responses.
type JSONResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Stable taxonomy codes surfaced to callers. Internal details and stack
// traces never leave the process.
const (
	CodeValidation       = 40001 // missing or malformed required field
	CodeNotFound         = 40401 // unknown post id
	CodeRouteNotFound    = 40400
	CodeRateLimited      = 42901
	CodeStoreUnavailable = 50301 // content or notification store unreachable
	CodeInternal         = 50001
)

// Respond writes a JSON response with the given status code.
func Respond(ctx *gin.Context, status int, code int, message string, data interface{}) {
	ctx.JSON(status, JSONResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// Success returns a standard success response.
func Success(ctx *gin.Context, data interface{}) {
	Respond(ctx, 200, 0, "success", data)
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, code int, message string) {
	Respond(ctx, status, code, message, nil)
}
