package httptransport

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dronewatch-server-go/internal/platform/errors"
)

// APIResponse 定义统一的接口返回结构体
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
	Code    int         `json:"code"`
}

// RespondSuccess 返回成功响应
func RespondSuccess(c *gin.Context, httpStatus int, data interface{}, message string) {
	if message == "" {
		message = "ok"
	}

	resp := APIResponse{
		Success: true,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	}

	c.JSON(httpStatus, resp)
}

// RespondError 返回失败响应
func RespondError(c *gin.Context, httpStatus int, message string, data interface{}) {
	resp := APIResponse{
		Success: false,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	}

	c.JSON(httpStatus, resp)
}

// RespondErr maps err onto a status by its kind and aborts the request.
func RespondErr(c *gin.Context, err error) {
	status := StatusForError(err)
	_ = c.Error(err)
	RespondError(c, status, err.Error(), gin.H{"kind": errors.KindOf(err)})
	c.Abort()
}

// StatusForError picks the HTTP status for a kind-tagged error.
func StatusForError(err error) int {
	var typed *errors.Error
	if !stderrors.As(err, &typed) {
		return http.StatusInternalServerError
	}
	switch typed.Kind {
	case errors.KindConfig, errors.KindMalformed:
		return http.StatusBadRequest
	case errors.KindDomain:
		return http.StatusConflict
	case errors.KindCapture:
		return http.StatusServiceUnavailable
	case errors.KindBackend:
		return http.StatusBadGateway
	case errors.KindTransport:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
