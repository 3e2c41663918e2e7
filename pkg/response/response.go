package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	pkgErrors "github.com/vogiaan1904/listenroom/pkg/errors"
)

type Resp struct {
	ErrorCode int    `json:"error_code"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Errors    any    `json:"errors,omitempty"`
}

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Resp{Message: "success", Data: data})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Resp{Message: "success", Data: data})
}

func Error(c *gin.Context, err error) {
	statusCode, resp := parseHttpError(err)
	c.AbortWithStatusJSON(statusCode, resp)
}

func parseHttpError(err error) (int, Resp) {
	var parsedErr *pkgErrors.HTTPError
	if errors.As(err, &parsedErr) {
		statusCode := parsedErr.StatusCode
		if statusCode == 0 {
			statusCode = http.StatusBadRequest
		}

		return statusCode, Resp{
			ErrorCode: parsedErr.Code,
			Message:   parsedErr.Message,
		}
	}

	return http.StatusInternalServerError, Resp{
		ErrorCode: 500,
		Message:   "Internal server error",
	}
}
