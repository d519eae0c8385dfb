package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/Gopher0727/TeamMatch/middleware/log"
	"github.com/Gopher0727/TeamMatch/pkg/errcode"
)

// Response is the envelope of every API reply.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

const codeOK = 0

func success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: codeOK, Message: "ok", Data: data})
}

// fail writes err as an envelope. Errors outside the taxonomy are logged and
// replaced by a generic system error. Auth rejections are logged at warn.
func fail(c *gin.Context, log *logger.Logger, err error) {
	e := errcode.From(err)
	switch {
	case e.Kind == errcode.KindInternal:
		log.ErrorContext(c.Request.Context(), "request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		_ = c.Error(err)
		e = errcode.New(e.Kind, e.Code, e.Message)
	case errcode.IsAuth(e):
		log.WarnContext(c.Request.Context(), "request rejected",
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()),
			zap.Int("code", e.Code),
		)
	}
	c.AbortWithStatusJSON(errcode.HTTPStatus(e.Kind), Response{Code: e.Code, Message: e.Message, Data: nil})
}

func badRequest(c *gin.Context, log *logger.Logger, err error) {
	fail(c, log, errcode.ErrParams.WithMessage("malformed request: %v", err))
}
