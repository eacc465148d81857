package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess      = 0
	CodeParamError   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeServerError  = 500
)

// 业务错误码，按错误分类分段：
// 1xxx 校验类 / 2xxx 不存在类 / 3xxx 冲突类
const (
	CodeInvalidAmount        = 1001
	CodeInvalidPaymentMethod = 1002
	CodeOwnerKindNotAllowed  = 1003

	CodeAccountNotFound     = 2001
	CodeTransactionNotFound = 2002
	CodeBankAccountNotFound = 2003

	CodePendingExists          = 3001
	CodeBalanceNotEnough       = 3002
	CodeServiceChargeNotEnough = 3003
	CodeNoServiceCharge        = 3004
	CodeThresholdExceeded      = 3005
	CodeStatusInvalid          = 3006
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}
