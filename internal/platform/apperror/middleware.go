package apperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// FieldError 是校验失败时返回给客户端的单条错误。
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Middleware 在处理函数返回后统一渲染 c.Errors 中的最后一个错误。
// 处理函数只需调用 c.Error(err) 并返回。
func Middleware(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		if fieldErrs, ok := bindingErrors(err); ok {
			c.JSON(http.StatusBadRequest, gin.H{"errors": fieldErrs})
			return
		}

		kind := KindOf(err)
		status := Status(kind)
		if status >= http.StatusInternalServerError {
			log.Error("请求处理失败",
				"method", c.Request.Method,
				"path", c.FullPath(),
				"error", err)
			c.JSON(status, gin.H{"message": "Internal Server Error"})
			return
		}

		var ae *Error
		errors.As(err, &ae)
		if ae.Field != "" {
			c.JSON(status, gin.H{"errors": []FieldError{{Field: ae.Field, Message: ae.Message}}})
			return
		}
		c.JSON(status, gin.H{"message": ae.Message})
	}
}

// NoRoute 处理未注册的路由。
func NoRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"message": "Not Found"})
}

// bindingErrors 把 gin 绑定阶段产生的错误转换为字段错误列表。
func bindingErrors(err error) ([]FieldError, bool) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, FieldError{Field: fe.Field(), Message: describe(fe)})
		}
		return out, true
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return []FieldError{{Message: "request body is required"}}, true
	case errors.As(err, &typeErr):
		return []FieldError{{Field: typeErr.Field, Message: fmt.Sprintf("%s must be of type %s", typeErr.Field, typeErr.Type)}}, true
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return []FieldError{{Message: "request body is not valid JSON"}}, true
	}
	return nil, false
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min", "max", "gte", "lte":
		if fe.Field() == "score" {
			return "Score must be an integer between 1 and 5"
		}
		return fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s failed on the '%s' rule", fe.Field(), fe.Tag())
	}
}
