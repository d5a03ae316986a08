package request

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/SlpAus/library-borrow-backend/internal/platform/apperror"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// UintParam 读取路径参数并解析为正整数ID。
// label 用于错误消息，例如 "User ID"；解析失败时错误的字段名为 key。
func UintParam(c *gin.Context, key, label string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.InvalidField(key, fmt.Sprintf("%s must be an integer", label))
	}
	return uint(id), nil
}

var registerOnce sync.Once

// UseJSONFieldNames 让校验错误中的字段名使用 json 标签，而不是Go字段名。
// 可以重复调用，只有第一次生效。
func UseJSONFieldNames() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	})
}
