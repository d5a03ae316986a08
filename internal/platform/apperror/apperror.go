package apperror

import (
	"errors"
	"net/http"
)

// Kind 是业务错误的封闭分类，HTTP层只按Kind分派，不做类型继承判断。
type Kind int

const (
	// KindStorageUnavailable 表示持久化层故障，原样向上传递。
	// 未分类的错误也按此处理。
	KindStorageUnavailable Kind = iota
	// KindNotFound 表示用户或图书不存在。
	KindNotFound
	// KindConflict 表示重复借阅、无匹配借阅记录的归还等状态冲突。
	KindConflict
	// KindValidation 表示输入不合法（如评分不在1-5之间）。
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not-found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	default:
		return "storage-unavailable"
	}
}

// Error 携带错误分类、面向客户端的消息以及可选的底层错误。
type Error struct {
	Kind    Kind
	Message string
	// Field 非空时表示某个输入字段不合法，按字段错误列表渲染
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 让 errors.Is 可以按分类匹配，例如 errors.Is(err, &Error{Kind: KindConflict})。
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// InvalidField 表示某个路径参数或请求字段不合法
func InvalidField(field, message string) *Error {
	return &Error{Kind: KindValidation, Message: message, Field: field}
}

// Storage 把持久化层的失败包装为 KindStorageUnavailable。
// 已经分类过的错误保持不变。
func Storage(err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: KindStorageUnavailable, Message: "storage unavailable", Err: err}
}

// KindOf 返回错误链上第一个 *Error 的分类；未分类错误视为存储故障。
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindStorageUnavailable
}

// Status 将错误分类映射为HTTP状态码。
func Status(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
