// Package errs 定义转换流程统一使用的错误分类。
//
// 每个错误都携带一个 Kind，调用方据此决定向用户展示的类别；
// LayoutError 只在单元内部出现，由回退处理吸收，不会传给调用方。
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind 表示错误类别。
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindFetch
	KindExtraction
	KindLayout
	KindSizeLimit
	KindConfig
	KindProcessing
)

// String 返回可读的类别名称，用于日志与对外的 category 字段。
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindFetch:
		return "fetch"
	case KindExtraction:
		return "extraction"
	case KindLayout:
		return "layout"
	case KindSizeLimit:
		return "size-limit"
	case KindConfig:
		return "config"
	case KindProcessing:
		return "processing"
	default:
		return "internal"
	}
}

// Error 是带类别的错误。Op 记录出错的操作名（例如 "table.layout"）。
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Msg != "" {
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		if e.Msg != "" {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	if b.Len() == 0 {
		return e.Kind.String() + " error"
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New 创建一个指定类别的错误，msg 支持 fmt 格式化。
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap 用指定类别包装底层错误；err 为 nil 时返回 nil。
func Wrap(kind Kind, op string, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

func Validation(op, format string, args ...any) *Error {
	return New(KindValidation, op, format, args...)
}

func Fetch(op, format string, args ...any) *Error {
	return New(KindFetch, op, format, args...)
}

func Extraction(op, format string, args ...any) *Error {
	return New(KindExtraction, op, format, args...)
}

func Layout(op, format string, args ...any) *Error {
	return New(KindLayout, op, format, args...)
}

func SizeLimit(op, format string, args ...any) *Error {
	return New(KindSizeLimit, op, format, args...)
}

func Config(op, format string, args ...any) *Error {
	return New(KindConfig, op, format, args...)
}

// KindOf 返回错误链上第一个 *Error 的类别；普通错误视为 KindInternal。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is 判断 err 是否属于 kind 类别。nil 永远返回 false。
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}
