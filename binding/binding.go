// Package binding 展开文件名与文档标题中的 ${...} 占位符。
package binding

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var exprPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Vars 是占位符的取值来源，值可以是标量、map[string]any、map[string]string、
// []any 或 []string，支持 ${a.b[0]} 形式的路径。
type Vars map[string]any

// Standard 返回内置变量：date（YYYY-MM-DD）、time（HH-MM-SS）、year、timestamp（毫秒）。
func Standard(now time.Time) Vars {
	return Vars{
		"date":      now.Format(time.DateOnly),
		"time":      now.Format("15-04-05"),
		"year":      now.Year(),
		"timestamp": now.UnixMilli(),
	}
}

// With 返回合并了 extra 的新变量表，extra 中的同名键优先。
func (v Vars) With(extra Vars) Vars {
	out := make(Vars, len(v)+len(extra))
	for k, val := range v {
		out[k] = val
	}
	for k, val := range extra {
		out[k] = val
	}
	return out
}

// Interpolate 将 text 中的 ${path} 替换为 vars 中的值。${path|fallback} 在路径
// 不存在或值为空串时使用 fallback；没有 fallback 的未知路径保留原样。
func Interpolate(text string, vars Vars) string {
	return exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		expr := match[2 : len(match)-1]
		path, fallback, hasFallback := strings.Cut(expr, "|")
		path = strings.TrimSpace(path)
		if path != "" && vars != nil {
			if val, ok := resolvePath(map[string]any(vars), path); ok {
				if s := fmt.Sprint(val); s != "" || !hasFallback {
					return s
				}
			}
		}
		if hasFallback {
			return fallback
		}
		return match
	})
}

func resolvePath(data any, path string) (any, bool) {
	current := data
	for _, segment := range strings.Split(path, ".") {
		name, indexes, ok := parseSegment(segment)
		if !ok {
			return nil, false
		}
		if name != "" {
			if current, ok = descendMap(current, name); !ok {
				return nil, false
			}
		}
		for _, idx := range indexes {
			if current, ok = descendSlice(current, idx); !ok {
				return nil, false
			}
		}
	}
	return current, true
}

// parseSegment 拆分 "rows[1][0]" 为名称与下标列表。
func parseSegment(segment string) (string, []int, bool) {
	name, rest, found := strings.Cut(segment, "[")
	if !found {
		return segment, nil, true
	}
	rest = "[" + rest
	var indexes []int
	for rest != "" {
		end := strings.IndexByte(rest, ']')
		if rest[0] != '[' || end == -1 {
			return "", nil, false
		}
		idx, err := strconv.Atoi(rest[1:end])
		if err != nil {
			return "", nil, false
		}
		indexes = append(indexes, idx)
		rest = rest[end+1:]
	}
	return name, indexes, true
}

func descendMap(current any, key string) (any, bool) {
	switch c := current.(type) {
	case map[string]any:
		val, ok := c[key]
		return val, ok
	case Vars:
		val, ok := c[key]
		return val, ok
	case map[string]string:
		val, ok := c[key]
		return val, ok
	default:
		return nil, false
	}
}

func descendSlice(current any, idx int) (any, bool) {
	switch c := current.(type) {
	case []any:
		if idx < 0 || idx >= len(c) {
			return nil, false
		}
		return c[idx], true
	case []string:
		if idx < 0 || idx >= len(c) {
			return nil, false
		}
		return c[idx], true
	default:
		return nil, false
	}
}
