package source

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Reader 从 Attributes 中读取类型化的值，记录遇到的第一个错误
// 缺失的属性返回零值，类型不符才算错误
type Reader struct {
	attrs Attributes
	err   error
}

// Read 创建 Reader
func Read(attrs Attributes) *Reader {
	return &Reader{attrs: attrs}
}

// Err 返回第一个读取错误
func (r *Reader) Err() error {
	return r.err
}

// Has 属性是否存在且非空
func (r *Reader) Has(key string) bool {
	v, ok := r.attrs[key]
	return ok && v != nil
}

func (r *Reader) fail(key string, v any, reason string) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s=%v (%T): %s", ErrMalformed, key, v, v, reason)
	}
}

// String 读取字符串，数字与布尔值按文本返回
func (r *Reader) String(key string) string {
	v, ok := r.attrs[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "True"
		}
		return "False"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []string:
		if len(t) == 1 {
			return t[0]
		}
	case []any:
		if len(t) == 1 {
			if s, ok := t[0].(string); ok {
				return s
			}
		}
	}
	r.fail(key, v, "expected a single text value")
	return ""
}

// Bool 读取布尔值，接受 true/false 文本与 0/1
func (r *Reader) Bool(key string) bool {
	v, ok := r.attrs[key]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			r.fail(key, v, "not a boolean")
		}
		return b
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			r.fail(key, v, "not a boolean")
		}
		return n != 0
	}
	r.fail(key, v, "not a boolean")
	return false
}

// Int 读取整数
func (r *Reader) Int(key string) int {
	n, ok := r.int64(key)
	if !ok {
		return 0
	}
	return int(n)
}

func (r *Reader) int64(key string) (int64, bool) {
	v, ok := r.attrs[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case uint64:
		if t > math.MaxInt64 {
			return math.MaxInt64, true
		}
		return int64(t), true
	case float64:
		if t != math.Trunc(t) {
			r.fail(key, v, "not an integer")
			return 0, false
		}
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			r.fail(key, v, "not an integer")
			return 0, false
		}
		return n, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		n, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			r.fail(key, v, "not an integer")
			return 0, false
		}
		return n, true
	}
	r.fail(key, v, "not an integer")
	return 0, false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"20060102150405.0Z",
	"20060102150405Z",
	"20060102150405",
	time.DateOnly,
}

// Time 读取时间，支持 RFC3339、AD 通用时间格式以及 Windows FILETIME 整数
// FILETIME 的 0 与最大值表示从未发生，返回零值
func (r *Reader) Time(key string) time.Time {
	v, ok := r.attrs[key]
	if !ok || v == nil {
		return time.Time{}
	}
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}
		}
		if isDigits(s) && len(s) != 14 {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				r.fail(key, v, "not a FILETIME")
				return time.Time{}
			}
			return FromFileTime(n)
		}
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts
			}
		}
		r.fail(key, v, "unrecognised timestamp")
		return time.Time{}
	}

	n, ok := r.int64(key)
	if !ok {
		return time.Time{}
	}
	return FromFileTime(n)
}

// Strings 读取多值属性，单个字符串视为只有一个值
func (r *Reader) Strings(key string) []string {
	v, ok := r.attrs[key]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				r.fail(key, v, "list contains non-text values")
				return nil
			}
			out = append(out, s)
		}
		return out
	}
	r.fail(key, v, "expected a list of text values")
	return nil
}

// fileTimeEpochOffset 1601-01-01 到 1970-01-01 的 100 纳秒间隔数
const fileTimeEpochOffset = 116444736000000000

// FromFileTime 将 Windows FILETIME 转换为 UTC 时间
func FromFileTime(ft int64) time.Time {
	if ft <= 0 || ft == math.MaxInt64 {
		return time.Time{}
	}
	d := ft - fileTimeEpochOffset
	return time.Unix(d/10_000_000, (d%10_000_000)*100).UTC()
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
