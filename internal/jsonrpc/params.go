package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrMissingParam = errors.New("missing required parameter")
	ErrInvalidParam = errors.New("invalid parameter")
)

// Args はリクエストの args（値は string / json.Number / bool / map / slice）
type Args map[string]any

// RequireString は文字列パラメータを取得する（空文字は許可）
func (a Args) RequireString(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: %s", ErrMissingParam, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidParam, key)
	}
	return s, nil
}

// OptionalString は省略可能な文字列パラメータを取得する
func (a Args) OptionalString(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidParam, key)
	}
	return s, nil
}

// RequireInt は整数パラメータを取得する
// JSON数値に加えて数値文字列（"16"）も受け付ける
func (a Args) RequireInt(key string) (int, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: %s", ErrMissingParam, key)
	}

	invalid := fmt.Errorf("%w: %s must be an integer", ErrInvalidParam, key)
	switch n := v.(type) {
	case json.Number:
		i, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil || i < math.MinInt32 || i > math.MaxInt32 {
			return 0, invalid
		}
		return int(i), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 32)
		if err != nil {
			return 0, invalid
		}
		return int(i), nil
	case float64:
		if n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
			return 0, invalid
		}
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, invalid
	}
}

// RequireIdentifier は keys のうち最初に指定された空でない文字列を返す
// class_id|class_name のような別名付きパラメータ用
func (a Args) RequireIdentifier(keys ...string) (string, error) {
	for _, key := range keys {
		s, err := a.OptionalString(key)
		if err != nil {
			return "", err
		}
		if s != "" {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrMissingParam, strings.Join(keys, " or "))
}
