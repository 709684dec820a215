package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/brbranch/reclass_bridge/internal/model"
)

// ParseAddressFormula はアドレス式を解決する
// 評価順: 0x付き16進 → <module>+<offset> → 10進
// 10進を16進と誤読しないこと、モジュール式が10進より先に評価されることが前提
func ParseAddressFormula(formula string, modules []model.Module) (uint64, error) {
	s := strings.TrimSpace(formula)

	if v, ok := parseHexLiteral(s); ok {
		return v, nil
	}

	if i := strings.LastIndex(s, "+"); i > 0 {
		name := strings.TrimSpace(s[:i])
		offset, ok := parseOffset(strings.TrimSpace(s[i+1:]))
		if ok {
			for _, m := range modules {
				if strings.EqualFold(m.Name, name) {
					// 64bitを超えるアドレスは折り返さずに拒否する
					if offset > math.MaxUint64-m.Start {
						return 0, fmt.Errorf("%w: %s", ErrInvalidAddress, formula)
					}
					return m.Start + offset, nil
				}
			}
		}
	}

	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}

	return 0, fmt.Errorf("%w: %s", ErrInvalidAddress, formula)
}

func parseHexLiteral(s string) (uint64, bool) {
	if len(s) < 3 || (s[:2] != "0x" && s[:2] != "0X") {
		return 0, false
	}
	v, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseOffset はモジュール式のオフセット（16進または10進）
func parseOffset(s string) (uint64, bool) {
	if v, ok := parseHexLiteral(s); ok {
		return v, true
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
