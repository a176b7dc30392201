package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

func FmtJSONString(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "marshal data fail"
	}
	return string(data)
}

// FmtRatio prints part/whole as a percentage with two decimals.
func FmtRatio(part, whole int) string {
	if whole == 0 {
		return "0.00%"
	}
	ratio := decimal.NewFromInt(int64(part)).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(whole)))
	return ratio.StringFixed(2) + "%"
}

// ParseVec3 reads "x,y,z".
func ParseVec3(s string) ([3]float64, error) {
	var v [3]float64
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("expected x,y,z, got %q", s)
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return v, fmt.Errorf("expected x,y,z, got %q: %w", s, err)
		}
		v[i] = f
	}
	return v, nil
}
