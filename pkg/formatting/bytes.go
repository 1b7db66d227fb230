// Package formatting parses and renders values that arrive as loosely
// structured text: byte sizes from configuration and JSON objects from
// model output.
package formatting

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// units are base-1024. "MB" and "MiB" both mean 1<<20 bytes.
var units = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

// FormatBytes renders n with the largest unit that keeps the value at or
// above one, e.g. 1536 with precision 1 is "1.5 KB".
func FormatBytes(n int64, precision int) string {
	precision = max(precision, 0)

	size := float64(n)
	i := 0
	for math.Abs(size) >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	if i == 0 {
		return strconv.FormatInt(n, 10) + " B"
	}
	return strconv.FormatFloat(size, 'f', precision, 64) + " " + units[i]
}

// ParseBytes reads a size such as "32MB", "1.5 GiB", or "4096". Units are
// case-insensitive and a bare number is bytes. Negative sizes and values
// beyond int64 are rejected.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	split := strings.LastIndexAny(s, "0123456789.") + 1
	if split == 0 {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	value, err := strconv.ParseFloat(s[:split], 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	exp, err := unitExponent(strings.TrimSpace(s[split:]))
	if err != nil {
		return 0, err
	}

	n := value * math.Pow(1024, float64(exp))
	if n >= math.MaxInt64 {
		return 0, fmt.Errorf("byte size overflows int64: %q", s)
	}
	return int64(n), nil
}

func unitExponent(unit string) (int, error) {
	u := strings.ToUpper(unit)
	if u == "" {
		return 0, nil
	}
	if len(u) == 3 && u[1] == 'I' && u[2] == 'B' {
		u = u[:1] + "B"
	}
	if len(u) == 1 && u != "B" {
		u += "B"
	}
	for i, known := range units {
		if u == known {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown byte size unit: %q", unit)
}
