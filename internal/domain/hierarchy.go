package domain

import (
	"errors"
	"strconv"
	"strings"
)

// ErrMalformedCode is returned for codes that are not dot-separated positive ordinals.
var ErrMalformedCode = errors.New("malformed hierarchy code")

const codeSep = "."

// ParseCode splits a hierarchy code into its ordinals.
func ParseCode(code string) ([]int, error) {
	if code == "" {
		return nil, ErrMalformedCode
	}
	parts := strings.Split(code, codeSep)
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || strconv.Itoa(n) != p {
			return nil, ErrMalformedCode
		}
		out[i] = n
	}
	return out, nil
}

// ValidCode reports whether code is well formed.
func ValidCode(code string) bool {
	_, err := ParseCode(code)
	return err == nil
}

// ChildCode builds the code of the ordinal-th child under parentCode.
// An empty parentCode denotes the root level.
func ChildCode(parentCode string, ordinal int) string {
	if parentCode == "" {
		return strconv.Itoa(ordinal)
	}
	return parentCode + codeSep + strconv.Itoa(ordinal)
}

// LastOrdinal returns the final ordinal of code, or 0 if code is malformed.
func LastOrdinal(code string) int {
	ords, err := ParseCode(code)
	if err != nil {
		return 0
	}
	return ords[len(ords)-1]
}

// NextOrdinal returns one more than the largest ordinal among siblingCodes.
func NextOrdinal(siblingCodes []string) int {
	max := 0
	for _, c := range siblingCodes {
		if o := LastOrdinal(c); o > max {
			max = o
		}
	}
	return max + 1
}

// IsWithin reports whether code equals prefix or lies below it.
func IsWithin(code, prefix string) bool {
	if prefix == "" {
		return false
	}
	return code == prefix || strings.HasPrefix(code, prefix+codeSep)
}

// Depth returns the number of ordinals in code.
func Depth(code string) int {
	if code == "" {
		return 0
	}
	return strings.Count(code, codeSep) + 1
}
