// Package config parses the CLI's human-readable size and bandwidth
// strings.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSize parses a human-readable byte quantity ("20M", "512K", "1.5G",
// or a bare integer) into a byte count. Suffixes K/k, M/m, G/g are binary
// (base 1024); decimals are allowed before the suffix.
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("size value cannot be empty")
	}

	multiplier := uint64(1)
	numPart := s
	switch s[len(s)-1] {
	case 'K', 'k':
		multiplier = 1024
		numPart = s[:len(s)-1]
	case 'M', 'm':
		multiplier = 1024 * 1024
		numPart = s[:len(s)-1]
	case 'G', 'g':
		multiplier = 1024 * 1024 * 1024
		numPart = s[:len(s)-1]
	}

	numPart = strings.TrimSpace(numPart)
	num, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value %q", s)
	}
	if num < 0 {
		return 0, fmt.Errorf("size value cannot be negative: %q", s)
	}

	result := uint64(num*float64(multiplier) + 0.5)
	if result == 0 && num > 0 {
		return 0, fmt.Errorf("size value too small: %q", s)
	}
	return result, nil
}
