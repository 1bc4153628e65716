// Package utils carries small helpers shared by examples and tests.
package utils

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

const (
	weiPerGwei  = 1_000_000_000
	gweiPerEth  = 1_000_000_000
	etherDigits = 18
)

// Wei wraps an integer wei amount.
func Wei(amount uint64) *uint256.Int {
	return uint256.NewInt(amount)
}

// Gwei converts a gwei amount to wei.
func Gwei(amount uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(weiPerGwei))
}

// Ether converts a whole ether amount to wei.
func Ether(amount uint64) *uint256.Int {
	gwei := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(gweiPerEth))
	return gwei.Mul(gwei, uint256.NewInt(weiPerGwei))
}

// FormatEther renders a wei amount as a decimal ether string with trailing
// zeros trimmed, e.g. 1500000000000000000 -> "1.5".
func FormatEther(wei *uint256.Int) string {
	if wei == nil {
		return "0"
	}
	digits := wei.Dec()
	if len(digits) <= etherDigits {
		digits = strings.Repeat("0", etherDigits-len(digits)+1) + digits
	}
	cut := len(digits) - etherDigits
	whole, frac := digits[:cut], digits[cut:]
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		return whole
	}
	return fmt.Sprintf("%s.%s", whole, frac)
}
