package utils

import "github.com/samber/lo"

// ValidateBaudRate reports whether baudRate is one of validBaudRates. Negative rates never are.
func ValidateBaudRate(validBaudRates []uint, baudRate int) bool {
	return baudRate >= 0 && lo.Contains(validBaudRates, uint(baudRate))
}
