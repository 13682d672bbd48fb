package main

import (
	"errors"
	"fmt"
	"math"
)

var errTooLarge = errors.New("does not fit a 32-bit length")

// descriptorLen converts a Go length to the uint32 a C descriptor carries.
func descriptorLen(n int) (uint32, error) {
	if n < 0 || uint64(n) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d", errTooLarge, n)
	}
	return uint32(n), nil
}
