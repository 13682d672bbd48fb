package main

import (
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorLen(t *testing.T) {
	n, err := descriptorLen(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), n)

	n, err = descriptorLen(110)
	require.NoError(t, err)
	assert.Equal(t, uint32(110), n)

	_, err = descriptorLen(-1)
	assert.ErrorIs(t, err, errTooLarge)
}

func TestDescriptorLen_RejectsOver4GiB(t *testing.T) {
	if strconv.IntSize == 32 {
		t.Skip("int cannot exceed 32 bits")
	}
	max := uint64(math.MaxUint32)

	n, err := descriptorLen(int(max))
	require.NoError(t, err)
	assert.Equal(t, uint32(math.MaxUint32), n)

	_, err = descriptorLen(int(max + 1))
	assert.ErrorIs(t, err, errTooLarge)
}
