package solver

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDivFloorCeil(t *testing.T) {
	tests := []struct {
		a, b  int64
		floor int64
		ceil  int64
	}{
		{7, 2, 3, 4},
		{-7, 2, -4, -3},
		{7, -2, -4, -3},
		{-7, -2, 3, 4},
		{6, 3, 2, 2},
		{-6, 3, -2, -2},
		{0, 5, 0, 0},
		{1, 1, 1, 1},
	}
	for _, test := range tests {
		a, b := big.NewInt(test.a), big.NewInt(test.b)
		assert.Equal(t, test.floor, divFloor(a, b).Int64(), "floor(%d/%d)", test.a, test.b)
		assert.Equal(t, test.ceil, divCeil(a, b).Int64(), "ceil(%d/%d)", test.a, test.b)
	}
}

func TestDivides(t *testing.T) {
	assert.True(t, divides(big.NewInt(3), big.NewInt(9)))
	assert.True(t, divides(big.NewInt(-3), big.NewInt(9)))
	assert.True(t, divides(big.NewInt(3), big.NewInt(-9)))
	assert.False(t, divides(big.NewInt(3), big.NewInt(10)))
	assert.True(t, divides(big.NewInt(1), big.NewInt(0)))
}

func TestGcdLcm(t *testing.T) {
	assert.Equal(t, int64(6), bigGcd(big.NewInt(12), big.NewInt(-18)).Int64())
	assert.Equal(t, int64(36), bigLcm(big.NewInt(12), big.NewInt(18)).Int64())
	assert.Equal(t, int64(0), bigLcm(big.NewInt(0), big.NewInt(18)).Int64())
}
