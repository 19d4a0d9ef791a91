package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymmetrizeMirrorsLowerTriangle(t *testing.T) {
	in := [][]float64{
		{1, 9, 9},
		{2, 3, 9},
		{4, 5, 6},
	}
	got := Symmetrize(in)

	assert.Equal(t, [][]float64{
		{1, 2, 4},
		{2, 3, 5},
		{4, 5, 6},
	}, got)
	assert.Equal(t, 9.0, in[0][1], "input is not modified")
}

func TestSymmetrizeProperties(t *testing.T) {
	n := 6
	in := make([][]float64, n)
	for i := range in {
		in[i] = make([]float64, n)
		for j := range in[i] {
			in[i][j] = float64(10*i + j + 1)
		}
	}
	got := Symmetrize(in)

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			assert.Equal(t, got[i][j], got[j][i], "symmetric at %d,%d", i, j)
			if i >= j {
				assert.Equal(t, in[i][j], got[i][j], "lower entry kept at %d,%d", i, j)
			}
		}
	}
}

func TestSymmetrizeNonSquareIsCopied(t *testing.T) {
	in := [][]float64{{1, 2}, {3}}
	got := Symmetrize(in)
	assert.Equal(t, in, got)
	got[0][0] = 7
	assert.Equal(t, 1.0, in[0][0])
}

func TestVoigtStress(t *testing.T) {
	xx, yy, zz, yz, xz, xy := 1.0, 2.0, 3.0, 4.0, 5.0, 6.0
	got := voigtStress([]float64{xx, yy, zz, yz, xz, xy})

	assert.Equal(t, [][]float64{
		{xx, xy, xz},
		{xy, yy, yz},
		{xz, yz, zz},
	}, got)
}
