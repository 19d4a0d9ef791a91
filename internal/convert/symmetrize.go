package convert

// Symmetrize returns a copy of m with its lower triangle mirrored onto the
// upper one. Diagonal and lower entries are kept; upper entries are
// discarded. Non-square input is returned unchanged (copied).
func Symmetrize(m [][]float64) [][]float64 {
	n := len(m)
	out := make([][]float64, n)
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	for _, row := range m {
		if len(row) != n {
			return out
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			out[i][j] = out[j][i]
		}
	}
	return out
}

// voigtStress places [xx, yy, zz, yz, xz, xy] in the lower triangle of a
// 3×3 tensor and symmetrizes it.
func voigtStress(v []float64) [][]float64 {
	m := [][]float64{
		{v[0], 0, 0},
		{v[5], v[1], 0},
		{v[4], v[3], v[2]},
	}
	return Symmetrize(m)
}
