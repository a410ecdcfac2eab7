package lsq

// LegendreBasis returns n polynomial basis vectors P_0..P_{n-1} evaluated on
// x linearly mapped to [-1, 1]. n <= 0 yields no vectors.
func LegendreBasis(x []float64, n int) [][]float64 {
	if n <= 0 || len(x) == 0 {
		return nil
	}
	lo, hi := x[0], x[0]
	for _, v := range x {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo

	t := make([]float64, len(x))
	for i, v := range x {
		if span > 0 {
			t[i] = 2*(v-lo)/span - 1
		}
	}

	out := make([][]float64, n)
	out[0] = make([]float64, len(x))
	for i := range out[0] {
		out[0][i] = 1
	}
	if n == 1 {
		return out
	}
	out[1] = append([]float64(nil), t...)
	// (k+1) P_{k+1} = (2k+1) t P_k - k P_{k-1}
	for k := 1; k+1 < n; k++ {
		next := make([]float64, len(x))
		fk := float64(k)
		for i := range next {
			next[i] = ((2*fk+1)*t[i]*out[k][i] - fk*out[k-1][i]) / (fk + 1)
		}
		out[k+1] = next
	}
	return out
}
