package replica

import "fmt"

const (
	L1CALength   = 1023
	L1CAChipRate = 1.023e6
)

// G2 delays per PRN (IS-GPS-200 table 3-Ia), PRN 1..37.
var l1caG2Delay = [...]int{
	5, 6, 7, 8, 17, 18, 139, 140, 141, 251,
	252, 254, 255, 256, 257, 258, 469, 470, 471, 472,
	473, 474, 509, 512, 513, 514, 515, 516, 859, 860,
	861, 862, 863, 950, 947, 948, 950,
}

// GenerateL1CA returns the 1023 chip C/A gold code for prn as +-1 values,
// where a logical one maps to +1.
func GenerateL1CA(prn int) ([]int8, error) {
	if prn < 1 || prn > len(l1caG2Delay) {
		return nil, fmt.Errorf("%w: %d", ErrPRN, prn)
	}

	var r1, r2 [10]int8
	for i := range r1 {
		r1[i] = -1
		r2[i] = -1
	}
	g1 := make([]int8, L1CALength)
	g2 := make([]int8, L1CALength)
	for i := 0; i < L1CALength; i++ {
		g1[i] = r1[9]
		g2[i] = r2[9]
		c1 := r1[2] * r1[9]
		c2 := r2[1] * r2[2] * r2[5] * r2[7] * r2[8] * r2[9]
		for j := 9; j > 0; j-- {
			r1[j] = r1[j-1]
			r2[j] = r2[j-1]
		}
		r1[0] = c1
		r2[0] = c2
	}

	code := make([]int8, L1CALength)
	j := L1CALength - l1caG2Delay[prn-1]
	for i := 0; i < L1CALength; i++ {
		code[i] = -g1[i] * g2[j%L1CALength]
		j++
	}
	return code, nil
}
