package generator

// PseudoRand детерминированный шум целочисленной решётки, значение в (-1, 1]
func PseudoRand(x, z int) float64 {
	n := int32(x&0xFFFF) + int32((z&0x7FFF)<<16)
	n = (n << 13) ^ n
	nn := (n*(n*n*60493+int32(z)*19990303) + int32(x)*1376312589) & 0x7fffffff
	return 1.0 - float64(nn)/1073741824.0
}
