// internal/marker/descriptor.go
package marker

// DescriptorBits is the binary descriptor length per feature point.
const DescriptorBits = 256

// DescriptorBytes is the packed descriptor size.
const DescriptorBytes = DescriptorBits / 8

// patchRadius bounds the sampling window around a feature point.
const patchRadius = 15

// samplingSeed fixes the descriptor test pattern. Changing it (or the
// pattern generation below) changes every descriptor and must bump
// FormatVersion.
const samplingSeed = 0x9e3779b9

// samplePair is one intensity comparison: bit = smoothed(a) < smoothed(b).
type samplePair struct {
	ax, ay, bx, by int
}

var samplingPattern = buildSamplingPattern()

// buildSamplingPattern draws the comparison offsets from a Park-Miller
// generator with a fixed seed, so the pattern is a compile-time constant in
// behavior without a 256-line literal.
func buildSamplingPattern() [DescriptorBits]samplePair {
	state := int64(samplingSeed % 2147483647)
	if state <= 0 {
		state += 2147483646
	}
	next := func() int {
		state = (state * 16807) % 2147483647
		f := float64(state-1) / 2147483646
		v := int(f*float64(patchRadius*2+1)) - patchRadius
		if v < -patchRadius {
			v = -patchRadius
		}
		if v > patchRadius {
			v = patchRadius
		}
		return v
	}

	var pattern [DescriptorBits]samplePair
	for i := range pattern {
		pattern[i] = samplePair{ax: next(), ay: next(), bx: next(), by: next()}
	}
	return pattern
}

// describe computes the packed binary descriptor for a point. Caller
// guarantees the patch fits inside the image.
func describe(img *grayImage, x, y int) [DescriptorBytes]byte {
	var desc [DescriptorBytes]byte
	for i, p := range samplingPattern {
		a := img.smoothed(x+p.ax, y+p.ay)
		b := img.smoothed(x+p.bx, y+p.by)
		if a < b {
			desc[i/8] |= 1 << (i % 8)
		}
	}
	return desc
}
