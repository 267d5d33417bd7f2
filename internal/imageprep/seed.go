// internal/imageprep/seed.go
package imageprep

import (
	"crypto/sha256"
	"encoding/binary"
)

// ContentSeed derives the border-pattern seed from the image bytes: the
// first 4 bytes of the SHA-256 digest. Same photo, same seed, same border,
// which keeps compilation cacheable and the pattern reproducible in tests.
func ContentSeed(data []byte) uint32 {
	sum := sha256.Sum256(data)
	return binary.BigEndian.Uint32(sum[:4])
}

// seededRand is a Park-Miller minimal standard generator. No global state;
// every border draw owns its own instance.
type seededRand struct {
	state int64
}

func newSeededRand(seed uint32) *seededRand {
	s := int64(seed) % 2147483647
	if s <= 0 {
		s += 2147483646
	}
	return &seededRand{state: s}
}

// next returns a float in [0, 1).
func (r *seededRand) next() float64 {
	r.state = (r.state * 16807) % 2147483647
	return float64(r.state-1) / 2147483646
}

// nextInt returns an int in [min, max] inclusive.
func (r *seededRand) nextInt(min, max int) int {
	return int(r.next()*float64(max-min+1)) + min
}
