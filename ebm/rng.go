package ebm

import "math/rand"

//Rand is the explicitly seeded generator a handle owns. Kernels never read
//it; only the splitter consumes it, for tie-breaks among equal-gain
//boundaries, so results are reproducible for a fixed seed and thread-count
//independent.
type Rand struct {
	src *rand.Rand
}

//NewRand seeds a generator.
func NewRand(seed int64) *Rand {
	return &Rand{src: rand.New(rand.NewSource(seed))}
}

//Intn returns a uniform int in [0, n).
func (r *Rand) Intn(n int) int {
	return r.src.Intn(n)
}
