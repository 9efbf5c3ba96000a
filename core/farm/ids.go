package farm

import (
	"fmt"

	"github.com/kilianp07/solaris/core/rng"
)

const idStreamTag = 0x5eed1d5

// idGenerator produces unique panel identifiers of the form AA000000 from the
// farm seed.
type idGenerator struct {
	src  rng.Stream
	used map[string]bool
}

func newIDGenerator(seed uint64) *idGenerator {
	return &idGenerator{src: rng.New(seed ^ idStreamTag), used: map[string]bool{}}
}

func (g *idGenerator) reserve(id string) { g.used[id] = true }

func (g *idGenerator) next() string {
	for {
		v := g.src.Uint64()
		id := fmt.Sprintf("%c%c%06d", 'A'+byte(v%26), 'A'+byte(v/26%26), v/676%1000000)
		if !g.used[id] {
			g.used[id] = true
			return id
		}
	}
}
