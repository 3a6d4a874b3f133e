package veiled

import (
	"encoding/hex"
	"testing"

	"github.com/bwesterb/go-ristretto"
	"github.com/stretchr/testify/assert"
)

func TestRandomnessGenerator(t *testing.T) {
	assert := assert.New(t)

	// Known-answer vector: H = uniform-map(SHA3-512(compressed base point)).
	assert.Equal("8c9240b456a9e6dc65c377a1048d745f94a08cdb7f44cbcd7b46f34048871134", hex.EncodeToString(randomnessGenerator().Bytes()))
	assert.Equal("e2f2ae0a6abc4e71a884a961c500515f58e30b6aa582dd8db6a65945e08d2d76", hex.EncodeToString(basePoint().Bytes()))

	// Process-wide copies must be independent.
	h1 := randomnessGenerator()
	h2 := randomnessGenerator()
	h1.Add(h1, basePoint())
	assert.False(bytesEqualPoint(h1, h2))
	assert.Equal(hex.EncodeToString(h2.Bytes()), hex.EncodeToString(randomnessGenerator().Bytes()))
}

func TestChunkWeights(t *testing.T) {
	assert := assert.New(t)

	weights := chunkWeights()
	assert.True(weights[0].Equals(uint64ToScalar(1)))
	assert.True(weights[1].Equals(uint64ToScalar(1 << 32)))

	var expected ristretto.Scalar
	expected.Mul(uint64ToScalar(1<<32), uint64ToScalar(1<<32))
	assert.True(weights[2].Equals(&expected))
	expected.Mul(&expected, uint64ToScalar(1<<32))
	assert.True(weights[3].Equals(&expected))
}

func TestHashToScalarDomainSeparation(t *testing.T) {
	assert := assert.New(t)

	a := hashToScalar("tag-a", []byte("data"))
	b := hashToScalar("tag-b", []byte("data"))
	c := hashToScalar("tag-a", []byte("data"))
	assert.False(a.Equals(b))
	assert.True(a.Equals(c))
}
