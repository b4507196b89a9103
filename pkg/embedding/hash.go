package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashProvider is an offline provider that hashes words into a fixed number
// of buckets and L2-normalizes the result. Texts sharing words get similar
// vectors; identical texts get identical vectors.
type HashProvider struct {
	dimension int
}

// NewHashProvider creates a hash provider; dimension 0 means DefaultDimension.
func NewHashProvider(dimension int) *HashProvider {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &HashProvider{dimension: dimension}
}

func (p *HashProvider) Dimension() int {
	return p.dimension
}

func (p *HashProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: text has no words to embed", ErrInvalidInput)
	}

	vec := make([]float64, p.dimension)
	for _, token := range tokens {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()

		bucket := int(sum % uint64(p.dimension))
		if sum&(1<<63) != 0 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, p.dimension)
	if norm == 0 {
		// Every token cancelled out; fall back to a single marker bucket.
		out[0] = 1
		return out, nil
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}
