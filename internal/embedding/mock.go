package embedding

import (
	"context"
	"hash/fnv"
)

// MockClient produces deterministic pseudo-embeddings from the input text.
// Identical statements embed identically, which is all the tests need.
type MockClient struct {
	Dim int
	Err error

	Calls []string
}

func NewMockClient() *MockClient {
	return &MockClient{Dim: 8}
}

func (c *MockClient) Embed(_ context.Context, text string) ([]float32, error) {
	c.Calls = append(c.Calls, text)
	if c.Err != nil {
		return nil, c.Err
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum32()

	vec := make([]float32, c.Dim)
	for i := range vec {
		seed = seed*1664525 + 1013904223
		vec[i] = float32(seed%1000)/1000.0 - 0.5
	}
	return vec, nil
}
