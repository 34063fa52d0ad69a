package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
)

// Embedder modes selected by configuration.
const (
	EmbedderRandom = "random"
	EmbedderRemote = "remote"
)

// Embedder turns texts into vectors of a fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

// RandomEmbedder derives a unit vector from a hash of each text. Equal texts always get
// equal vectors; similarity between different texts carries no meaning. It stands in
// for a real model in development and tests.
type RandomEmbedder struct {
	dim int
}

// NewRandomEmbedder constructs a RandomEmbedder.
func NewRandomEmbedder(dim int) *RandomEmbedder {
	return &RandomEmbedder{dim: dim}
}

// Name implements Embedder.
func (e *RandomEmbedder) Name() string { return EmbedderRandom }

// Embed implements Embedder.
func (e *RandomEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.dim <= 0 {
		return nil, fmt.Errorf("embedder dimension must be positive, got %d", e.dim)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		h := fnv.New64a()
		_, _ = h.Write([]byte(text))
		rng := rand.New(rand.NewSource(int64(h.Sum64())))

		vec := make([]float32, e.dim)
		var norm float64
		for j := range vec {
			v := rng.Float64()*2 - 1
			vec[j] = float32(v)
			norm += v * v
		}
		norm = math.Sqrt(norm)
		if norm > 0 {
			for j := range vec {
				vec[j] = float32(float64(vec[j]) / norm)
			}
		}
		out[i] = vec
	}
	return out, nil
}

type embeddingClient interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// RemoteEmbedder calls the configured embeddings endpoint and checks the dimension.
type RemoteEmbedder struct {
	client embeddingClient
	dim    int
}

// NewRemoteEmbedder constructs a RemoteEmbedder.
func NewRemoteEmbedder(client embeddingClient, dim int) *RemoteEmbedder {
	return &RemoteEmbedder{client: client, dim: dim}
}

// Name implements Embedder.
func (e *RemoteEmbedder) Name() string { return EmbedderRemote }

// Embed implements Embedder.
func (e *RemoteEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.client.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i, v := range vectors {
		if e.dim > 0 && len(v) != e.dim {
			return nil, fmt.Errorf("embedding %d has dimension %d, collection expects %d", i, len(v), e.dim)
		}
	}
	return vectors, nil
}

// NewEmbedder picks the implementation named by mode. Unknown modes fall back to random.
func NewEmbedder(mode string, client embeddingClient, dim int) Embedder {
	if mode == EmbedderRemote && client != nil {
		return NewRemoteEmbedder(client, dim)
	}
	return NewRandomEmbedder(dim)
}
