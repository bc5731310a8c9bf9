// Package embedding turns text into vectors. Providers live in sub-packages;
// this package holds the profiles, the model cache and the vector caches.
package embedding

import (
	"context"
	"fmt"
)

// Profile selects an embedding space. Vectors are only comparable within one profile.
type Profile string

const (
	Summary  Profile = "summary"
	Fulltext Profile = "fulltext"
)

// Dimension is the vector length every provider must return for the profile.
func (p Profile) Dimension() int {
	switch p {
	case Summary:
		return 384
	case Fulltext:
		return 1024
	default:
		return 0
	}
}

func (p Profile) Validate() error {
	if p.Dimension() == 0 {
		return fmt.Errorf("unknown embedding profile %q", p)
	}
	return nil
}

// Embedder produces a vector of p.Dimension() floats for text.
type Embedder interface {
	Embed(ctx context.Context, text string, p Profile) ([]float32, error)
}

// CheckDimension rejects vectors of the wrong length for the profile.
func CheckDimension(v []float32, p Profile) error {
	if want := p.Dimension(); len(v) != want {
		return fmt.Errorf("embedding for profile %s has %d dimensions, expected %d", p, len(v), want)
	}
	return nil
}
