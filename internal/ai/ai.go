// Package ai asks a language model to refine NAICS classifications.
// Providers implement Generator; the prompts and parsing live here.
package ai

import "context"

// Generator sends a system instruction and a prompt to a model and returns its text reply.
type Generator interface {
	GenerateContent(ctx context.Context, system, prompt string) (string, error)
	Model() string
}

// Selection is a NAICS code the model picked out of the ranked candidates.
type Selection struct {
	Code          string `json:"code"`
	Level         int    `json:"level"`
	Title         string `json:"title"`
	Justification string `json:"justification"`
}
