// Package client defines the vision-model client used by the detection backend.
package client

import (
	"context"
)

// VisionClient sends an image and a prompt to a vision language model
type VisionClient interface {
	// SimpleQuery returns the model's raw text reply
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	// ModelExists reports whether the server has the model installed
	ModelExists(ctx context.Context, model string) (bool, error)
}
