// Package collaborators holds the clients for services the core consumes but
// does not implement: content moderation, image understanding and media URL
// resolution.
package collaborators

import (
	"context"

	"github.com/anonto42/barrierfree/backend/internal/models"
)

// Verdict is a moderation outcome. A failed verdict rejects the operation.
type Verdict struct {
	Pass   bool   `json:"pass"`
	Reason string `json:"reason"`
}

// ContentModerator screens user-supplied text and images
type ContentModerator interface {
	CheckText(ctx context.Context, text string) (Verdict, error)
	CheckImage(ctx context.Context, imageURL string) (Verdict, error)
}

// ImageAnalyzer produces an advisory diagnosis for a reported obstruction
type ImageAnalyzer interface {
	Diagnose(ctx context.Context, imageURL string, location *models.Location) (string, error)
}

// MediaResolver turns a stored media reference into a retrievable URL
type MediaResolver interface {
	ResolveURL(ctx context.Context, ref string) (string, error)
}

// PassThrough approves everything, diagnoses nothing and treats references
// as URLs. It stands in when no AI key or bucket is configured.
type PassThrough struct{}

func (PassThrough) CheckText(context.Context, string) (Verdict, error) {
	return Verdict{Pass: true}, nil
}

func (PassThrough) CheckImage(context.Context, string) (Verdict, error) {
	return Verdict{Pass: true}, nil
}

func (PassThrough) Diagnose(context.Context, string, *models.Location) (string, error) {
	return "", nil
}

func (PassThrough) ResolveURL(_ context.Context, ref string) (string, error) {
	return ref, nil
}
