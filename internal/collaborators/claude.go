package collaborators

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anonto42/barrierfree/backend/internal/apperrors"
	"github.com/anonto42/barrierfree/backend/internal/models"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultTimeout bounds every call to the model
const DefaultTimeout = 30 * time.Second

const moderationPrompt = `You moderate a community platform where residents report accessibility obstructions
(missing ramps, blocked tactile paving, broken elevators) and designers propose fixes.
Reject content that is abusive, sexual, violent, advertising or personal data. Accept ordinary
descriptions of places and problems, even if blunt.

Reply strictly as JSON: {"pass": true|false, "reason": "one short sentence"}`

const diagnosisPrompt = `You are an accessibility auditor. Describe the obstruction visible in the image,
which users it affects (wheelchair users, blind or low-vision people, elderly people, parents with
strollers) and a likely remediation. Keep it under 150 words.`

// Claude talks to the Anthropic Messages API for moderation and diagnosis
type Claude struct {
	client  anthropic.Client
	model   anthropic.Model
	timeout time.Duration
}

// NewClaude creates a client; apiKey must be non-empty
func NewClaude(apiKey, model string, timeout time.Duration) (*Claude, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic API key required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Claude{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   anthropic.Model(model),
		timeout: timeout,
	}, nil
}

func (c *Claude) CheckText(ctx context.Context, text string) (Verdict, error) {
	reply, err := c.call(ctx, "moderation", moderationPrompt, anthropic.NewTextBlock("Content:\n"+text))
	if err != nil {
		return Verdict{}, err
	}
	return parseVerdict(reply)
}

func (c *Claude) CheckImage(ctx context.Context, imageURL string) (Verdict, error) {
	reply, err := c.call(ctx, "moderation", moderationPrompt,
		anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: imageURL}),
		anthropic.NewTextBlock("Moderate this image."))
	if err != nil {
		return Verdict{}, err
	}
	return parseVerdict(reply)
}

func (c *Claude) Diagnose(ctx context.Context, imageURL string, location *models.Location) (string, error) {
	hint := "Diagnose this obstruction."
	if location != nil && location.Address != "" {
		hint = fmt.Sprintf("Diagnose this obstruction reported at %s.", location.Address)
	}
	return c.call(ctx, "image understanding", diagnosisPrompt,
		anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: imageURL}),
		anthropic.NewTextBlock(hint))
}

func (c *Claude) call(ctx context.Context, service, system string, blocks ...anthropic.ContentBlockParamUnion) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 512,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	})
	if err != nil {
		return "", apperrors.External(service, err)
	}
	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", apperrors.External(service, errors.New("no text block in response"))
}

func parseVerdict(reply string) (Verdict, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return Verdict{}, apperrors.External("moderation", fmt.Errorf("unparseable verdict %q", reply))
	}
	var v Verdict
	if err := json.Unmarshal([]byte(reply[start:end+1]), &v); err != nil {
		return Verdict{}, apperrors.External("moderation", err)
	}
	return v, nil
}
