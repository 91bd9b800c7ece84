package collaborators

import (
	"context"
	"errors"
	"testing"

	"github.com/anonto42/barrierfree/backend/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    Verdict
		wantErr bool
	}{
		{"plain", `{"pass": true, "reason": "fine"}`, Verdict{Pass: true, Reason: "fine"}, false},
		{"fenced", "```json\n{\"pass\": false, \"reason\": \"advertising\"}\n```", Verdict{Pass: false, Reason: "advertising"}, false},
		{"garbage", "I cannot help with that", Verdict{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVerdict(tt.reply)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, apperrors.ErrExternalService))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewClaudeRequiresKey(t *testing.T) {
	_, err := NewClaude("", "claude-haiku-4-5", 0)
	assert.Error(t, err)

	c, err := NewClaude("sk-test", "claude-haiku-4-5", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, c.timeout)
}

func TestPassThrough(t *testing.T) {
	var p PassThrough
	v, err := p.CheckText(context.Background(), "anything")
	require.NoError(t, err)
	assert.True(t, v.Pass)

	url, err := p.ResolveURL(context.Background(), "issues/abc.jpg")
	require.NoError(t, err)
	assert.Equal(t, "issues/abc.jpg", url)
}
