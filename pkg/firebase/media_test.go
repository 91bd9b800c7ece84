package firebase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveURLPassesThroughURLs(t *testing.T) {
	m := &MediaResolver{}
	url, err := m.ResolveURL(context.Background(), "https://cdn.example.org/ramp.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.org/ramp.jpg", url)
}

func TestIsURL(t *testing.T) {
	assert.True(t, isURL("http://example.org/a.png"))
	assert.False(t, isURL("issues/42/before.jpg"))
	assert.False(t, isURL("gs://bucket/a.png"))
}
