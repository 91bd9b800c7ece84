package validators

import (
	"testing"

	"github.com/anonto42/barrierfree/backend/internal/apperrors"
	"github.com/anonto42/barrierfree/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateReportsWireNames(t *testing.T) {
	v := NewValidator()

	err := v.Validate(&models.CreateProjectRequest{Title: "x"})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Contains(t, err.Error(), "title must satisfy min=2")
	assert.Contains(t, err.Error(), "contact is required")

	err = v.Validate(&models.ConfirmCompletionRequest{Rating: 6})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Contains(t, err.Error(), "rating must satisfy max=5")

	assert.NoError(t, v.Validate(&models.CreateProjectRequest{Title: "Ramp repair", Contact: "555-0100"}))
}
