package providers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vrtest-dev/vrtest/internal/vision"
	"github.com/vrtest-dev/vrtest/internal/vision/providers"
)

func TestNewOpenAIProvider_RequiresAPIKey(t *testing.T) {
	_, err := providers.NewOpenAIProvider("", "gpt-4o", nil)
	require.ErrorIs(t, err, vision.ErrConfigInvalid)
}

func TestOpenAIProvider_IsAvailableReflectsConfiguredKey(t *testing.T) {
	p, err := providers.NewOpenAIProvider("sk-test", "", nil)
	require.NoError(t, err)
	require.True(t, p.IsAvailable(context.Background()))
	require.Equal(t, "openai", p.Name())
	require.Equal(t, "gpt-4o", p.Model())
}
