package scrape

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeElements(t *testing.T) {
	raw := []any{
		map[string]any{
			"id":           "0",
			"tag":          "button",
			"text":         "Login",
			"attributes":   map[string]any{"id": "login", "class": "btn"},
			"xpath":        "/html[1]/body[1]/button[1]",
			"interactable": true,
		},
		map[string]any{
			"id":    "1",
			"tag":   "div",
			"text":  "footer",
			"xpath": "/html[1]/body[1]/div[1]",
		},
	}

	elements, err := decodeElements(raw)
	require.NoError(t, err)
	require.Len(t, elements, 2)

	assert.Equal(t, "0", elements[0].ID)
	assert.Equal(t, "button", elements[0].Tag)
	assert.Equal(t, "/html[1]/body[1]/button[1]", elements[0].XPath)
	assert.True(t, elements[0].Interactable)
	assert.False(t, elements[1].Interactable)
}

func TestDecodeElements_WrongShape(t *testing.T) {
	_, err := decodeElements("not a list")
	assert.Error(t, err)
}

func TestTrimAttributes(t *testing.T) {
	trimmed := trimAttributes(map[string]string{
		"id":          "login",
		"class":       "btn btn-primary",
		"style":       "color: red",
		"placeholder": "Username",
		"data-qa":     "login-button",
	})
	assert.Equal(t, map[string]string{"id": "login", "placeholder": "Username"}, trimmed)

	assert.Nil(t, trimAttributes(nil))
	assert.Nil(t, trimAttributes(map[string]string{"class": "x"}))
}

// TestCollectElementsJSShape pins the contract between the in-page walk and
// the decoder: every field the decoder reads is produced by the script.
func TestCollectElementsJSShape(t *testing.T) {
	for _, field := range []string{"id:", "tag:", "text:", "attributes:", "xpath:", "interactable:"} {
		assert.True(t, strings.Contains(collectElementsJS, field), "script must emit %q", field)
	}
}
