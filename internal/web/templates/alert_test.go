package templates

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorAlert_EscapesContent(t *testing.T) {
	var buf bytes.Buffer
	err := ErrorAlert("Fichier <vide>", "Réessayez & vérifiez", "FILE005").Render(context.Background(), &buf)
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, `role="alert"`)
	assert.Contains(t, html, "Fichier &lt;vide&gt;")
	assert.Contains(t, html, "Réessayez &amp; vérifiez")
	assert.Contains(t, html, "Code : FILE005")
}
