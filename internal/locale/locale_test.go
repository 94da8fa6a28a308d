package locale

import (
	"maps"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/markusylisiurunen/rolodex/internal/contact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	assert.Equal(t, []string{"en", "es"}, Languages())

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "es", c.Lang)
	assert.Equal(t, "No registrado", c.Placeholder())

	_, err = Load("fi")
	assert.ErrorContains(t, err, "unsupported language")
}

func TestCatalogsHaveSameKeys(t *testing.T) {
	es, en := MustLoad("es"), MustLoad("en")
	esKeys := slices.Sorted(maps.Keys(es.Messages))
	enKeys := slices.Sorted(maps.Keys(en.Messages))
	assert.Equal(t, esKeys, enKeys)
	for _, f := range contact.Fields {
		assert.NotEmpty(t, es.Fields[f], f)
		assert.NotEmpty(t, en.Fields[f], f)
	}
}

func TestCalendarNames(t *testing.T) {
	c := MustLoad("es")
	assert.Equal(t, "miércoles", c.Weekday(time.Wednesday))
	assert.Equal(t, "domingo", c.Weekday(time.Sunday))
	assert.Equal(t, "noviembre", c.Month(time.November))
	assert.Equal(t, "enero", c.Month(time.January))
}

func TestSprintf(t *testing.T) {
	c := MustLoad("es")
	assert.Equal(t, "Bio actualizada exitosamente para Pablo", c.Sprintf("tool.update_bio.ok", "Pablo"))
	assert.Equal(t, "missing.key", c.Text("missing.key"))
}

func TestPrompt(t *testing.T) {
	prompt := MustLoad("es").Prompt(contact.DefaultSchema)
	assert.Contains(t, prompt, "- Nombre: Nombre completo del contacto (obligatorio)")
	assert.Contains(t, prompt, "- bitácora: Registro de interacciones y notas")
	assert.Contains(t, prompt, `Nunca guardes "No registrado"`)
	assert.NotContains(t, prompt, "%!")
	assert.True(t, strings.HasPrefix(prompt, "Eres un asistente"))
}
