package sheet

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/markusylisiurunen/rolodex/internal/contact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXLSXBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.xlsx")
	require.NoError(t, InitXLSX(path, headers))
	assert.Error(t, InitXLSX(path, headers))

	ctx := context.Background()
	backend := NewXLSX(path, "")
	header, err := backend.ReadHeader(ctx)
	require.NoError(t, err)
	assert.Equal(t, headers, header)

	store := New(backend, contact.DefaultSchema)
	require.True(t, store.AddRecord(ctx, map[string]string{"Nombre": "Ana Gómez", "Empresa": "Tech Corp"}).OK())
	require.True(t, store.UpdateField(ctx, "ana", "bitácora", "primer contacto", true).OK())
	require.True(t, store.UpdateField(ctx, "ana", "bitácora", "segunda llamada", true).OK())

	records := store.SearchByName(ctx, "gomez")
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].Row)
	assert.Equal(t, "Tech Corp", records[0].Get("Empresa"))
	assert.Equal(t, "primer contacto\nsegunda llamada", records[0].Get("bitácora"))

	value, err := backend.ReadCell(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, "Ana Gómez", value)
	_, err = backend.ReadCell(ctx, 0, 1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestXLSXMissingSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.xlsx")
	require.NoError(t, InitXLSX(path, headers))
	_, err := NewXLSX(path, "Contactos").ReadAll(context.Background())
	assert.Error(t, err)
	_, err = NewXLSX(filepath.Join(t.TempDir(), "missing.xlsx"), "").ReadAll(context.Background())
	assert.Error(t, err)
}
