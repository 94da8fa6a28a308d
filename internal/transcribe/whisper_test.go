package transcribe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "es", r.FormValue("language"))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "voice.ogg", header.Filename)
		assert.Equal(t, "OggS....", string(data))
		w.Write([]byte(`{"text":"  Busca a Pablo Salomón  "}`)) //nolint:errcheck
	}))
	defer server.Close()

	w := NewWhisper("key", WithBaseURL(server.URL+"/v1"))
	text, err := w.Transcribe(context.Background(), []byte("OggS...."), "voice/voice.ogg", "es")
	require.NoError(t, err)
	assert.Equal(t, "Busca a Pablo Salomón", text)
}

func TestTranscribeErrors(t *testing.T) {
	status, body := http.StatusOK, `{"text":""}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body)) //nolint:errcheck
	}))
	defer server.Close()
	w := NewWhisper("key", WithBaseURL(server.URL))
	ctx := context.Background()

	_, err := w.Transcribe(ctx, []byte("x"), "a.mp3", "")
	assert.ErrorIs(t, err, ErrEmptyTranscript)

	status, body = http.StatusBadRequest, `{"error":{"message":"Invalid file format."}}`
	_, err = w.Transcribe(ctx, []byte("x"), "a.mp3", "")
	assert.ErrorContains(t, err, "Invalid file format.")

	_, err = w.Transcribe(ctx, nil, "a.mp3", "")
	assert.Error(t, err)
}
