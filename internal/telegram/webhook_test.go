package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/markusylisiurunen/rolodex/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhook(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	m := metrics.New()
	m.Transcription("ok")
	server := httptest.NewServer(NewWebhook(context.Background(), dispatcher, WithSecret("s3cret"), WithWebhookMetrics(m)).Routes())
	defer server.Close()

	post := func(secret, body string) int {
		req, err := http.NewRequest(http.MethodPost, server.URL+WebhookPath, strings.NewReader(body))
		require.NoError(t, err)
		if secret != "" {
			req.Header.Set(SecretHeader, secret)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	update := `{"update_id":5,"message":{"message_id":1,"chat":{"id":42},"text":"hola"}}`
	assert.Equal(t, http.StatusUnauthorized, post("", update))
	assert.Equal(t, http.StatusUnauthorized, post("wrong", update))
	assert.Equal(t, http.StatusBadRequest, post("s3cret", "{not json"))
	assert.Equal(t, http.StatusOK, post("s3cret", update))
	assert.Equal(t, []int64{5}, dispatcher.ids)

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "rolodex_transcriptions_total")
}

func TestWebhookWithoutSecret(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	server := httptest.NewServer(NewWebhook(context.Background(), dispatcher).Routes())
	defer server.Close()
	resp, err := http.Post(server.URL+WebhookPath, "application/json", strings.NewReader(`{"update_id":1}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
