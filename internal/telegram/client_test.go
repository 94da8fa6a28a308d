package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestClientCalls(t *testing.T) {
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck
		raw, _ := json.Marshal(body)
		bodies = append(bodies, r.URL.Path+" "+string(raw))
		switch r.URL.Path {
		case "/botTOKEN/getUpdates":
			w.Write([]byte(`{"ok":true,"result":[{"update_id":7,"message":{"message_id":1,"chat":{"id":42},"text":"hola"}},{"update_id":8,"message":{"message_id":2,"chat":{"id":42},"voice":{"file_id":"f1","duration":3}}}]}`)) //nolint:errcheck
		case "/botTOKEN/getFile":
			w.Write([]byte(`{"ok":true,"result":{"file_id":"f1","file_path":"voice/file_1.oga"}}`)) //nolint:errcheck
		case "/file/botTOKEN/voice/file_1.oga":
			w.Write([]byte("OggS")) //nolint:errcheck
		case "/botTOKEN/getWebhookInfo":
			w.Write([]byte(`{"ok":true,"result":{"url":"https://example.com/webhook","pending_update_count":2,"max_connections":40,"last_error_message":"timeout"}}`)) //nolint:errcheck
		case "/botTOKEN/sendMessage":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)) //nolint:errcheck
		default:
			w.Write([]byte(`{"ok":true,"result":true}`)) //nolint:errcheck
		}
	}))
	defer server.Close()
	c := NewClient("TOKEN", WithBaseURL(server.URL))
	ctx := context.Background()

	updates, err := c.GetUpdates(ctx, 7, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, "hola", updates[0].Message.Text)
	assert.Equal(t, int64(42), updates[1].Message.Chat.ID)
	assert.Equal(t, "f1", updates[1].Message.Voice.FileID)
	assert.Equal(t, int64(7), gjson.Get(strings.SplitN(bodies[0], " ", 2)[1], "offset").Int())
	assert.Equal(t, int64(30), gjson.Get(strings.SplitN(bodies[0], " ", 2)[1], "timeout").Int())

	file, err := c.GetFile(ctx, "f1")
	require.NoError(t, err)
	data, err := c.Download(ctx, file.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "OggS", string(data))

	info, err := c.GetWebhookInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, WebhookInfo{URL: "https://example.com/webhook", PendingUpdateCount: 2, MaxConnections: 40, LastErrorMessage: "timeout"}, info)

	require.NoError(t, c.SetWebhook(ctx, "https://example.com/webhook", "s3cret"))
	last := bodies[len(bodies)-1]
	assert.True(t, strings.HasPrefix(last, "/botTOKEN/setWebhook "))
	assert.Equal(t, "s3cret", gjson.Get(strings.SplitN(last, " ", 2)[1], "secret_token").String())

	require.NoError(t, c.DeleteWebhook(ctx, false))
	require.NoError(t, c.SendChatAction(ctx, 42, "typing"))

	err = c.SendMessage(ctx, 42, "hola")
	assert.ErrorContains(t, err, "chat not found")
}

func TestClientErrorsHideToken(t *testing.T) {
	c := NewClient("SECRET-TOKEN", WithBaseURL("http://127.0.0.1:1"))
	err := c.SendChatAction(context.Background(), 1, "typing")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET-TOKEN")
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"corto"}, splitMessage("corto", 10))

	chunks := splitMessage(strings.Repeat("a", 25), 10)
	assert.Equal(t, []string{strings.Repeat("a", 10), strings.Repeat("a", 10), strings.Repeat("a", 5)}, chunks)

	chunks = splitMessage("línea uno\nlínea dos\nlínea tres", 20)
	assert.Equal(t, []string{"línea uno\nlínea dos", "línea tres"}, chunks)
	for _, c := range splitMessage(strings.Repeat("ñ", 9000), MaxMessageLength) {
		assert.LessOrEqual(t, len([]rune(c)), MaxMessageLength)
	}
}
