package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/markusylisiurunen/rolodex/internal/logger"
	"github.com/tidwall/gjson"
)

const (
	OpenAIBaseURL     = "https://api.openai.com/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

var _ Model = (*Chat)(nil)

// Chat speaks the chat-completions streaming protocol shared by OpenAI and OpenRouter.
type Chat struct {
	logger  logger.Logger
	token   string
	model   string
	baseURL string
	client  *http.Client
}

type ChatOption func(*Chat)

func WithBaseURL(baseURL string) ChatOption {
	return func(c *Chat) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithTimeout bounds a whole turn, including reading the stream.
func WithTimeout(d time.Duration) ChatOption {
	return func(c *Chat) { c.client.Timeout = d }
}

func WithHTTPClient(client *http.Client) ChatOption {
	return func(c *Chat) { c.client = client }
}

func NewChat(logger logger.Logger, token, model string, opts ...ChatOption) *Chat {
	c := &Chat{
		logger:  logger,
		token:   token,
		model:   model,
		baseURL: OpenAIBaseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Chat) Stream(ctx context.Context, messages []Message, opts ...StreamOption) <-chan Event {
	config := c.generationConfig(opts...)
	ch := make(chan Event)
	go func() {
		defer close(ch)
		resp, err := c.request(ctx, messages, config)
		if err != nil {
			ch <- &ErrorEvent{Err: err}
			return
		}
		defer resp.Body.Close() //nolint:errcheck
		if resp.StatusCode != http.StatusOK {
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				ch <- &ErrorEvent{Err: fmt.Errorf("error reading response body: %w", err)}
				return
			}
			msg := gjson.GetBytes(body, "error.message").String()
			if msg == "" {
				msg = string(body)
			}
			ch <- &ErrorEvent{Err: &StreamError{Code: resp.StatusCode, Message: msg}}
			return
		}
		c.read(ctx, resp.Body, ch)
	}()
	return ch
}

func (c *Chat) read(ctx context.Context, body io.Reader, ch chan<- Event) {
	toolCalls := []*ToolUseEvent{}
	reader := bufio.NewReader(body)
	for {
		line, err := reader.ReadString('\n')
		if ctx.Err() != nil {
			ch <- &ErrorEvent{Err: ctx.Err()}
			return
		}
		if err != nil && !errors.Is(err, io.EOF) {
			ch <- &ErrorEvent{Err: fmt.Errorf("error reading stream: %w", err)}
			return
		}
		done := errors.Is(err, io.EOF)
		raw := strings.TrimSpace(line)
		if after, found := strings.CutPrefix(raw, "data:"); found {
			raw = strings.TrimSpace(after)
		} else if !strings.HasPrefix(raw, "{") {
			raw = ""
		}
		if raw == "[DONE]" {
			break
		}
		if raw != "" {
			// error chunks carry numeric codes on some providers and string codes on others
			if e := gjson.Get(raw, "error"); e.Exists() && e.Type != gjson.Null {
				ch <- &ErrorEvent{Err: streamErrorFrom(e)}
				return
			}
			var chunk chat_Chunk
			if err := json.Unmarshal([]byte(raw), &chunk); err != nil {
				c.logger.Debug("skipping malformed stream chunk: %s", raw)
			} else {
				toolCalls = c.process(chunk, toolCalls, ch)
			}
		}
		if done {
			break
		}
	}
	for _, toolCall := range toolCalls {
		if toolCall != nil {
			ch <- toolCall
		}
	}
}

func (c *Chat) process(chunk chat_Chunk, toolCalls []*ToolUseEvent, ch chan<- Event) []*ToolUseEvent {
	if chunk.Usage != nil {
		ch <- &UsageEvent{Usage: Usage{
			PromptTokens:     chunk.Usage.PromptTokens,
			CompletionTokens: chunk.Usage.CompletionTokens,
			TotalCost:        chunk.Usage.Cost,
		}}
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta == nil {
		return toolCalls
	}
	delta := chunk.Choices[0].Delta
	if delta.Content != "" {
		ch <- &ContentDeltaEvent{Content: delta.Content}
	}
	for _, tc := range delta.ToolCalls {
		if tc.Index < 0 {
			continue
		}
		for len(toolCalls) <= tc.Index {
			toolCalls = append(toolCalls, nil)
		}
		var name, args string
		if tc.Function != nil {
			name, args = tc.Function.Name, tc.Function.Arguments
		}
		if toolCalls[tc.Index] == nil {
			toolCalls[tc.Index] = &ToolUseEvent{ID: tc.ID, Index: tc.Index, FuncName: name, FuncArgs: args}
		} else {
			toolCalls[tc.Index].FuncArgs += args
		}
	}
	return toolCalls
}

func (c *Chat) request(ctx context.Context, messages []Message, config streamConfig) (*http.Response, error) {
	payload := chat_Request{
		MaxTokens:     config.maxTokens,
		Messages:      make([]chat_Message, 0, len(messages)),
		Model:         c.model,
		Stream:        true,
		StreamOptions: chat_Request_StreamOptions{IncludeUsage: true},
		Temperature:   config.temperature,
	}
	for _, msg := range messages {
		payload.Messages = append(payload.Messages, chatMessageFrom(msg))
	}
	for _, tool := range config.tools {
		name, description, parameters := tool.Spec()
		payload.Tools = append(payload.Tools, chat_Request_Tool{
			Type: "function",
			Function: &chat_Request_Tool_Function{
				Name:        name,
				Description: description,
				Parameters:  parameters,
			},
		})
	}
	var data bytes.Buffer
	encoder := json.NewEncoder(&data)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(payload); err != nil {
		return nil, fmt.Errorf("error marshalling request: %w", err)
	}
	c.logger.Debug("chat request payload: %s", data.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", &data)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error calling chat completions: %w", err)
	}
	return resp, nil
}

func (c *Chat) generationConfig(opts ...StreamOption) streamConfig {
	config := streamConfig{
		maxTokens:   4096,
		temperature: 0,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&config)
		}
	}
	return config
}

// helper types ------------------------------------------------------------------------------------

// messages
type chat_Message_ToolCall_Function struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}
type chat_Message_ToolCall struct {
	Index    int                             `json:"index"`
	ID       string                          `json:"id,omitempty"`
	Type     string                          `json:"type,omitempty"`
	Function *chat_Message_ToolCall_Function `json:"function,omitempty"`
}

type chat_Message struct {
	Role       string                  `json:"role"`
	Content    string                  `json:"content"`
	ToolCalls  []chat_Message_ToolCall `json:"tool_calls,omitempty"`
	Name       string                  `json:"name,omitempty"`
	ToolCallID string                  `json:"tool_call_id,omitempty"`
}

func chatMessageFrom(msg Message) chat_Message {
	m := chat_Message{Role: string(msg.Role), Content: msg.Content.Text()}
	for _, tc := range msg.ToolCalls {
		m.ToolCalls = append(m.ToolCalls, chat_Message_ToolCall{
			Index: tc.Index,
			ID:    tc.ID,
			Type:  "function",
			Function: &chat_Message_ToolCall_Function{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Args,
			},
		})
	}
	if msg.Role == RoleTool {
		m.Name = msg.Name
		m.ToolCallID = msg.ToolCallID
	}
	return m
}

// requests
type chat_Request_Tool_Function struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}
type chat_Request_Tool struct {
	Type     string                      `json:"type"`
	Function *chat_Request_Tool_Function `json:"function,omitempty"`
}

type chat_Request_StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chat_Request struct {
	MaxTokens     int                        `json:"max_tokens,omitempty"`
	Messages      []chat_Message             `json:"messages"`
	Model         string                     `json:"model"`
	Stream        bool                       `json:"stream"`
	StreamOptions chat_Request_StreamOptions `json:"stream_options"`
	Temperature   float64                    `json:"temperature"`
	Tools         []chat_Request_Tool        `json:"tools,omitempty"`
}

// stream responses
type chat_Chunk_Choice_Delta struct {
	Role      string                  `json:"role"`
	Content   string                  `json:"content"`
	ToolCalls []chat_Message_ToolCall `json:"tool_calls"`
}
type chat_Chunk_Choice struct {
	Delta        *chat_Chunk_Choice_Delta `json:"delta"`
	FinishReason *string                  `json:"finish_reason"`
}

type chat_Chunk_Usage struct {
	CompletionTokens int     `json:"completion_tokens"`
	Cost             float64 `json:"cost"`
	PromptTokens     int     `json:"prompt_tokens"`
	TotalTokens      int     `json:"total_tokens"`
}

type chat_Chunk struct {
	Choices []chat_Chunk_Choice `json:"choices"`
	ID      string              `json:"id"`
	Model   string              `json:"model"`
	Usage   *chat_Chunk_Usage   `json:"usage"`
}
