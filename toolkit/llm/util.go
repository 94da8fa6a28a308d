package llm

type messageBuilder struct {
	init  bool
	msgs  []Message
	usage Usage
	err   error
}

func newMessageBuilder() *messageBuilder {
	return &messageBuilder{init: true, msgs: []Message{}, usage: Usage{}, err: nil}
}

func (b *messageBuilder) process(event Event) {
	if b.err != nil {
		return
	}
	switch e := event.(type) {
	case *ContentDeltaEvent:
		if b.init {
			b.init = false
			b.msgs = append(b.msgs, Message{Role: RoleAssistant, Content: ContentParts{}})
		}
		b.msgs[len(b.msgs)-1].Content.AppendText(e.Content)
	case *ToolUseEvent:
		if b.init {
			b.init = false
			b.msgs = append(b.msgs, Message{Role: RoleAssistant, Content: ContentParts{}})
		}
		tc := ToolCall{
			ID:    e.ID,
			Index: e.Index,
			Function: ToolCallFunction{
				Name: e.FuncName,
				Args: e.FuncArgs,
			},
		}
		b.msgs[len(b.msgs)-1].ToolCalls = append(b.msgs[len(b.msgs)-1].ToolCalls, tc)
	case *UsageEvent:
		b.usage.PromptTokens += e.Usage.PromptTokens
		b.usage.CompletionTokens += e.Usage.CompletionTokens
		b.usage.TotalCost += e.Usage.TotalCost
	case *ErrorEvent:
		b.err = e.Err
	}
}

func (b *messageBuilder) result() ([]Message, Usage, error) {
	if b.err != nil {
		return nil, Usage{}, b.err
	}
	return b.msgs, b.usage, nil
}

// Rollup drains events into the messages they describe. The first ErrorEvent wins.
func Rollup(events <-chan Event) ([]Message, Usage, error) {
	b := newMessageBuilder()
	for event := range events {
		b.process(event)
	}
	return b.result()
}
