package telegram

import (
	"context"
	"errors"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/markusylisiurunen/rolodex/internal/locale"
	"github.com/markusylisiurunen/rolodex/internal/logger"
	"github.com/markusylisiurunen/rolodex/internal/transcribe"
)

// API is the part of the Bot API the bot talks to.
type API interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendChatAction(ctx context.Context, chatID int64, action string) error
	GetFile(ctx context.Context, fileID string) (File, error)
	Download(ctx context.Context, filePath string) ([]byte, error)
}

var _ API = (*Client)(nil)

// Agent answers one query of a conversation. The answer is never empty.
type Agent interface {
	ProcessQuery(ctx context.Context, conversationID, query string) string
}

// Resetter is implemented by agents that keep per-conversation history.
type Resetter interface {
	Reset(conversationID string)
}

type Bot struct {
	api         API
	agent       Agent
	catalog     *locale.Catalog
	transcriber transcribe.Transcriber
	language    string
	timeout     time.Duration
	logger      logger.Logger

	mux    sync.Mutex
	queues map[int64][]Update
	wg     sync.WaitGroup
}

type BotOption func(*Bot)

func WithTranscriber(t transcribe.Transcriber) BotOption {
	return func(b *Bot) { b.transcriber = t }
}

// WithLanguage sets the ISO-639-1 hint passed to the transcriber.
func WithLanguage(lang string) BotOption {
	return func(b *Bot) { b.language = lang }
}

// WithHandleTimeout bounds the time spent on one incoming message.
func WithHandleTimeout(d time.Duration) BotOption {
	return func(b *Bot) { b.timeout = d }
}

func WithLogger(l logger.Logger) BotOption {
	return func(b *Bot) { b.logger = l }
}

func NewBot(api API, agent Agent, catalog *locale.Catalog, opts ...BotOption) *Bot {
	b := &Bot{
		api:      api,
		agent:    agent,
		catalog:  catalog,
		language: catalog.Lang,
		timeout:  5 * time.Minute,
		logger:   logger.NoOp(),
		queues:   map[int64][]Update{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// dispatch ----------------------------------------------------------------------------------------

// Dispatch queues update for handling. Messages of one chat are handled one at a time in arrival
// order while different chats proceed in parallel.
func (b *Bot) Dispatch(ctx context.Context, update Update) {
	if update.Message == nil {
		return
	}
	id := update.Message.Chat.ID
	b.mux.Lock()
	pending, running := b.queues[id]
	b.queues[id] = append(pending, update)
	if !running {
		b.wg.Add(1)
	}
	b.mux.Unlock()
	if !running {
		go b.drain(ctx, id)
	}
}

func (b *Bot) drain(ctx context.Context, chatID int64) {
	defer b.wg.Done()
	for {
		b.mux.Lock()
		pending := b.queues[chatID]
		if len(pending) == 0 {
			delete(b.queues, chatID)
			b.mux.Unlock()
			return
		}
		next := pending[0]
		b.queues[chatID] = pending[1:]
		b.mux.Unlock()
		b.Handle(ctx, next)
	}
}

// Wait blocks until every dispatched update has been handled.
func (b *Bot) Wait() {
	b.wg.Wait()
}

// handlers ----------------------------------------------------------------------------------------

// Handle processes one update synchronously.
func (b *Bot) Handle(ctx context.Context, update Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic handling update %d: %v", update.UpdateID, r)
		}
	}()
	switch {
	case strings.HasPrefix(msg.Text, "/"):
		b.handleCommand(ctx, msg)
	case msg.Text != "":
		b.handleText(ctx, msg, msg.Text)
	case msg.Voice != nil:
		b.handleAudio(ctx, msg, msg.Voice.FileID, "voice.ogg")
	case msg.Audio != nil:
		b.handleAudio(ctx, msg, msg.Audio.FileID, msg.Audio.FileName)
	default:
		b.reply(ctx, msg.Chat.ID, b.catalog.Text("bot.unsupported"))
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *Message) {
	fields := strings.Fields(msg.Text)
	command, _, _ := strings.Cut(fields[0], "@")
	switch command {
	case "/start":
		b.reply(ctx, msg.Chat.ID, b.catalog.Text("bot.start"))
	case "/help":
		b.reply(ctx, msg.Chat.ID, b.catalog.Text("bot.help"))
	case "/reset":
		if r, ok := b.agent.(Resetter); ok {
			r.Reset(conversationID(msg.Chat.ID))
		}
		b.reply(ctx, msg.Chat.ID, b.catalog.Text("bot.reset"))
	default:
		b.logger.Debug("ignoring unknown command %s in chat %d", command, msg.Chat.ID)
	}
}

func (b *Bot) handleText(ctx context.Context, msg *Message, text string) {
	b.typing(ctx, msg.Chat.ID)
	b.reply(ctx, msg.Chat.ID, b.agent.ProcessQuery(ctx, conversationID(msg.Chat.ID), text))
}

func (b *Bot) handleAudio(ctx context.Context, msg *Message, fileID, filename string) {
	b.typing(ctx, msg.Chat.ID)
	text, err := b.transcribe(ctx, msg.Chat.ID, fileID, filename)
	if err != nil {
		b.logger.Error("error processing audio in chat %d: %v", msg.Chat.ID, err)
		b.reply(ctx, msg.Chat.ID, b.catalog.Text("bot.audio_error"))
		return
	}
	b.reply(ctx, msg.Chat.ID, b.catalog.Sprintf("bot.transcript", text))
	b.handleText(ctx, msg, text)
}

func (b *Bot) transcribe(ctx context.Context, chatID int64, fileID, filename string) (string, error) {
	if b.transcriber == nil {
		return "", errors.New("no transcriber configured")
	}
	file, err := b.api.GetFile(ctx, fileID)
	if err != nil {
		return "", err
	}
	audio, err := b.api.Download(ctx, file.FilePath)
	if err != nil {
		return "", err
	}
	if filename == "" {
		filename = path.Base(file.FilePath)
	}
	if path.Ext(filename) == "" {
		filename += ".mp3"
	}
	b.reply(ctx, chatID, b.catalog.Text("bot.transcribing"))
	return b.transcriber.Transcribe(ctx, audio, filename, b.language)
}

func (b *Bot) typing(ctx context.Context, chatID int64) {
	if err := b.api.SendChatAction(ctx, chatID, "typing"); err != nil {
		b.logger.Warn("error sending chat action to chat %d: %v", chatID, err)
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.api.SendMessage(ctx, chatID, text); err != nil {
		b.logger.Error("error sending message to chat %d: %v", chatID, err)
	}
}

func conversationID(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
