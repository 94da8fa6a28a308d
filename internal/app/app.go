package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/markusylisiurunen/rolodex/internal/agent"
	"github.com/markusylisiurunen/rolodex/internal/config"
	"github.com/markusylisiurunen/rolodex/internal/contact"
	"github.com/markusylisiurunen/rolodex/internal/locale"
	"github.com/markusylisiurunen/rolodex/internal/logger"
	"github.com/markusylisiurunen/rolodex/internal/metrics"
	"github.com/markusylisiurunen/rolodex/internal/sheet"
	"github.com/markusylisiurunen/rolodex/internal/telegram"
	"github.com/markusylisiurunen/rolodex/internal/transcribe"
	"github.com/markusylisiurunen/rolodex/toolkit/llm"
	"github.com/markusylisiurunen/rolodex/toolkit/tool"
)

// App holds the process-wide collaborators. Each one is built on first use; a failed build is
// not cached so a later call can retry it.
type App struct {
	Config  config.Config
	Logger  logger.Logger
	Metrics *metrics.Metrics

	catalog  *locale.Catalog
	location *time.Location
	schema   contact.Schema

	mux         sync.Mutex
	backend     sheet.Backend
	store       *sheet.Store
	model       llm.Model
	agent       *agent.Agent
	transcriber transcribe.Transcriber
	telegram    *telegram.Client
}

type Option func(*App)

func WithLogger(l logger.Logger) Option {
	return func(a *App) { a.Logger = l }
}

// WithBackend replaces the backend selected by the configuration.
func WithBackend(b sheet.Backend) Option {
	return func(a *App) { a.backend = b }
}

// WithModel replaces the chat completion client built from the configuration.
func WithModel(m llm.Model) Option {
	return func(a *App) { a.model = m }
}

func WithTranscriber(t transcribe.Transcriber) Option {
	return func(a *App) { a.transcriber = t }
}

func New(cfg config.Config, opts ...Option) (*App, error) {
	catalog, err := locale.Load(cfg.Language)
	if err != nil {
		return nil, err
	}
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("error loading timezone: %w", err)
	}
	a := &App{
		Config:   cfg,
		Logger:   logger.NoOp(),
		Metrics:  metrics.New(),
		catalog:  catalog,
		location: location,
		schema:   contact.DefaultSchema,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *App) Catalog() *locale.Catalog {
	return a.catalog
}

func (a *App) Schema() contact.Schema {
	return a.schema
}

// Backend returns the raw spreadsheet backend selected by SHEET_BACKEND.
func (a *App) Backend(ctx context.Context) (sheet.Backend, error) {
	a.mux.Lock()
	defer a.mux.Unlock()
	return a.backendLocked(ctx)
}

func (a *App) backendLocked(ctx context.Context) (sheet.Backend, error) {
	if a.backend != nil {
		return a.backend, nil
	}
	if err := a.Config.Require(config.PartSheet); err != nil {
		return nil, err
	}
	switch a.Config.SheetBackend {
	case config.BackendGSheets:
		client, err := sheet.GoogleClient(ctx, a.Config.CredentialsFile)
		if err != nil {
			return nil, err
		}
		a.backend = sheet.NewGSheets(a.Config.SpreadsheetID, a.Config.SheetName, sheet.WithHTTPClient(client))
	case config.BackendXLSX:
		a.backend = sheet.NewXLSX(a.Config.XLSXPath, a.Config.SheetName)
	case config.BackendMemory:
		a.Logger.Warn("using the in-memory backend, changes are lost on exit")
		a.backend = sheet.NewMemory(a.schema.Headers())
	default:
		return nil, fmt.Errorf("unknown sheet backend %q", a.Config.SheetBackend)
	}
	a.Logger.Info("using %s sheet backend", a.Config.SheetBackend)
	return a.backend, nil
}

func (a *App) Store(ctx context.Context) (*sheet.Store, error) {
	a.mux.Lock()
	defer a.mux.Unlock()
	return a.storeLocked(ctx)
}

func (a *App) storeLocked(ctx context.Context) (*sheet.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	backend, err := a.backendLocked(ctx)
	if err != nil {
		return nil, err
	}
	opts := []sheet.Option{
		sheet.WithLogger(a.Logger),
		sheet.WithMetrics(a.Metrics),
		sheet.WithTimeout(a.Config.StoreTimeout),
	}
	if a.Config.StrictReplace {
		opts = append(opts, sheet.WithStrictReplace())
	}
	a.store = sheet.New(backend, a.schema, opts...)
	return a.store, nil
}

func (a *App) Agent(ctx context.Context) (*agent.Agent, error) {
	a.mux.Lock()
	defer a.mux.Unlock()
	if a.agent != nil {
		return a.agent, nil
	}
	if a.model == nil {
		if err := a.Config.Require(config.PartLLM); err != nil {
			return nil, err
		}
		a.model = llm.NewChat(a.Logger, a.Config.LLMKey, a.Config.LLMModel,
			llm.WithBaseURL(a.Config.LLMBaseURL),
			llm.WithTimeout(a.Config.LLMTimeout),
		)
	}
	store, err := a.storeLocked(ctx)
	if err != nil {
		return nil, err
	}
	tools := tool.Contacts(store, a.catalog,
		tool.WithLogger(a.Logger),
		tool.WithMetrics(a.Metrics),
		tool.WithLocation(a.location),
	)
	a.agent = agent.New(a.model, tools, a.catalog,
		agent.WithSchema(a.schema),
		agent.WithMaxIterations(a.Config.MaxIterations),
		agent.WithLLMTimeout(a.Config.LLMTimeout),
		agent.WithToolTimeout(a.Config.StoreTimeout),
		agent.WithHistory(a.Config.HistoryTurns),
		agent.WithStreamOptions(
			llm.WithTemperature(a.Config.LLMTemperature),
			llm.WithMaxTokens(a.Config.LLMMaxTokens),
		),
		agent.WithLogger(a.Logger),
		agent.WithMetrics(a.Metrics),
	)
	return a.agent, nil
}

func (a *App) Transcriber() (transcribe.Transcriber, error) {
	a.mux.Lock()
	defer a.mux.Unlock()
	if a.transcriber != nil {
		return a.transcriber, nil
	}
	if err := a.Config.Require(config.PartTranscribe); err != nil {
		return nil, err
	}
	a.transcriber = transcribe.NewWhisper(a.Config.OpenAIKey,
		transcribe.WithModel(a.Config.TranscribeModel),
		transcribe.WithTimeout(a.Config.TranscribeTimeout),
		transcribe.WithLogger(a.Logger),
		transcribe.WithMetrics(a.Metrics),
	)
	return a.transcriber, nil
}

func (a *App) Telegram() (*telegram.Client, error) {
	a.mux.Lock()
	defer a.mux.Unlock()
	if a.telegram != nil {
		return a.telegram, nil
	}
	if err := a.Config.Require(config.PartTelegram); err != nil {
		return nil, err
	}
	a.telegram = telegram.NewClient(a.Config.TelegramToken, telegram.WithClientLogger(a.Logger))
	return a.telegram, nil
}

// Bot wires the Telegram client, the agent and the transcriber into a bot. A missing
// transcription key only disables voice notes.
func (a *App) Bot(ctx context.Context) (*telegram.Bot, error) {
	client, err := a.Telegram()
	if err != nil {
		return nil, err
	}
	ag, err := a.Agent(ctx)
	if err != nil {
		return nil, err
	}
	opts := []telegram.BotOption{telegram.WithLogger(a.Logger), telegram.WithLanguage(a.catalog.Lang)}
	if transcriber, err := a.Transcriber(); err != nil {
		a.Logger.Warn("voice notes are disabled: %v", err)
	} else {
		opts = append(opts, telegram.WithTranscriber(transcriber))
	}
	return telegram.NewBot(client, ag, a.catalog, opts...), nil
}
