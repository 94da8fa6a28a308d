package telegram

import (
	"context"
	"errors"
	"time"

	"github.com/markusylisiurunen/rolodex/internal/logger"
)

type Updater interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, update Update)
}

var (
	_ Updater    = (*Client)(nil)
	_ Dispatcher = (*Bot)(nil)
)

// Poller long-polls for updates and hands each one to a dispatcher exactly once.
type Poller struct {
	source     Updater
	dispatcher Dispatcher
	timeout    time.Duration
	minBackoff time.Duration
	maxBackoff time.Duration
	logger     logger.Logger

	offset int64
}

type PollerOption func(*Poller)

// WithPollTimeout sets the long-poll timeout sent to Telegram.
func WithPollTimeout(d time.Duration) PollerOption {
	return func(p *Poller) { p.timeout = d }
}

func WithBackoff(minimum, maximum time.Duration) PollerOption {
	return func(p *Poller) { p.minBackoff, p.maxBackoff = minimum, maximum }
}

func WithPollerLogger(l logger.Logger) PollerOption {
	return func(p *Poller) { p.logger = l }
}

func NewPoller(source Updater, dispatcher Dispatcher, opts ...PollerOption) *Poller {
	p := &Poller{
		source:     source,
		dispatcher: dispatcher,
		timeout:    30 * time.Second,
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
		logger:     logger.NoOp(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until ctx is cancelled. Errors are retried with exponential backoff. Updates that
// were already received keep being handled after ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	base := context.WithoutCancel(ctx)
	backoff := p.minBackoff
	p.logger.Info("polling for updates")
	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, err := p.source.GetUpdates(ctx, p.offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			p.logger.Warn("error polling updates, retrying in %s: %v", backoff, err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(2*backoff, p.maxBackoff)
			continue
		}
		backoff = p.minBackoff
		for _, update := range updates {
			if update.UpdateID < p.offset {
				continue
			}
			p.offset = update.UpdateID + 1
			p.dispatcher.Dispatch(base, update)
		}
	}
}

// Offset is the id of the next update the poller asks for.
func (p *Poller) Offset() int64 {
	return p.offset
}
