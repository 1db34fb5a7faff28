// Package startup brings the messaging client from disconnected to ready:
// connect, fetch the bot identity, register the command menu and resolve a
// pending restart notice. Steps run strictly in order on the caller's
// goroutine.
package startup

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/marmos91/thunder/internal/logger"
	"github.com/marmos91/thunder/internal/telemetry"
	"github.com/marmos91/thunder/pkg/messaging"
	"github.com/marmos91/thunder/pkg/metrics"
	"github.com/marmos91/thunder/pkg/store"
)

// DefaultRestartCompleteText replaces the restart notice once the bot is
// back.
const DefaultRestartCompleteText = "Restarted successfully!"

// Config configures a Sequencer.
type Config struct {
	// Commands is the menu pushed to the platform. Defaults to
	// messaging.DefaultCommands.
	Commands []messaging.BotCommand

	RestartCompleteText string

	Metrics metrics.StartupMetrics
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithSleeper replaces the wait used between rate-limited attempts.
func WithSleeper(fn Sleeper) Option {
	return func(s *Sequencer) {
		s.sleep = fn
	}
}

// Sequencer runs the startup state machine once.
type Sequencer struct {
	client  messaging.Client
	notices store.RestartNoticeStore
	config  Config
	sleep   Sleeper

	state atomic.Int32
	ran   atomic.Bool
}

// New creates a sequencer in the Idle state.
func New(client messaging.Client, notices store.RestartNoticeStore, config Config, opts ...Option) *Sequencer {
	if config.Commands == nil {
		config.Commands = messaging.DefaultCommands()
	}
	if config.RestartCompleteText == "" {
		config.RestartCompleteText = DefaultRestartCompleteText
	}

	s := &Sequencer{
		client:  client,
		notices: notices,
		config:  config,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// State returns the current state.
func (s *Sequencer) State() State {
	return State(s.state.Load())
}

func (s *Sequencer) transition(ctx context.Context, to State) {
	s.state.Store(int32(to))
	metrics.SetState(s.config.Metrics, to.String())
	logger.DebugCtx(ctx, "Startup state changed", logger.State(to.String()))
}

// Run executes the sequence and returns the bot identity once Ready. Any
// fatal error moves the sequencer to Failed and is returned as *StepError.
func (s *Sequencer) Run(ctx context.Context) (*messaging.BotContext, error) {
	if !s.ran.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanStartup)
	defer span.End()
	start := time.Now()

	s.transition(ctx, StateClientConnecting)
	err := s.step(ctx, StateClientConnecting, func(ctx context.Context) error {
		return s.withRetry(ctx, StateClientConnecting, s.client.Connect)
	})
	if err != nil {
		return nil, s.fail(ctx, StateClientConnecting, err)
	}

	s.transition(ctx, StateIdentityFetching)
	var me *messaging.User
	err = s.step(ctx, StateIdentityFetching, func(ctx context.Context) error {
		return s.withRetry(ctx, StateIdentityFetching, func(ctx context.Context) error {
			u, err := s.client.GetMe(ctx)
			if err != nil {
				return err
			}
			if u == nil {
				return errors.New("empty identity")
			}
			me = u
			return nil
		})
	})
	if err != nil {
		return nil, s.fail(ctx, StateIdentityFetching, err)
	}
	bot := messaging.NewBotContext(me)
	logger.InfoCtx(ctx, "Bot initialized", "username", "@"+bot.Username, "bot_id", bot.ID)

	s.transition(ctx, StateCommandsRegistering)
	_ = s.step(ctx, StateCommandsRegistering, s.registerCommands)

	s.transition(ctx, StateRestartNoticeResolving)
	_ = s.step(ctx, StateRestartNoticeResolving, s.ResolveRestartNotice)

	s.transition(ctx, StateReady)
	logger.InfoCtx(ctx, "Startup sequence complete", logger.KeyDurationMs, logger.Since(start))
	return bot, nil
}

func (s *Sequencer) fail(ctx context.Context, at State, err error) error {
	s.transition(ctx, StateFailed)
	telemetry.RecordError(ctx, err)
	logger.ErrorCtx(ctx, "Bot initialization failed", logger.Step(at.String()), logger.Err(err))
	return &StepError{State: at, Err: err}
}

// step traces and times one state's work.
func (s *Sequencer) step(ctx context.Context, st State, fn func(context.Context) error) error {
	ctx, span := telemetry.StartStepSpan(ctx, st.String())
	defer span.End()
	ctx = logger.WithContext(ctx, logger.NewLogContext("startup").WithStep(st.String()))

	start := time.Now()
	err := fn(ctx)

	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeFailed
		if _, limited := messaging.IsRateLimited(err); limited {
			outcome = metrics.OutcomeRateLimited
		}
		telemetry.RecordError(ctx, err)
	}
	span.SetAttributes(telemetry.Outcome(outcome))
	metrics.ObserveStep(s.config.Metrics, st.String(), outcome, time.Since(start))
	return err
}

// withRetry calls fn and, if the platform answers with a rate limit, waits
// exactly the requested duration and calls it once more. A second rate
// limit is returned as is.
func (s *Sequencer) withRetry(ctx context.Context, st State, fn func(context.Context) error) error {
	err := fn(ctx)
	wait, limited := messaging.IsRateLimited(err)
	if !limited {
		return err
	}

	logger.WarnCtx(ctx, "Rate limited, retrying once", logger.Step(st.String()), logger.Wait(wait), logger.Attempt(1))
	metrics.RecordRateLimit(s.config.Metrics, st.String(), wait)
	telemetry.AddEvent(ctx, "rate_limited", telemetry.WaitMs(wait.Milliseconds()), telemetry.Attempt(1))

	if err := s.sleep(ctx, wait); err != nil {
		return err
	}

	err = fn(ctx)
	if _, again := messaging.IsRateLimited(err); again {
		metrics.RecordRateLimit(s.config.Metrics, st.String(), 0)
		return fmt.Errorf("rate limited again after waiting %s: %w", wait, err)
	}
	return err
}

func (s *Sequencer) registerCommands(ctx context.Context) error {
	if err := s.client.SetCommands(ctx, s.config.Commands); err != nil {
		logger.WarnCtx(ctx, "Failed to register bot commands", logger.Err(err))
		return err
	}
	logger.DebugCtx(ctx, "Bot commands registered", logger.Count(int64(len(s.config.Commands))))
	return nil
}

// ResolveRestartNotice edits a pending restart notice to the completion
// text and deletes it. Every failure is logged and returned for reporting;
// none of them is fatal. With no pending notice it does nothing.
func (s *Sequencer) ResolveRestartNotice(ctx context.Context) error {
	if s.notices == nil {
		return nil
	}

	notice, err := s.notices.GetRestartNotice(ctx)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to read restart notice", logger.Err(err))
		return err
	}
	if notice == nil {
		return nil
	}

	err = s.client.EditMessageText(ctx, notice.ChatID, notice.MessageID, s.config.RestartCompleteText)
	switch {
	case err == nil, errors.Is(err, messaging.ErrMessageNotModified):
	default:
		if wait, limited := messaging.IsRateLimited(err); limited {
			logger.WarnCtx(ctx, "Rate limited while editing restart notice",
				logger.ChatID(notice.ChatID), logger.MessageID(notice.MessageID), logger.Wait(wait))
			metrics.RecordRateLimit(s.config.Metrics, StateRestartNoticeResolving.String(), wait)
			if serr := s.sleep(ctx, wait); serr != nil {
				return serr
			}
			return err
		}
		logger.WarnCtx(ctx, "Failed to edit restart notice",
			logger.ChatID(notice.ChatID), logger.MessageID(notice.MessageID), logger.Err(err))
		return err
	}

	if err := s.notices.DeleteRestartNotice(ctx, notice.MessageID); err != nil {
		logger.WarnCtx(ctx, "Failed to delete restart notice", logger.MessageID(notice.MessageID), logger.Err(err))
		return err
	}
	logger.InfoCtx(ctx, "Restart notice resolved", logger.ChatID(notice.ChatID), logger.MessageID(notice.MessageID))
	return nil
}
