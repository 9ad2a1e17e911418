// Package retry runs an operation again after transient failures.
//
//	err := retry.Do(ctx, retry.DownloadConfig(), func() error {
//	    return fetch(url)
//	})
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Strategy selects how the delay grows between attempts
type Strategy int

const (
	// Exponential waits InitDelay, 2*InitDelay, 4*InitDelay...
	Exponential Strategy = iota
	// Linear waits InitDelay, 2*InitDelay, 3*InitDelay...
	Linear
	// Constant waits InitDelay every time
	Constant
)

// Config controls Do
type Config struct {
	MaxAttempts int           // total calls including the first; 0 disables the call
	InitDelay   time.Duration // delay before the first retry
	MaxDelay    time.Duration // cap on any single delay, 0 means no cap
	Strategy    Strategy
	Jitter      bool // spread each delay by up to 25%
	// OnRetry is called after a failed attempt that will be retried
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DownloadConfig is used for tool downloads: three attempts waiting 2s then 4s.
func DownloadConfig() Config {
	return Config{
		MaxAttempts: 3,
		InitDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		Strategy:    Linear,
	}
}

// StopError marks a failure that must not be retried
type StopError struct {
	Err error
}

func (e *StopError) Error() string { return e.Err.Error() }
func (e *StopError) Unwrap() error { return e.Err }

// Stop wraps err so Do returns it immediately
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &StopError{Err: err}
}

type sleeper interface {
	sleep(ctx context.Context, d time.Duration) error
}

type timerSleeper struct{}

func (timerSleeper) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do calls fn until it succeeds, returns a StopError, the context ends or
// cfg.MaxAttempts calls have failed. The last error is returned.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	return do(ctx, cfg, fn, timerSleeper{})
}

func do(ctx context.Context, cfg Config, fn func() error, s sleeper) error {
	var err error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err = fn(); err == nil {
			return nil
		}
		var stop *StopError
		if errors.As(err, &stop) {
			return stop.Err
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := Delay(cfg, attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, delay)
		}
		if sleepErr := s.sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
	return err
}

// Delay returns the wait after the given zero-based failed attempt
func Delay(cfg Config, attempt int) time.Duration {
	var d time.Duration
	switch cfg.Strategy {
	case Exponential:
		d = cfg.InitDelay << uint(attempt)
	case Linear:
		d = cfg.InitDelay * time.Duration(attempt+1)
	default:
		d = cfg.InitDelay
	}
	if cfg.MaxDelay > 0 && (d > cfg.MaxDelay || d < 0) {
		d = cfg.MaxDelay
	}
	if cfg.Jitter {
		if spread := int64(d) / 4; spread > 0 {
			d += time.Duration(rand.Int64N(2*spread) - spread)
		}
	}
	return d
}
