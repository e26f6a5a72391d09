package query

import (
	"context"

	"go.uber.org/zap"

	apperrors "wayfinder/internal/errors"
	"wayfinder/internal/notify"
)

// Mutation describes one write.
type Mutation[P, R any] struct {
	Name string
	// Do sends the payload to the mutating endpoint. It is never retried.
	Do func(ctx context.Context, payload P) (R, error)
	// Validate checks the payload shape before anything is sent.
	Validate func(payload P) error
	// Invalidates lists the cache key prefixes the write affects.
	Invalidates func(payload P, result R) []Key
	// SuccessMessage and FailureMessage are shown to the user. The server
	// message replaces FailureMessage when the endpoint supplies one.
	SuccessMessage string
	FailureMessage string
}

// Mutate runs m. On success the affected keys are invalidated before the
// success notification is sent and before Mutate returns.
func Mutate[P, R any](ctx context.Context, c *Client, m Mutation[P, R], payload P) (R, error) {
	var zero R

	if m.Validate != nil {
		if err := m.Validate(payload); err != nil {
			verr := apperrors.Validation(m.Name, err)
			c.failMutation(ctx, m.Name, m.FailureMessage, verr)
			return zero, verr
		}
	}

	res, err := m.Do(ctx, payload)
	if err != nil {
		c.failMutation(ctx, m.Name, m.FailureMessage, err)
		return zero, err
	}

	if m.Invalidates != nil {
		if keys := m.Invalidates(payload, res); len(keys) > 0 {
			c.Invalidate(keys...)
		}
	}
	c.metrics.MutationCompleted(m.Name, "success")
	c.notify(ctx, notify.LevelSuccess, m.Name, m.SuccessMessage)
	return res, nil
}

func (c *Client) failMutation(ctx context.Context, name, fallback string, err error) {
	c.metrics.MutationCompleted(name, "error")
	c.logger.Warn("Mutation failed",
		zap.String("mutation", name),
		zap.Error(err),
	)
	if fallback == "" {
		fallback = "Something went wrong"
	}
	c.notify(ctx, notify.LevelError, name, apperrors.UserMessage(err, fallback))
}
