package service

import (
	"context"

	"github.com/rs/zerolog"
)

type undoFunc func(ctx context.Context) error

type compensation struct {
	name string
	undo undoFunc
}

// compensations collects the inverse of every mutation made while creating
// an order so a later failure can put things back.
type compensations struct {
	steps  []compensation
	logger zerolog.Logger
}

func (c *compensations) add(name string, undo undoFunc) {
	c.steps = append(c.steps, compensation{name: name, undo: undo})
}

// rollback runs the steps newest first. It keeps going past failures and
// ignores cancellation of ctx.
func (c *compensations) rollback(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]
		if err := step.undo(ctx); err != nil {
			c.logger.Error().Err(err).Str("step", step.name).Msg("compensation failed")
			continue
		}
		c.logger.Debug().Str("step", step.name).Msg("compensation applied")
	}
	c.steps = nil
}
