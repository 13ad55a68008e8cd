package watcher

import (
	"context"
	"time"

	"github.com/quantmind-br/assetforge/internal/utils"
)

// ruleRunner serializes the runs of one rule. The trigger channel holds at
// most one pending run.
type ruleRunner struct {
	rule    Rule
	trigger chan struct{}
	logger  *utils.Logger
}

func newRuleRunner(rule Rule, logger *utils.Logger) *ruleRunner {
	return &ruleRunner{
		rule:    rule,
		trigger: make(chan struct{}, 1),
		logger:  logger.WithTask(rule.Name),
	}
}

// notify schedules a run unless one is already pending
func (r *ruleRunner) notify() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

func (r *ruleRunner) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.trigger:
		}

		start := time.Now()
		if err := r.rule.Handler(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Error().Err(err).Msg("Rebuild failed")
			continue
		}
		r.logger.Info().Dur("took", time.Since(start)).Msg("Rebuilt")
	}
}
