package store

import (
	"context"

	"github.com/plugbridge/go-kit/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Janitor runs scheduled maintenance against a store: flushing buffered
// writes and sweeping slots idle past the retention window
type Janitor interface {
	// Start begins the maintenance schedule
	Start()
	// Close stops the schedule and waits for a running maintenance pass
	Close()
}

// storeJanitor implements the Janitor interface
type storeJanitor struct {
	logger logger.Logger
	store  Store
	config JanitorConfig
	cron   *cron.Cron
}

// NewJanitor creates a janitor maintaining the given store on a cron schedule
func NewJanitor(log logger.Logger, st Store, cfg *JanitorConfig) (Janitor, error) {
	if st == nil {
		return nil, ErrInvalidConfig("store is required")
	}
	if cfg == nil {
		cfg = DefaultJanitorConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	j := &storeJanitor{
		logger: log,
		store:  st,
		config: *cfg,
		cron:   cron.New(),
	}

	if _, err := j.cron.AddFunc(cfg.Spec, j.maintain); err != nil {
		return nil, ErrInvalidConfig("spec is not a valid cron expression: " + err.Error())
	}
	return j, nil
}

// Start begins the maintenance schedule
func (j *storeJanitor) Start() {
	j.cron.Start()
	j.logger.Info("store janitor started",
		zap.String("spec", j.config.Spec),
		zap.Duration("retention", j.config.Retention),
	)
}

// Close stops the schedule and waits for a running maintenance pass
func (j *storeJanitor) Close() {
	<-j.cron.Stop().Done()
}

// maintain runs one maintenance pass
func (j *storeJanitor) maintain() {
	ctx, cancel := context.WithTimeout(context.Background(), j.config.Timeout)
	defer cancel()

	if flusher, ok := j.store.(Flusher); ok {
		if err := flusher.Flush(ctx); err != nil {
			j.logger.Error("store flush failed", zap.Error(err))
		}
	}

	if j.config.Retention <= 0 {
		return
	}
	if sweeper, ok := j.store.(Sweeper); ok {
		removed, err := sweeper.Sweep(ctx, j.config.Retention)
		if err != nil {
			j.logger.Error("store sweep failed", zap.Error(err))
			return
		}
		if removed > 0 {
			j.logger.Info("swept idle storage slots", zap.Int("removed", removed))
		}
	}
}
