package pipeline

import "go.uber.org/zap"

// Observer receives progress callbacks as datasets move through the
// stages. It is a pure side channel: the pipeline never depends on it
// for correctness and tolerates a nil observer.
type Observer interface {
	OnStage(dataset, stage string)
	OnError(dataset, stage string, err error)
}

// NopObserver discards all callbacks.
type NopObserver struct{}

func (NopObserver) OnStage(string, string)        {}
func (NopObserver) OnError(string, string, error) {}

// ZapObserver logs progress through a structured logger.
type ZapObserver struct {
	log *zap.SugaredLogger
}

// NewZapObserver wraps a zap logger as a progress observer.
func NewZapObserver(logger *zap.Logger) *ZapObserver {
	return &ZapObserver{log: logger.Sugar()}
}

func (o *ZapObserver) OnStage(dataset, stage string) {
	o.log.Infow("stage complete", "dataset", dataset, "stage", stage)
}

func (o *ZapObserver) OnError(dataset, stage string, err error) {
	o.log.Warnw("stage failed", "dataset", dataset, "stage", stage, "error", err)
}
