package engine

import (
	"context"
	"fmt"

	"github.com/omark96/komorebi-custom-offset/internal/debounce"
	"github.com/omark96/komorebi-custom-offset/internal/layout"
	"github.com/omark96/komorebi-custom-offset/internal/metrics"
	"github.com/omark96/komorebi-custom-offset/internal/util"
)

// RetileAction delivers one Retile command per settled burst of offset changes.
func RetileAction(dispatcher layout.Dispatcher, logger *util.Logger, collector *metrics.Collector) debounce.Action {
	return func(ctx context.Context) error {
		if err := dispatcher.Retile(ctx); err != nil {
			collector.RecordDispatchError()
			return fmt.Errorf("retile: %w", err)
		}
		collector.RecordRetile()
		logger.Infof("retiled")
		return nil
	}
}
