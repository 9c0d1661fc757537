package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PushJob is the Pushgateway job name used by one-shot runs.
const PushJob = "covidbr_etl"

// Push sends the metrics gathered by g to a Pushgateway. One-shot CLI runs
// exit before any scrape, so this is the only way their metrics are seen.
func Push(ctx context.Context, url string, g prometheus.Gatherer, operation string) error {
	err := push.New(url, PushJob).
		Gatherer(g).
		Grouping("operation", operation).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
