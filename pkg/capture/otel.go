package capture

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/gwillem/rover/pkg/motion"
)

const instrumentationName = "github.com/gwillem/rover/pkg/capture"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

func recordCounter() metric.Int64Counter {
	c, err := meter().Int64Counter(
		"rover.capture.records",
		metric.WithDescription("Total capture records appended"),
	)
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

func commandAttr(cmd motion.Command) attribute.KeyValue {
	return attribute.String("command", cmd.String())
}
