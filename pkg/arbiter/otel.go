package arbiter

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/gwillem/rover/pkg/motion"
)

const instrumentationName = "github.com/gwillem/rover/pkg/arbiter"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	ticks    metric.Int64Counter
	trips    metric.Int64Counter
	commands metric.Int64Counter
}

func newMetrics() metrics {
	m := meter()
	return metrics{
		ticks:    counter(m, "rover.ticks", "Control ticks executed"),
		trips:    counter(m, "rover.watchdog.trips", "Manual commands stopped by the safety watchdog"),
		commands: counter(m, "rover.commands", "Commands applied to the drive"),
	}
}

func counter(m metric.Meter, name, desc string) metric.Int64Counter {
	c, err := m.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

func modeAttr(mode motion.Mode) attribute.KeyValue {
	return attribute.String("mode", mode.String())
}

func commandAttr(cmd motion.Command) attribute.KeyValue {
	return attribute.String("command", cmd.String())
}
