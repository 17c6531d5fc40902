package targets

import (
	"context"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opencensus.io/trace"
)

var (
	targetInsertDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "concatsink_target_insert_duration_seconds",
			Help:    "Distribution of time spent inserting chunks, by route",
			Buckets: prometheus.ExponentialBuckets(0.000125, 2, 16), // 125us -> 4s
		},
		[]string{"route"},
	)
	targetInsertFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concatsink_target_insert_failures_total",
			Help: "Count of inserts rejected by the target, by route",
		},
		[]string{"route"},
	)
)

type instrumentedInserter[T any] struct {
	Inserter[T]
	logger          kitlog.Logger
	route           string
	durationSeconds prometheus.ObserverVec
	failures        *prometheus.CounterVec
}

// NewInstrumentedInserter wraps an existing inserter, causing every insert to be logged,
// capture duration and failures in metrics, and create new spans. Route is usually the
// name of the target, or the family of targets, the inserter belongs to.
func NewInstrumentedInserter[T any](logger kitlog.Logger, route string, i Inserter[T]) Inserter[T] {
	labels := prometheus.Labels(map[string]string{"route": route})
	logger = kitlog.With(logger, "route", route)

	return &instrumentedInserter[T]{
		Inserter:        i,
		logger:          logger,
		route:           route,
		durationSeconds: targetInsertDurationSeconds.MustCurryWith(labels),
		failures:        targetInsertFailuresTotal.MustCurryWith(labels),
	}
}

func (i *instrumentedInserter[T]) Insert(ctx context.Context, chunk T) (err error) {
	ctx, span := trace.StartSpan(ctx, "pkg/targets.Inserter.Insert()")
	defer span.End()

	span.AddAttributes(trace.StringAttribute("route", i.route))

	defer prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		logger := level.Debug(i.logger)
		if err != nil {
			logger = level.Info(i.logger)
			i.failures.WithLabelValues().Inc()
		}

		logger.Log("event", "insert", "duration", v, "error", err)
		i.durationSeconds.WithLabelValues().Observe(v)
	})).ObserveDuration()

	return i.Inserter.Insert(ctx, chunk)
}

func (i *instrumentedInserter[T]) Close(ctx context.Context) error {
	i.logger.Log("event", "close")
	return closeInserter(ctx, i.Inserter)
}

func (i *instrumentedInserter[T]) Abort(ctx context.Context, reason error) error {
	i.logger.Log("event", "abort", "reason", reason)
	return abortInserter(ctx, i.Inserter, reason)
}
