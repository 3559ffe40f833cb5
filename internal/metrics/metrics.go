package metrics

import (
	"time"

	"dex-router/internal/types"

	"github.com/zeromicro/go-zero/core/metric"
)

const namespace = "router"

// 调用结果标签
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

var (
	swapTotal = metric.NewCounterVec(&metric.CounterVecOpts{
		Namespace: namespace,
		Subsystem: "swap",
		Name:      "total",
		Help:      "swap calls by strategy and result",
		Labels:    []string{"strategy", "result"},
	})

	swapDuration = metric.NewHistogramVec(&metric.HistogramVecOpts{
		Namespace: namespace,
		Subsystem: "swap",
		Name:      "duration_us",
		Help:      "swap call duration in microseconds",
		Labels:    []string{"strategy"},
		Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 50000},
	})

	swapFailures = metric.NewCounterVec(&metric.CounterVecOpts{
		Namespace: namespace,
		Subsystem: "swap",
		Name:      "failures",
		Help:      "failed swap calls by strategy and reason",
		Labels:    []string{"strategy", "reason"},
	})

	dispatchTotal = metric.NewCounterVec(&metric.CounterVecOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "total",
		Help:      "executor invocations by executor and result",
		Labels:    []string{"executor", "result"},
	})
)

// RecordSwap 记录一次顶层调用
func RecordSwap(strategy, result string, elapsed time.Duration) {
	swapTotal.Inc(strategy, result)
	swapDuration.Observe(elapsed.Microseconds(), strategy)
}

// RecordSwapFailure 按失败原因计数
func RecordSwapFailure(strategy, reason string) {
	swapFailures.Inc(strategy, reason)
}

// RecordDispatch 记录一次执行器调用
func RecordDispatch(executor types.Address, result string) {
	dispatchTotal.Inc(executor.Hex(), result)
}
