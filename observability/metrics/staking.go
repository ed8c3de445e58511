package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	stakeerr "stakingcore/core/errors"
)

type StakingMetrics struct {
	stakes         *prometheus.CounterVec
	unstakes       *prometheus.CounterVec
	stakedAmount   *prometheus.CounterVec
	unstakedAmount *prometheus.CounterVec
	rewardsMinted  *prometheus.CounterVec
	failures       *prometheus.CounterVec
	holdDuration   *prometheus.HistogramVec
}

var (
	stakingOnce     sync.Once
	stakingRegistry *StakingMetrics
)

// Staking returns the process-wide staking metrics registered with the default
// Prometheus registerer.
func Staking() *StakingMetrics {
	stakingOnce.Do(func() {
		stakingRegistry = NewStaking(prometheus.DefaultRegisterer)
	})
	return stakingRegistry
}

// NewStaking builds a metrics set registered with reg. Tests pass a private
// registry.
func NewStaking(reg prometheus.Registerer) *StakingMetrics {
	m := &StakingMetrics{
		stakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staking_positions_opened_total",
			Help: "Count of positions opened by asset class.",
		}, []string{"asset"}),
		unstakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staking_positions_closed_total",
			Help: "Count of positions closed by asset class.",
		}, []string{"asset"}),
		stakedAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staking_deposited_amount_total",
			Help: "Base units moved into custody by asset class.",
		}, []string{"asset"}),
		unstakedAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staking_withdrawn_amount_total",
			Help: "Base units released from custody by asset class.",
		}, []string{"asset"}),
		rewardsMinted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staking_rewards_minted_total",
			Help: "Reward tokens minted by kind (join or yield).",
		}, []string{"kind"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staking_operation_failures_total",
			Help: "Failed staking operations by operation and reason.",
		}, []string{"op", "reason"}),
		holdDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "staking_position_hold_seconds",
			Help:    "Time positions were held before withdrawal.",
			Buckets: prometheus.ExponentialBuckets(3600, 4, 8),
		}, []string{"asset"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.stakes,
			m.unstakes,
			m.stakedAmount,
			m.unstakedAmount,
			m.rewardsMinted,
			m.failures,
			m.holdDuration,
		)
	}
	return m
}

func label(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

func (m *StakingMetrics) ObserveStake(asset string, amount, reward uint64) {
	if m == nil {
		return
	}
	asset = label(asset)
	m.stakes.WithLabelValues(asset).Inc()
	m.stakedAmount.WithLabelValues(asset).Add(float64(amount))
	m.rewardsMinted.WithLabelValues("join").Add(float64(reward))
}

func (m *StakingMetrics) ObserveUnstake(asset string, amount, reward uint64, elapsed int64) {
	if m == nil {
		return
	}
	asset = label(asset)
	m.unstakes.WithLabelValues(asset).Inc()
	m.unstakedAmount.WithLabelValues(asset).Add(float64(amount))
	m.rewardsMinted.WithLabelValues("yield").Add(float64(reward))
	m.holdDuration.WithLabelValues(asset).Observe(float64(elapsed))
}

func (m *StakingMetrics) ObserveFailure(op string, err error) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(label(op), Reason(err)).Inc()
}

// Reason maps an engine error onto a bounded label value.
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, stakeerr.ErrCustodyFailure):
		return "custody"
	case errors.Is(err, stakeerr.ErrOverflow):
		return "overflow"
	case errors.Is(err, stakeerr.ErrUnderflow):
		return "underflow"
	case errors.Is(err, stakeerr.ErrInvalidLockPeriod):
		return "invalid_lock_period"
	case errors.Is(err, stakeerr.ErrLockPeriodNotElapsed):
		return "locked"
	case errors.Is(err, stakeerr.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, stakeerr.ErrRecordNotFound):
		return "not_found"
	case errors.Is(err, stakeerr.ErrDuplicatePosition):
		return "duplicate"
	case errors.Is(err, stakeerr.ErrInvalidAsset):
		return "invalid_asset"
	case errors.Is(err, stakeerr.ErrNotInitialized):
		return "not_initialized"
	default:
		return "internal"
	}
}
