// Package regime maintains bounded per-symbol price history and
// classifies the market into RANGE/UPTREND/DOWNTREND/STRESS, the way
// the teacher's pkg/formulas computes rolling statistics with
// gonum.org/v1/gonum/stat (spec.md section 4.E).
package regime

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/inarbit/internal/domain"
	"github.com/aristath/inarbit/internal/kv"
	"github.com/aristath/inarbit/internal/marketdata"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// Thresholds parameterizes the classification rules (spec.md section 4.E).
type Thresholds struct {
	StressSpread   float64
	StressVol      float64
	TrendThreshold float64
	HighVol        float64
	MaxDataAgeMs   int64
	MinPoints      int
}

// ringBuffer is a bounded per-symbol price history, default capacity 60.
type ringBuffer struct {
	points   []float64
	capacity int
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{capacity: capacity}
}

func (r *ringBuffer) push(v float64) {
	r.points = append(r.points, v)
	if len(r.points) > r.capacity {
		r.points = r.points[len(r.points)-r.capacity:]
	}
}

// Snapshot is the cached classification result, published to a metrics
// hash and reused by callers inside the minimum sample interval.
type Snapshot struct {
	Label         domain.RegimeLabel
	AvgReturn     float64
	Volatility    float64
	AvgSpreadRate float64
	AvgVolume     float64
	AvgDataAgeMs  float64
	SampledAt     time.Time
}

// Classifier samples mid prices for a symbol set at most once every
// sampleInterval and recomputes a regime Snapshot from their ring
// buffers. A single Classifier instance is scoped to one exchange.
type Classifier struct {
	repo       *marketdata.Repository
	store      *kv.Store
	log        zerolog.Logger
	exchange   string
	thresholds Thresholds
	capacity   int
	sampleEvery time.Duration
	minInterval time.Duration

	mu       sync.Mutex
	buffers  map[string]*ringBuffer
	cached   Snapshot
	hasCache bool
	lastSample time.Time
}

// Config configures one Classifier instance.
type Config struct {
	Exchange        string
	Thresholds      Thresholds
	RingCapacity    int // default 60
	SampleInterval  time.Duration // minimum 2s between point samples
	MinRefreshInterval time.Duration
}

func NewClassifier(repo *marketdata.Repository, store *kv.Store, cfg Config, log zerolog.Logger) *Classifier {
	if cfg.RingCapacity <= 0 {
		cfg.RingCapacity = 60
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 2 * time.Second
	}
	if cfg.Thresholds.MinPoints <= 0 {
		cfg.Thresholds.MinPoints = 2
	}
	return &Classifier{
		repo: repo, store: store,
		log:         log.With().Str("component", "regime-classifier").Str("exchange", cfg.Exchange).Logger(),
		exchange:    cfg.Exchange,
		thresholds:  cfg.Thresholds,
		capacity:    cfg.RingCapacity,
		sampleEvery: cfg.SampleInterval,
		minInterval: cfg.MinRefreshInterval,
		buffers:     make(map[string]*ringBuffer),
	}
}

// Refresh samples mid prices for symbols (no more than once every
// sampleEvery per symbol set) and recomputes the cached Snapshot if the
// minimum refresh interval has elapsed, per spec.md section 4.E.
func (c *Classifier) Refresh(ctx context.Context, symbols []string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if c.hasCache && (now.Sub(c.lastSample) < c.minInterval || now.Sub(c.lastSample) < c.sampleEvery) {
		return c.cached
	}

	var (
		returns     []float64
		allPoints   []float64
		spreadSum   float64
		spreadN     int
		volumeSum   float64
		volumeN     int
		dataAgeSum  float64
		dataAgeN    int
	)

	nowMs := marketdata.NowMs(now)
	for _, symbol := range symbols {
		bba, ok, err := c.repo.GetBestBidAsk(ctx, c.exchange, symbol, domain.AccountSpot)
		if err != nil || !ok {
			continue
		}
		mid := bba.Mid()
		if mid.IsZero() {
			continue
		}
		midF, _ := mid.Float64()

		buf, exists := c.buffers[symbol]
		if !exists {
			buf = newRingBuffer(c.capacity)
			c.buffers[symbol] = buf
		}
		buf.push(midF)

		if len(buf.points) >= c.thresholds.MinPoints {
			first, last := buf.points[0], buf.points[len(buf.points)-1]
			if first != 0 {
				returns = append(returns, (last-first)/first)
			}
			allPoints = append(allPoints, buf.points...)
		}

		spreadRate, _ := bba.Ask.Sub(bba.Bid).Div(mid).Float64()
		if mid.IsPositive() && bba.Bid.IsPositive() && bba.Ask.IsPositive() {
			spreadSum += spreadRate
			spreadN++
		}
		if volF, _ := bba.QuoteVolume.Float64(); volF > 0 {
			volumeSum += volF
			volumeN++
		}
		dataAgeSum += float64(nowMs - bba.IngestTimestampMs)
		dataAgeN++
	}

	snap := Snapshot{SampledAt: now}
	if len(returns) > 0 {
		snap.AvgReturn = stat.Mean(returns, nil)
	}
	if consecutive := consecutiveReturns(allPoints); len(consecutive) > 1 {
		snap.Volatility = stat.StdDev(consecutive, nil)
	}
	if spreadN > 0 {
		snap.AvgSpreadRate = spreadSum / float64(spreadN)
	}
	if volumeN > 0 {
		snap.AvgVolume = volumeSum / float64(volumeN)
	}
	if dataAgeN > 0 {
		snap.AvgDataAgeMs = dataAgeSum / float64(dataAgeN)
	}
	snap.Label = classify(snap, c.thresholds)

	c.cached = snap
	c.hasCache = true
	c.lastSample = now

	c.publish(ctx, snap)
	return snap
}

// consecutiveReturns computes (p[i]-p[i-1])/p[i-1] across all recorded
// points (section 4.E: "volatility = stddev of consecutive returns
// across all symbols' points").
func consecutiveReturns(points []float64) []float64 {
	if len(points) < 2 {
		return nil
	}
	out := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		if points[i-1] != 0 {
			out = append(out, (points[i]-points[i-1])/points[i-1])
		}
	}
	return out
}

// classify applies the first-match-wins rules from spec.md section 4.E.
func classify(s Snapshot, t Thresholds) domain.RegimeLabel {
	if (t.MaxDataAgeMs > 0 && s.AvgDataAgeMs > float64(t.MaxDataAgeMs)) || s.AvgSpreadRate > t.StressSpread {
		return domain.RegimeStress
	}
	if s.Volatility >= t.StressVol {
		return domain.RegimeStress
	}
	absReturn := s.AvgReturn
	if absReturn < 0 {
		absReturn = -absReturn
	}
	if absReturn >= t.TrendThreshold && s.Volatility >= t.HighVol {
		if s.AvgReturn >= 0 {
			return domain.RegimeUptrend
		}
		return domain.RegimeDowntrend
	}
	return domain.RegimeRange
}

func (c *Classifier) publish(ctx context.Context, snap Snapshot) {
	fields := map[string]any{
		"label":           string(snap.Label),
		"avg_return":      snap.AvgReturn,
		"volatility":      snap.Volatility,
		"avg_spread_rate": snap.AvgSpreadRate,
		"avg_volume":      snap.AvgVolume,
		"avg_data_age_ms": snap.AvgDataAgeMs,
		"sampled_at":      snap.SampledAt.UnixMilli(),
	}
	if err := c.store.HSetWithTTL(ctx, kv.MetricsKey("regime_"+c.exchange), fields, kv.OpportunityTTL*6); err != nil {
		c.log.Debug().Err(err).Msg("failed to publish regime snapshot")
	}
}
