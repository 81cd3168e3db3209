package dash

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

type baseValues struct {
	volume, speed, fees, etf float64
}

var platformBase = map[Platform]baseValues{
	Solana:   {volume: 50e9, speed: 400, fees: 0.00025, etf: 150},
	Ethereum: {volume: 25e9, speed: 12000, fees: 5.5, etf: 3500},
	BSC:      {volume: 10e9, speed: 3000, fees: 0.15, etf: 450},
}

const (
	seriesDays  = 30
	seriesHours = 24
	weekDays    = 7
	day         = 24 * time.Hour
)

// Generator produces the mock dashboard data. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewGenerator creates a generator. Equal seeds and clocks yield equal data.
func NewGenerator(seed uint64, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), now: now}
}

// Metrics generates the metrics of one platform.
func (g *Generator) Metrics(p Platform) PlatformMetrics {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.metrics(p, g.now())
}

// AllMetrics generates the metrics of every platform.
func (g *Generator) AllMetrics() []PlatformData {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	out := make([]PlatformData, 0, len(Platforms))
	for _, p := range Platforms {
		out = append(out, PlatformData{Platform: p, Metrics: g.metrics(p, now)})
	}
	return out
}

// Regional returns the per country figures.
func (g *Generator) Regional() []RegionalMetric {
	return []RegionalMetric{
		{CountryCode: "US", CountryName: "United States", PaymentVolume: 1.2e9, TransactionSpeed: 450, GasFee: 0.00026},
		{CountryCode: "GB", CountryName: "United Kingdom", PaymentVolume: 8.5e8, TransactionSpeed: 550, GasFee: 0.00024},
		{CountryCode: "SG", CountryName: "Singapore", PaymentVolume: 9.2e8, TransactionSpeed: 400, GasFee: 0.00022},
		{CountryCode: "DE", CountryName: "Germany", PaymentVolume: 7.1e8, TransactionSpeed: 580, GasFee: 0.00028},
		{CountryCode: "JP", CountryName: "Japan", PaymentVolume: 6.5e8, TransactionSpeed: 420, GasFee: 0.00023},
		{CountryCode: "BR", CountryName: "Brazil", PaymentVolume: 4.3e8, TransactionSpeed: 650, GasFee: 0.00030},
		{CountryCode: "NG", CountryName: "Nigeria", PaymentVolume: 3.1e8, TransactionSpeed: 700, GasFee: 0.00032},
		{CountryCode: "IN", CountryName: "India", PaymentVolume: 5.5e8, TransactionSpeed: 680, GasFee: 0.00031},
	}
}

// Triggered returns the feed of recently fired alerts, newest first.
func (g *Generator) Triggered() []TriggeredAlert {
	now := g.now().UTC()
	stamp := func(daysAgo int) string {
		return now.Add(-time.Duration(daysAgo) * day).Format("2006-01-02T15:04:05.000Z07:00")
	}
	return []TriggeredAlert{
		{ID: "alert-1", Platform: Solana, Metric: MetricGasFees, Message: "Gas fees are unusually high, reaching $0.0005.", Timestamp: stamp(0)},
		{ID: "alert-2", Platform: Ethereum, Metric: MetricTransactionSpeed, Message: "Transaction speed has dropped below 15,000ms.", Timestamp: stamp(1)},
		{ID: "alert-3", Platform: BSC, Metric: MetricETFPrice, Message: "BNB ETF price dropped by 5% in the last hour.", Timestamp: stamp(2)},
	}
}

func (g *Generator) metrics(p Platform, now time.Time) PlatformMetrics {
	base := platformBase[p]

	volume := g.daily(now, base.volume/seriesDays, 0.2)
	speed := g.daily(now, base.speed, 0.1)
	fees := g.daily(now, base.fees, 0.3)
	etf := g.daily(now, base.etf, 0.15)

	return PlatformMetrics{
		PaymentVolume: Metric{
			Label:      "Payment Volume",
			Value:      fmt.Sprintf("$%.2fB", base.volume/1e9),
			Change:     "+2.5%",
			ChangeType: Increase,
			Data:       lastWeek(volume),
		},
		TransactionSpeed: Metric{
			Label:      "Avg. Txn Speed",
			Value:      fmt.Sprintf("%.0f ms", base.speed),
			Change:     "-1.2%",
			ChangeType: Decrease,
			Data:       lastWeek(speed),
		},
		GasFees: Metric{
			Label:      "Avg. Gas Fees",
			Value:      fmt.Sprintf("$%.4f", base.fees),
			Change:     "+5.8%",
			ChangeType: Increase,
			Data:       lastWeek(fees),
		},
		ETFPrice: Metric{
			Label:      etfTicker(p) + " ETF Price",
			Value:      fmt.Sprintf("$%.2f", base.etf),
			Change:     "+0.5%",
			ChangeType: Increase,
			Data:       lastWeek(etf),
		},
		CrossBorderVolume: ChartData{
			Day:   g.hourly(base.volume/seriesDays, 0.1),
			Week:  lastWeek(volume),
			Month: volume,
		},
		GasFeeTrend: ChartData{
			Day:   g.hourly(base.fees, 0.2),
			Week:  lastWeek(fees),
			Month: fees,
		},
	}
}

func etfTicker(p Platform) string {
	if p == BSC {
		return "BNB"
	}
	return string(p)[:3]
}

// daily returns one point per day for the last 30 days, labelled "Jan 02".
func (g *Generator) daily(now time.Time, base, volatility float64) []TimeSeriesDataPoint {
	out := make([]TimeSeriesDataPoint, seriesDays)
	for i := range out {
		date := now.Add(-time.Duration(seriesDays-1-i) * day)
		out[i] = TimeSeriesDataPoint{Time: date.Format("Jan 02"), Value: g.jitter(base, volatility)}
	}
	return out
}

// hourly returns 24 points labelled "0:00" to "23:00".
func (g *Generator) hourly(base, volatility float64) []TimeSeriesDataPoint {
	out := make([]TimeSeriesDataPoint, seriesHours)
	for i := range out {
		out[i] = TimeSeriesDataPoint{Time: fmt.Sprintf("%d:00", i), Value: g.jitter(base, volatility)}
	}
	return out
}

// jitter spreads base by +-volatility/2, rounded to two decimals and never negative.
func (g *Generator) jitter(base, volatility float64) float64 {
	v := base + (g.rng.Float64()-0.5)*volatility*base
	return math.Max(0, math.Round(v*100)/100)
}

func lastWeek(series []TimeSeriesDataPoint) []TimeSeriesDataPoint {
	return series[len(series)-weekDays:]
}
