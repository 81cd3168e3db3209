package dash

import "strings"

// --------------------------------------------------------------------------
// Enums
// --------------------------------------------------------------------------

type Platform string

const (
	Solana   Platform = "Solana"
	Ethereum Platform = "Ethereum"
	BSC      Platform = "BSC"
)

// Platforms lists all platforms in display order.
var Platforms = []Platform{Solana, Ethereum, BSC}

// ParsePlatform resolves a platform name case-insensitively.
func ParsePlatform(name string) (Platform, bool) {
	for _, p := range Platforms {
		if strings.EqualFold(name, string(p)) {
			return p, true
		}
	}
	return "", false
}

type AlertMetricType string

const (
	MetricPaymentVolume    AlertMetricType = "paymentVolume"
	MetricTransactionSpeed AlertMetricType = "transactionSpeed"
	MetricGasFees          AlertMetricType = "gasFees"
	MetricETFPrice         AlertMetricType = "etfPrice"
)

type AlertCondition string

const (
	Above AlertCondition = "above"
	Below AlertCondition = "below"
)

type AlertChannel string

const (
	ChannelEmail AlertChannel = "email"
	ChannelPush  AlertChannel = "push"
	ChannelInApp AlertChannel = "in-app"
)

type TimeFrame string

const (
	TimeFrame24H TimeFrame = "24H"
	TimeFrame7D  TimeFrame = "7D"
	TimeFrame30D TimeFrame = "30D"
)

type ChangeType string

const (
	Increase ChangeType = "increase"
	Decrease ChangeType = "decrease"
)

// --------------------------------------------------------------------------
// Stored records
// --------------------------------------------------------------------------

type User struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Chat is a chat board without its messages.
type Chat struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
}

type ChatMessage struct {
	ID     string `json:"id" yaml:"id"`
	ChatID string `json:"chatId" yaml:"chatId"`
	UserID string `json:"userId" yaml:"userId"`
	Text   string `json:"text" yaml:"text"`
	TS     int64  `json:"ts" yaml:"ts"` // epoch millis
}

// ChatBoard is the stored state of a chat: the chat and its messages in insertion order.
type ChatBoard struct {
	ID       string        `json:"id" yaml:"id"`
	Title    string        `json:"title" yaml:"title"`
	Messages []ChatMessage `json:"messages" yaml:"messages"`
}

// Chat returns the board without its messages.
func (b ChatBoard) Chat() Chat {
	return Chat{ID: b.ID, Title: b.Title}
}

type AlertConfiguration struct {
	ID        string          `json:"id"`
	Platform  Platform        `json:"platform"`
	Metric    AlertMetricType `json:"metric"`
	Condition AlertCondition  `json:"condition"`
	Threshold float64         `json:"threshold"`
	Channels  []AlertChannel  `json:"channels"`
	IsEnabled bool            `json:"isEnabled"`
}

// --------------------------------------------------------------------------
// Generated data
// --------------------------------------------------------------------------

type TimeSeriesDataPoint struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

type Metric struct {
	Label      string                `json:"label"`
	Value      string                `json:"value"`
	Change     string                `json:"change"`
	ChangeType ChangeType            `json:"changeType"`
	Data       []TimeSeriesDataPoint `json:"data"`
}

type ChartData struct {
	Day   []TimeSeriesDataPoint `json:"24H"`
	Week  []TimeSeriesDataPoint `json:"7D"`
	Month []TimeSeriesDataPoint `json:"30D"`
}

// Series returns the series of one time frame.
func (c ChartData) Series(tf TimeFrame) []TimeSeriesDataPoint {
	switch tf {
	case TimeFrame24H:
		return c.Day
	case TimeFrame7D:
		return c.Week
	default:
		return c.Month
	}
}

type PlatformMetrics struct {
	PaymentVolume     Metric    `json:"paymentVolume"`
	TransactionSpeed  Metric    `json:"transactionSpeed"`
	GasFees           Metric    `json:"gasFees"`
	ETFPrice          Metric    `json:"etfPrice"`
	CrossBorderVolume ChartData `json:"crossBorderVolume"`
	GasFeeTrend       ChartData `json:"gasFeeTrend"`
}

type PlatformData struct {
	Platform Platform        `json:"platform"`
	Metrics  PlatformMetrics `json:"metrics"`
}

type RegionalMetric struct {
	CountryCode      string  `json:"countryCode"` // ISO 3166-1 alpha-2
	CountryName      string  `json:"countryName"`
	PaymentVolume    float64 `json:"paymentVolume"` // USD
	TransactionSpeed float64 `json:"transactionSpeed"`
	GasFee           float64 `json:"gasFee"` // USD
}

type TriggeredAlert struct {
	ID        string          `json:"id"`
	Platform  Platform        `json:"platform"`
	Metric    AlertMetricType `json:"metric"`
	Message   string          `json:"message"`
	Timestamp string          `json:"timestamp"` // RFC 3339
}
