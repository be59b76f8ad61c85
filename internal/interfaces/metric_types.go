package interfaces

import "time"

// MetricType is one of the fixed kinds of performance sample
type MetricType string

// Metric types
const (
	MetricResponseTime MetricType = "response_time"
	MetricErrorRate    MetricType = "error_rate"
	MetricRequestCount MetricType = "request_count"
	MetricCPUUsage     MetricType = "cpu_usage"
	MetricMemoryUsage  MetricType = "memory_usage"
	MetricDiskUsage    MetricType = "disk_usage"
	MetricNetworkIO    MetricType = "network_io"
	MetricUptime       MetricType = "uptime"
	MetricThroughput   MetricType = "throughput"
	MetricLatency      MetricType = "latency"
)

// Valid reports whether the type is one of the ten known kinds
func (t MetricType) Valid() bool {
	switch t {
	case MetricResponseTime, MetricErrorRate, MetricRequestCount, MetricCPUUsage,
		MetricMemoryUsage, MetricDiskUsage, MetricNetworkIO, MetricUptime,
		MetricThroughput, MetricLatency:
		return true
	}
	return false
}

// MetricUnit is the unit a sample value is expressed in
type MetricUnit string

// Metric units
const (
	UnitMilliseconds      MetricUnit = "ms"
	UnitPercent           MetricUnit = "percent"
	UnitCount             MetricUnit = "count"
	UnitBytes             MetricUnit = "bytes"
	UnitRequestsPerMinute MetricUnit = "requests/min"
	UnitMegabytes         MetricUnit = "mb"
	UnitGigabytes         MetricUnit = "gb"
)

// Valid reports whether the unit is one of the seven known units
func (u MetricUnit) Valid() bool {
	switch u {
	case UnitMilliseconds, UnitPercent, UnitCount, UnitBytes,
		UnitRequestsPerMinute, UnitMegabytes, UnitGigabytes:
		return true
	}
	return false
}

// MetricService is the tier a sample was taken from, or overall
type MetricService string

// Metric services
const (
	MetricServiceFrontend MetricService = "frontend"
	MetricServiceBackend  MetricService = "backend"
	MetricServiceDatabase MetricService = "database"
	MetricServiceOverall  MetricService = "overall"
)

// Valid reports whether the service is known
func (s MetricService) Valid() bool {
	switch s {
	case MetricServiceFrontend, MetricServiceBackend, MetricServiceDatabase, MetricServiceOverall:
		return true
	}
	return false
}

// TimeRange is a fixed lookback window for queries
type TimeRange string

// Time ranges
const (
	TimeRangeHour  TimeRange = "1h"
	TimeRangeDay   TimeRange = "24h"
	TimeRangeWeek  TimeRange = "7d"
	TimeRangeMonth TimeRange = "30d"
)

// Window returns the lookback duration, or false for an unknown range
func (r TimeRange) Window() (time.Duration, bool) {
	switch r {
	case TimeRangeHour:
		return time.Hour, true
	case TimeRangeDay:
		return 24 * time.Hour, true
	case TimeRangeWeek:
		return 7 * 24 * time.Hour, true
	case TimeRangeMonth:
		return 30 * 24 * time.Hour, true
	}
	return 0, false
}

// GroupBy is the bucket width used by aggregation
type GroupBy string

// Bucket widths
const (
	GroupByHour GroupBy = "hour"
	GroupByDay  GroupBy = "day"
	GroupByWeek GroupBy = "week"
)

// Valid reports whether the bucket width is known
func (g GroupBy) Valid() bool {
	return g == GroupByHour || g == GroupByDay || g == GroupByWeek
}

// MetricSample is one timestamped observation
type MetricSample struct {
	ID           string                 `json:"id"`
	DeploymentID DeploymentID           `json:"deployment_id"`
	Type         MetricType             `json:"type"`
	Value        float64                `json:"value"`
	Unit         MetricUnit             `json:"unit"`
	Timestamp    time.Time              `json:"timestamp"`
	Service      MetricService          `json:"service"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// MetricQuery selects samples of one deployment inside a window
type MetricQuery struct {
	DeploymentID DeploymentID
	Type         MetricType
	Service      MetricService
	TimeRange    TimeRange
}

// MetricAggregate is the summary of one (interval, type, service) bucket
type MetricAggregate struct {
	Interval string        `json:"interval"`
	Type     MetricType    `json:"type"`
	Service  MetricService `json:"service"`
	Avg      float64       `json:"avg"`
	Min      float64       `json:"min"`
	Max      float64       `json:"max"`
	Count    int           `json:"count"`
	Latest   float64       `json:"latest"`
}

// TrendDirection is a coarse classification of change
type TrendDirection string

// Trend directions
const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

// Trend is the result of comparing the newest sample against a reference sample
type Trend struct {
	Type   MetricType     `json:"type"`
	Trend  TrendDirection `json:"trend"`
	Change float64        `json:"change"`
}
