package domain

import "time"

// Database health status constants.
const (
	DatabaseStatusHealthy  = "healthy"
	DatabaseStatusWarning  = "warning"
	DatabaseStatusCritical = "critical"
	DatabaseStatusDown     = "down"
)

// Usage thresholds as fractions of either quota axis.
const (
	UsageWarningRatio  = 0.70
	UsageCriticalRatio = 0.90
	UsageExcludeRatio  = 0.85
)

// DatabaseUsage tracks storage and monthly write consumption for one
// rotation target.
type DatabaseUsage struct {
	Name              string    `db:"name"                json:"name"`
	URL               string    `db:"url"                 json:"url"`
	BytesUsed         int64     `db:"bytes_used"          json:"bytes_used"`
	StorageQuotaBytes int64     `db:"storage_quota_bytes" json:"storage_quota_bytes"`
	WritesThisMonth   int64     `db:"writes_this_month"   json:"writes_this_month"`
	MonthlyWriteLimit int64     `db:"monthly_write_limit" json:"monthly_write_limit"`
	LastHealthCheck   time.Time `db:"last_health_check"   json:"last_health_check"`
	Status            string    `db:"status"              json:"status"`
}

// WriteRatio returns the fraction of the monthly write quota consumed.
func (u DatabaseUsage) WriteRatio() float64 {
	if u.MonthlyWriteLimit <= 0 {
		return 0
	}

	return float64(u.WritesThisMonth) / float64(u.MonthlyWriteLimit)
}

// StorageRatio returns the fraction of the storage quota consumed.
func (u DatabaseUsage) StorageRatio() float64 {
	if u.StorageQuotaBytes <= 0 {
		return 0
	}

	return float64(u.BytesUsed) / float64(u.StorageQuotaBytes)
}

// LoadRatio returns the dominant usage axis, the value rotation ranks by.
func (u DatabaseUsage) LoadRatio() float64 {
	w := u.WriteRatio()
	if s := u.StorageRatio(); s > w {
		return s
	}

	return w
}
