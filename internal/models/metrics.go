package models

import "go.uber.org/atomic"

// Metrics 定義指標統計
type Metrics struct {
	Hits        atomic.Int64
	Misses      atomic.Int64
	Expirations atomic.Int64
	Sets        atomic.Int64
	Size        atomic.Int64
}

// NewMetrics 創建新的 Metrics 實例
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Snapshot is a point-in-time copy of Metrics.
type Snapshot struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Expirations int64 `json:"expirations"`
	Sets        int64 `json:"sets"`
	Size        int64 `json:"size"`
}

// Snapshot reads every counter once.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Hits:        m.Hits.Load(),
		Misses:      m.Misses.Load(),
		Expirations: m.Expirations.Load(),
		Sets:        m.Sets.Load(),
		Size:        m.Size.Load(),
	}
}
