package refresh

import "time"

// Metrics は更新パイプラインが記録するメトリクスのインターフェース。
type Metrics interface {
	RecordRefreshSuccess()
	RecordRefreshFailure()
	RecordParseFailure()
	RecordFetchLatency(duration time.Duration)
	RecordItemsInserted(count int)
	RecordDuplicatesSkipped(count int)
}

// nopMetrics はメトリクス未設定時のno-op実装。
type nopMetrics struct{}

func (nopMetrics) RecordRefreshSuccess()            {}
func (nopMetrics) RecordRefreshFailure()            {}
func (nopMetrics) RecordParseFailure()              {}
func (nopMetrics) RecordFetchLatency(time.Duration) {}
func (nopMetrics) RecordItemsInserted(int)          {}
func (nopMetrics) RecordDuplicatesSkipped(int)      {}
