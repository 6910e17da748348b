package respond

// IngestRespond 导入统计
type IngestRespond struct {
	Articles   int   `json:"articles"`
	Truncated  int   `json:"truncated"`
	Passages   int   `json:"passages"`
	Indexed    int   `json:"indexed"`
	Skipped    int   `json:"skipped"`
	Failed     int   `json:"failed"`
	DurationMs int64 `json:"durationMs"`
}

type IngestResultRespond struct {
	Result IngestRespond `json:"result"`
}

// HealthRespond status 为 ok 或 degraded（索引不可用）
type HealthRespond struct {
	Status    string `json:"status"`
	Documents int64  `json:"documents"`
}
