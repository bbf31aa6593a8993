// Package support collects a privacy-scrubbed diagnostics archive for
// troubleshooting: recent logs, the active configuration, and host
// details relevant to capture and descriptor performance.
package support

import (
	"time"
)

// Dump is one collected diagnostics bundle. Config values and log
// messages are scrubbed before they land here.
type Dump struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	SystemID   string         `json:"system_id"`
	Version    string         `json:"version"`
	Logs       []LogEntry     `json:"logs"`
	Config     map[string]any `json:"config"`
	SystemInfo SystemInfo     `json:"system_info"`
}

// LogEntry is a single parsed application log line.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Source    string    `json:"source"`
}

// SystemInfo describes the host as far as recognition performance
// cares: platform, CPU model, AVX support, and memory.
type SystemInfo struct {
	OS                string `json:"os"`
	Platform          string `json:"platform"`
	PlatformVersion   string `json:"platform_version"`
	Architecture      string `json:"architecture"`
	GoVersion         string `json:"go_version"`
	CPUBrand          string `json:"cpu_brand"`
	CPUCount          int    `json:"cpu_count"`
	DescriptorThreads int    `json:"descriptor_threads"`
	HasAVX            bool   `json:"has_avx"`
	MemoryMB          uint64 `json:"memory_mb"`
	Container         bool   `json:"container"`
}

// CollectorOptions selects what goes into a dump.
type CollectorOptions struct {
	IncludeLogs       bool          `json:"include_logs"`
	IncludeConfig     bool          `json:"include_config"`
	IncludeSystemInfo bool          `json:"include_system_info"`
	LogDuration       time.Duration `json:"log_duration"`
	MaxLogSize        int64         `json:"max_log_size"`
	ScrubSensitive    bool          `json:"scrub_sensitive"`
}

// DefaultCollectorOptions collects everything from the past week with
// scrubbing on.
func DefaultCollectorOptions() CollectorOptions {
	return CollectorOptions{
		IncludeLogs:       true,
		IncludeConfig:     true,
		IncludeSystemInfo: true,
		LogDuration:       7 * 24 * time.Hour,
		MaxLogSize:        50 * 1024 * 1024,
		ScrubSensitive:    true,
	}
}
