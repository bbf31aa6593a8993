package support

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"gopkg.in/yaml.v3"

	"github.com/campuskit/faceroll/internal/cpuspec"
	"github.com/campuskit/faceroll/internal/errors"
	"github.com/campuskit/faceroll/internal/privacy"
)

// ComponentSupport is the component name used in error reports.
const ComponentSupport = "support"

// Config keys whose values never belong in a dump. Matched as
// substrings of the lowercased key, so "mqtt_password" and
// "basicauth" are caught too.
var sensitiveConfigKeys = []string{
	"password", "secret", "token", "key", "dsn",
	"username", "user", "broker", "topic", "urls",
}

const redactedPlaceholder = "[REDACTED]"

// Collector gathers diagnostics from the config and data directories.
type Collector struct {
	configDir string
	dataDir   string
	systemID  string
	version   string
}

// NewCollector returns a collector rooted at the given directories.
// Empty paths fall back to the working directory.
func NewCollector(configDir, dataDir, systemID, version string) *Collector {
	if configDir == "" {
		configDir = "."
	}
	if dataDir == "" {
		dataDir = "."
	}
	return &Collector{
		configDir: configDir,
		dataDir:   dataDir,
		systemID:  systemID,
		version:   version,
	}
}

// Collect gathers the selected data into a dump.
func (c *Collector) Collect(ctx context.Context, opts CollectorOptions) (*Dump, error) {
	if !opts.IncludeLogs && !opts.IncludeConfig && !opts.IncludeSystemInfo {
		return nil, errors.Newf("at least one data type must be included in a support dump").
			Component(ComponentSupport).
			Category(errors.CategoryValidation).
			Context("operation", "collect").
			Build()
	}

	dump := &Dump{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		SystemID:  c.systemID,
		Version:   c.version,
	}

	if opts.IncludeSystemInfo {
		dump.SystemInfo = c.collectSystemInfo()
	}

	if opts.IncludeConfig {
		cfg, err := c.collectConfig(opts.ScrubSensitive)
		if err != nil {
			return nil, errors.New(err).
				Component(ComponentSupport).
				Category(errors.CategoryConfiguration).
				Context("operation", "collect_config").
				Build()
		}
		dump.Config = cfg
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts.IncludeLogs {
		dump.Logs = c.collectLogs(opts.LogDuration, opts.MaxLogSize, opts.ScrubSensitive)
	}

	return dump, nil
}

// CreateArchive packs a dump into a zip: metadata.json plus one file
// per collected section.
func (c *Collector) CreateArchive(dump *Dump, opts CollectorOptions) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	meta := struct {
		ID        string    `json:"id"`
		Timestamp time.Time `json:"timestamp"`
		SystemID  string    `json:"system_id"`
		Version   string    `json:"version"`
		LogCount  int       `json:"log_count"`
	}{dump.ID, dump.Timestamp, dump.SystemID, dump.Version, len(dump.Logs)}
	if err := addJSON(w, "metadata.json", meta); err != nil {
		return nil, err
	}

	if opts.IncludeSystemInfo {
		if err := addJSON(w, "system_info.json", dump.SystemInfo); err != nil {
			return nil, err
		}
	}
	if opts.IncludeConfig && dump.Config != nil {
		if err := addJSON(w, "config.json", dump.Config); err != nil {
			return nil, err
		}
	}
	if opts.IncludeLogs && len(dump.Logs) > 0 {
		if err := addJSON(w, "logs.json", dump.Logs); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, errors.New(err).
			Component(ComponentSupport).
			Category(errors.CategoryFileIO).
			Context("operation", "close_archive").
			Build()
	}
	return buf.Bytes(), nil
}

func addJSON(w *zip.Writer, name string, v any) error {
	f, err := w.Create(name)
	if err == nil {
		err = json.NewEncoder(f).Encode(v)
	}
	if err != nil {
		return errors.New(err).
			Component(ComponentSupport).
			Category(errors.CategoryFileIO).
			Context("operation", "write_archive_entry").
			Context("entry", name).
			Build()
	}
	return nil
}

func (c *Collector) collectSystemInfo() SystemInfo {
	spec := cpuspec.GetCPUSpec()
	info := SystemInfo{
		OS:                runtime.GOOS,
		Architecture:      runtime.GOARCH,
		GoVersion:         runtime.Version(),
		CPUBrand:          spec.BrandName,
		CPUCount:          runtime.NumCPU(),
		DescriptorThreads: spec.GetOptimalThreadCount(),
		HasAVX:            cpuspec.HasAVX(),
	}
	if hostInfo, err := host.Info(); err == nil {
		info.Platform = hostInfo.Platform
		info.PlatformVersion = hostInfo.PlatformVersion
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemoryMB = vm.Total / 1024 / 1024
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		info.Container = true
	}
	return info
}

func (c *Collector) collectConfig(scrub bool) (map[string]any, error) {
	data, err := os.ReadFile(filepath.Join(c.configDir, "config.yaml"))
	if err != nil {
		return nil, err
	}

	var cfg map[string]any
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if scrub {
		cfg = scrubConfig(cfg)
	}
	return cfg, nil
}

func scrubConfig(cfg map[string]any) map[string]any {
	scrubbed := make(map[string]any, len(cfg))
	for k, v := range cfg {
		scrubbed[k] = scrubValue(k, v)
	}
	return scrubbed
}

func scrubValue(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range sensitiveConfigKeys {
		if strings.Contains(lower, sensitive) {
			return redactedPlaceholder
		}
	}

	switch v := value.(type) {
	case map[string]any:
		scrubbed := make(map[string]any, len(v))
		for k, val := range v {
			scrubbed[k] = scrubValue(k, val)
		}
		return scrubbed
	case []any:
		scrubbed := make([]any, len(v))
		for i, item := range v {
			scrubbed[i] = scrubValue(key, item)
		}
		return scrubbed
	default:
		return value
	}
}

// collectLogs reads recent entries from the known log locations.
// Missing files are skipped; a support dump with partial logs beats
// no dump.
func (c *Collector) collectLogs(duration time.Duration, maxSize int64, scrub bool) []LogEntry {
	logDirs := []string{
		"logs",
		filepath.Join(c.dataDir, "logs"),
		filepath.Join(c.configDir, "logs"),
	}

	cutoff := time.Now().Add(-duration)
	var logs []LogEntry
	var total int64

	for _, dir := range logDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
				continue
			}
			fileLogs, size := parseLogFile(filepath.Join(dir, entry.Name()), cutoff, maxSize-total, scrub)
			logs = append(logs, fileLogs...)
			total += size
			if total >= maxSize {
				break
			}
		}
		if total >= maxSize {
			break
		}
	}

	sort.Slice(logs, func(i, j int) bool { return logs[i].Timestamp.Before(logs[j].Timestamp) })
	return logs
}

func parseLogFile(path string, cutoff time.Time, maxSize int64, scrub bool) ([]LogEntry, int64) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var logs []LogEntry
	var size int64

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		size += int64(len(line))
		if size > maxSize {
			break
		}

		entry := parseLogLine(line)
		if entry == nil || !entry.Timestamp.After(cutoff) {
			continue
		}
		if scrub {
			// Broker and webhook URLs logged on failure can carry
			// embedded credentials.
			entry.Message = privacy.ScrubMessage(entry.Message)
		}
		logs = append(logs, *entry)
	}
	return logs, size
}

// parseLogLine understands the slog JSON format the logging package
// writes, with a plain "2006-01-02 15:04:05 [LEVEL] msg" fallback.
func parseLogLine(line string) *LogEntry {
	var jsonLog map[string]any
	if err := json.Unmarshal([]byte(line), &jsonLog); err == nil {
		entry := &LogEntry{Source: "file"}
		if timeStr, ok := jsonLog["time"].(string); ok {
			if t, err := time.Parse(time.RFC3339, timeStr); err == nil {
				entry.Timestamp = t
			}
		}
		if level, ok := jsonLog["level"].(string); ok {
			entry.Level = strings.ToUpper(level)
		}
		if msg, ok := jsonLog["msg"].(string); ok {
			entry.Message = msg
		}
		if service, ok := jsonLog["service"].(string); ok {
			entry.Source = service
		}
		if entry.Message != "" {
			return entry
		}
	}

	parts := strings.SplitN(line, " ", 4)
	if len(parts) < 4 {
		return nil
	}
	timestamp, err := time.Parse("2006-01-02 15:04:05", parts[0]+" "+parts[1])
	if err != nil {
		return nil
	}
	return &LogEntry{
		Timestamp: timestamp,
		Level:     strings.Trim(parts[2], "[]"),
		Message:   parts[3],
		Source:    "file",
	}
}
