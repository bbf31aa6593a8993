package cpuspec

import (
	"runtime"
	"testing"
)

func TestDeterminePerformanceCores(t *testing.T) {
	t.Parallel()

	tests := []struct {
		brand string
		want  int
	}{
		{"Intel(R) Core(TM) i9-12900K", 8},
		{"Intel(R) Core(TM) i5-13600KF", 6},
		{"Intel(R) Core(TM) i7-14700", 8},
		{"Intel(R) Core(TM) Ultra 9 185H", 6},
		{"Apple M1 Pro", 8},
		{"Apple M2 Max", 12},
		{"Apple M4", 6},
		{"AMD Ryzen 9 5950X 16-Core Processor", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := determinePerformanceCores(tt.brand); got != tt.want {
			t.Errorf("determinePerformanceCores(%q) = %d, want %d", tt.brand, got, tt.want)
		}
	}
}

func TestGetOptimalThreadCountNeverExceedsAvailable(t *testing.T) {
	t.Parallel()

	spec := CPUSpec{BrandName: "test", PerformanceCores: runtime.NumCPU() * 4}
	if got := spec.GetOptimalThreadCount(); got > runtime.NumCPU() {
		t.Errorf("GetOptimalThreadCount() = %d, want at most %d", got, runtime.NumCPU())
	}

	spec = CPUSpec{BrandName: "test", PerformanceCores: 1}
	if got := spec.GetOptimalThreadCount(); got != 1 {
		t.Errorf("GetOptimalThreadCount() with 1 P-core = %d, want 1", got)
	}
}

func TestGetOptimalThreadCountFallback(t *testing.T) {
	t.Parallel()

	spec := CPUSpec{BrandName: "unknown"}
	got := spec.GetOptimalThreadCount()
	if got < 1 || got > runtime.NumCPU() {
		t.Errorf("GetOptimalThreadCount() fallback = %d, want within [1, %d]", got, runtime.NumCPU())
	}
}
