// Package cpuspec inspects the host CPU so startup can size the
// descriptor computation thread pool and warn when the instruction
// set will make dlib slow.
package cpuspec

import (
	"regexp"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// CPUSpec describes the host CPU as far as thread sizing cares.
type CPUSpec struct {
	BrandName        string
	PerformanceCores int
}

// GetCPUSpec probes the host CPU brand string and maps it to a
// performance core count where the model is known.
func GetCPUSpec() CPUSpec {
	brandName := cpuid.CPU.BrandName

	return CPUSpec{
		BrandName:        brandName,
		PerformanceCores: determinePerformanceCores(brandName),
	}
}

// HasAVX reports whether the CPU supports AVX. Descriptor computation
// runs an order of magnitude slower without it.
func HasAVX() bool {
	return cpuid.CPU.Supports(cpuid.AVX)
}

// GetOptimalThreadCount returns the thread count descriptor
// computation should use. On hybrid parts only the performance cores
// count; efficiency cores stall the embedding math more than they
// help it.
func (c CPUSpec) GetOptimalThreadCount() int {
	// NumCPU reflects cgroup and VM limits, the brand string does not.
	availableCPUs := runtime.NumCPU()

	if c.PerformanceCores > 0 {
		if c.PerformanceCores > availableCPUs {
			return availableCPUs
		}
		return c.PerformanceCores
	}

	// Unknown model: all logical cores.
	if cores := cpuid.CPU.LogicalCores; cores > 0 {
		return min(cores, availableCPUs)
	}
	return availableCPUs
}

// determinePerformanceCores maps known hybrid CPU models to their
// performance core count. Returns 0 when the model is not recognized.
func determinePerformanceCores(brandName string) int {
	brandName = strings.ToLower(brandName)

	// Intel 12th, 13th, 14th gen and Core Ultra
	intelCoreRegex := regexp.MustCompile(`intel.*(?:core.*i[357,9]-(\d{5})|core.*ultra\s+([579])\s+(?:processor\s+)?(\d{3}))`)
	if matches := intelCoreRegex.FindStringSubmatch(brandName); len(matches) > 1 {
		if matches[1] != "" { // Legacy Core i series
			model := matches[1]
			switch {
			case strings.HasPrefix(model, "127"): // 12th gen
				switch model {
				case "12900":
					return 8 // 12900K, 12900KS, 12900KF have 8 P-cores
				case "12700":
					return 8 // 12700K, 12700KF have 8 P-cores
				case "12600":
					return 6 // 12600K, 12600KF have 6 P-cores
				default:
					return 6 // Other 12th gen models typically have 6 P-cores
				}
			case strings.HasPrefix(model, "137"), strings.HasPrefix(model, "139"): // 13th gen
				switch model {
				case "13900":
					return 8 // 13900K, 13900KS, 13900KF have 8 P-cores
				case "13700":
					return 8 // 13700K, 13700KF have 8 P-cores
				case "13600":
					return 6 // 13600K, 13600KF have 6 P-cores
				default:
					return 6 // Other 13th gen models typically have 6 P-cores
				}
			case strings.HasPrefix(model, "147"), strings.HasPrefix(model, "149"): // 14th gen
				switch model {
				case "14900":
					return 8 // 14900K, 14900KS, 14900KF have 8 P-cores
				case "14700":
					return 8 // 14700K, 14700KF have 8 P-cores
				case "14600":
					return 6 // 14600K, 14600KF have 6 P-cores
				default:
					return 6 // Other 14th gen models typically have 6 P-cores
				}
			}
		} else if matches[2] != "" && matches[3] != "" { // Core Ultra series
			series := matches[2]
			model := matches[3]
			switch series {
			case "9":
				return 6 // Core Ultra 9 185H: 6 P-cores
			case "7":
				return 6 // Core Ultra 7 155H/165H: 6 P-cores
			case "5":
				switch model {
				case "135", "125":
					return 4 // Core Ultra 5 135H/125H: 4 P-cores
				default:
					return 4 // Core Ultra 5 225: 4 P-cores
				}
			}
		}
	}

	// Apple Silicon
	appleRegex := regexp.MustCompile(`(?i)apple\s+(m[123,4]\s*(pro|max|ultra)?)\s*`)
	if matches := appleRegex.FindStringSubmatch(brandName); len(matches) > 1 {
		chip := strings.ToLower(strings.TrimSpace(matches[1]))
		switch chip {
		// M1 series
		case "m1":
			return 4 // Base M1: 4 performance cores
		case "m1 pro":
			return 8 // M1 Pro: 8 or 6 performance cores (we'll use higher value)
		case "m1 max":
			return 8 // M1 Max: 8 performance cores
		case "m1 ultra":
			return 16 // M1 Ultra: 16 performance cores (2x Max)
		// M2 series
		case "m2":
			return 4 // Base M2: 4 performance cores
		case "m2 pro":
			return 8 // M2 Pro: 8 or 6 performance cores (we'll use higher value)
		case "m2 max":
			return 12 // M2 Max: 12 performance cores
		case "m2 ultra":
			return 24 // M2 Ultra: 24 performance cores (2x Max)
		// M3 series
		case "m3":
			return 4 // Base M3: 4 performance cores
		case "m3 pro":
			return 8 // M3 Pro: 8 or 6 performance cores (we'll use higher value)
		case "m3 max":
			return 12 // M3 Max: 12 performance cores
		case "m3 ultra":
			return 24 // M3 Ultra: 24 performance cores (2x Max)
		// M4 series
		case "m4":
			return 6 // Base M4: 6 performance cores
		case "m4 pro":
			return 8 // M4 Pro: 8 performance cores
		case "m4 max":
			return 12 // M4 Max: 12 performance cores
		}
	}

	// Unrecognized model, caller falls back to logical cores.
	return 0
}
