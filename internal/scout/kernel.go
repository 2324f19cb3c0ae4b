package scout

import (
	"fmt"
	"math"
	"strings"

	"github.com/harshasoftware/halohome-sub007/internal/lines"
)

// Kernel is a distance-decay function.
type Kernel int

const (
	Linear Kernel = iota
	Gaussian
	Exponential
)

var kernelNames = [...]string{"linear", "gaussian", "exponential"}

func (k Kernel) String() string {
	if k < Linear || k > Exponential {
		return fmt.Sprintf("kernel(%d)", int(k))
	}
	return kernelNames[k]
}

// ParseKernel parses a kernel name.
func ParseKernel(s string) (Kernel, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range kernelNames {
		if n == name {
			return Kernel(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKernel, s)
}

func (k Kernel) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kernel) UnmarshalText(text []byte) error {
	v, err := ParseKernel(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Apply returns the weight in [0, 1] at distanceKm for scale parameter p:
// the bandwidth for linear, σ for gaussian and λ for exponential.
func (k Kernel) Apply(distanceKm, p float64) float64 {
	switch k {
	case Linear:
		return math.Max(0, 1-distanceKm/p)
	case Gaussian:
		r := distanceKm / p
		return math.Exp(-0.5 * r * r)
	case Exponential:
		return math.Exp(-distanceKm / p)
	default:
		return 0
	}
}

// Config tunes scoring.
type Config struct {
	Kernel            Kernel  `json:"kernel"`
	KernelParam       float64 `json:"kernel_param"`
	MaxKm             float64 `json:"max_km"`
	VolatilityPenalty float64 `json:"volatility_penalty"`
}

// BalancedConfig is the default preset: gaussian σ = 180 km out to 500 km.
func BalancedConfig() Config {
	return Config{Kernel: Gaussian, KernelParam: 180, MaxKm: 500, VolatilityPenalty: 0.3}
}

// HighPrecisionConfig falls off faster and penalises volatility more.
func HighPrecisionConfig() Config {
	return Config{Kernel: Gaussian, KernelParam: 120, MaxKm: 600, VolatilityPenalty: 0.4}
}

// RelaxedConfig uses a broad linear falloff.
func RelaxedConfig() Config {
	return Config{Kernel: Linear, KernelParam: 500, MaxKm: 500, VolatilityPenalty: 0.2}
}

// Preset returns a named configuration: balanced, high_precision or
// relaxed. The empty name is balanced.
func Preset(name string) (Config, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "balanced":
		return BalancedConfig(), nil
	case "high_precision", "precision":
		return HighPrecisionConfig(), nil
	case "relaxed":
		return RelaxedConfig(), nil
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
}

// Validate checks the kernel and that the scales are positive.
func (c Config) Validate() error {
	if c.Kernel < Linear || c.Kernel > Exponential {
		return fmt.Errorf("%w: %d", ErrUnknownKernel, int(c.Kernel))
	}
	if c.KernelParam <= 0 {
		return fmt.Errorf("%w: kernel parameter must be positive, got %v", ErrInvalidConfig, c.KernelParam)
	}
	if c.MaxKm <= 0 {
		return fmt.Errorf("%w: max distance must be positive, got %v", ErrInvalidConfig, c.MaxKm)
	}
	return nil
}

// InfluenceStrength is the kernel weight of a line at distanceKm.
func InfluenceStrength(distanceKm float64, cfg Config) float64 {
	return cfg.Kernel.Apply(distanceKm, cfg.KernelParam)
}

// AspectBenefit is the benefit multiplier of an aspect line. A negative
// value flips the line's polarity.
func AspectBenefit(k lines.AspectKind) float64 {
	switch k {
	case lines.Conjunction:
		return 1.0
	case lines.Trine, lines.Sextile:
		return 0.7
	case lines.Square:
		return -0.6
	case lines.Quincunx:
		return 0.3
	case lines.Opposition:
		return -0.5
	case lines.Sesquisquare:
		return -0.4
	default:
		return 1.0
	}
}

// AspectIntensity is the intensity multiplier of an aspect line.
func AspectIntensity(k lines.AspectKind) float64 {
	switch k {
	case lines.Conjunction:
		return 1.0
	case lines.Trine, lines.Sextile:
		return 0.6
	case lines.Square:
		return 0.85
	case lines.Quincunx:
		return 0.4
	case lines.Opposition:
		return 0.8
	case lines.Sesquisquare:
		return 0.7
	default:
		return 1.0
	}
}
