package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// Sample is one local host reading. CPU and Memory are ratios in [0,1].
type Sample struct {
	CPU       float64   `json:"cpu"`
	Memory    float64   `json:"memory"`
	Timestamp time.Time `json:"timestamp"`
}

// Sampler reads host utilization.
type Sampler interface {
	Sample(ctx context.Context) (Sample, error)
}

// SamplerFunc adapts a function to Sampler.
type SamplerFunc func(ctx context.Context) (Sample, error)

func (f SamplerFunc) Sample(ctx context.Context) (Sample, error) { return f(ctx) }

// HostSampler samples the machine the process runs on: the one minute load
// average divided by the logical core count, and used virtual memory.
type HostSampler struct{}

// Sample implements Sampler.
func (HostSampler) Sample(ctx context.Context) (Sample, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return Sample{}, errors.Join(ErrSampleFailed, err)
	}
	cores, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return Sample{}, errors.Join(ErrSampleFailed, err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Sample{}, errors.Join(ErrSampleFailed, err)
	}

	return Sample{
		CPU:       NormalizeLoad(avg.Load1, cores),
		Memory:    clamp01(vm.UsedPercent / 100),
		Timestamp: time.Now(),
	}, nil
}

// NormalizeLoad converts a load average into a [0,1] utilization ratio.
func NormalizeLoad(load1 float64, cores int) float64 {
	if cores <= 0 {
		cores = 1
	}
	return clamp01(load1 / float64(cores))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
