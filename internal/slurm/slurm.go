// Package slurm renders sbatch submission suggestions from a byte
// estimate.
//
// The suggested allocation pads the raw estimate with a headroom margin
// and rounds the result up to a whole step of MiB, so nearby estimates
// map to the same request and the scheduler is never asked for less
// than the model predicted.
package slurm

import (
	"fmt"
	"math"
)

// Options controls how an estimate becomes a --mem request.
type Options struct {
	// Headroom is the safety margin added on top of the estimate,
	// e.g. 0.10 for 10%.
	Headroom float64

	// StepMiB rounds the padded figure up to a multiple of this many
	// MiB. Zero means no rounding beyond whole MiB.
	StepMiB uint64
}

// DefaultOptions adds 10% headroom and rounds up to 100 MiB.
func DefaultOptions() Options {
	return Options{Headroom: 0.10, StepMiB: 100}
}

// MemMiB converts an estimate in bytes to the suggested --mem figure
// in MiB. The result is never below one rounding step.
func MemMiB(estimateBytes uint64, opts Options) uint64 {
	headroom := opts.Headroom
	if headroom < 0 {
		headroom = 0
	}
	step := opts.StepMiB
	if step == 0 {
		step = 1
	}

	padded := float64(estimateBytes) * (1 + headroom)
	mib := uint64(math.Ceil(padded / (1 << 20)))
	if rem := mib % step; rem != 0 {
		mib += step - rem
	}
	// Never suggest a zero allocation.
	if mib < step {
		mib = step
	}
	return mib
}

// MemArg renders the value for sbatch --mem, e.g. "9300M".
func MemArg(estimateBytes uint64, opts Options) string {
	return fmt.Sprintf("%dM", MemMiB(estimateBytes, opts))
}

// Command renders the full submission suggestion for scriptPath.
func Command(estimateBytes uint64, scriptPath string, opts Options) string {
	return fmt.Sprintf("sbatch --mem=%s %s", MemArg(estimateBytes, opts), scriptPath)
}
