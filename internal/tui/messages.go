package tui

import (
	"time"

	"github.com/JianYang-Lab/SlurmSlim/internal/estimate"
)

// estimateResultMsg carries the outcome of one estimation round.
type estimateResultMsg struct {
	script  string
	result  estimate.Result
	err     error
	elapsed time.Duration
}
