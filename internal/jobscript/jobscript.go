// Package jobscript collects the metadata an estimation request is
// built from: the job script's size on disk plus basic host
// characteristics.
package jobscript

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// ErrFileAccess reports that the job script path does not exist, is not
// a regular file, or cannot be read.
var ErrFileAccess = errors.New("cannot access job script")

// Descriptor captures one invocation's view of the script and host.
// It is built once per run and never mutated.
type Descriptor struct {
	Path            string
	SizeBytes       uint64
	HostCPUs        int
	HostMemoryBytes uint64 // 0 when the host total is unknown
}

// Collector builds Descriptors. The zero value probes /proc/meminfo
// and runtime.NumCPU; tests inject their own sources.
type Collector struct {
	MeminfoPath string
	NumCPU      func() int
}

// Collect stats path and probes the host. The script must be a
// readable regular file.
func (c Collector) Collect(path string) (Descriptor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: %v", ErrFileAccess, err)
	}
	if !info.Mode().IsRegular() {
		return Descriptor{}, fmt.Errorf("%w: %s is not a regular file", ErrFileAccess, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: %v", ErrFileAccess, err)
	}
	_ = f.Close()

	numCPU := runtime.NumCPU
	if c.NumCPU != nil {
		numCPU = c.NumCPU
	}
	meminfo := c.MeminfoPath
	if meminfo == "" {
		meminfo = "/proc/meminfo"
	}

	return Descriptor{
		Path:            path,
		SizeBytes:       uint64(info.Size()),
		HostCPUs:        numCPU(),
		HostMemoryBytes: ReadMemTotal(meminfo),
	}, nil
}

// ReadMemTotal parses the MemTotal line of /proc/meminfo into bytes.
// Returns 0 when the file is missing or malformed (non-Linux hosts);
// callers treat 0 as "unknown".
func ReadMemTotal(path string) uint64 {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0
		}
		return kb * 1024
	}
	return 0
}
