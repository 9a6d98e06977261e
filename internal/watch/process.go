package watch

import (
	"fmt"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcSample is a snapshot of an agent CLI's resource usage.
type ProcSample struct {
	CPUSeconds float64   // Cumulative CPU time (user + system) in seconds
	Wall       time.Time // Wall clock time when the sample was taken
	RSSBytes   int64     // Resident set size in bytes
	VSZBytes   int64     // Virtual memory size in bytes
	State      string    // Process state (R/S/D/Z/T), platform-dependent
}

// ProcessMonitor locates a running agent CLI and samples it. Presence is
// advisory only (check/status commands); it never gates notifications.
type ProcessMonitor struct {
	pid            int
	lastSample     *ProcSample
	lastCPU        float64
	candidates     []string
	cacheValid     bool
	lastDetect     time.Time
	detectCooldown time.Duration
}

// NewProcessMonitor creates a monitor for the given candidate process names.
func NewProcessMonitor(candidates []string) *ProcessMonitor {
	return &ProcessMonitor{
		candidates:     candidates,
		lastCPU:        -1,
		detectCooldown: 10 * time.Second,
	}
}

// GetPID returns the monitored process ID, auto-detecting if needed.
// Caches the PID and respects a cooldown between process-list scans.
func (pm *ProcessMonitor) GetPID() int {
	if pm.pid > 0 && pm.cacheValid {
		if pm.IsAlive() {
			return pm.pid
		}
		pm.cacheValid = false
		pm.pid = 0
	}

	if time.Since(pm.lastDetect) < pm.detectCooldown {
		return pm.pid
	}

	pm.pid = pm.detectPID()
	pm.lastDetect = time.Now()
	pm.cacheValid = pm.pid > 0
	return pm.pid
}

// SetPID manually sets the PID to monitor (overrides auto-detection).
func (pm *ProcessMonitor) SetPID(pid int) {
	pm.pid = pid
	pm.cacheValid = pid > 0
}

// IsAlive checks if the monitored process is still running.
func (pm *ProcessMonitor) IsAlive() bool {
	if pm.pid <= 0 {
		return false
	}

	p, err := process.NewProcess(int32(pm.pid))
	if err == nil {
		running, _ := p.IsRunning()
		if running {
			return true
		}
	}
	return syscall.Kill(pm.pid, 0) == nil
}

// Sample takes a new process sample and returns CPU percentage.
// Returns -1 if sampling fails or no previous sample exists yet.
func (pm *ProcessMonitor) Sample() float64 {
	pid := pm.GetPID()
	if pid <= 0 {
		return -1
	}

	sample, err := ReadProcSample(pid)
	if err != nil {
		pm.cacheValid = false
		return -1
	}

	if pm.lastSample == nil {
		pm.lastSample = &sample
		return -1
	}

	elapsed := sample.Wall.Sub(pm.lastSample.Wall).Seconds()
	if elapsed <= 0 {
		pm.lastSample = &sample
		return -1
	}

	cpuDelta := sample.CPUSeconds - pm.lastSample.CPUSeconds
	pm.lastCPU = (cpuDelta / elapsed) * 100 / float64(runtime.NumCPU())
	pm.lastSample = &sample
	return pm.lastCPU
}

// LastCPU returns the last calculated CPU percentage.
func (pm *ProcessMonitor) LastCPU() float64 {
	return pm.lastCPU
}

// LastSample returns the most recent process sample.
func (pm *ProcessMonitor) LastSample() *ProcSample {
	return pm.lastSample
}

// detectPID scans the process list for candidate names, preferring the most
// recently started match.
func (pm *ProcessMonitor) detectPID() int {
	if len(pm.candidates) == 0 {
		return 0
	}

	procs, err := process.Processes()
	if err != nil {
		return 0
	}

	var latestPID int32
	var latestCreate int64
	for _, p := range procs {
		cmdline, err := p.Cmdline()
		if err != nil || cmdline == "" {
			continue
		}

		matched := false
		for _, name := range pm.candidates {
			if strings.Contains(cmdline, name) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		create, err := p.CreateTime()
		if err != nil {
			continue
		}
		if create > latestCreate {
			latestPID = p.Pid
			latestCreate = create
		}
	}
	return int(latestPID)
}

// ReadProcSample reads process stats via gopsutil.
func ReadProcSample(pid int) (ProcSample, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return ProcSample{}, fmt.Errorf("failed to open process: %w", err)
	}

	sample := ProcSample{Wall: time.Now()}
	if times, err := p.Times(); err == nil {
		sample.CPUSeconds = times.User + times.System
	}
	if mem, err := p.MemoryInfo(); err == nil {
		sample.RSSBytes = int64(mem.RSS)
		sample.VSZBytes = int64(mem.VMS)
	}
	if status, err := p.Status(); err == nil && len(status) > 0 {
		sample.State = status[0]
	}
	return sample, nil
}

// ProcessCandidates collects process names for the given sources.
func ProcessCandidates(sources []Source) []string {
	seen := make(map[string]bool)
	var candidates []string
	for _, src := range sources {
		for _, name := range src.ProcessNames {
			if !seen[name] {
				seen[name] = true
				candidates = append(candidates, name)
			}
		}
	}
	return candidates
}

// HumanBytes formats bytes in human-readable form.
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for n >= unit*div && exp < 5 {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
