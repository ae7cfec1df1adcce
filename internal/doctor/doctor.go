// Package doctor provides environment preflight checks for voiceclone.
package doctor

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/example/go-voice-clone/internal/audio"
	"github.com/example/go-voice-clone/internal/device"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// DefaultMinAvailableMemory is the free memory below which the memory check
// fails.
const DefaultMinAvailableMemory = 2 << 30

// Check is a named prerequisite. Run returns a short detail on success.
type Check struct {
	Name string
	Run  func() (string, error)
}

// MemoryFunc reports total and available system memory in bytes.
type MemoryFunc func() (total, available uint64, err error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// Device is the selected compute device.
	Device device.Device
	// Backend names the synthesis backend the checks below belong to.
	Backend string
	// BackendChecks are the prerequisites of the configured backend.
	BackendChecks []Check
	// Memory defaults to SystemMemory.
	Memory             MemoryFunc
	MinAvailableMemory uint64
	// VoiceFiles is the list of reference clips to verify on disk.
	VoiceFiles []string
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// SystemMemory reads memory figures via gopsutil.
func SystemMemory() (uint64, uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, err
	}
	return vm.Total, vm.Available, nil
}

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- compute device ---------------------------------------------------
	dev := cfg.Device
	if dev == "" {
		dev = device.CPU
	}
	fmt.Fprintf(w, "%s device: %s\n", PassMark, dev)

	// ---- backend ----------------------------------------------------------
	for _, c := range cfg.BackendChecks {
		detail, err := c.Run()
		if err != nil {
			res.fail(fmt.Sprintf("%s: %v", c.Name, err))
			fmt.Fprintf(w, "%s %s [%s]: %v\n", FailMark, c.Name, cfg.Backend, err)
			continue
		}
		fmt.Fprintf(w, "%s %s [%s]: %s\n", PassMark, c.Name, cfg.Backend, detail)
	}

	// ---- memory -----------------------------------------------------------
	memFn := cfg.Memory
	if memFn == nil {
		memFn = SystemMemory
	}
	minAvail := cfg.MinAvailableMemory
	if minAvail == 0 {
		minAvail = DefaultMinAvailableMemory
	}
	if total, avail, err := memFn(); err != nil {
		res.fail(fmt.Sprintf("memory: %v", err))
		fmt.Fprintf(w, "%s memory: %v\n", FailMark, err)
	} else if avail < minAvail {
		res.fail(fmt.Sprintf("memory: %s available, want at least %s",
			humanize.IBytes(avail), humanize.IBytes(minAvail)))
		fmt.Fprintf(w, "%s memory: %s available of %s (want %s)\n", FailMark,
			humanize.IBytes(avail), humanize.IBytes(total), humanize.IBytes(minAvail))
	} else {
		fmt.Fprintf(w, "%s memory: %s available of %s\n", PassMark,
			humanize.IBytes(avail), humanize.IBytes(total))
	}

	// ---- voice files ------------------------------------------------------
	for _, path := range cfg.VoiceFiles {
		info, err := os.Stat(path)
		if err != nil {
			res.fail(fmt.Sprintf("voice file %q: %v", path, err))
			fmt.Fprintf(w, "%s voice file %s: not found\n", FailMark, path)
			continue
		}
		pcm, err := audio.DecodeWAVFile(path)
		if err != nil {
			res.fail(fmt.Sprintf("voice file %q: %v", path, err))
			fmt.Fprintf(w, "%s voice file %s: %v\n", FailMark, path, err)
			continue
		}
		fmt.Fprintf(w, "%s voice file: %s (%s, %.1fs @ %d Hz)\n", PassMark, path,
			humanize.Bytes(uint64(info.Size())),
			audio.Duration(pcm.Frames(), pcm.SampleRate), pcm.SampleRate)
	}

	return res
}
