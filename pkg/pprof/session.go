package pprof

import (
	"os"
	"path/filepath"
	"runtime"
	rpprof "runtime/pprof"
	"sync"
	"time"

	apperrors "github.com/graphpack/pkg/errors"
	"github.com/graphpack/pkg/utils"
)

// Session is an active profiling run. Only one CPU profile can be active per
// process, so at most one session with ProfileCPU may run at a time.
type Session struct {
	cfg    Config
	logger utils.Logger
	stamp  string

	mu      sync.Mutex
	cpuFile *os.File
	stopped bool
}

// Start creates the output directories and begins profiling.
func Start(cfg Config, logger utils.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = utils.GetGlobalLogger()
	}

	s := &Session{cfg: cfg, logger: logger, stamp: time.Now().Format("20060102_150405")}
	for _, pt := range cfg.Profiles {
		if err := os.MkdirAll(filepath.Join(cfg.OutputDir, string(pt)), 0755); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorageError, "failed to create profile directory", err)
		}
	}

	if cfg.HasProfile(ProfileBlock) {
		runtime.SetBlockProfileRate(1)
	}
	if cfg.HasProfile(ProfileMutex) {
		runtime.SetMutexProfileFraction(1)
	}

	if cfg.HasProfile(ProfileCPU) {
		f, err := os.Create(s.path(ProfileCPU))
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorageError, "failed to create cpu profile", err)
		}
		if err := rpprof.StartCPUProfile(f); err != nil {
			f.Close()
			s.resetRates()
			return nil, apperrors.Wrap(apperrors.CodeContractViolation, "failed to start cpu profile", err)
		}
		s.cpuFile = f
	}

	logger.Debug("pprof session started: %v -> %s", cfg.Profiles, cfg.OutputDir)
	return s, nil
}

// Stop ends CPU profiling, writes the snapshot profiles and returns the
// files written. Calling Stop twice is a no-op.
func (s *Session) Stop() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, nil
	}
	s.stopped = true
	defer s.resetRates()

	var files []string
	var firstErr error
	if s.cpuFile != nil {
		rpprof.StopCPUProfile()
		if err := s.cpuFile.Close(); err != nil {
			firstErr = apperrors.Wrap(apperrors.CodeStorageError, "failed to close cpu profile", err)
		} else {
			files = append(files, s.cpuFile.Name())
		}
	}

	if s.cfg.HasProfile(ProfileHeap) || s.cfg.HasProfile(ProfileAllocs) {
		runtime.GC()
	}
	for _, pt := range s.cfg.Profiles {
		if pt == ProfileCPU {
			continue
		}
		path, err := s.snapshot(pt)
		if err != nil {
			s.logger.Warn("Failed to write %s profile: %v", pt, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		files = append(files, path)
	}
	return files, firstErr
}

func (s *Session) snapshot(pt ProfileType) (string, error) {
	p := rpprof.Lookup(string(pt))
	if p == nil {
		return "", apperrors.Newf(apperrors.CodeInvalidInput, "runtime has no %s profile", pt)
	}
	path := s.path(pt)
	f, err := os.Create(path)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeStorageError, "failed to create profile file", err)
	}
	if err := p.WriteTo(f, 0); err != nil {
		f.Close()
		return "", apperrors.Wrap(apperrors.CodeStorageError, "failed to write profile", err)
	}
	if err := f.Close(); err != nil {
		return "", apperrors.Wrap(apperrors.CodeStorageError, "failed to close profile", err)
	}
	return path, nil
}

func (s *Session) path(pt ProfileType) string {
	return filepath.Join(s.cfg.OutputDir, string(pt), pt.fileName(s.stamp))
}

func (s *Session) resetRates() {
	if s.cfg.HasProfile(ProfileBlock) {
		runtime.SetBlockProfileRate(0)
	}
	if s.cfg.HasProfile(ProfileMutex) {
		runtime.SetMutexProfileFraction(0)
	}
}
