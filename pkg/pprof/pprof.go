// Package pprof records runtime profiles around one command run. CPU
// profiling spans the whole run; the other profiles are snapshotted when the
// session stops. Files land in <dir>/<type>/<type>_<timestamp>.pprof.
package pprof

import (
	"fmt"
	"strings"

	apperrors "github.com/graphpack/pkg/errors"
)

// ProfileType defines the type of profile to collect.
type ProfileType string

const (
	ProfileCPU       ProfileType = "cpu"
	ProfileHeap      ProfileType = "heap"
	ProfileGoroutine ProfileType = "goroutine"
	ProfileBlock     ProfileType = "block"
	ProfileMutex     ProfileType = "mutex"
	ProfileAllocs    ProfileType = "allocs"
)

// AllProfileTypes returns all supported profile types.
func AllProfileTypes() []ProfileType {
	return []ProfileType{ProfileCPU, ProfileHeap, ProfileGoroutine, ProfileBlock, ProfileMutex, ProfileAllocs}
}

// DefaultProfileTypes returns the profiles collected when none are named.
func DefaultProfileTypes() []ProfileType {
	return []ProfileType{ProfileCPU, ProfileHeap}
}

// ParseProfileTypes parses a comma-separated list such as "cpu,heap".
// Duplicates are dropped.
func ParseProfileTypes(s string) ([]ProfileType, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultProfileTypes(), nil
	}

	valid := make(map[ProfileType]bool)
	for _, pt := range AllProfileTypes() {
		valid[pt] = true
	}

	var types []ProfileType
	seen := make(map[ProfileType]bool)
	for _, p := range strings.Split(s, ",") {
		pt := ProfileType(strings.TrimSpace(strings.ToLower(p)))
		if !valid[pt] {
			return nil, apperrors.Newf(apperrors.CodeInvalidInput, "unknown profile type: %q", p)
		}
		if !seen[pt] {
			seen[pt] = true
			types = append(types, pt)
		}
	}
	return types, nil
}

// Config selects what a Session records.
type Config struct {
	// OutputDir receives one subdirectory per profile type.
	OutputDir string
	Profiles  []ProfileType
}

// HasProfile checks if a profile type is enabled.
func (c *Config) HasProfile(pt ProfileType) bool {
	for _, p := range c.Profiles {
		if p == pt {
			return true
		}
	}
	return false
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return apperrors.New(apperrors.CodeConfigError, "pprof output directory is required")
	}
	if len(c.Profiles) == 0 {
		return apperrors.New(apperrors.CodeConfigError, "at least one profile type must be specified")
	}
	return nil
}

func (pt ProfileType) fileName(stamp string) string {
	return fmt.Sprintf("%s_%s.pprof", pt, stamp)
}
