// SPDX-License-Identifier: MIT
//
// Package build exposes the version metadata stamped into the featidx binary
// at link time:
//
//	go build -ldflags "-X featidx/pkg/build.buildName=featidx \
//	    -X featidx/pkg/build.buildVersion=0.3.0 ..."
//
// Development builds carry no stamp; Current then reports "dev" values.
package build

import (
	"errors"
	"fmt"
)

// Info is the build metadata of the running binary.
type Info struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// String formats the info for --version output.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Populated by -ldflags during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string

	current = devInfo
)

var devInfo = Info{
	Name:    "featidx",
	Time:    "unknown",
	Commit:  "unknown",
	Version: "dev",
}

// Initialize validates the linker-provided values and makes them current.
// It reports every missing value and leaves the current info unchanged when
// any is missing.
func Initialize() error {
	var errs []error
	if buildName == "" {
		errs = append(errs, errors.New("BuildName is required"))
	}
	if buildTime == "" {
		errs = append(errs, errors.New("BuildTime is required"))
	}
	if buildCommit == "" {
		errs = append(errs, errors.New("BuildCommit is required"))
	}
	if buildVersion == "" {
		errs = append(errs, errors.New("BuildVersion is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	current = Info{
		Name:    buildName,
		Time:    buildTime,
		Commit:  buildCommit,
		Version: buildVersion,
	}
	return nil
}

// Current returns the build info, or development defaults when Initialize
// has not succeeded.
func Current() Info {
	return current
}
