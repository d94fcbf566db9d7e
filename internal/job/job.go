// Package job describes a single remote build request and the result paths
// derived from it.
package job

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/yahoon/Copr/internal/foundation/errors"
)

// SourcePackageSuffix is stripped from package references to name result directories.
const SourcePackageSuffix = ".src.rpm"

// Job is an immutable description of one build request.
type Job struct {
	BuildID       string   `json:"build_id,omitempty"`
	Chroot        string   `json:"chroot"`
	DestDir       string   `json:"destdir"`
	Pkg           string   `json:"pkg"`
	Timeout       Duration `json:"timeout,omitempty"`
	BuildrootPkgs []string `json:"buildroot_pkgs,omitempty"`
	ProjectOwner  string   `json:"project_owner"`
	ProjectName   string   `json:"project_name"`
}

// Duration is a time.Duration that decodes from either a Go duration string
// ("6h") or a number of seconds.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		*d = Duration(time.Duration(v * float64(time.Second)))
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", v, err)
		}
		*d = Duration(parsed)
	case nil:
		*d = 0
	default:
		return fmt.Errorf("invalid timeout type %T", raw)
	}
	return nil
}

// Validate reports a configuration error when the job cannot be orchestrated.
func (j Job) Validate() error {
	if strings.TrimSpace(j.Chroot) == "" {
		return errors.ConfigError("no chroot specified").
			WithContext("package", j.Pkg).
			Build()
	}
	if strings.TrimSpace(j.Pkg) == "" {
		return errors.ConfigError("no package specified").
			WithContext("chroot", j.Chroot).
			Build()
	}
	return nil
}

// ChrootDir is destdir/chroot: the root for artifacts, logs and repository metadata.
func (j Job) ChrootDir() string {
	return filepath.Clean(filepath.Join(j.DestDir, j.Chroot))
}

// PackageBaseName returns the base name of the package reference without the
// source package suffix. URLs and local paths are both accepted.
func (j Job) PackageBaseName() string {
	return PackageBaseName(j.Pkg)
}

// PackageDestPath is destdir/chroot/<package base name>.
func (j Job) PackageDestPath() string {
	return TargetDir(j.ChrootDir(), j.Pkg)
}

// PackageFile returns the base name of the package reference.
func (j Job) PackageFile() string {
	return path.Base(filepath.ToSlash(j.Pkg))
}

// EffectiveTimeout returns the job timeout, or fallback when none was set.
func (j Job) EffectiveTimeout(fallback time.Duration) time.Duration {
	if j.Timeout > 0 {
		return time.Duration(j.Timeout)
	}
	return fallback
}

// TargetDir returns the per-package result directory under chrootDir.
func TargetDir(chrootDir, pkg string) string {
	return filepath.Clean(filepath.Join(chrootDir, PackageBaseName(pkg)))
}

// PackageBaseName strips directories and the source package suffix from pkg.
func PackageBaseName(pkg string) string {
	base := path.Base(filepath.ToSlash(pkg))
	return strings.Replace(base, SourcePackageSuffix, "", 1)
}

// Load reads a JSON job description from disk.
func Load(p string) (Job, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return Job{}, errors.WrapError(err, errors.CategoryFileSystem, "failed to read job file").
			WithContext("path", p).
			Build()
	}
	return Parse(data)
}

// Parse decodes a JSON job description.
func Parse(data []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return Job{}, errors.WrapError(err, errors.CategoryValidation, "invalid job description").Build()
	}
	return j, nil
}
