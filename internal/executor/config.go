package executor

import (
	"time"

	"github.com/yahoon/Copr/internal/command"
	"github.com/yahoon/Copr/internal/config"
	"github.com/yahoon/Copr/internal/job"
)

// ForJob returns an SSH executor for j on the configured builder host.
// The project macros mockchain expects are merged over the configured ones.
func ForJob(b config.BuilderConfig, o config.Options, j job.Job, runner command.Runner) *SSH {
	fallback, err := time.ParseDuration(b.Timeout)
	if err != nil || fallback <= 0 {
		fallback = config.DefaultBuildTimeout
	}

	macros := make(map[string]string, len(b.Macros)+3)
	for k, v := range b.Macros {
		macros[k] = v
	}
	if j.ProjectOwner != "" {
		macros["copr_username"] = j.ProjectOwner
	}
	if j.ProjectName != "" {
		macros["copr_projectname"] = j.ProjectName
	}
	if j.ProjectOwner != "" && j.ProjectName != "" {
		macros["vendor"] = "Fedora Project COPR (" + j.ProjectOwner + "/" + j.ProjectName + ")"
	}

	return NewSSH(SSHConfig{
		Host:          b.Host,
		User:          o.BuildUser,
		SSHOptions:    b.SSHOptions,
		Mockchain:     b.Mockchain,
		Rsync:         b.Rsync,
		Chroot:        j.Chroot,
		Repos:         b.Repos,
		Macros:        macros,
		BuildrootPkgs: j.BuildrootPkgs,
		Timeout:       j.EffectiveTimeout(fallback),
		RemoteBaseDir: o.RemoteBaseDir,
		RemoteTempDir: o.RemoteTempDir,
	}, runner)
}
