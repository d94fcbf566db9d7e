// Package signer signs built packages and exports project public keys through
// the obs-sign client.
package signer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yahoon/Copr/internal/command"
	"github.com/yahoon/Copr/internal/foundation/errors"
	"github.com/yahoon/Copr/internal/logfields"
)

// Signer signs every package in a directory with the project's key.
type Signer interface {
	SignPackagesInDirectory(ctx context.Context, owner, project, dir string) error
}

// PubkeyFetcher writes a project's public key to destPath.
type PubkeyFetcher interface {
	FetchPubkey(ctx context.Context, owner, project, destPath string) error
}

// Command drives the sign binary.
type Command struct {
	Binary    string
	KeyDomain string
	Runner    command.Runner
}

// NewCommand returns a Command using os/exec.
func NewCommand(binary, keyDomain string) *Command {
	return &Command{Binary: binary, KeyDomain: keyDomain, Runner: command.OSRunner{}}
}

// UserEmail is the key identity of an owner's project.
func (c *Command) UserEmail(owner, project string) string {
	return fmt.Sprintf("%s#%s@%s", owner, project, c.KeyDomain)
}

// SignPackagesInDirectory signs each *.rpm directly inside dir.
func (c *Command) SignPackagesInDirectory(ctx context.Context, owner, project, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.WrapError(err, errors.CategorySigning, "cannot list packages to sign").
			WithContext("path", dir).
			Build()
	}

	var rpms []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".rpm") {
			rpms = append(rpms, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(rpms)
	if len(rpms) == 0 {
		slog.Debug("No packages to sign", logfields.Path(dir))
		return nil
	}

	email := c.UserEmail(owner, project)
	var failed []string
	for _, rpm := range rpms {
		res, err := command.Capture(ctx, c.Runner, command.Spec{Name: c.Binary, Args: []string{"-u", email, "-r", rpm}})
		if err != nil {
			return errors.WrapError(err, errors.CategorySigning, "sign client could not run").
				WithContext("path", rpm).
				Build()
		}
		if !res.OK() {
			slog.Warn("Failed to sign package",
				logfields.Path(rpm),
				logfields.Owner(owner),
				logfields.Project(project),
				slog.String("stderr", strings.TrimSpace(res.Stderr)))
			failed = append(failed, filepath.Base(rpm))
			continue
		}
		slog.Info("Signed package", logfields.Path(rpm))
	}

	if len(failed) > 0 {
		return errors.SigningError(fmt.Sprintf("failed to sign %d of %d packages", len(failed), len(rpms))).
			WithContext("packages", strings.Join(failed, ",")).
			WithContext("owner", owner).
			WithContext("project", project).
			Build()
	}
	return nil
}

// FetchPubkey exports the project's public key into destPath.
func (c *Command) FetchPubkey(ctx context.Context, owner, project, destPath string) error {
	res, err := command.Capture(ctx, c.Runner, command.Spec{Name: c.Binary, Args: []string{"-u", c.UserEmail(owner, project), "-p"}})
	if err != nil {
		return errors.WrapError(err, errors.CategorySigning, "sign client could not run").Build()
	}
	if !res.OK() || strings.TrimSpace(res.Stdout) == "" {
		return errors.SigningError("failed to get user pubkey").
			WithContext("owner", owner).
			WithContext("project", project).
			WithContext("stderr", strings.TrimSpace(res.Stderr)).
			Build()
	}
	if err := os.WriteFile(destPath, []byte(res.Stdout), 0o644); err != nil {
		return errors.WrapError(err, errors.CategorySigning, "failed to write pubkey").
			WithContext("path", destPath).
			Build()
	}
	return nil
}
