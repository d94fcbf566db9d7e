// Package createrepo regenerates repository metadata for a chroot directory.
package createrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yahoon/Copr/internal/command"
	"github.com/yahoon/Copr/internal/foundation/errors"
	"github.com/yahoon/Copr/internal/logfields"
)

// DevelDir receives metadata for projects with automatic createrepo disabled.
const DevelDir = "devel"

// Request describes one metadata regeneration.
type Request struct {
	Path        string
	FrontendURL string
	BaseURL     string
	Owner       string
	Project     string
}

// Result carries the diagnostic output of the regeneration.
type Result struct {
	Stdout string
	Stderr string
}

// Publisher regenerates repository metadata. Callers serialize calls for the
// same directory; implementations do not lock.
type Publisher interface {
	Regenerate(ctx context.Context, req Request) (Result, error)
}

// Command runs createrepo_c.
type Command struct {
	Binary string
	Runner command.Runner
	HTTP   *http.Client
}

// NewCommand returns a Command using os/exec and a default HTTP client.
func NewCommand(binary string) *Command {
	return &Command{
		Binary: binary,
		Runner: command.OSRunner{},
		HTTP:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Regenerate updates the metadata in req.Path. When the frontend reports
// automatic createrepo disabled for the project, metadata goes to
// req.Path/devel with req.BaseURL as the package base URL instead.
func (c *Command) Regenerate(ctx context.Context, req Request) (Result, error) {
	args := []string{"--database", "--ignore-lock"}
	outDir := req.Path

	if !c.autoCreaterepo(ctx, req) {
		outDir = filepath.Join(req.Path, DevelDir)
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return Result{}, errors.WrapError(err, errors.CategoryPublish, "failed to create devel repo directory").
				Warning().
				WithContext("path", outDir).
				Build()
		}
		args = append(args, "--outputdir", outDir, "--baseurl", req.BaseURL)
	}
	if _, err := os.Stat(filepath.Join(outDir, "repodata")); err == nil {
		args = append(args, "--update")
	}
	args = append(args, req.Path)

	slog.Info("Regenerating repository metadata",
		logfields.Path(outDir),
		logfields.Owner(req.Owner),
		logfields.Project(req.Project))

	res, err := command.Capture(ctx, c.Runner, command.Spec{Name: c.Binary, Args: args})
	out := Result{Stdout: res.Stdout, Stderr: res.Stderr}
	if err != nil {
		return out, errors.WrapError(err, errors.CategoryPublish, "createrepo could not run").Warning().Build()
	}
	if !res.OK() {
		return out, errors.PublishWarning(fmt.Sprintf("createrepo exited with code %d", res.ExitCode)).
			WithContext("path", req.Path).
			Build()
	}
	return out, nil
}

type projectDetail struct {
	Output string `json:"output"`
	Detail struct {
		AutoCreaterepo *bool `json:"auto_createrepo"`
	} `json:"detail"`
}

// autoCreaterepo asks the frontend whether the project regenerates metadata
// automatically. Any failure to find out is treated as yes.
func (c *Command) autoCreaterepo(ctx context.Context, req Request) bool {
	if req.FrontendURL == "" || req.Owner == "" || req.Project == "" {
		return true
	}
	endpoint := fmt.Sprintf("%s/api/coprs/%s/%s/detail/",
		strings.TrimSuffix(req.FrontendURL, "/"), url.PathEscape(req.Owner), url.PathEscape(req.Project))

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return true
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		slog.Warn("Failed to query project details", slog.String("url", endpoint), logfields.Error(err))
		return true
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("Unexpected project details response", slog.String("url", endpoint), logfields.Status(resp.Status))
		return true
	}
	var detail projectDetail
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		slog.Warn("Malformed project details", slog.String("url", endpoint), logfields.Error(err))
		return true
	}
	if detail.Detail.AutoCreaterepo == nil {
		return true
	}
	return *detail.Detail.AutoCreaterepo
}
