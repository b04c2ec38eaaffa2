package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/agentwire/agentwire/internal/errors"
)

const (
	// DefaultBinary is the agent binary name searched on PATH.
	DefaultBinary = "claude"

	// MinimumVersion is the oldest agent binary version known to speak the
	// control protocol this module expects.
	MinimumVersion = "2.0.0"

	// VersionProbeTimeout bounds the `<bin> -v` probe.
	VersionProbeTimeout = 2 * time.Second

	// SkipVersionCheckEnv disables the version probe when set.
	SkipVersionCheckEnv = "AGENTWIRE_SKIP_VERSION_CHECK"
)

// Locator finds and validates the agent binary.
type Locator interface {
	// Locate returns the path to the agent binary, probing its version
	// unless disabled.
	Locate(ctx context.Context) (string, error)
}

type locator struct {
	binPath          string
	skipVersionCheck bool
	log              *slog.Logger
}

var _ Locator = (*locator)(nil)

// NewLocator creates a Locator. binPath, when non-empty, is used verbatim
// and PATH search is skipped.
func NewLocator(binPath string, skipVersionCheck bool, log *slog.Logger) Locator {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &locator{
		binPath:          binPath,
		skipVersionCheck: skipVersionCheck,
		log:              log.With("component", "cli_locator"),
	}
}

// Locate implements Locator.
func (l *locator) Locate(ctx context.Context) (string, error) {
	l.log.Debug("Locating agent binary")

	path, err := l.find()
	if err != nil {
		l.log.Error("Agent binary not found", "error", err)

		return "", err
	}

	l.log.Debug("Found agent binary", "path", path)

	l.probeVersion(ctx, path)

	return path, nil
}

// find resolves the binary path: explicit path, then PATH, then common
// install locations.
func (l *locator) find() (string, error) {
	if l.binPath != "" {
		l.log.Debug("Using explicit binary path", "path", l.binPath)

		if _, err := os.Stat(l.binPath); err == nil {
			return l.binPath, nil
		}

		return "", &errors.SpawnError{
			Path:          l.binPath,
			SearchedPaths: []string{l.binPath},
			Err:           os.ErrNotExist,
		}
	}

	searched := make([]string, 0, 4)

	if path, err := exec.LookPath(DefaultBinary); err == nil {
		l.log.Debug("Found binary on PATH", "path", path)

		return path, nil
	}

	searched = append(searched, "$PATH")

	common := []string{
		"/usr/local/bin/" + DefaultBinary,
		"/usr/bin/" + DefaultBinary,
	}

	if home, err := os.UserHomeDir(); err == nil {
		common = append(common, filepath.Join(home, ".local/bin", DefaultBinary))
	}

	for _, path := range common {
		searched = append(searched, path)

		if _, err := os.Stat(path); err == nil {
			l.log.Debug("Found binary at common location", "path", path)

			return path, nil
		}
	}

	l.log.Warn("Agent binary not found", "searched_paths", searched)

	return "", &errors.SpawnError{
		Path:          DefaultBinary,
		SearchedPaths: searched,
		Err:           exec.ErrNotFound,
	}
}

var versionRe = regexp.MustCompile(`^([0-9]+\.[0-9]+\.[0-9]+)`)

// probeVersion warns when the binary reports a version below the minimum.
// All probe failures are best-effort diagnostics, never errors.
func (l *locator) probeVersion(ctx context.Context, path string) {
	if l.skipVersionCheck {
		l.log.Debug("Skipping version probe (configured)")

		return
	}

	if os.Getenv(SkipVersionCheckEnv) != "" {
		l.log.Debug("Skipping version probe (env)", "env", SkipVersionCheckEnv)

		return
	}

	ctx, cancel := context.WithTimeout(ctx, VersionProbeTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-v").Output()
	if err != nil {
		l.log.Debug("Version probe failed", "error", err)

		return
	}

	match := versionRe.FindStringSubmatch(strings.TrimSpace(string(output)))
	if match == nil {
		l.log.Debug("Could not parse binary version", "output", strings.TrimSpace(string(output)))

		return
	}

	version := match[1]
	if compareVersions(version, MinimumVersion) < 0 {
		l.log.Warn("Agent binary version below supported minimum",
			"version", version,
			"minimum_required", MinimumVersion,
		)

		fmt.Fprintf(os.Stderr,
			"Warning: agent binary version %s is below the supported minimum %s. "+
				"Some features may not work correctly.\n",
			version, MinimumVersion,
		)

		return
	}

	l.log.Debug("Version probe passed", "version", version, "minimum", MinimumVersion)
}

// compareVersions compares semantic versions: -1 if a < b, 0 if equal,
// 1 if a > b.
func compareVersions(a, b string) int {
	aParts := strings.Split(a, ".")
	bParts := strings.Split(b, ".")

	for i := range 3 {
		aNum, bNum := 0, 0

		if i < len(aParts) {
			aNum, _ = strconv.Atoi(aParts[i])
		}

		if i < len(bParts) {
			bNum, _ = strconv.Atoi(bParts[i])
		}

		if aNum != bNum {
			if aNum < bNum {
				return -1
			}

			return 1
		}
	}

	return 0
}
