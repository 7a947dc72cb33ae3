package discovery

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"localfiles/internal/logging"
	"localfiles/internal/metrics"
)

// Query restricts a discovery pass. A zero Since means unrestricted.
type Query struct {
	Since time.Time
}

// Restricted reports whether the pass only wants recent changes.
func (q Query) Restricted() bool {
	return !q.Since.IsZero()
}

// Discoverer produces candidate paths.
type Discoverer interface {
	// Discover calls emit for every path found and returns once the source
	// is exhausted or ctx is done.
	Discover(ctx context.Context, q Query, emit func(path string)) error
	// Available reports whether the source can run on this machine.
	Available() bool
}

// ErrUnavailable is returned by Discover on a source that cannot run.
var ErrUnavailable = errors.New("discovery source unavailable")

// maxLineSize bounds one line of command output.
const maxLineSize = 64 * 1024

// Command runs an external search tool and reads one path per line from its
// standard output.
type Command struct {
	// Name is the executable, resolved on PATH unless absolute.
	Name string
	// Args builds the argument list for a query.
	Args func(q Query) []string
}

// Available implements Discoverer.
func (c *Command) Available() bool {
	if c == nil || c.Name == "" {
		return false
	}
	_, err := exec.LookPath(c.Name)
	return err == nil
}

// Discover implements Discoverer.
func (c *Command) Discover(ctx context.Context, q Query, emit func(string)) error {
	if !c.Available() {
		return ErrUnavailable
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args(q)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open %s output: %w", c.Name, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", c.Name, err)
	}

	count, readErr := readLines(stdout, emit)
	waitErr := cmd.Wait()
	metrics.DiscoveryCandidatesTotal.WithLabelValues("native").Add(float64(count))
	logging.Debug("%s produced %d paths (restricted=%v)", c.Name, count, q.Restricted())

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if readErr != nil {
		return fmt.Errorf("failed to read %s output: %w", c.Name, readErr)
	}
	if waitErr != nil {
		return fmt.Errorf("%s failed: %w", c.Name, waitErr)
	}
	return nil
}

func readLines(r io.Reader, emit func(string)) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	count := 0
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimSuffix(scanner.Text(), "\r"))
		if line == "" {
			continue
		}
		count++
		emit(line)
	}
	if err := scanner.Err(); err != nil {
		// keep draining so the child can exit
		_, _ = io.Copy(io.Discard, r)
		return count, err
	}
	return count, nil
}

// Spotlight returns the darwin discoverer. Restricted passes only ask for
// files changed since yesterday.
func Spotlight() *Command {
	return &Command{Name: "mdfind", Args: spotlightArgs}
}

func spotlightArgs(q Query) []string {
	query := "(kMDItemFSName=*.avi || kMDItemFSName=*.mp4 || kMDItemFSName=*.mkv || kMDItemFSName=*.mov || kMDItemFSName=*.torrent)"
	if q.Restricted() {
		query += " && kMDItemFSContentChangeDate >= $time.today(-1)"
	}
	return []string{query}
}

// WindowsSearch returns the windows discoverer, using DS.exe from binDir.
// Restricted passes only ask for files modified today.
func WindowsSearch(binDir string) *Command {
	return &Command{Name: filepath.Join(binDir, "DS.exe"), Args: windowsSearchArgs}
}

func windowsSearchArgs(q Query) []string {
	args := []string{"/b", "/e", "avi,mp4,mkv,mov,torrent"}
	if q.Restricted() {
		args = append(args, "modified:today")
	}
	return args
}

// Unavailable is the discoverer for platforms without a native index.
type Unavailable struct{}

// Available implements Discoverer.
func (Unavailable) Available() bool { return false }

// Discover implements Discoverer.
func (Unavailable) Discover(context.Context, Query, func(string)) error {
	return ErrUnavailable
}

// Native returns the discoverer for the running platform. binDir locates
// helper executables shipped next to the binary.
func Native(binDir string) Discoverer {
	return nativeFor(runtime.GOOS, binDir)
}

func nativeFor(goos, binDir string) Discoverer {
	switch goos {
	case "darwin":
		return Spotlight()
	case "windows":
		return WindowsSearch(binDir)
	default:
		return Unavailable{}
	}
}
