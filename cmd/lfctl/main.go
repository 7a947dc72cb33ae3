package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"localfiles/internal/database"
	"localfiles/internal/handlers"
	"localfiles/internal/index"
	"localfiles/internal/query"
	"localfiles/internal/startup"
)

const (
	defaultServerURL = "http://localhost:3033"
	// Default timeout for server and database operations
	defaultTimeout = 30 * time.Second
)

var (
	serverURL  string
	dbPath     string
	forceJSON  bool
	httpClient = &http.Client{Timeout: defaultTimeout}
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lfctl",
		Short:         "Operate the local files addon",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", envOr("LOCALFILES_URL", defaultServerURL), "addon server URL")
	root.PersistentFlags().StringVar(&dbPath, "db", startup.DefaultDatabasePath(), "sqlite index path")
	root.PersistentFlags().BoolVar(&forceJSON, "json", false, "always print JSON")

	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect or maintain the sqlite index",
	}
	dbCmd.AddCommand(dbStatusCmd, dbVacuumCmd, dbLookupCmd)
	root.AddCommand(statsCmd, rescanCmd, dbCmd)
	return root
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index, scanner and pipeline counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var stats handlers.StatsResponse
		if err := getJSON(cmd.Context(), serverURL+"/api/stats", &stats); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if wantJSON(out) {
			return printJSON(out, stats)
		}
		printStats(out, stats)
		return nil
	},
}

var rescanCmd = &cobra.Command{
	Use:   "rescan",
	Short: "Start a scan pass on the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		status, err := triggerRescan(cmd.Context(), serverURL)
		if err != nil {
			return err
		}
		switch status {
		case "started":
			fmt.Fprintln(cmd.OutOrStdout(), "Scan pass started.")
		case "already_running":
			fmt.Fprintln(cmd.OutOrStdout(), "A scan pass is already running.")
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "Server answered %q.\n", status)
		}
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show schema version and record counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDatabase(cmd.Context(), func(ctx context.Context, db *database.Database) error {
			current, latest, dirty, err := db.SchemaVersion()
			if err != nil {
				return err
			}
			records, tombstones, err := db.Counts(ctx)
			if err != nil {
				return err
			}
			status := dbStatus{
				Path:          db.Path(),
				SchemaVersion: current,
				LatestVersion: latest,
				Dirty:         dirty,
				Records:       records,
				Tombstones:    tombstones,
			}
			out := cmd.OutOrStdout()
			if wantJSON(out) {
				return printJSON(out, status)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "Database:\t%s\n", status.Path)
			fmt.Fprintf(tw, "Schema:\t%d of %d%s\n", current, latest, dirtySuffix(dirty))
			fmt.Fprintf(tw, "Records:\t%d\n", records)
			fmt.Fprintf(tw, "Tombstones:\t%d\n", tombstones)
			return tw.Flush()
		})
	},
}

var dbVacuumCmd = &cobra.Command{
	Use:   "vacuum",
	Short: "Compact the database file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDatabase(cmd.Context(), func(ctx context.Context, db *database.Database) error {
			before := fileSize(db.Path())
			if err := db.Vacuum(ctx); err != nil {
				return fmt.Errorf("vacuum failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Vacuumed %s (%d -> %d bytes)\n", db.Path(), before, fileSize(db.Path()))
			return nil
		})
	},
}

var dbLookupCmd = &cobra.Command{
	Use:   "lookup <imdb-id> [season episode]",
	Short: "List the streams indexed for an id",
	Args:  cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := parseLookup(args)
		if err != nil {
			return err
		}
		return withDatabase(cmd.Context(), func(ctx context.Context, db *database.Database) error {
			resolver := query.New(index.NewStore(db.Files(), db.Meta()), nil)
			streams, err := resolver.StreamFind(ctx, q)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if wantJSON(out) {
				return printJSON(out, streams)
			}
			if len(streams) == 0 {
				fmt.Fprintln(out, "No streams indexed.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SOURCE\tTITLE\tLOCATION")
			for _, s := range streams {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, s.Title, location(s))
			}
			return tw.Flush()
		})
	},
}

type dbStatus struct {
	Path          string `json:"path"`
	SchemaVersion uint   `json:"schemaVersion"`
	LatestVersion uint   `json:"latestVersion"`
	Dirty         bool   `json:"dirty"`
	Records       int    `json:"records"`
	Tombstones    int    `json:"tombstones"`
}

func withDatabase(ctx context.Context, fn func(context.Context, *database.Database) error) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("no index database at %s (set DATA_DIR or --db): %w", dbPath, err)
	}
	db, err := database.New(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()
	return fn(ctx, db)
}

func getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cannot reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func triggerRescan(ctx context.Context, base string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/rescan", nil)
	if err != nil {
		return "", err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("cannot reach server: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("unexpected response (%s): %w", resp.Status, err)
	}
	if body.Error != "" {
		return "", fmt.Errorf("server error: %s", body.Error)
	}
	return body.Status, nil
}

func parseLookup(args []string) (query.StreamQuery, error) {
	q := query.StreamQuery{IMDbID: args[0]}
	if len(args) == 2 {
		return q, fmt.Errorf("give both season and episode, or neither")
	}
	if len(args) == 3 {
		season, err := strconv.Atoi(args[1])
		if err != nil {
			return q, fmt.Errorf("invalid season %q", args[1])
		}
		episode, err := strconv.Atoi(args[2])
		if err != nil {
			return q, fmt.Errorf("invalid episode %q", args[2])
		}
		q.Season, q.Episodes = season, []int{episode}
	}
	return q, nil
}

func printStats(out io.Writer, s handlers.StatsResponse) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Records:\t%d\n", s.Index.Records)
	fmt.Fprintf(tw, "Tombstones:\t%d\n", s.Index.Tombstones)
	fmt.Fprintf(tw, "Inverted keys:\t%d\n", s.Index.InvertedKeys)
	fmt.Fprintf(tw, "Distinct ids:\t%d\n", s.Index.DistinctIDs)
	fmt.Fprintf(tw, "Scanner:\t%s (%d passes%s)\n", s.Scanner.State, s.Scanner.Passes, runningSuffix(s.Scanner.Running))
	if s.Scanner.LastError != "" {
		fmt.Fprintf(tw, "Last scan error:\t%s\n", s.Scanner.LastError)
	}
	fmt.Fprintf(tw, "Pipeline:\t%d queued, %d in flight, %d processed, %d workers\n",
		s.Pipeline.Queued, s.Pipeline.InFlight, s.Pipeline.Processed, s.Pipeline.Workers)

	outcomes := make([]string, 0, len(s.Pipeline.Outcomes))
	for o, n := range s.Pipeline.Outcomes {
		outcomes = append(outcomes, fmt.Sprintf("%s=%d", o, n))
	}
	sort.Strings(outcomes)
	if len(outcomes) > 0 {
		fmt.Fprintf(tw, "Outcomes:\t%s\n", strings.Join(outcomes, " "))
	}
	if len(s.TopIDs) > 0 {
		fmt.Fprintln(tw, "Top ids:\t")
		for _, id := range s.TopIDs {
			fmt.Fprintf(tw, "  %s\t%d\n", id.ID, id.Count)
		}
	}
	_ = tw.Flush()
}

func location(s query.StreamDescriptor) string {
	if s.URL != "" {
		return s.URL
	}
	if s.MapIdx != nil {
		return fmt.Sprintf("%s#%d", s.InfoHash, *s.MapIdx)
	}
	return s.InfoHash
}

// wantJSON reports whether out should get JSON rather than a table.
func wantJSON(out io.Writer) bool {
	if forceJSON {
		return true
	}
	f, ok := out.(*os.File)
	return !ok || !term.IsTerminal(int(f.Fd()))
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runningSuffix(running bool) string {
	if running {
		return ", running"
	}
	return ""
}

func dirtySuffix(dirty bool) string {
	if dirty {
		return " (dirty)"
	}
	return ""
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func envOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
