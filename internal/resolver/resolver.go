package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"localfiles/internal/apperr"
	"localfiles/internal/logging"
	"localfiles/internal/mediatypes"
	"localfiles/internal/metrics"

	"github.com/antzucaro/matchr"
)

// Request is a resolution query.
type Request struct {
	Name   string
	Year   int
	Type   mediatypes.MediaType
	Strict bool
}

// Resolver returns the canonical id for a request. An empty id with a nil
// error means no match.
type Resolver interface {
	Resolve(ctx context.Context, req Request) (string, error)
}

const (
	defaultTimeout = 10 * time.Second

	// MinSimilarity is the Jaro-Winkler score a non-strict match must reach.
	MinSimilarity = 0.92

	maxResponseSize = 4 << 20
)

// HTTPStatusError reports a non-2xx response from the catalog.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// candidate is one entry of a catalog search response.
type candidate struct {
	ID          string `json:"id"`
	IMDbID      string `json:"imdb_id"`
	Name        string `json:"name"`
	ReleaseInfo string `json:"releaseInfo"`
	Year        any    `json:"year"`
}

type searchResponse struct {
	Metas []candidate `json:"metas"`
}

// CatalogResolver resolves against a cinemeta compatible HTTP catalog.
type CatalogResolver struct {
	baseURL string
	client  *http.Client

	mu    sync.RWMutex
	cache map[Request]string
}

// New returns a CatalogResolver for baseURL. A nil client selects a client
// with a 10s timeout.
func New(baseURL string, client *http.Client) *CatalogResolver {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &CatalogResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		cache:   make(map[Request]string),
	}
}

// Resolve implements Resolver.
func (r *CatalogResolver) Resolve(ctx context.Context, req Request) (string, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || !req.Type.Catalogable() {
		return "", nil
	}

	key := cacheKey(req)
	r.mu.RLock()
	id, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		metrics.ResolverRequestsTotal.WithLabelValues("cached").Inc()
		return id, nil
	}

	start := time.Now()
	candidates, err := r.search(ctx, req)
	metrics.ResolverRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ResolverRequestsTotal.WithLabelValues("error").Inc()
		return "", apperr.Transient("resolver.search", err)
	}

	id = pick(req, candidates)
	if id == "" {
		metrics.ResolverRequestsTotal.WithLabelValues("miss").Inc()
		logging.Debug("No catalog match for %q (%d, %s, strict=%v)", req.Name, req.Year, req.Type, req.Strict)
	} else {
		metrics.ResolverRequestsTotal.WithLabelValues("hit").Inc()
		logging.Debug("Resolved %q (%d) to %s", req.Name, req.Year, id)
	}

	r.mu.Lock()
	r.cache[key] = id
	r.mu.Unlock()

	return id, nil
}

func cacheKey(req Request) Request {
	req.Name = normalize(req.Name)
	return req
}

func (r *CatalogResolver) search(ctx context.Context, req Request) ([]candidate, error) {
	u := fmt.Sprintf("%s/catalog/%s/top/search=%s.json",
		r.baseURL, url.PathEscape(string(req.Type)), url.PathEscape(req.Name))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil, &HTTPStatusError{URL: u, StatusCode: resp.StatusCode}
	}

	var body searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode catalog response: %w", err)
	}
	return body.Metas, nil
}

// pick selects the best candidate id for req, or "" when none qualifies.
func pick(req Request, candidates []candidate) string {
	want := normalize(req.Name)
	best, bestScore := "", 0.0

	for _, c := range candidates {
		id := c.canonicalID()
		if id == "" || !c.yearMatches(req.Year, req.Type) {
			continue
		}
		got := normalize(c.Name)
		if req.Strict {
			if got == want {
				return id
			}
			continue
		}
		score := matchr.JaroWinkler(want, got, false)
		if score > bestScore {
			best, bestScore = id, score
		}
	}

	if bestScore < MinSimilarity {
		return ""
	}
	return best
}

func (c candidate) canonicalID() string {
	for _, id := range []string{c.IMDbID, c.ID} {
		if strings.HasPrefix(id, "tt") {
			return id
		}
	}
	return ""
}

// years returns the first and last release year. Series report ranges such
// as "2008-2013" or an open "2019-".
func (c candidate) years() (int, int) {
	info := c.ReleaseInfo
	if info == "" {
		switch v := c.Year.(type) {
		case string:
			info = v
		case float64:
			info = strconv.Itoa(int(v))
		}
	}
	info = strings.ReplaceAll(info, "–", "-")
	first, last, ranged := strings.Cut(info, "-")
	from, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return 0, 0
	}
	if !ranged {
		return from, from
	}
	to, err := strconv.Atoi(strings.TrimSpace(last))
	if err != nil {
		return from, 9999
	}
	return from, to
}

func (c candidate) yearMatches(year int, typ mediatypes.MediaType) bool {
	if year == 0 {
		return true
	}
	from, to := c.years()
	if from == 0 {
		return true
	}
	if typ == mediatypes.MediaTypeSeries {
		return year >= from && year <= to
	}
	// movies match one year either side
	return year >= from-1 && year <= from+1
}

// normalize lowercases s and keeps letters and digits separated by single
// spaces. A leading article is dropped.
func normalize(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteRune(r)
			space = false
		case r == '\'':
		default:
			space = true
		}
	}
	out := b.String()
	for _, article := range []string{"the ", "a ", "an "} {
		if trimmed, ok := strings.CutPrefix(out, article); ok && trimmed != "" {
			return trimmed
		}
	}
	return out
}
