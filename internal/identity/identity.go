package identity

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"localfiles/internal/mediatypes"
)

// Identity is the parsed form of a media file name.
type Identity struct {
	Type    mediatypes.MediaType `json:"type"`
	Name    string               `json:"name,omitempty"`
	Year    int                  `json:"year,omitempty"`
	Season  int                  `json:"season,omitempty"`
	Episode []int                `json:"episode,omitempty"`
	Tag     []string             `json:"tag,omitempty"`
}

// Catalogable reports whether the identity names a movie or a series episode.
func (i Identity) Catalogable() bool {
	return i.Type.Catalogable() && i.Name != ""
}

// Parser extracts an identity from a path, its display name and its size.
type Parser interface {
	Parse(path, name string, length int64) Identity
}

// SampleSizeThreshold is the size under which a "sample" file is an extra.
const SampleSizeThreshold = 300 * 1024 * 1024

// maxEpisodeSpan bounds multi-episode ranges such as S01E01-E03.
const maxEpisodeSpan = 50

var (
	bracesRx   = regexp.MustCompile(`\{[^}]*\}`)
	bracketsRx = regexp.MustCompile(`\[[^\]]*\]`)
	spacesRx   = regexp.MustCompile(`\s+`)

	yearInParensRx = regexp.MustCompile(`[\(\[]((?:19|20)\d{2})[\)\]]`)
	yearRx         = regexp.MustCompile(`(?:^|[\(\.\-_,\s])((?:19|20)\d{2})(?:[\)\.\-_,+\s]|$)`)

	sxxEyyRx  = regexp.MustCompile(`(?i)(?:^|[/\\._ \-\[])S(\d{1,3})\s*E(\d{1,4})((?:\s*-\s*E?\d{1,4}|E\d{1,4})*)`)
	crossRx   = regexp.MustCompile(`(?i)(?:^|[/\\._ \-])(\d{1,2})x(\d{1,3})(?:\s*-\s*(\d{1,3}))?`)
	verboseRx = regexp.MustCompile(`(?i)(?:^|[\s._-])Season\s*(\d{1,3})\s*Episode\s*(\d{1,4})`)
	episodeRx = regexp.MustCompile(`(?i)(?:^|[\s._-])(?:Episode|Ep)[\s._]*(\d{1,4})(?:$|[\s._-])`)
	extraEpRx = regexp.MustCompile(`\d{1,4}`)

	seasonDirRx = regexp.MustCompile(`(?i)^(?:season|series|s)[\s._-]*\d{1,3}$`)

	sampleRx = regexp.MustCompile(`(?i)(?:^|[\s._-])sample(?:$|[\s._-])`)
	extrasRx = regexp.MustCompile(`(?i)(?:^|[\s._-])(?:trailer|featurette|behindthescenes|deleted(?:scene)?s?|interview)$`)

	extrasDirRx = regexp.MustCompile(`(?i)^(?:trailers?|samples?|extras?|bonus|featurettes?|interviews?|deleted[\s._-]?scenes?|behind[\s._-]?the[\s._-]?scenes?|special[\s._-]?features?)$`)
)

var garbageTokens = buildSet(
	// codecs
	"x264", "x265", "h264", "h265", "h.264", "h.265", "hevc", "avc", "divx", "xvid", "10bit", "8bit", "hi10p",
	// audio
	"aac", "ac3", "dts", "dts-hd", "truehd", "atmos", "flac", "mp3", "eac3", "dd5.1", "5.1", "7.1", "2.0",
	// resolution
	"480p", "576p", "720p", "1080p", "1080i", "2160p", "4k", "uhd", "hd", "sd",
	// source
	"bluray", "blu-ray", "bdrip", "brrip", "hdrip", "dvd", "dvdrip", "dvdscr", "webrip", "web-dl", "webdl", "web",
	"hdtv", "pdtv", "tvrip", "cam", "screener", "ts", "telesync", "tc",
	// release
	"remux", "proper", "repack", "internal", "limited", "extended", "unrated", "remastered", "multi", "subbed", "dubbed",
	"mkv", "mp4", "avi", "mov",
)

var tagTokens = buildSet(
	"480p", "576p", "720p", "1080p", "1080i", "2160p", "4k", "uhd",
	"bluray", "blu-ray", "bdrip", "brrip", "hdrip", "dvdrip", "dvdscr", "webrip", "web-dl", "webdl", "hdtv",
	"cam", "ts", "telesync", "screener", "remux", "extended", "unrated", "remastered", "proper", "repack",
)

func buildSet(tokens ...string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// FilenameParser is the default Parser.
type FilenameParser struct {
	// SampleThreshold is the size under which files named "sample" are extras.
	SampleThreshold int64
}

// NewParser returns a FilenameParser with default thresholds.
func NewParser() *FilenameParser {
	return &FilenameParser{SampleThreshold: SampleSizeThreshold}
}

// Parse implements Parser.
func (p *FilenameParser) Parse(path, name string, length int64) Identity {
	if name == "" {
		name = filepath.Base(path)
	}
	base := strings.TrimSuffix(name, filepath.Ext(name))
	parent := parentDir(path)

	id := Identity{Tag: tags(base)}

	if p.isExtra(path, base, length) {
		id.Type = mediatypes.MediaTypeExtra
		id.Name, id.Year = cleanTitle(base)
		return id
	}

	if season, episodes, pos := episodeInfo(base); len(episodes) > 0 {
		id.Type = mediatypes.MediaTypeSeries
		id.Season = season
		id.Episode = episodes
		id.Name, id.Year = cleanTitle(base[:pos])
		if id.Name == "" {
			id.Name, id.Year = showFromDirs(path)
		}
		if id.Name == "" {
			id.Type = mediatypes.MediaTypeOther
		}
		return id
	}

	id.Type = mediatypes.MediaTypeMovie
	id.Name, id.Year = cleanTitle(base)
	if !usableTitle(id.Name) && parent != "" {
		if n, y := cleanTitle(parent); usableTitle(n) {
			id.Name, id.Year = n, y
			id.Tag = appendUnique(id.Tag, tags(parent)...)
		}
	}
	if !usableTitle(id.Name) {
		id.Type = mediatypes.MediaTypeOther
	}
	return id
}

func (p *FilenameParser) isExtra(path, base string, length int64) bool {
	for _, dir := range strings.FieldsFunc(filepath.ToSlash(filepath.Dir(path)), func(r rune) bool { return r == '/' }) {
		if extrasDirRx.MatchString(dir) {
			return true
		}
	}
	if sampleRx.MatchString(base) && length < p.SampleThreshold {
		return true
	}
	return extrasRx.MatchString(base)
}

// episodeInfo returns the season, the episode list and the byte offset where
// the episode marker starts. No episodes means no marker was found.
func episodeInfo(base string) (int, []int, int) {
	if m := sxxEyyRx.FindStringSubmatchIndex(base); m != nil {
		season := atoi(base[m[2]:m[3]])
		first := atoi(base[m[4]:m[5]])
		episodes := []int{first}
		if m[6] >= 0 && m[7] > m[6] {
			for _, s := range extraEpRx.FindAllString(base[m[6]:m[7]], -1) {
				episodes = appendEpisode(episodes, atoi(s))
			}
		}
		return season, episodes, m[0]
	}
	if m := crossRx.FindStringSubmatchIndex(base); m != nil {
		season := atoi(base[m[2]:m[3]])
		episodes := []int{atoi(base[m[4]:m[5]])}
		if m[6] >= 0 {
			episodes = appendEpisode(episodes, atoi(base[m[6]:m[7]]))
		}
		return season, episodes, m[0]
	}
	if m := verboseRx.FindStringSubmatchIndex(base); m != nil {
		return atoi(base[m[2]:m[3]]), []int{atoi(base[m[4]:m[5]])}, m[0]
	}
	if m := episodeRx.FindStringSubmatchIndex(base); m != nil {
		return 1, []int{atoi(base[m[2]:m[3]])}, m[0]
	}
	return 0, nil, -1
}

// appendEpisode extends a multi-episode list. "E01-E03" expands to 1,2,3
// and "E01E02" to 1,2.
func appendEpisode(episodes []int, next int) []int {
	last := episodes[len(episodes)-1]
	switch {
	case next <= last:
		return episodes
	case next-last > maxEpisodeSpan:
		return episodes
	}
	for e := last + 1; e <= next; e++ {
		episodes = append(episodes, e)
	}
	return episodes
}

// cleanTitle strips noise from a name and returns the title and year.
func cleanTitle(s string) (string, int) {
	name := bracesRx.ReplaceAllString(s, " ")

	year := 0
	if m := yearInParensRx.FindStringSubmatchIndex(name); m != nil {
		year = atoi(name[m[2]:m[3]])
		if m[0] > 0 {
			name = name[:m[0]]
		}
	}
	name = bracketsRx.ReplaceAllString(name, " ")
	name = strings.NewReplacer(".", " ", "_", " ").Replace(name)

	if year == 0 {
		// the last delimited year wins, so "2001 A Space Odyssey 1968" keeps its title
		if all := yearRx.FindAllStringSubmatchIndex(name, -1); len(all) > 0 {
			m := all[len(all)-1]
			if m[2] > 0 {
				year = atoi(name[m[2]:m[3]])
				name = name[:m[2]]
			}
		}
	}

	var kept []string
	bad := 0
	for _, tok := range strings.Fields(name) {
		tok = strings.Trim(tok, "-()[]{}+,;")
		if tok == "" {
			continue
		}
		if garbageTokens[strings.ToLower(tok)] {
			bad++
			if bad >= 2 {
				break
			}
			continue
		}
		bad = 0
		kept = append(kept, tok)
	}

	title := strings.TrimRight(strings.Join(kept, " "), " -")
	return spacesRx.ReplaceAllString(strings.TrimSpace(title), " "), year
}

// showFromDirs walks up from the file looking for a directory that names the
// show, skipping "Season 1" style directories.
func showFromDirs(path string) (string, int) {
	dir := filepath.Dir(path)
	for range 3 {
		base := filepath.Base(dir)
		if base == "." || base == string(filepath.Separator) || base == "" {
			return "", 0
		}
		if !seasonDirRx.MatchString(base) {
			if _, eps, pos := episodeInfo(base); len(eps) > 0 {
				base = base[:pos]
			}
			if n, y := cleanTitle(base); usableTitle(n) {
				return n, y
			}
		}
		dir = filepath.Dir(dir)
	}
	return "", 0
}

func parentDir(path string) string {
	base := filepath.Base(filepath.Dir(path))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return base
}

// usableTitle rejects empty and purely numeric titles.
func usableTitle(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.Atoi(strings.ReplaceAll(s, " ", ""))
	return err != nil
}

func tags(s string) []string {
	var out []string
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == '.' || r == '_' || r == ' ' || r == '[' || r == ']' || r == '(' || r == ')'
	}) {
		if tagTokens[tok] {
			out = appendUnique(out, tok)
		}
	}
	return out
}

func appendUnique(dst []string, items ...string) []string {
	for _, it := range items {
		found := false
		for _, d := range dst {
			if d == it {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, it)
		}
	}
	return dst
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
