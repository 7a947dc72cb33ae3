package index

import (
	"strconv"
	"strings"
)

// Keys returns the canonical episode keys for an id, a season and an
// episode list: "tt1", "tt1 1" or one "tt1 1 2" per episode. Zero season
// and zero episodes are omitted.
func Keys(canonicalID string, season int, episodes []int) []string {
	if canonicalID == "" {
		return nil
	}

	prefix := canonicalID
	if season > 0 {
		prefix += " " + strconv.Itoa(season)
	}

	var keys []string
	for _, ep := range episodes {
		if ep <= 0 {
			continue
		}
		key := prefix + " " + strconv.Itoa(ep)
		if !contains(keys, key) {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		keys = []string{prefix}
	}
	return keys
}

// RecordKeys returns the keys a record contributes to.
func RecordKeys(rec *FileRecord) []string {
	if rec == nil || rec.Uninteresting || rec.IMDbID == "" {
		return nil
	}
	if rec.Identity == nil {
		return Keys(rec.IMDbID, 0, nil)
	}
	return Keys(rec.IMDbID, rec.Identity.Season, rec.Identity.Episode)
}

// CanonicalID returns the id portion of a key.
func CanonicalID(key string) string {
	id, _, _ := strings.Cut(key, " ")
	return id
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
