package snapshots

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

const revisionExt = ".json"

// ScopeDir is the directory holding every archived revision of one season.
func ScopeDir(basePath, sportID, season string) string {
	return filepath.Join(basePath, sportID, season)
}

// RevisionPath builds the path to one archived revision. Names are zero
// padded so lexical and numeric order agree.
func RevisionPath(basePath, sportID, season string, revision uint64) string {
	return filepath.Join(ScopeDir(basePath, sportID, season), fmt.Sprintf("%010d%s", revision, revisionExt))
}

func scopeKey(sportID, season string) string {
	return sportID + "/" + season
}

func parseRevisionName(name string) (uint64, bool) {
	if filepath.Ext(name) != revisionExt {
		return 0, false
	}
	n, err := strconv.ParseUint(strings.TrimSuffix(name, revisionExt), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
