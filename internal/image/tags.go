// Package image decides which image tag a deploy targets and verifies that
// the tag exists on the cluster registry.
package image

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ReleasePrefix starts every deployable tag.
const ReleasePrefix = "release-"

var tagPattern = regexp.MustCompile(`^release-(\d+)-[^-]+$`)

// Normalize prefixes tag with "release-" unless it already has it.
func Normalize(tag string) string {
	if strings.HasPrefix(tag, ReleasePrefix) {
		return tag
	}
	return ReleasePrefix + tag
}

// Valid reports whether tag has the release-<timestamp>-<hash> shape.
func Valid(tag string) bool {
	return tagPattern.MatchString(tag)
}

// Recent keeps the valid release tags and sorts them newest first by their
// embedded timestamp. The input is not modified.
func Recent(tags []string) []string {
	type stamped struct {
		tag string
		ts  uint64
	}

	valid := make([]stamped, 0, len(tags))
	for _, t := range tags {
		m := tagPattern.FindStringSubmatch(t)
		if m == nil {
			continue
		}
		ts, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			// out of range; still ordered after every parseable stamp
			ts = 0
		}
		valid = append(valid, stamped{tag: t, ts: ts})
	}

	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].ts != valid[j].ts {
			return valid[i].ts > valid[j].ts
		}
		return valid[i].tag > valid[j].tag
	})

	out := make([]string, len(valid))
	for i, s := range valid {
		out[i] = s.tag
	}
	return out
}

// Reference is the full image name of appname at tag on registry.
func Reference(registry, appname, tag string) string {
	return fmt.Sprintf("%s/%s:%s", registry, appname, tag)
}

// TagsURL is the registry endpoint listing every tag of appname.
func TagsURL(registry, appname string) string {
	return fmt.Sprintf("http://%s/v2/%s/tags/list", registry, appname)
}
