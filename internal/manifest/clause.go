package manifest

import (
	"strings"

	"github.com/ein-plus/lain/internal/lainerr"
)

// ClauseKind tells what a top-level lain.yaml key declares.
type ClauseKind int

const (
	// AuxClause is build, release or test; copied verbatim.
	AuxClause ClauseKind = iota + 1
	ProcessClause
	CronClause
)

func (k ClauseKind) String() string {
	switch k {
	case AuxClause:
		return "aux"
	case ProcessClause:
		return "process"
	case CronClause:
		return "cron"
	default:
		return "unknown"
	}
}

// Clause is a classified top-level manifest key.
type Clause struct {
	Kind ClauseKind
	// Key is the key as written in lain.yaml.
	Key string
	// Name is the process or cron name, or the aux section name.
	Name string
}

var auxSections = map[string]bool{
	"build":   true,
	"release": true,
	"test":    true,
}

var processPrefixes = map[string]bool{
	"proc":   true,
	"worker": true,
	"web":    true,
}

// Classify maps a top-level manifest key to its clause. Keys that match no
// known shape fail with ErrUnrecognizedManifestClause.
func Classify(key string) (Clause, error) {
	if auxSections[key] {
		return Clause{Kind: AuxClause, Key: key, Name: key}, nil
	}
	if key == "web" {
		return Clause{Kind: ProcessClause, Key: key, Name: "web"}, nil
	}

	prefix, name, ok := strings.Cut(key, ".")
	if ok && name != "" {
		if processPrefixes[prefix] {
			return Clause{Kind: ProcessClause, Key: key, Name: name}, nil
		}
		if prefix == "cron" {
			return Clause{Kind: CronClause, Key: key, Name: name}, nil
		}
	}

	return Clause{}, lainerr.New(lainerr.UserInput, lainerr.ErrUnrecognizedManifestClause,
		"%q clause not handled when converting lain.yaml", key)
}
