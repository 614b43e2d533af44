// Package followup decides which extracted links deserve their own
// ingestion jobs. Only platforms with a dedicated extraction strategy are
// worth a hop; the catch-all website strategy would chase the whole web.
package followup

import (
	"github.com/codeGROOVE-dev/magpie/pkg/extract"
)

// MaxDepth caps the follow-up chain length from the root job.
const MaxDepth = 3

// MaxChildren caps how many follow-up jobs one page may spawn.
const MaxChildren = 8

// Candidates filters links down to the ones worth enqueuing as follow-up
// jobs at depth+1. Depth at or past the cap yields nothing; the idempotent
// enqueue downstream is the cycle guard.
func Candidates(links []extract.Link, depth int) []extract.Link {
	if depth >= MaxDepth {
		return nil
	}

	var out []extract.Link
	for _, link := range links {
		if link.Platform == "website" {
			continue
		}
		if extract.Lookup(link.Platform) == nil {
			continue
		}
		out = append(out, link)
		if len(out) == MaxChildren {
			break
		}
	}
	return out
}
