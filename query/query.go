// Package query remembers what was played so the play command can suggest it again.
package query

import (
	"strings"
	"sync"

	"github.com/cadence-media/cadence/filesystem"
	"github.com/cadence-media/cadence/where"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/metafates/gache"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"golang.org/x/exp/slices"
)

type record struct {
	Rank  int    `json:"rank"`
	Query string `json:"query"`
}

var cacher = gache.New[map[string]*record](
	&gache.Options{
		Path:       where.Queries(),
		FileSystem: &filesystem.GacheFs{},
	},
)

var (
	suggestionsMu sync.Mutex
	suggestions   = make(map[string][]*record)
)

// Remember records a played preset or script, or raises its rank by weight.
func Remember(q string, weight int) error {
	q = sanitize(q)
	if q == "" {
		return nil
	}

	cached, expired, err := cacher.Get()
	if expired || err != nil || cached == nil {
		cached = make(map[string]*record)
	}

	if r, ok := cached[q]; ok {
		r.Rank += weight
	} else {
		cached[q] = &record{Rank: weight, Query: q}
	}

	suggestionsMu.Lock()
	clear(suggestions)
	suggestionsMu.Unlock()

	return cacher.Set(cached)
}

// Suggest returns the highest ranked remembered query matching q.
func Suggest(q string) mo.Option[string] {
	matches := SuggestMany(q)
	if len(matches) == 0 {
		return mo.None[string]()
	}
	return mo.Some(matches[0])
}

// SuggestMany returns the remembered queries fuzzily matching q, highest rank first.
func SuggestMany(q string) []string {
	q = sanitize(q)

	suggestionsMu.Lock()
	defer suggestionsMu.Unlock()

	records, ok := suggestions[q]
	if !ok {
		cached, expired, err := cacher.Get()
		if err != nil || expired || cached == nil {
			return []string{}
		}

		for _, r := range cached {
			if fuzzy.Match(q, r.Query) {
				records = append(records, r)
			}
		}

		slices.SortFunc(records, func(a, b *record) int {
			if a.Rank != b.Rank {
				return b.Rank - a.Rank
			}
			return strings.Compare(a.Query, b.Query)
		})

		suggestions[q] = records
	}

	return lo.Map(records, func(r *record, _ int) string {
		return r.Query
	})
}

func sanitize(q string) string {
	return strings.TrimSpace(strings.ToLower(q))
}
