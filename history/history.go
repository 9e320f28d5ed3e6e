// Package history persists resume positions of played media.
package history

import (
	"sort"
	"time"

	"github.com/cadence-media/cadence/filesystem"
	"github.com/cadence-media/cadence/where"
	"github.com/metafates/gache"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// Entries closer than this to the end of their media are dropped instead of saved.
const finishedThresholdUs = 2_000_000

var cacher = gache.New[map[string]*Entry](
	&gache.Options{
		Path:       where.History(),
		FileSystem: &filesystem.GacheFs{},
	},
)

func load() (map[string]*Entry, error) {
	cached, expired, err := cacher.Get()
	if err != nil {
		return nil, err
	}
	if expired || cached == nil {
		return make(map[string]*Entry), nil
	}
	return cached, nil
}

// List returns every saved entry, most recently updated first.
func List() ([]*Entry, error) {
	saved, err := load()
	if err != nil {
		return nil, err
	}

	entries := lo.Values(saved)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
	})
	return entries, nil
}

// Get returns the entry of mediaID, if any.
func Get(mediaID string) (mo.Option[*Entry], error) {
	saved, err := load()
	if err != nil {
		return mo.None[*Entry](), err
	}
	if entry, ok := saved[mediaID]; ok {
		return mo.Some(entry), nil
	}
	return mo.None[*Entry](), nil
}

// Save stores entry, replacing any previous entry of the same media. Entries at the very end of
// their media remove the previous entry instead.
func Save(entry Entry) error {
	saved, err := load()
	if err != nil {
		return err
	}

	if entry.finished() {
		delete(saved, entry.MediaID)
		return cacher.Set(saved)
	}

	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now()
	}
	saved[entry.MediaID] = &entry
	return cacher.Set(saved)
}

// Remove deletes the entry of mediaID.
func Remove(mediaID string) error {
	saved, err := load()
	if err != nil {
		return err
	}

	delete(saved, mediaID)
	return cacher.Set(saved)
}

// Clear deletes every entry.
func Clear() error {
	return cacher.Set(make(map[string]*Entry))
}
