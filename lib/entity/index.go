package entity

import (
	"encoding/json"
	"slices"

	"github.com/veridian-dash/veridian/lib/store"
)

// indexRecord is the persisted form of an index: the member ids in insertion order and
// the one-time seed marker of the collection.
type indexRecord struct {
	IDs    []string `json:"ids"`
	Seeded bool     `json:"seeded"`
}

// index keeps the ordered id list of a collection under <kind>:__index__.
// Every update is a load followed by a save; concurrent updates of the same index may
// overwrite each other.
type index struct {
	store store.IStore
	key   string
}

func newIndex(s store.IStore, kind string) *index {
	return &index{store: s, key: kind + keySep + indexSuffix}
}

func (ix *index) load() (indexRecord, error) {
	var rec indexRecord
	data, ok, err := ix.store.Get(ix.key)
	if err != nil {
		return rec, internal("get", ix.key, err)
	}
	if !ok {
		return rec, nil
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, internal("decode", ix.key, err)
	}
	return rec, nil
}

func (ix *index) save(rec indexRecord) error {
	if rec.IDs == nil {
		rec.IDs = []string{}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return internal("encode", ix.key, err)
	}
	if err := ix.store.Set(ix.key, data); err != nil {
		return internal("save", ix.key, err)
	}
	return nil
}

// add appends the ids that are not yet members.
func (ix *index) add(ids ...string) error {
	rec, err := ix.load()
	if err != nil {
		return err
	}
	rec.IDs = appendMissing(rec.IDs, ids...)
	return ix.save(rec)
}

// remove drops the ids and keeps the order of the remaining members. Nothing is written
// if none of the ids is a member.
func (ix *index) remove(ids ...string) error {
	rec, err := ix.load()
	if err != nil {
		return err
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := slices.DeleteFunc(slices.Clone(rec.IDs), func(id string) bool {
		_, ok := drop[id]
		return ok
	})
	if len(kept) == len(rec.IDs) {
		return nil
	}
	rec.IDs = kept
	return ix.save(rec)
}

func appendMissing(members []string, ids ...string) []string {
	seen := make(map[string]struct{}, len(members)+len(ids))
	for _, id := range members {
		seen[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	return members
}
