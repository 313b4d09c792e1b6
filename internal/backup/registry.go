package backup

import (
	"fmt"

	"cmsbackup/internal/model"
)

// DefaultCollections is the built-in kind to collection table.
// Order matters: restore re-inserts in this order, parents before children.
func DefaultCollections() map[model.Kind][]string {
	return map[model.Kind][]string{
		model.KindFull: {
			"user.User",
			"post.Category",
			"post.Tag",
			"post.Post",
			"post.PostTag",
			"post.Comment",
			"media.MediaFile",
			"settings.SiteSetting",
		},
		model.KindDatabase: {
			"user.User",
			"post.Category",
			"post.Tag",
			"post.Post",
			"post.PostTag",
			"post.Comment",
		},
		model.KindFiles: {
			"media.MediaFile",
		},
		model.KindSettings: {
			"settings.SiteSetting",
		},
	}
}

// Registry maps each backup kind to its ordered entity collections.
// It is immutable once built.
type Registry struct {
	kinds map[model.Kind][]string
}

// NewRegistry builds a Registry from table, with overrides replacing the
// entry for their kind. Every kind must end up with at least one collection,
// and known must accept every identifier.
func NewRegistry(table map[model.Kind][]string, overrides map[model.Kind][]string, known func(string) bool) (*Registry, error) {
	kinds := make(map[model.Kind][]string, len(model.Kinds))
	for _, kind := range model.Kinds {
		ids := table[kind]
		if o, ok := overrides[kind]; ok {
			ids = o
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("no collections configured for kind %q", kind)
		}

		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				return nil, fmt.Errorf("collection %q listed twice for kind %q", id, kind)
			}
			seen[id] = true
			if known != nil && !known(id) {
				return nil, fmt.Errorf("unknown collection %q for kind %q", id, kind)
			}
		}
		kinds[kind] = append([]string(nil), ids...)
	}

	for kind := range overrides {
		if _, ok := kinds[kind]; !ok {
			return nil, fmt.Errorf("collections configured for unknown kind %q", kind)
		}
	}

	return &Registry{kinds: kinds}, nil
}

// Resolve returns the ordered collection identifiers for kind.
// An unknown kind is a programming error and panics.
func (r *Registry) Resolve(kind model.Kind) []string {
	ids, ok := r.kinds[kind]
	if !ok {
		panic(fmt.Sprintf("backup: no collections registered for kind %q", kind))
	}
	return append([]string(nil), ids...)
}

// Contains reports whether id is part of kind's collections.
func (r *Registry) Contains(kind model.Kind, id string) bool {
	for _, c := range r.Resolve(kind) {
		if c == id {
			return true
		}
	}
	return false
}
