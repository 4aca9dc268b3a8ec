// Package merge folds a remote subscription document into the local
// template document.
//
// Template priority: on a key collision the template value wins, except
// for "proxies" (deduplicated append) and "proxy-groups" (take the remote
// list only when the template has none).
package merge

import (
	"github.com/John-Robertt/subforge/internal/doc"
	"gopkg.in/yaml.v3"
)

const (
	KeyProxies     = "proxies"
	KeyProxyGroups = "proxy-groups"
)

// Merge mutates target in place. Values copied from source are deep clones,
// so later edits to either document never leak into the other.
func Merge(target, source *yaml.Node) {
	if target == nil || target.Kind != yaml.MappingNode {
		return
	}
	if source == nil || source.Kind != yaml.MappingNode {
		return
	}

	for i := 0; i+1 < len(source.Content); i += 2 {
		key := source.Content[i].Value
		value := source.Content[i+1]

		if !doc.Has(target, key) {
			doc.Set(target, key, doc.Clone(value))
			continue
		}

		switch key {
		case KeyProxies:
			mergeProxies(target, value)
		case KeyProxyGroups:
			if doc.IsEmptySequence(doc.Get(target, key)) {
				doc.Set(target, key, doc.Clone(value))
			}
		default:
			// template wins
		}
	}
}

func mergeProxies(target, src *yaml.Node) {
	dst := doc.Get(target, KeyProxies)
	if doc.IsNull(dst) {
		dst = doc.NewSequence()
		doc.Set(target, KeyProxies, dst)
	}
	if dst.Kind != yaml.SequenceNode || src == nil || src.Kind != yaml.SequenceNode {
		return
	}

	seen := make(map[string]struct{}, len(dst.Content)+len(src.Content))
	for _, n := range dst.Content {
		seen[doc.Canonical(n)] = struct{}{}
	}
	for _, n := range src.Content {
		k := doc.Canonical(n)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		dst.Content = append(dst.Content, doc.Clone(n))
	}
}

// CleanupEmptyProxyGroups drops a null or empty "proxy-groups" key instead
// of emitting an empty list. It reports whether the key was removed.
func CleanupEmptyProxyGroups(root *yaml.Node) bool {
	if !doc.Has(root, KeyProxyGroups) {
		return false
	}
	if !doc.IsEmptySequence(doc.Get(root, KeyProxyGroups)) {
		return false
	}
	return doc.Delete(root, KeyProxyGroups)
}
