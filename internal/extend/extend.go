// Package extend multiplies IP-literal proxy entries across a pool of
// optimized endpoint addresses.
package extend

import (
	"fmt"
	"strings"

	"github.com/John-Robertt/subforge/internal/doc"
	"github.com/John-Robertt/subforge/internal/merge"
	"github.com/John-Robertt/subforge/internal/model"
	"github.com/John-Robertt/subforge/internal/naming"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const defaultMaxCloneNodes = 10000

type Options struct {
	Logger *zap.Logger

	// RewriteGroupMembers replaces references to a multiplied proxy inside
	// proxy-groups[*].proxies with the names of all of its clones.
	RewriteGroupMembers bool

	// MaxCloneNodes bounds the size of a single cloned entry (default 10000).
	MaxCloneNodes int

	// CustomProperties feeds the {custom.<key>} naming variables.
	CustomProperties map[string]any
}

type Stats struct {
	Candidates  int // IP-literal entries that were multiplied
	Passthrough int // entries kept as-is (domain servers, non-mappings)
	Clones      int
	Skipped     int // candidates dropped because cloning failed
}

type CloneError struct {
	AppError model.AppError
	Cause    error
}

func (e *CloneError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *CloneError) Unwrap() error { return e.Cause }

// SelectPool drops records failing validation from both pools, then returns
// dedicated when it is non-empty, otherwise def. The two pools are never
// combined.
func SelectPool(def, dedicated []model.IPRecord) []model.IPRecord {
	if valid := validRecords(dedicated); len(valid) > 0 {
		return valid
	}
	return validRecords(def)
}

func validRecords(in []model.IPRecord) []model.IPRecord {
	out := make([]model.IPRecord, 0, len(in))
	for _, r := range in {
		if r.Validate() != nil {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Extend rewrites root's "proxies" sequence in place. Every entry whose
// server is an IPv4 literal becomes one clone per pool record (pool order);
// every other entry passes through once, unchanged. With an empty pool the
// document is left alone.
func Extend(root *yaml.Node, defaultIPs, dedicatedIPs []model.IPRecord, namingTemplate string, opt Options) Stats {
	log := opt.Logger
	if log == nil {
		log = zap.NewNop()
	}
	maxNodes := opt.MaxCloneNodes
	if maxNodes <= 0 {
		maxNodes = defaultMaxCloneNodes
	}

	var st Stats
	pool := SelectPool(defaultIPs, dedicatedIPs)
	if len(pool) == 0 {
		return st
	}
	proxies := doc.Get(root, merge.KeyProxies)
	if proxies == nil || proxies.Kind != yaml.SequenceNode {
		return st
	}

	proc := naming.Processor{Logger: log}
	out := make([]*yaml.Node, 0, len(proxies.Content)*len(pool))
	renamed := make(map[string][]string)

	for i, p := range proxies.Content {
		if !isCandidate(p) {
			out = append(out, p)
			st.Passthrough++
			continue
		}
		st.Candidates++

		clones, err := multiply(p, pool, namingTemplate, proc, maxNodes, opt.CustomProperties)
		if err != nil {
			orig := doc.ScalarString(p, "name")
			log.Warn("skip proxy entry: clone failed",
				zap.Int("position", i),
				zap.String("name", orig),
				zap.Error(err))
			st.Skipped++
			if _, seen := renamed[orig]; orig != "" && !seen {
				// An empty replacement list drops the name from groups.
				renamed[orig] = nil
			}
			continue
		}
		out = append(out, clones...)
		st.Clones += len(clones)

		if orig := doc.ScalarString(p, "name"); orig != "" {
			for _, c := range clones {
				renamed[orig] = append(renamed[orig], doc.ScalarString(c, "name"))
			}
		}
	}
	proxies.Content = out

	if len(renamed) == 0 {
		return st
	}
	if opt.RewriteGroupMembers {
		rewriteGroupMembers(root, renamed)
	} else if st.Skipped > 0 {
		log.Warn("proxy groups may reference skipped entries; enable group member rewrite to drop them",
			zap.Int("skipped", st.Skipped))
	}
	return st
}

func isCandidate(p *yaml.Node) bool {
	if p == nil || p.Kind != yaml.MappingNode {
		return false
	}
	return model.IsIPv4Literal(strings.TrimSpace(doc.ScalarString(p, "server")))
}

func multiply(p *yaml.Node, pool []model.IPRecord, tmpl string, proc naming.Processor, maxNodes int, custom map[string]any) ([]*yaml.Node, error) {
	origName := doc.ScalarString(p, "name")
	out := make([]*yaml.Node, 0, len(pool))
	for idx, rec := range pool {
		c, err := doc.CloneBounded(p, maxNodes)
		if err != nil {
			return nil, &CloneError{
				AppError: model.AppError{
					Code:    "CLONE_FAILED",
					Message: "代理节点复制失败",
					Stage:   "extend",
					Snippet: origName,
				},
				Cause: err,
			}
		}
		doc.Set(c, "server", doc.NewString(rec.Address))
		doc.Set(c, "port", doc.NewInt(rec.Port))

		nctx := naming.NewContext(p, idx, rec.Address)
		nctx.CustomProperties = custom
		name := strings.TrimSpace(proc.Process(tmpl, nctx))
		if name == "" {
			name = fmt.Sprintf("%s-Node-%d", origName, idx+1)
		}
		doc.Set(c, "name", doc.NewString(name))
		out = append(out, c)
	}
	return out, nil
}

func rewriteGroupMembers(root *yaml.Node, renamed map[string][]string) {
	groups := doc.Get(root, merge.KeyProxyGroups)
	if groups == nil || groups.Kind != yaml.SequenceNode {
		return
	}
	for _, g := range groups.Content {
		members := doc.Get(g, merge.KeyProxies)
		if members == nil || members.Kind != yaml.SequenceNode {
			continue
		}
		next := make([]*yaml.Node, 0, len(members.Content))
		for _, m := range members.Content {
			if m.Kind == yaml.AliasNode && m.Alias != nil {
				m = doc.Clone(m)
			}
			if m.Kind == yaml.ScalarNode {
				if names, ok := renamed[m.Value]; ok {
					for _, n := range names {
						next = append(next, doc.NewString(n))
					}
					continue
				}
			}
			next = append(next, m)
		}
		members.Content = next
	}
}
