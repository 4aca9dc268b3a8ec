package naming

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/John-Robertt/subforge/internal/doc"
	"gopkg.in/yaml.v3"
)

type Kind int

const (
	KindString Kind = iota
	KindInt
	KindCustom
)

// Value is a template variable. Custom values keep whatever the caller
// supplied and render through fmt.
type Value struct {
	kind Kind
	s    string
	i    int
	v    any
}

func String(s string) Value { return Value{kind: KindString, s: s} }
func Int(i int) Value       { return Value{kind: KindInt, i: i} }
func Custom(v any) Value    { return Value{kind: KindCustom, v: v} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.Itoa(v.i)
	case KindCustom:
		if v.v == nil {
			return ""
		}
		return fmt.Sprint(v.v)
	default:
		return v.s
	}
}

// Vars is a case-insensitive variable bag. Keys are lower-cased on insert.
type Vars struct {
	m map[string]Value
}

func NewVars() Vars {
	return Vars{m: make(map[string]Value, 24)}
}

func (vs Vars) Set(key string, v Value) {
	vs.m[strings.ToLower(strings.TrimSpace(key))] = v
}

// setDefault inserts only when key is not taken yet.
func (vs Vars) setDefault(key string, v Value) {
	k := strings.ToLower(strings.TrimSpace(key))
	if _, ok := vs.m[k]; ok {
		return
	}
	vs.m[k] = v
}

func (vs Vars) Lookup(key string) (Value, bool) {
	v, ok := vs.m[strings.ToLower(strings.TrimSpace(key))]
	return v, ok
}

func (vs Vars) Len() int { return len(vs.m) }

// Keys returns the normalized keys in sorted order.
func (vs Vars) Keys() []string {
	out := make([]string, 0, len(vs.m))
	for k := range vs.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Context is the per-clone naming input. Index is 1-based.
type Context struct {
	OriginalName string
	Index        int
	Server       string
	ServerName   string // server value before substitution
	Port         int
	Network      string
	Type         string
	UUID         string

	CustomProperties map[string]any
}

// Vars expands the context into the full variable set: basic names, the
// proxy.* / node.index mirrors, then custom properties (bare and custom.*).
// A bare custom key never shadows a built-in.
func (c Context) Vars() Vars {
	vs := NewVars()

	vs.Set("name", String(c.OriginalName))
	vs.Set("index", Int(c.Index))
	vs.Set("network", String(c.Network))
	vs.Set("port", Int(c.Port))
	vs.Set("server", String(c.Server))
	vs.Set("servername", String(c.ServerName))
	vs.Set("type", String(c.Type))
	vs.Set("uuid", String(c.UUID))

	vs.Set("proxy.name", String(c.OriginalName))
	vs.Set("proxy.type", String(c.Type))
	vs.Set("proxy.server", String(c.Server))
	vs.Set("proxy.servername", String(c.ServerName))
	vs.Set("proxy.port", Int(c.Port))
	vs.Set("proxy.uuid", String(c.UUID))
	vs.Set("proxy.network", String(c.Network))
	vs.Set("node.index", Int(c.Index))

	keys := make([]string, 0, len(c.CustomProperties))
	for k := range c.CustomProperties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := Custom(c.CustomProperties[k])
		vs.Set("custom."+k, v)
		vs.setDefault(k, v)
	}
	return vs
}

// NewContext builds a context from a proxy mapping. index is the 0-based
// clone position; newServer is the address about to be written.
func NewContext(proxy *yaml.Node, index int, newServer string) Context {
	return Context{
		OriginalName: doc.ScalarString(proxy, "name"),
		Index:        index + 1,
		Server:       newServer,
		ServerName:   doc.ScalarString(proxy, "server"),
		Port:         doc.ScalarInt(proxy, "port"),
		Network:      doc.ScalarString(proxy, "network"),
		Type:         doc.ScalarString(proxy, "type"),
		UUID:         doc.ScalarString(proxy, "uuid"),
	}
}

// ExtractVariables reads the recognized proxy fields into a variable set.
func ExtractVariables(proxy *yaml.Node, index int, newServer string) Vars {
	return NewContext(proxy, index, newServer).Vars()
}
