package query

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Registry hands out cache key namespaces and refuses to hand out the same
// name twice, so two resources can never share a key space.
type Registry struct {
	mu    sync.Mutex
	names map[string]struct{}
}

// NewRegistry creates an empty namespace registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// Register reserves name. It fails if the name is empty or already taken.
func (r *Registry) Register(name string) (Namespace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Namespace{}, fmt.Errorf("namespace name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.names[name]; exists {
		return Namespace{}, fmt.Errorf("namespace %q already registered", name)
	}
	r.names[name] = struct{}{}
	return Namespace{name: name}, nil
}

// MustRegister is Register for package-level declarations.
func (r *Registry) MustRegister(name string) Namespace {
	ns, err := r.Register(name)
	if err != nil {
		panic(err)
	}
	return ns
}

// Names lists the registered namespaces.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.names))
	for name := range r.names {
		out = append(out, name)
	}
	return out
}

var defaultRegistry = NewRegistry()

// MustNamespace registers name in the process-wide registry. Resources declare
// their namespaces as package variables so a duplicate fails at init.
func MustNamespace(name string) Namespace {
	return defaultRegistry.MustRegister(name)
}

// Namespace is the first element of every cache key.
type Namespace struct {
	name string
}

// String returns the namespace name.
func (n Namespace) String() string {
	return n.name
}

// Key builds a key in this namespace from the given parts.
func (n Namespace) Key(parts ...any) Key {
	return newKey(n.name, parts)
}

// Key is the ordered tuple identifying a cached result. Parts are normalized
// to JSON primitives so equal inputs always produce the same hash.
type Key struct {
	namespace string
	parts     []any
	encoded   []string
}

func newKey(namespace string, parts []any) Key {
	k := Key{
		namespace: namespace,
		parts:     make([]any, len(parts)),
		encoded:   make([]string, len(parts)),
	}
	for i, p := range parts {
		norm := normalizePart(p)
		k.parts[i] = norm
		k.encoded[i] = encodePart(norm)
	}
	return k
}

// Namespace returns the namespace name of the key.
func (k Key) Namespace() string {
	return k.namespace
}

// Parts returns a copy of the normalized key parts.
func (k Key) Parts() []any {
	out := make([]any, len(k.parts))
	copy(out, k.parts)
	return out
}

// IsZero reports whether the key was never built.
func (k Key) IsZero() bool {
	return k.namespace == ""
}

// Hash is the deterministic string form used to index the cache.
func (k Key) Hash() string {
	var b strings.Builder
	b.WriteString(`[`)
	b.WriteString(encodePart(k.namespace))
	for _, e := range k.encoded {
		b.WriteByte(',')
		b.WriteString(e)
	}
	b.WriteString(`]`)
	return b.String()
}

// String implements fmt.Stringer.
func (k Key) String() string {
	return k.Hash()
}

// HasPrefix reports whether prefix matches the leading parts of k. A key with
// no parts matches its whole namespace.
func (k Key) HasPrefix(prefix Key) bool {
	if k.namespace != prefix.namespace || len(prefix.encoded) > len(k.encoded) {
		return false
	}
	for i, e := range prefix.encoded {
		if k.encoded[i] != e {
			return false
		}
	}
	return true
}

func normalizePart(p any) any {
	switch v := p.(type) {
	case nil, string, bool, float32, float64:
		return v
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case uint:
		return uint64(v)
	case uint8:
		return uint64(v)
	case uint16:
		return uint64(v)
	case uint32:
		return uint64(v)
	case uint64:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%T:%v", v, v)
	}
}

func encodePart(p any) string {
	b, err := json.Marshal(p)
	if err != nil {
		// NaN and Inf are the only primitives json refuses.
		return fmt.Sprintf("%q", fmt.Sprint(p))
	}
	return string(b)
}
