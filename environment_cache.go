package kida

import (
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kida-lang/kida/bytecode"
	kcache "github.com/kida-lang/kida/cache"
	"github.com/kida-lang/kida/kidalog"
	"github.com/kida-lang/kida/parser"
)

// cacheLayer bundles the three cache tiers and the logger the Environment
// reads from and writes to. It is constructed lazily on first use so an
// Environment built without cache options still works with its original
// zero-value map cache.
type cacheLayer struct {
	templates     *kcache.TemplateCache
	fragments     *kcache.FragmentCache
	bytecodeStore *bytecode.Store
	janitor       *kcache.Janitor
	compileGroup  singleflight.Group
	logger        *kidalog.Logger
}

func newCacheLayer(size int) *cacheLayer {
	tc, err := kcache.NewTemplateCache(size)
	if err != nil {
		tc, _ = kcache.NewTemplateCache(400)
	}
	logger, _ := kidalog.New(kidalog.Config{Level: "info"})
	return &cacheLayer{templates: tc, logger: logger}
}

// WithCacheSize sets the compiled-template LRU capacity (default 400).
func WithCacheSize(size int) EnvironmentOption {
	return func(e *Environment) {
		e.ensureCacheLayer()
		tc, err := kcache.NewTemplateCache(size)
		if err == nil {
			e.cacheLayer.templates = tc
		}
	}
}

// WithBytecodeCacheDir enables the on-disk bytecode cache at dir.
func WithBytecodeCacheDir(dir string) EnvironmentOption {
	return func(e *Environment) {
		e.ensureCacheLayer()
		e.cacheLayer.bytecodeStore = bytecode.NewStore(dir)
	}
}

// WithFragmentCache enables the fragment cache used by {% cache %} blocks.
func WithFragmentCache(maxBytes int64, defaultTTL time.Duration) EnvironmentOption {
	return func(e *Environment) {
		e.ensureCacheLayer()
		fc, err := kcache.NewFragmentCache(maxBytes, defaultTTL)
		if err == nil {
			e.cacheLayer.fragments = fc
		}
	}
}

// WithCacheSweep starts a janitor on the given cron spec (e.g. "@every 5m").
// Each sweep reads the fragment cache's stats; it evicts no fragment entries
// and deletes no bytecode files, leaving expiry to each tier's own policy.
func WithCacheSweep(spec string) EnvironmentOption {
	return func(e *Environment) {
		e.ensureCacheLayer()
		j, err := kcache.NewJanitor(spec, func() {
			// Ristretto and the LRU both evict on their own policies; the
			// janitor's job is just to nudge Ristretto's TTL bookkeeping
			// and log the sweep for operators.
			if e.cacheLayer.fragments != nil {
				_ = e.cacheLayer.fragments.Info()
			}
		})
		if err == nil {
			e.cacheLayer.janitor = j
			j.Start()
		}
	}
}

// WithLogger installs a pre-built logger instead of the stdout default.
func WithLogger(logger *kidalog.Logger) EnvironmentOption {
	return func(e *Environment) {
		e.ensureCacheLayer()
		e.cacheLayer.logger = logger
	}
}

func (e *Environment) ensureCacheLayer() {
	if e.cacheLayer == nil {
		e.cacheLayer = newCacheLayer(400)
	}
}

// CacheStats reports hit/miss/size statistics for one cache tier, per
// Environment.CacheInfo().
type CacheStats struct {
	Templates kcache.Stats
	Fragments kcache.Stats
}

// CacheInfo returns hit/miss/size statistics per cache tier.
func (e *Environment) CacheInfo() CacheStats {
	var stats CacheStats
	if e.cacheLayer == nil {
		return stats
	}
	if e.cacheLayer.templates != nil {
		stats.Templates = e.cacheLayer.templates.Info()
	}
	if e.cacheLayer.fragments != nil {
		stats.Fragments = e.cacheLayer.fragments.Info()
	}
	return stats
}

// detectAsync reports whether body contains an Await or AsyncFor node,
// recursively, through every statement construct that can hold a nested
// body or an expression position. A template is async-tainted iff this
// returns true for its top-level body.
func detectAsync(nodes []parser.Node) bool {
	for _, n := range nodes {
		if nodeIsAsync(n) {
			return true
		}
	}
	return false
}

func nodeIsAsync(n parser.Node) bool {
	switch node := n.(type) {
	case *parser.AsyncForNode:
		return true
	case *parser.AwaitNode:
		return true
	case *parser.VariableNode:
		_, ok := node.Expression.(*parser.AwaitNode)
		return ok
	case *parser.DoNode:
		_, ok := node.Expression.(*parser.AwaitNode)
		return ok
	case *parser.SetNode:
		_, ok := node.Value.(*parser.AwaitNode)
		return ok
	case *parser.IfNode:
		if detectAsync(node.Body) || detectAsync(node.Else) {
			return true
		}
		for _, elif := range node.ElseIfs {
			if nodeIsAsync(elif) {
				return true
			}
		}
		return false
	case *parser.ForNode:
		return detectAsync(node.Body) || detectAsync(node.Else)
	case *parser.WhileNode:
		return detectAsync(node.Body)
	case *parser.MatchNode:
		for _, c := range node.Cases {
			if detectAsync(c.Body) {
				return true
			}
		}
		return false
	case *parser.BlockNode:
		return detectAsync(node.Body)
	case *parser.MacroNode:
		return detectAsync(node.Body)
	case *parser.CaptureNode:
		return detectAsync(node.Body)
	case *parser.CacheNode:
		return detectAsync(node.Body)
	case *parser.SpacelessNode:
		return detectAsync(node.Body)
	case *parser.WithNode:
		return detectAsync(node.Body)
	case *parser.CallBlockNode:
		return detectAsync(node.Body)
	case *parser.BlockSetNode:
		return detectAsync(node.Body)
	}
	return false
}

// compileWithCache wraps compile with singleflight compile-dedup per name
// and, only when WithBytecodeCacheDir enabled that tier, a bytecode-cache
// lookup/store.
//
// The persisted "bytecode" payload is the raw template source: Kida's
// tree-walking evaluator has no separate bytecode representation to
// serialize. A hit compiles the stored source again (preprocessing, lexing
// and parsing all run); the entry adds the verified source hash and the
// is_async classification stored alongside it.
func (e *Environment) compileWithCache(name, source string) (*Template, error) {
	e.ensureCacheLayer()

	hash := bytecode.HashSource(source)
	v, err, _ := e.cacheLayer.compileGroup.Do(name, func() (interface{}, error) {
		if e.cacheLayer.bytecodeStore != nil {
			if entry, ok := e.cacheLayer.bytecodeStore.Load(name, hash); ok {
				e.logger().Debug("bytecode cache hit", map[string]any{"template_name": name})
				return e.compile(name, string(entry.Payload))
			}
		}

		tmpl, err := e.compile(name, source)
		if err != nil {
			e.logger().Error("compile failed", map[string]any{"template_name": name, "fields": err.Error()})
			return nil, err
		}

		if e.cacheLayer.bytecodeStore != nil {
			isAsync := false
			if ast, ok := tmpl.ast.(*parser.TemplateNode); ok {
				isAsync = detectAsync(ast.Children)
			}
			_ = e.cacheLayer.bytecodeStore.Store(name, bytecode.Entry{
				SourceHash: hash,
				IsAsync:    isAsync,
				Payload:    []byte(source),
			})
		}
		return tmpl, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Template), nil
}

func (e *Environment) logger() *kidalog.Logger {
	e.ensureCacheLayer()
	return e.cacheLayer.logger
}
