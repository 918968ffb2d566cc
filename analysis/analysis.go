// Package analysis implements the static analysis subsystem: per-block
// dependency extraction, purity classification, cache-scope inference,
// HTML landmark detection, and macro call-site validation over a
// compiled template's AST.
package analysis

import (
	"sort"
	"strings"

	"github.com/kida-lang/kida/parser"
)

// Purity is the deterministic-output classification of a block.
type Purity int

const (
	PurityUnknown Purity = iota
	Pure
	Impure
)

func (p Purity) String() string {
	switch p {
	case Pure:
		return "Pure"
	case Impure:
		return "Impure"
	default:
		return "Unknown"
	}
}

// CacheScope is the broadest safe reuse scope a block's rendered output
// can be cached under.
type CacheScope int

const (
	ScopeUnknown CacheScope = iota
	ScopeNone
	ScopePage
	ScopeSite
)

func (s CacheScope) String() string {
	switch s {
	case ScopeNone:
		return "None"
	case ScopePage:
		return "Page"
	case ScopeSite:
		return "Site"
	default:
		return "Unknown"
	}
}

// BlockMetadata is the per-block analysis result.
type BlockMetadata struct {
	Name           string
	DependsOn      map[string]bool
	IsPure         Purity
	CacheScope     CacheScope
	EmitsHTML      bool
	EmitsLandmarks map[string]bool
	InferredRole   string
}

// TemplateMetadata is the whole-template analysis result.
type TemplateMetadata struct {
	Name              string
	Extends           string
	Blocks            map[string]*BlockMetadata
	TopLevelDependsOn  map[string]bool
}

// Config tunes the purity and cache-scope classifiers.
type Config struct {
	ImpureFunctions    map[string]bool
	ExtraPureFunctions map[string]bool
	SitePrefixes       map[string]bool
	PagePrefixes       map[string]bool
}

// DefaultConfig returns the classifier defaults per the known-impure
// builtin set: random, shuffle, uuid, and the wall-clock accessor.
func DefaultConfig() Config {
	return Config{
		ImpureFunctions: map[string]bool{
			"random": true, "shuffle": true, "now": true, "uuid": true,
		},
		ExtraPureFunctions: map[string]bool{},
		SitePrefixes:       map[string]bool{"site": true, "config": true, "globals": true},
		PagePrefixes:       map[string]bool{"page": true, "request": true},
	}
}

var landmarkTags = []string{"<nav", "<main", "<header", "<footer", "<aside"}

// Analyze walks a template's blocks and top-level body, producing a
// TemplateMetadata. templateName and extendsName come from the compiled
// template (empty extendsName means the template has no parent).
func Analyze(cfg Config, templateName, extendsName string, body []parser.Node) *TemplateMetadata {
	meta := &TemplateMetadata{
		Name:              templateName,
		Extends:           extendsName,
		Blocks:            make(map[string]*BlockMetadata),
		TopLevelDependsOn: make(map[string]bool),
	}

	var walk func(nodes []parser.Node, deps map[string]bool)
	walk = func(nodes []parser.Node, deps map[string]bool) {
		for _, n := range nodes {
			switch node := n.(type) {
			case *parser.BlockNode:
				bm := analyzeBlock(cfg, node)
				meta.Blocks[node.Name] = bm
				for k := range bm.DependsOn {
					deps[k] = true
				}
			default:
				collectDeps(n, deps)
				for _, child := range childBodies(n) {
					walk(child, deps)
				}
			}
		}
	}
	walk(body, meta.TopLevelDependsOn)

	return meta
}

// childBodies returns the nested statement lists of a node that the
// dependency walker must recurse into (both branches of If, both arms of
// For, etc.) — a conservative over-approximation, never under-reporting.
func childBodies(n parser.Node) [][]parser.Node {
	switch node := n.(type) {
	case *parser.IfNode:
		bodies := [][]parser.Node{node.Body, node.Else}
		for _, elif := range node.ElseIfs {
			bodies = append(bodies, childBodies(elif)...)
		}
		return bodies
	case *parser.ForNode:
		return [][]parser.Node{node.Body, node.Else}
	case *parser.BlockNode:
		return [][]parser.Node{node.Body}
	case *parser.MacroNode:
		return [][]parser.Node{node.Body}
	case *parser.CallBlockNode:
		return [][]parser.Node{node.Body}
	default:
		return nil
	}
}

func analyzeBlock(cfg Config, block *parser.BlockNode) *BlockMetadata {
	bm := &BlockMetadata{
		Name:           block.Name,
		DependsOn:      make(map[string]bool),
		EmitsLandmarks: make(map[string]bool),
	}

	var walk func(nodes []parser.Node)
	unresolvableCall := false
	walk = func(nodes []parser.Node) {
		for _, n := range nodes {
			collectDeps(n, bm.DependsOn)

			if text, ok := n.(*parser.TextNode); ok {
				bm.EmitsHTML = true
				lower := strings.ToLower(text.Content)
				for _, tag := range landmarkTags {
					if strings.Contains(lower, tag) {
						bm.EmitsLandmarks[strings.TrimPrefix(tag, "<")] = true
					}
				}
			}

			if hasUnresolvableCall(n) {
				unresolvableCall = true
			}

			for _, child := range childBodies(n) {
				walk(child)
			}
		}
	}
	walk(block.Body)

	bm.IsPure = classifyPurity(cfg, block.Body, unresolvableCall)
	bm.CacheScope = classifyCacheScope(cfg, bm)
	bm.InferredRole = inferRole(bm)

	return bm
}

// collectDeps records the full dotted path and top-level name of every
// Identifier/Attribute/GetItem expression reachable from n's immediate
// expression positions.
func collectDeps(n parser.Node, deps map[string]bool) {
	switch node := n.(type) {
	case *parser.VariableNode:
		if expr, ok := node.Expression.(parser.ExpressionNode); ok {
			recordPath(expr, deps)
		}
	case *parser.IfNode:
		recordPath(node.Condition, deps)
	case *parser.ForNode:
		recordPath(node.Iterable, deps)
		if node.Condition != nil {
			recordPath(node.Condition, deps)
		}
	case *parser.SetNode:
		recordPath(node.Value, deps)
	case *parser.FilterNode:
		recordPath(node, deps)
	}
}

// recordPath walks an expression tree recording every dotted-path
// reference it contains (not just the outermost one).
func recordPath(expr parser.ExpressionNode, deps map[string]bool) {
	if expr == nil {
		return
	}
	path, top, ok := dottedPath(expr)
	if ok {
		deps[path] = true
		deps[top] = true
		return
	}

	switch e := expr.(type) {
	case *parser.BinaryOpNode:
		recordPath(e.Left, deps)
		recordPath(e.Right, deps)
	case *parser.AttributeNode:
		recordPath(e.Object, deps)
	case *parser.GetItemNode:
		recordPath(e.Object, deps)
		recordPath(e.Key, deps)
	case *parser.UnaryOpNode:
		recordPath(e.Operand, deps)
	case *parser.FilterNode:
		recordPath(e.Expression, deps)
		for _, a := range e.Arguments {
			recordPath(a, deps)
		}
	case *parser.CallNode:
		recordPath(e.Function, deps)
		for _, a := range e.Arguments {
			recordPath(a, deps)
		}
	case *parser.ConditionalNode:
		recordPath(e.Condition, deps)
		recordPath(e.TrueExpr, deps)
		recordPath(e.FalseExpr, deps)
	case *parser.ListNode:
		for _, el := range e.Elements {
			recordPath(el, deps)
		}
	}
}

// dottedPath resolves a pure chain of Identifier/Attribute/GetItem(const
// string) nodes to its dotted string form, e.g. page.title.
func dottedPath(expr parser.ExpressionNode) (path string, top string, ok bool) {
	switch e := expr.(type) {
	case *parser.IdentifierNode:
		return e.Name, e.Name, true
	case *parser.AttributeNode:
		base, baseTop, baseOK := dottedPath(e.Object)
		if !baseOK {
			return "", "", false
		}
		return base + "." + e.Attribute, baseTop, true
	case *parser.GetItemNode:
		if lit, isLit := e.Key.(*parser.LiteralNode); isLit {
			if key, isStr := lit.Value.(string); isStr {
				base, baseTop, baseOK := dottedPath(e.Object)
				if !baseOK {
					return "", "", false
				}
				return base + "." + key, baseTop, true
			}
		}
		return "", "", false
	default:
		return "", "", false
	}
}

func hasUnresolvableCall(n parser.Node) bool {
	v, ok := n.(*parser.VariableNode)
	if !ok {
		return false
	}
	expr, ok := v.Expression.(parser.ExpressionNode)
	if !ok {
		return false
	}
	call, ok := expr.(*parser.CallNode)
	if !ok {
		return false
	}
	_, _, resolved := dottedPath(call.Function)
	return !resolved
}

func classifyPurity(cfg Config, body []parser.Node, unresolvableCall bool) Purity {
	if unresolvableCall {
		return PurityUnknown
	}
	impure := false
	var walk func(nodes []parser.Node)
	walk = func(nodes []parser.Node) {
		for _, n := range nodes {
			if v, ok := n.(*parser.VariableNode); ok {
				if expr, ok := v.Expression.(parser.ExpressionNode); ok {
					walkExprForPurity(cfg, expr, &impure)
				}
			}
			for _, child := range childBodies(n) {
				walk(child)
			}
		}
	}
	walk(body)
	if impure {
		return Impure
	}
	return Pure
}

func walkExprForPurity(cfg Config, expr parser.ExpressionNode, impure *bool) {
	switch e := expr.(type) {
	case *parser.CallNode:
		if name, _, ok := dottedPath(e.Function); ok && cfg.ImpureFunctions[name] {
			*impure = true
		}
		for _, a := range e.Arguments {
			walkExprForPurity(cfg, a, impure)
		}
	case *parser.FilterNode:
		if !cfg.ExtraPureFunctions[e.FilterName] && !defaultPureFilter(e.FilterName) {
			*impure = true
		}
		walkExprForPurity(cfg, e.Expression, impure)
		for _, a := range e.Arguments {
			walkExprForPurity(cfg, a, impure)
		}
	case *parser.BinaryOpNode:
		walkExprForPurity(cfg, e.Left, impure)
		walkExprForPurity(cfg, e.Right, impure)
	case *parser.UnaryOpNode:
		walkExprForPurity(cfg, e.Operand, impure)
	case *parser.ConditionalNode:
		walkExprForPurity(cfg, e.Condition, impure)
		walkExprForPurity(cfg, e.TrueExpr, impure)
		walkExprForPurity(cfg, e.FalseExpr, impure)
	}
}

func defaultPureFilter(name string) bool {
	switch name {
	case "upper", "lower", "title", "capitalize", "trim", "striptags",
		"length", "count", "first", "last", "reverse", "sort",
		"abs", "round", "int", "float", "string", "default",
		"join", "replace", "truncate", "wordcount", "urlencode":
		return true
	default:
		return false
	}
}

func classifyCacheScope(cfg Config, bm *BlockMetadata) CacheScope {
	if bm.IsPure == Impure {
		return ScopeNone
	}
	if bm.IsPure == PurityUnknown {
		return ScopeUnknown
	}
	if len(bm.DependsOn) == 0 {
		return ScopeSite
	}
	allSite := true
	anyPage := false
	for dep := range bm.DependsOn {
		top := dep
		if idx := strings.IndexByte(dep, '.'); idx >= 0 {
			top = dep[:idx]
		}
		if cfg.PagePrefixes[top] {
			anyPage = true
		}
		if !cfg.SitePrefixes[top] {
			allSite = false
		}
	}
	if allSite {
		return ScopeSite
	}
	if anyPage {
		return ScopePage
	}
	return ScopeUnknown
}

func inferRole(bm *BlockMetadata) string {
	if len(bm.EmitsLandmarks) > 0 {
		names := make([]string, 0, len(bm.EmitsLandmarks))
		for n := range bm.EmitsLandmarks {
			names = append(names, n)
		}
		sort.Strings(names)
		return strings.Join(names, "+")
	}
	if bm.IsPure == Pure && bm.EmitsHTML {
		return "static-content"
	}
	return "unknown"
}

// CallValidation is the result of validating one macro call site.
type CallValidation struct {
	DefName         string
	Line            int
	Column          int
	UnknownParams   []string
	MissingRequired []string
	DuplicateParams []string
}

// ValidateCallSites walks body for CallBlockNode call sites whose callable
// resolves statically to a known macro (in macros) and reports parameter
// mismatches. MacroNode has no *args/**kwargs spread parameter, so
// unknown-param suppression never applies here.
func ValidateCallSites(body []parser.Node, macros map[string]*parser.MacroNode) []CallValidation {
	var results []CallValidation
	var walk func(nodes []parser.Node)
	walk = func(nodes []parser.Node) {
		for _, n := range nodes {
			if cb, ok := n.(*parser.CallBlockNode); ok {
				if cv, ok := validateCall(cb, macros); ok {
					results = append(results, cv)
				}
				walk(cb.Body)
				continue
			}
			for _, child := range childBodies(n) {
				walk(child)
			}
		}
	}
	walk(body)
	return results
}

func validateCall(cb *parser.CallBlockNode, macros map[string]*parser.MacroNode) (CallValidation, bool) {
	call, ok := cb.Call.(*parser.CallNode)
	if !ok {
		return CallValidation{}, false
	}
	name, _, ok := dottedPath(call.Function)
	if !ok {
		return CallValidation{}, false
	}
	def, ok := macros[name]
	if !ok {
		return CallValidation{}, false
	}

	allowed := make(map[string]bool, len(def.Parameters))
	required := make(map[string]bool, len(def.Parameters))
	for _, p := range def.Parameters {
		allowed[p] = true
		if _, hasDefault := def.Defaults[p]; !hasDefault {
			required[p] = true
		}
	}

	cv := CallValidation{DefName: name, Line: cb.Line(), Column: cb.Column()}
	seen := make(map[string]bool)
	provided := make(map[string]bool)

	for kw := range call.Keywords {
		if !allowed[kw] {
			cv.UnknownParams = append(cv.UnknownParams, kw)
		}
		if seen[kw] {
			cv.DuplicateParams = append(cv.DuplicateParams, kw)
		}
		seen[kw] = true
		provided[kw] = true
	}

	for i := range call.Arguments {
		if i < len(def.Parameters) {
			provided[def.Parameters[i]] = true
		}
	}

	for p := range required {
		if !provided[p] {
			cv.MissingRequired = append(cv.MissingRequired, p)
		}
	}

	sort.Strings(cv.UnknownParams)
	sort.Strings(cv.MissingRequired)
	sort.Strings(cv.DuplicateParams)

	if len(cv.UnknownParams) == 0 && len(cv.MissingRequired) == 0 && len(cv.DuplicateParams) == 0 {
		return cv, false
	}
	return cv, true
}

// ValidateContext returns the sorted top-level names top.TopLevelDependsOn
// requires that are present in neither ctx nor globals.
func ValidateContext(top *TemplateMetadata, ctx map[string]interface{}, globals map[string]interface{}) []string {
	var missing []string
	for name := range top.TopLevelDependsOn {
		if strings.Contains(name, ".") {
			continue
		}
		if _, ok := ctx[name]; ok {
			continue
		}
		if _, ok := globals[name]; ok {
			continue
		}
		missing = append(missing, name)
	}
	sort.Strings(missing)
	return missing
}
