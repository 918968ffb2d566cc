// Package optimize implements the compiler's constant-folding,
// dead-code-elimination, and output-coalescing passes over a parsed
// template body, run after parsing and before the body is handed to the
// renderer.
package optimize

import (
	"fmt"
	"strings"

	"github.com/kida-lang/kida/parser"
)

// PureFilters is the registry of filters eligible for compile-time
// evaluation. A filter not in this set is never folded, even if every one
// of its arguments is a constant, because its result may depend on
// environment state (locale, current time, randomness) the optimizer
// cannot see.
type PureFilters struct {
	names map[string]bool
}

// NewPureFilters builds a registry seeded with the given filter names.
func NewPureFilters(names ...string) *PureFilters {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return &PureFilters{names: m}
}

// DefaultPureFilters lists filters that are pure functions of their
// arguments: safe to fold at compile time when every argument is constant.
func DefaultPureFilters() *PureFilters {
	return NewPureFilters(
		"upper", "lower", "title", "capitalize", "trim", "striptags",
		"length", "count", "first", "last", "reverse", "sort",
		"abs", "round", "int", "float", "string", "default",
		"join", "replace", "truncate", "wordcount", "urlencode",
	)
}

func (p *PureFilters) IsPure(name string) bool {
	return p.names[name]
}

// Add registers additional filter names as compile-time-foldable.
func (p *PureFilters) Add(names ...string) {
	for _, n := range names {
		p.names[n] = true
	}
}

// FilterEvaluator evaluates a pure filter against already-constant inputs at
// compile time. It is the same signature as Environment.ApplyFilter; wiring
// it in lets the optimizer fold filter chains the renderer would otherwise
// redo on every render.
type FilterEvaluator func(name string, value interface{}, args ...interface{}) (interface{}, error)

// Optimizer runs the optimization pipeline over a template body.
type Optimizer struct {
	pure       *PureFilters
	evalFilter FilterEvaluator

	// static holds the constant bindings supplied to the current
	// partialEvaluate pass, so IdentifierNode lookups can resolve to a
	// LiteralNode. nil outside of that pass.
	static map[string]interface{}
}

func New(pure *PureFilters) *Optimizer {
	if pure == nil {
		pure = DefaultPureFilters()
	}
	return &Optimizer{pure: pure}
}

// PureFilters returns the optimizer's fold-eligible filter registry so
// callers can grow it after construction.
func (o *Optimizer) PureFilters() *PureFilters {
	return o.pure
}

// SetFilterEvaluator wires in a compile-time filter evaluator, so pure
// filter/pipeline chains over constant inputs are folded to their result
// instead of left for the renderer to compute on every render.
func (o *Optimizer) SetFilterEvaluator(fn FilterEvaluator) {
	o.evalFilter = fn
}

// Optimize applies constant folding, partial evaluation against
// staticContext, dead-code elimination, and output coalescing to body, in
// that order, and returns the transformed body. staticContext holds
// compile-time-known bindings supplied by the caller; Name references to
// them are resolved to literals before dead-code elimination runs, so an
// `{% if %}` guarded by such a constant can still be pruned.
func (o *Optimizer) Optimize(body []parser.Node, staticContext map[string]interface{}) []parser.Node {
	folded := o.foldNodes(body)
	if len(staticContext) > 0 {
		folded = o.partialEvaluate(folded, staticContext)
		// Resolving Name nodes can expose new constant subexpressions
		// (e.g. a BinaryOpNode whose other operand was already a literal),
		// so refold after substitution.
		folded = o.foldNodes(folded)
	}
	pruned := o.eliminateDeadCode(folded)
	return o.coalesceOutput(pruned)
}

// partialEvaluate resolves IdentifierNode references against static,
// replacing each one known to static with the corresponding LiteralNode.
// It reuses the same recursive descent as foldNodes so resolution happens
// at every nesting depth a fold would reach.
func (o *Optimizer) partialEvaluate(nodes []parser.Node, static map[string]interface{}) []parser.Node {
	sub := &Optimizer{pure: o.pure, evalFilter: o.evalFilter, static: static}
	return sub.foldNodes(nodes)
}

// foldNodes walks body folding constant subexpressions; statement bodies
// are recursed into so folding applies at every nesting depth.
func (o *Optimizer) foldNodes(nodes []parser.Node) []parser.Node {
	out := make([]parser.Node, len(nodes))
	for i, n := range nodes {
		out[i] = o.foldNode(n)
	}
	return out
}

func (o *Optimizer) foldNode(n parser.Node) parser.Node {
	switch node := n.(type) {
	case *parser.VariableNode:
		if expr, ok := node.Expression.(parser.ExpressionNode); ok {
			node.Expression = o.foldExpr(expr)
		}
		return node
	case *parser.IfNode:
		node.Condition = o.foldExpr(node.Condition)
		node.Body = o.foldNodes(node.Body)
		node.Else = o.foldNodes(node.Else)
		for _, elif := range node.ElseIfs {
			o.foldNode(elif)
		}
		return node
	case *parser.ForNode:
		node.Iterable = o.foldExpr(node.Iterable)
		node.Body = o.foldNodes(node.Body)
		node.Else = o.foldNodes(node.Else)
		return node
	case *parser.BlockNode:
		node.Body = o.foldNodes(node.Body)
		return node
	case *parser.SetNode:
		node.Value = o.foldExpr(node.Value)
		return node
	default:
		return n
	}
}

// foldExpr folds a constant-eligible expression tree down to a single
// LiteralNode, or returns expr unchanged when it cannot be folded.
func (o *Optimizer) foldExpr(expr parser.ExpressionNode) parser.ExpressionNode {
	switch e := expr.(type) {
	case *parser.IdentifierNode:
		if o.static != nil {
			if val, ok := o.static[e.Name]; ok {
				return parser.NewLiteralNode(val, fmt.Sprintf("%v", val), e.Line(), e.Column())
			}
		}
		return e

	case *parser.BinaryOpNode:
		left := o.foldExpr(e.Left)
		right := o.foldExpr(e.Right)
		e.Left = left
		e.Right = right

		leftLit, leftOK := left.(*parser.LiteralNode)
		rightLit, rightOK := right.(*parser.LiteralNode)
		if leftOK && rightOK {
			if result, ok := foldBinaryOp(e.Operator, leftLit.Value, rightLit.Value); ok {
				return parser.NewLiteralNode(result, fmt.Sprintf("%v", result), e.Line(), e.Column())
			}
		}
		return e

	case *parser.UnaryOpNode:
		operand := o.foldExpr(e.Operand)
		e.Operand = operand
		if lit, ok := operand.(*parser.LiteralNode); ok {
			if result, ok := foldUnaryOp(e.Operator, lit.Value); ok {
				return parser.NewLiteralNode(result, fmt.Sprintf("%v", result), e.Line(), e.Column())
			}
		}
		return e

	case *parser.FilterNode:
		inner := o.foldExpr(e.Expression)
		e.Expression = inner
		if !o.pure.IsPure(e.FilterName) {
			return e
		}
		if _, ok := inner.(*parser.LiteralNode); !ok {
			return e
		}
		argVals := make([]interface{}, len(e.Arguments))
		for i, arg := range e.Arguments {
			folded := o.foldExpr(arg)
			e.Arguments[i] = folded
			lit, ok := folded.(*parser.LiteralNode)
			if !ok {
				return e
			}
			argVals[i] = lit.Value
		}
		// Every input is constant and the filter is registered pure. Fold it
		// now if an evaluator was wired in; otherwise leave it for the
		// renderer's fast-eval path to compute at first use.
		if o.evalFilter == nil {
			return e
		}
		inputLit := inner.(*parser.LiteralNode)
		result, err := o.evalFilter(e.FilterName, inputLit.Value, argVals...)
		if err != nil {
			return e
		}
		return parser.NewLiteralNode(result, fmt.Sprintf("%v", result), e.Line(), e.Column())

	case *parser.ConditionalNode:
		e.Condition = o.foldExpr(e.Condition)
		e.TrueExpr = o.foldExpr(e.TrueExpr)
		e.FalseExpr = o.foldExpr(e.FalseExpr)
		if lit, ok := e.Condition.(*parser.LiteralNode); ok {
			if truthy(lit.Value) {
				return e.TrueExpr
			}
			return e.FalseExpr
		}
		return e

	default:
		return expr
	}
}

func truthy(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case nil:
		return false
	case string:
		return val != ""
	case int:
		return val != 0
	case float64:
		return val != 0
	default:
		return true
	}
}

func foldUnaryOp(op string, operand interface{}) (interface{}, bool) {
	switch op {
	case "not":
		return !truthy(operand), true
	case "-":
		switch v := operand.(type) {
		case int:
			return -v, true
		case float64:
			return -v, true
		}
	case "+":
		switch operand.(type) {
		case int, float64:
			return operand, true
		}
	}
	return nil, false
}

func foldBinaryOp(op string, left, right interface{}) (interface{}, bool) {
	switch op {
	case "~":
		return fmt.Sprintf("%v%v", left, right), true
	case "and":
		return truthy(left) && truthy(right), true
	case "or":
		return truthy(left) || truthy(right), true
	}

	lf, lok := asFloat(left)
	rf, rok := asFloat(right)
	if !lok || !rok {
		return nil, false
	}

	switch op {
	case "+":
		return foldNumeric(left, right, lf+rf), true
	case "-":
		return foldNumeric(left, right, lf-rf), true
	case "*":
		return foldNumeric(left, right, lf*rf), true
	case "/":
		if rf == 0 {
			return nil, false
		}
		return lf / rf, true
	case "==":
		return lf == rf, true
	case "!=":
		return lf != rf, true
	case "<":
		return lf < rf, true
	case "<=":
		return lf <= rf, true
	case ">":
		return lf > rf, true
	case ">=":
		return lf >= rf, true
	}
	return nil, false
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return float64(n), true
	}
	return 0, false
}

// foldNumeric preserves int-ness when both inputs were ints.
func foldNumeric(left, right interface{}, result float64) interface{} {
	_, lInt := left.(int)
	_, rInt := right.(int)
	if lInt && rInt && result == float64(int(result)) {
		return int(result)
	}
	return result
}

// hasBlockScopedStatement reports whether body contains (recursively,
// through non-block-bodied constructs only) a Let, Set, BlockSet, Capture,
// or Export statement. Inlining a branch that declares one of these would
// change its scoping: a binding that was confined to the If's block-scope
// frame, or one that should leak to the enclosing scope via that frame's
// parent chain, would instead be spliced directly into the surrounding
// statement list.
func hasBlockScopedStatement(body []parser.Node) bool {
	for _, n := range body {
		switch node := n.(type) {
		case *parser.LetNode, *parser.SetNode, *parser.BlockSetNode, *parser.CaptureNode, *parser.ExportNode:
			return true
		case *parser.IfNode:
			if hasBlockScopedStatement(node.Body) || hasBlockScopedStatement(node.Else) {
				return true
			}
			for _, elif := range node.ElseIfs {
				if hasBlockScopedStatement(elif.Body) {
					return true
				}
			}
		}
	}
	return false
}

// eliminateDeadCode drops If branches whose condition folded to a constant
// and statically-unreachable Else/ElseIf arms once a prior branch is known
// to always fire. A branch containing a block-scoped statement (Let, Set,
// BlockSet, Capture, Export) is never inlined, even when its condition is
// constant, since splicing it into the surrounding scope would change what
// its bindings leak to.
func (o *Optimizer) eliminateDeadCode(nodes []parser.Node) []parser.Node {
	out := make([]parser.Node, 0, len(nodes))
	for _, n := range nodes {
		switch node := n.(type) {
		case *parser.IfNode:
			if lit, ok := node.Condition.(*parser.LiteralNode); ok {
				if truthy(lit.Value) {
					if hasBlockScopedStatement(node.Body) {
						node.Body = o.eliminateDeadCode(node.Body)
						out = append(out, node)
						continue
					}
					out = append(out, o.eliminateDeadCode(node.Body)...)
					continue
				}
				// Condition is always false: fall through to elifs/else.
				replaced := false
				for _, elif := range node.ElseIfs {
					if lit, ok := elif.Condition.(*parser.LiteralNode); ok && truthy(lit.Value) {
						if hasBlockScopedStatement(elif.Body) {
							out = append(out, node)
							replaced = true
							break
						}
						out = append(out, o.eliminateDeadCode(elif.Body)...)
						replaced = true
						break
					}
					if _, ok := elif.Condition.(*parser.LiteralNode); !ok {
						out = append(out, node)
						replaced = true
						break
					}
				}
				if !replaced {
					if hasBlockScopedStatement(node.Else) {
						node.Else = o.eliminateDeadCode(node.Else)
						out = append(out, node)
						continue
					}
					out = append(out, o.eliminateDeadCode(node.Else)...)
				}
				continue
			}
			node.Body = o.eliminateDeadCode(node.Body)
			node.Else = o.eliminateDeadCode(node.Else)
			out = append(out, node)
		case *parser.ForNode:
			node.Body = o.eliminateDeadCode(node.Body)
			node.Else = o.eliminateDeadCode(node.Else)
			out = append(out, node)
		case *parser.BlockNode:
			node.Body = o.eliminateDeadCode(node.Body)
			out = append(out, node)
		default:
			out = append(out, node)
		}
	}
	return out
}

// coalesceOutput merges runs of ≥2 consecutive TextNodes into a single
// TextNode, reducing the number of writes the renderer performs per render.
// A run stops at the first node that is not a TextNode; VariableNodes, even
// ones holding a literal, are never merged.
func (o *Optimizer) coalesceOutput(nodes []parser.Node) []parser.Node {
	out := make([]parser.Node, 0, len(nodes))
	i := 0
	for i < len(nodes) {
		if text, ok := nodes[i].(*parser.TextNode); ok {
			var sb strings.Builder
			sb.WriteString(text.Content)
			j := i + 1
			count := 1
			for j < len(nodes) {
				if nextText, ok := nodes[j].(*parser.TextNode); ok {
					sb.WriteString(nextText.Content)
					count++
					j++
					continue
				}
				break
			}
			if count >= 2 {
				out = append(out, parser.NewTextNode(sb.String(), text.Line(), text.Column()))
			} else {
				out = append(out, text)
			}
			i = j
			continue
		}

		switch node := nodes[i].(type) {
		case *parser.IfNode:
			node.Body = o.coalesceOutput(node.Body)
			node.Else = o.coalesceOutput(node.Else)
		case *parser.ForNode:
			node.Body = o.coalesceOutput(node.Body)
			node.Else = o.coalesceOutput(node.Else)
		case *parser.BlockNode:
			node.Body = o.coalesceOutput(node.Body)
		}
		out = append(out, nodes[i])
		i++
	}
	return out
}
