package runtime

import (
	"fmt"
	"strings"

	"github.com/kida-lang/kida/parser"
)

// maxWhileIterations bounds {% while %} loops so a runaway condition cannot
// hang a render; it mirrors the include-depth guard used elsewhere.
const maxWhileIterations = 100000

func (e *DefaultEvaluator) EvalWhileNode(node *parser.WhileNode, ctx Context) (interface{}, error) {
	var results []string
	iterations := 0
	bodyCtx := pushBlockScope(ctx)

	for {
		cond, err := e.EvalNode(node.Condition, ctx)
		if err != nil {
			return nil, err
		}
		if !e.isTruthy(cond) {
			break
		}

		iterations++
		if iterations > maxWhileIterations {
			return nil, fmt.Errorf("while loop exceeded %d iterations", maxWhileIterations)
		}

		result, err := e.evalNodeList(node.Body, bodyCtx)
		if err != nil {
			if loopErr, ok := err.(*LoopControlError); ok {
				if str, ok := result.(string); ok && str != "" {
					results = append(results, str)
				}
				if loopErr.IsBreak() {
					break
				}
				continue
			}
			return nil, err
		}

		results = append(results, ToString(result))
	}

	return strings.Join(results, ""), nil
}

// EvalMatchNode evaluates pattern-matching statements. Patterns are matched
// first-wins: a literal must equal the subject, a bare identifier binds the
// subject (or, spelled `_`, matches anything without binding), and a
// parenthesized/bracketed pattern destructures the subject as a sequence.
func (e *DefaultEvaluator) EvalMatchNode(node *parser.MatchNode, ctx Context) (interface{}, error) {
	subject, err := e.EvalNode(node.Subject, ctx)
	if err != nil {
		return nil, err
	}

	for _, clause := range node.Cases {
		matchCtx := pushBlockScope(ctx)
		ok, err := e.matchPattern(clause.Pattern, subject, matchCtx)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if clause.Guard != nil {
			guardVal, err := e.EvalNode(clause.Guard, matchCtx)
			if err != nil {
				return nil, err
			}
			if !e.isTruthy(guardVal) {
				continue
			}
		}
		return e.evalNodeList(clause.Body, matchCtx)
	}

	return "", nil
}

func (e *DefaultEvaluator) matchPattern(pattern parser.ExpressionNode, value interface{}, ctx Context) (bool, error) {
	switch p := pattern.(type) {
	case *parser.IdentifierNode:
		if p.Name == "_" {
			return true, nil
		}
		ctx.SetVariable(p.Name, value)
		return true, nil

	case *parser.ListNode:
		items, err := e.makeIterable(value)
		if err != nil {
			return false, nil
		}
		if len(items) != len(p.Elements) {
			return false, nil
		}
		for i, elemPattern := range p.Elements {
			matched, err := e.matchPattern(elemPattern, items[i], ctx)
			if err != nil {
				return false, err
			}
			if !matched {
				return false, nil
			}
		}
		return true, nil

	default:
		patternValue, err := e.EvalNode(pattern, ctx)
		if err != nil {
			return false, err
		}
		return e.deepEqual(patternValue, value), nil
	}
}

// EvalLetNode binds a value in the current (innermost) scope only; unlike
// {% set %} it never reaches into an enclosing block-set accumulator.
func (e *DefaultEvaluator) EvalLetNode(node *parser.LetNode, ctx Context) (interface{}, error) {
	value, err := e.EvalNode(node.Value, ctx)
	if err != nil {
		return nil, err
	}
	ctx.SetVariable(node.Target, value)
	return "", nil
}

// ExportContext is implemented by contexts that track a template's exported
// names, so that {% export %} can be distinguished from ordinary variables
// during import/from-import resolution.
type ExportContext interface {
	SetExport(name string, value interface{})
}

func (e *DefaultEvaluator) EvalExportNode(node *parser.ExportNode, ctx Context) (interface{}, error) {
	value, err := e.EvalNode(node.Value, ctx)
	if err != nil {
		return nil, err
	}
	ctx.SetVariable(node.Name, value)
	if exp, ok := ctx.(ExportContext); ok {
		exp.SetExport(node.Name, value)
	}
	return "", nil
}

func (e *DefaultEvaluator) EvalCaptureNode(node *parser.CaptureNode, ctx Context) (interface{}, error) {
	result, err := e.evalNodeList(node.Body, pushBlockScope(ctx))
	if err != nil {
		return nil, err
	}
	ctx.SetVariable(node.Target, ToString(result))
	return "", nil
}

// FragmentCacheContext is implemented by contexts wired to a fragment cache;
// when absent, {% cache %} degrades to always-render (no caching).
type FragmentCacheContext interface {
	FragmentGet(key string) (string, bool)
	FragmentSet(key string, value string, ttlSeconds int64)
}

func (e *DefaultEvaluator) EvalCacheNode(node *parser.CacheNode, ctx Context) (interface{}, error) {
	keyPart, err := e.EvalNode(node.Key, ctx)
	if err != nil {
		return nil, err
	}

	bodyCtx := pushBlockScope(ctx)

	cacheCtx, ok := ctx.(FragmentCacheContext)
	if !ok {
		result, err := e.evalNodeList(node.Body, bodyCtx)
		if err != nil {
			return nil, err
		}
		return ToString(result), nil
	}

	templateName := ""
	if named, ok := ctx.(interface{ TemplateName() string }); ok {
		templateName = named.TemplateName()
	}

	cacheKey := fmt.Sprintf("%s:%d:%s", templateName, node.Counter, ToString(keyPart))

	if cached, found := cacheCtx.FragmentGet(cacheKey); found {
		return cached, nil
	}

	result, err := e.evalNodeList(node.Body, bodyCtx)
	if err != nil {
		return nil, err
	}
	rendered := ToString(result)

	var ttlSeconds int64
	if node.TTL != nil {
		ttlVal, err := e.EvalNode(node.TTL, ctx)
		if err != nil {
			return nil, err
		}
		ttlSeconds = toInt64(ttlVal)
	}

	cacheCtx.FragmentSet(cacheKey, rendered, ttlSeconds)
	return rendered, nil
}

func toInt64(value interface{}) int64 {
	switch v := value.(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// SlotContext is implemented by render contexts that track active slot
// overrides while rendering an {% embed %} target, mirroring how block
// overrides flow through template inheritance.
type SlotContext interface {
	PushSlotOverrides(overrides map[string][]parser.Node)
	PopSlotOverrides()
	SlotOverride(name string) ([]parser.Node, bool)
}

func (e *DefaultEvaluator) EvalSlotNode(node *parser.SlotNode, ctx Context) (interface{}, error) {
	if slotCtx, ok := ctx.(SlotContext); ok {
		if body, found := slotCtx.SlotOverride(node.Name); found {
			return e.evalNodeList(body, ctx)
		}
	}
	return e.evalNodeList(node.DefaultBody, ctx)
}

// EmbedRenderer is implemented by render contexts that can load and render
// another template with a set of slot overrides spliced in.
type EmbedRenderer interface {
	RenderEmbeddedTemplate(templateName string, overrides map[string][]parser.Node, ctx Context) (interface{}, error)
}

func (e *DefaultEvaluator) EvalEmbedNode(node *parser.EmbedNode, ctx Context) (interface{}, error) {
	templateVal, err := e.EvalNode(node.Template, ctx)
	if err != nil {
		return nil, err
	}
	templateName := ToString(templateVal)

	embedCtx, ok := ctx.(EmbedRenderer)
	if !ok {
		return nil, fmt.Errorf("embed requires an embed-aware render context")
	}

	overrides := make(map[string][]parser.Node, len(node.Body))
	for _, child := range node.Body {
		if slotOverride, ok := child.(*parser.SlotOverrideNode); ok {
			overrides[slotOverride.Name] = slotOverride.Body
		}
	}

	return embedCtx.RenderEmbeddedTemplate(templateName, overrides, ctx)
}

func (e *DefaultEvaluator) EvalSpacelessNode(node *parser.SpacelessNode, ctx Context) (interface{}, error) {
	result, err := e.evalNodeList(node.Body, pushBlockScope(ctx))
	if err != nil {
		return nil, err
	}
	return stripInterTagWhitespace(ToString(result)), nil
}

// stripInterTagWhitespace removes whitespace that occurs only between two
// adjacent tags (">" followed by whitespace followed by "<"), leaving
// whitespace inside text content untouched.
func stripInterTagWhitespace(s string) string {
	var sb strings.Builder
	runes := []rune(s)
	i := 0
	for i < len(runes) {
		if runes[i] == '>' {
			sb.WriteRune(runes[i])
			i++
			j := i
			for j < len(runes) && (runes[j] == ' ' || runes[j] == '\t' || runes[j] == '\n' || runes[j] == '\r') {
				j++
			}
			if j < len(runes) && runes[j] == '<' {
				i = j
				continue
			}
			continue
		}
		sb.WriteRune(runes[i])
		i++
	}
	return sb.String()
}

// AsyncIterable is implemented by values produced for {% async for %}
// iteration; Channel yields items until closed, ErrChan optionally carries
// a terminal error.
type AsyncIterable interface {
	Channel() <-chan interface{}
	ErrChan() <-chan error
}

// Awaitable is implemented by values that {% await %}/`await expr` resolves
// before use.
type Awaitable interface {
	Await() (interface{}, error)
}

func (e *DefaultEvaluator) EvalAsyncForNode(node *parser.AsyncForNode, ctx Context) (interface{}, error) {
	iterableVal, err := e.EvalNode(node.Iterable, ctx)
	if err != nil {
		return nil, err
	}

	asyncIter, ok := iterableVal.(AsyncIterable)
	if !ok {
		// Fall back to synchronous iteration over ordinary iterables so
		// async-for degrades gracefully over non-async sources.
		items, err := e.makeIterableForVariables(iterableVal, len(node.Variables))
		if err != nil {
			return nil, err
		}
		if len(items) == 0 && len(node.Else) > 0 {
			return e.evalNodeList(node.Else, pushBlockScope(ctx))
		}
		loopScope := pushBlockScope(ctx)
		var results []string
		for _, item := range items {
			loopCtx := loopScope.Clone()
			if err := e.bindLoopVariables(node.Variables, item, loopCtx); err != nil {
				return nil, err
			}
			if node.Condition != nil {
				condVal, err := e.EvalNode(node.Condition, loopCtx)
				if err != nil {
					return nil, err
				}
				if !e.isTruthy(condVal) {
					continue
				}
			}
			result, err := e.evalNodeList(node.Body, loopCtx)
			if err != nil {
				if loopErr, ok := err.(*LoopControlError); ok {
					if loopErr.IsBreak() {
						break
					}
					continue
				}
				return nil, err
			}
			results = append(results, ToString(result))
		}
		return strings.Join(results, ""), nil
	}

	var results []string
	ch := asyncIter.Channel()
	errCh := asyncIter.ErrChan()
	count := 0
	loopScope := pushBlockScope(ctx)

loop:
	for {
		select {
		case item, open := <-ch:
			if !open {
				break loop
			}
			count++
			loopCtx := loopScope.Clone()
			if err := e.bindLoopVariables(node.Variables, item, loopCtx); err != nil {
				return nil, err
			}
			if node.Condition != nil {
				condVal, err := e.EvalNode(node.Condition, loopCtx)
				if err != nil {
					return nil, err
				}
				if !e.isTruthy(condVal) {
					continue
				}
			}
			result, err := e.evalNodeList(node.Body, loopCtx)
			if err != nil {
				if loopErr, ok := err.(*LoopControlError); ok {
					if loopErr.IsBreak() {
						break loop
					}
					continue
				}
				return nil, err
			}
			results = append(results, ToString(result))
		case err, open := <-errCh:
			if open && err != nil {
				return nil, err
			}
		}
	}

	if count == 0 && len(node.Else) > 0 {
		return e.evalNodeList(node.Else, pushBlockScope(ctx))
	}

	return strings.Join(results, ""), nil
}

func (e *DefaultEvaluator) bindLoopVariables(variables []string, item interface{}, ctx Context) error {
	if len(variables) == 1 {
		ctx.SetVariable(variables[0], item)
		return nil
	}
	unpacked, err := e.makeIterable(item)
	if err != nil {
		return fmt.Errorf("cannot unpack non-iterable %T for loop variables", item)
	}
	if len(unpacked) != len(variables) {
		return fmt.Errorf("cannot unpack %d values into %d variables", len(unpacked), len(variables))
	}
	for i, v := range variables {
		ctx.SetVariable(v, unpacked[i])
	}
	return nil
}

func (e *DefaultEvaluator) EvalAwaitNode(node *parser.AwaitNode, ctx Context) (interface{}, error) {
	value, err := e.EvalNode(node.Value, ctx)
	if err != nil {
		return nil, err
	}
	if awaitable, ok := value.(Awaitable); ok {
		return awaitable.Await()
	}
	return value, nil
}

func (e *DefaultEvaluator) EvalPipelineNode(node *parser.PipelineNode, ctx Context) (interface{}, error) {
	return e.EvalNode(node.Desugar(), ctx)
}

func (e *DefaultEvaluator) EvalNullCoalesceNode(node *parser.NullCoalesceNode, ctx Context) (interface{}, error) {
	left, err := e.EvalNode(node.Left, ctx)
	if err != nil {
		return nil, err
	}
	if left == nil || IsUndefined(left) {
		return e.EvalNode(node.Right, ctx)
	}
	return left, nil
}

func (e *DefaultEvaluator) EvalOptionalChainNode(node *parser.OptionalChainNode, ctx Context) (interface{}, error) {
	value, err := e.EvalNode(node.Value, ctx)
	if err != nil {
		return nil, err
	}
	if value == nil || IsUndefined(value) {
		return NewUndefined(node.Attr, UndefinedSilent, node), nil
	}
	return e.getAttribute(value, node.Attr), nil
}

func (e *DefaultEvaluator) EvalRangeNode(node *parser.RangeNode, ctx Context) (interface{}, error) {
	startVal, err := e.EvalNode(node.Start, ctx)
	if err != nil {
		return nil, err
	}
	stopVal, err := e.EvalNode(node.Stop, ctx)
	if err != nil {
		return nil, err
	}
	start := toInt64(startVal)
	stop := toInt64(stopVal)
	step := int64(1)
	if node.Step != nil {
		stepVal, err := e.EvalNode(node.Step, ctx)
		if err != nil {
			return nil, err
		}
		step = toInt64(stepVal)
		if step == 0 {
			return nil, fmt.Errorf("range() step argument must not be zero")
		}
	}

	var result []interface{}
	if step > 0 {
		for i := start; i < stop; i += step {
			result = append(result, int(i))
		}
	} else {
		for i := start; i > stop; i += step {
			result = append(result, int(i))
		}
	}
	return result, nil
}
