package kida

import (
	"fmt"

	"github.com/kida-lang/kida/parser"
	"github.com/kida-lang/kida/runtime"
)

// isAsyncTemplate reports whether ast contains an AsyncFor or Await
// anywhere in its tree, matching detectAsync's compile-time classification.
func (t *Template) isAsyncTemplate() bool {
	templateNode := t.GetASTAsTemplateNode()
	if templateNode == nil {
		return false
	}
	return detectAsync(templateNode.Children)
}

// RenderStream returns a lazy chunk sequence where chunk boundaries fall
// on statement (top-level node) boundaries, per spec. It is not valid for
// a template classified is_async; call RenderStreamAsync instead.
func (t *Template) RenderStream(context Context) (<-chan string, <-chan error) {
	chunks := make(chan string)
	errs := make(chan error, 1)

	if t.isAsyncTemplate() {
		go func() {
			defer close(chunks)
			errs <- NewRuntimeError(t.name, 0, 0,
				"template %q is async-tainted (contains AsyncFor/Await); use RenderStreamAsync instead of RenderStream", t.name)
		}()
		return chunks, errs
	}

	go t.streamBody(context, chunks, errs)
	return chunks, errs
}

// RenderStreamAsync is the only render variant guaranteed meaningful for a
// template containing AsyncFor/Await. It streams the same way RenderStream
// does, one chunk per top-level statement; an AsyncFor or Await is
// evaluated together with its enclosing top-level statement and yields no
// chunk of its own per iteration or resolution.
func (t *Template) RenderStreamAsync(context Context) (<-chan string, <-chan error) {
	chunks := make(chan string)
	errs := make(chan error, 1)
	go t.streamBody(context, chunks, errs)
	return chunks, errs
}

func (t *Template) streamBody(context Context, chunks chan<- string, errs chan<- error) {
	defer close(chunks)

	if t.ast == nil {
		chunks <- t.source
		return
	}

	ctx := newContextWithEnv(t.env)
	if context != nil {
		for k, v := range context.All() {
			ctx.Set(k, v)
		}
	}

	finalAST := t.ast
	if t.hasInheritanceDirectives() {
		processor := t.env.getInheritanceProcessor()
		runtimeCtx := &TemplateContextAdapter{ctx: ctx, env: t.env, templateName: t.name}
		resolvedAST, err := processor.ResolveInheritance(&templateAdapter{template: t}, runtimeCtx)
		if err != nil {
			errs <- fmt.Errorf("inheritance resolution error: %v", err)
			return
		}
		finalAST = resolvedAST
	}

	templateNode, ok := finalAST.(*parser.TemplateNode)
	if !ok {
		errs <- NewRuntimeError(t.name, 0, 0, "template %q has no statement body to stream", t.name)
		return
	}

	evaluator := t.env.evaluatorPool.Get().(*runtime.DefaultEvaluator)
	defer t.env.evaluatorPool.Put(evaluator)
	evaluator.SetUndefinedBehavior(t.env.undefinedBehavior)
	evaluator.SetImportSystem(t.env.importSystem)

	runtimeCtx := &TemplateContextAdapter{ctx: ctx, env: t.env, templateName: t.name}

	for _, stmt := range templateNode.Children {
		result, err := evaluator.EvalNode(stmt, runtimeCtx)
		if err != nil {
			errs <- err
			return
		}
		chunks <- runtime.ToString(result)
	}
}
