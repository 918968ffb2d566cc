package kida

import (
	"bytes"

	"github.com/kida-lang/kida/parser"
	"github.com/kida-lang/kida/runtime"
)

// TemplateName satisfies the evaluator's optional
// "interface{ TemplateName() string }" used to build fragment cache keys.
func (a *TemplateContextAdapter) TemplateName() string {
	return a.templateName
}

// FragmentGet/FragmentSet satisfy runtime.FragmentCacheContext, backing
// {% cache %} blocks with the environment's fragment cache tier. Both are
// silent no-ops when no fragment cache was configured, which the evaluator
// already treats as "render without caching".
func (a *TemplateContextAdapter) FragmentGet(key string) (string, bool) {
	if a.env == nil || a.env.cacheLayer == nil || a.env.cacheLayer.fragments == nil {
		return "", false
	}
	return a.env.cacheLayer.fragments.Get(key)
}

func (a *TemplateContextAdapter) FragmentSet(key string, value string, ttlSeconds int64) {
	if a.env == nil || a.env.cacheLayer == nil || a.env.cacheLayer.fragments == nil {
		return
	}
	a.env.cacheLayer.fragments.Set(key, value, ttlSeconds)
}

// PushBlockScope satisfies runtime.BlockScopeContext, giving an if/for/
// while/... body its own frame so {% let %} bindings made inside it don't
// survive past the body.
func (a *TemplateContextAdapter) PushBlockScope() runtime.Context {
	return &TemplateContextAdapter{
		ctx:          a.ctx.Push(),
		env:          a.env,
		templateName: a.templateName,
		exports:      a.exports,
		slotStack:    a.slotStack,
	}
}

// SetEnclosing satisfies runtime.EnclosingScopeContext: {% set %} writes
// through this so its binding leaks out of the block it's declared in,
// landing in the nearest enclosing function/template scope instead of the
// block-scope frame PushBlockScope created.
func (a *TemplateContextAdapter) SetEnclosing(name string, value interface{}) {
	a.ctx.SetEnclosing(name, value)
}

// SetExport satisfies runtime.ExportContext, recording a template's
// {% export %} bindings into its export table for FromImport lookups.
func (a *TemplateContextAdapter) SetExport(name string, value interface{}) {
	if a.exports == nil {
		a.exports = make(map[string]interface{})
	}
	a.exports[name] = value
}

// Exports returns the accumulated export table for this render.
func (a *TemplateContextAdapter) Exports() map[string]interface{} {
	return a.exports
}

// PushSlotOverrides/PopSlotOverrides/SlotOverride satisfy
// runtime.SlotContext, implementing {% embed %}/{% slot %} splicing: the
// calling template's slot bodies are pushed onto a stack before rendering
// the embedded template and popped afterward, so nested embeds each see
// only their own overrides.
func (a *TemplateContextAdapter) PushSlotOverrides(overrides map[string][]parser.Node) {
	a.slotStack = append(a.slotStack, overrides)
}

func (a *TemplateContextAdapter) PopSlotOverrides() {
	if len(a.slotStack) == 0 {
		return
	}
	a.slotStack = a.slotStack[:len(a.slotStack)-1]
}

func (a *TemplateContextAdapter) SlotOverride(name string) ([]parser.Node, bool) {
	if len(a.slotStack) == 0 {
		return nil, false
	}
	top := a.slotStack[len(a.slotStack)-1]
	body, ok := top[name]
	return body, ok
}

// RenderEmbeddedTemplate satisfies runtime.EmbedRenderer: it loads the
// named template, pushes overrides for the duration of its render, and
// returns the rendered string.
func (a *TemplateContextAdapter) RenderEmbeddedTemplate(templateName string, overrides map[string][]parser.Node, ctx runtime.Context) (interface{}, error) {
	if a.env == nil {
		return "", nil
	}
	tmpl, err := a.env.GetTemplate(templateName)
	if err != nil {
		return "", err
	}

	a.PushSlotOverrides(overrides)
	defer a.PopSlotOverrides()

	var buf bytes.Buffer
	if err := tmpl.RenderTo(&buf, a.ctx); err != nil {
		return "", err
	}
	return buf.String(), nil
}
