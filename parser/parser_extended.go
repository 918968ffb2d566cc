package parser

import (
	"fmt"

	"github.com/kida-lang/kida/lexer"
)

// parseBodyUntil parses top-level nodes until the upcoming block keyword is
// one of enders or the universal {% end %}, without consuming the closer.
func (p *Parser) parseBodyUntil(enders ...lexer.TokenType) ([]Node, error) {
	var body []Node
	for !p.isAtEnd() {
		if p.check(lexer.TokenBlockStart) || p.check(lexer.TokenBlockStartTrim) {
			bt := p.peekBlockType()
			if bt == lexer.TokenEnd {
				break
			}
			for _, e := range enders {
				if bt == e {
					goto done
				}
			}
		}
		node, err := p.parseTopLevel()
		if err != nil {
			return nil, err
		}
		if node != nil {
			body = append(body, node)
		}
	}
done:
	return body, nil
}

// consumeCloser consumes '{%' [-]? specificEnd|end '%}' [-]?.
func (p *Parser) consumeCloser(specificEnd lexer.TokenType, what string) error {
	if !(p.check(lexer.TokenBlockStart) || p.check(lexer.TokenBlockStartTrim)) {
		return p.error(fmt.Sprintf("expected closing block for %s", what))
	}
	p.advance() // consume '{%'
	if !p.checkEnd(specificEnd) {
		return p.error(fmt.Sprintf("expected 'end' or '%s' to close %s", specificEnd.String(), what))
	}
	p.advance() // consume the ending keyword
	if !p.check(lexer.TokenBlockEnd) && !p.check(lexer.TokenBlockEndTrim) {
		return p.error(fmt.Sprintf("expected '%%}' after closing %s", what))
	}
	p.advance()
	return nil
}

func (p *Parser) consumeBlockEnd(what string) error {
	if !p.check(lexer.TokenBlockEnd) && !p.check(lexer.TokenBlockEndTrim) {
		return p.error(fmt.Sprintf("expected '%%}' after %s", what))
	}
	p.advance()
	return nil
}

// parseWhileStatement parses {% while cond %}...{% end %}
func (p *Parser) parseWhileStatement() (Node, error) {
	tok := p.advance() // consume 'while'
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.consumeBlockEnd("while condition"); err != nil {
		return nil, err
	}
	node := NewWhileNode(cond, tok.Line, tok.Column)
	body, err := p.parseBodyUntil(lexer.TokenEndwhile)
	if err != nil {
		return nil, err
	}
	node.Body = body
	if err := p.consumeCloser(lexer.TokenEndwhile, "while"); err != nil {
		return nil, err
	}
	return node, nil
}

// parseMatchStatement parses:
// {% match subject %}{% case pattern [if guard] %}...{% case _ %}...{% end %}
func (p *Parser) parseMatchStatement() (Node, error) {
	tok := p.advance() // consume 'match'
	subject, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.consumeBlockEnd("match subject"); err != nil {
		return nil, err
	}
	node := NewMatchNode(subject, tok.Line, tok.Column)

	// Skip any data/comment nodes between {% match %} and the first {% case %}
	for !p.isAtEnd() {
		if (p.check(lexer.TokenBlockStart) || p.check(lexer.TokenBlockStartTrim)) && p.peekBlockType() == lexer.TokenCase {
			break
		}
		if p.check(lexer.TokenText) {
			p.advance()
			continue
		}
		break
	}

	for (p.check(lexer.TokenBlockStart) || p.check(lexer.TokenBlockStartTrim)) && p.peekBlockType() == lexer.TokenCase {
		p.advance() // consume '{%'
		p.advance() // consume 'case'

		clause := &CaseClause{}
		pattern, err := p.parseCasePattern()
		if err != nil {
			return nil, err
		}
		clause.Pattern = pattern

		if p.check(lexer.TokenIf) {
			p.advance()
			guard, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			clause.Guard = guard
		}

		if err := p.consumeBlockEnd("case pattern"); err != nil {
			return nil, err
		}

		body, err := p.parseBodyUntil(lexer.TokenCase)
		if err != nil {
			return nil, err
		}
		clause.Body = body
		node.Cases = append(node.Cases, clause)
	}

	if err := p.consumeCloser(lexer.TokenEndmatch, "match"); err != nil {
		return nil, err
	}
	return node, nil
}

// parseCasePattern parses a case pattern: literal, capture name, wildcard '_',
// or a tuple/list of the same.
func (p *Parser) parseCasePattern() (ExpressionNode, error) {
	if p.check(lexer.TokenLeftParen) || p.check(lexer.TokenLeftBracket) {
		closing := lexer.TokenRightParen
		if p.check(lexer.TokenLeftBracket) {
			closing = lexer.TokenRightBracket
		}
		open := p.advance()
		var elements []ExpressionNode
		for !p.check(closing) && !p.isAtEnd() {
			elem, err := p.parseCasePattern()
			if err != nil {
				return nil, err
			}
			elements = append(elements, elem)
			if p.check(lexer.TokenComma) {
				p.advance()
			} else {
				break
			}
		}
		if !p.check(closing) {
			return nil, p.error("expected closing bracket in case pattern")
		}
		p.advance()
		return NewListNode(elements, open.Line, open.Column), nil
	}
	return p.parsePrimary()
}

// parseLetStatement parses {% let name = expr %}
func (p *Parser) parseLetStatement() (Node, error) {
	tok := p.advance() // consume 'let'
	if !p.check(lexer.TokenIdentifier) {
		return nil, p.error("expected identifier after 'let'")
	}
	name := p.advance().Value
	if !p.check(lexer.TokenAssign) {
		return nil, p.error("expected '=' in let statement")
	}
	p.advance()
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.consumeBlockEnd("let statement"); err != nil {
		return nil, err
	}
	return NewLetNode(name, value, tok.Line, tok.Column), nil
}

// parseExportStatement parses {% export name = expr %}
func (p *Parser) parseExportStatement() (Node, error) {
	tok := p.advance() // consume 'export'
	if !p.check(lexer.TokenIdentifier) {
		return nil, p.error("expected identifier after 'export'")
	}
	name := p.advance().Value
	if !p.check(lexer.TokenAssign) {
		return nil, p.error("expected '=' in export statement")
	}
	p.advance()
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.consumeBlockEnd("export statement"); err != nil {
		return nil, err
	}
	return NewExportNode(name, value, tok.Line, tok.Column), nil
}

// parseCaptureStatement parses {% capture name %}...{% end %}
func (p *Parser) parseCaptureStatement() (Node, error) {
	tok := p.advance() // consume 'capture'
	if !p.check(lexer.TokenIdentifier) {
		return nil, p.error("expected identifier after 'capture'")
	}
	name := p.advance().Value
	if err := p.consumeBlockEnd("capture statement"); err != nil {
		return nil, err
	}
	node := NewCaptureNode(name, tok.Line, tok.Column)
	body, err := p.parseBodyUntil(lexer.TokenEndcapture)
	if err != nil {
		return nil, err
	}
	node.Body = body
	if err := p.consumeCloser(lexer.TokenEndcapture, "capture"); err != nil {
		return nil, err
	}
	return node, nil
}

var cacheCounter int

// parseCacheStatement parses {% cache key [ttl=expr] %}...{% end %}
func (p *Parser) parseCacheStatement() (Node, error) {
	tok := p.advance() // consume 'cache'
	key, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	node := NewCacheNode(key, tok.Line, tok.Column)

	for p.check(lexer.TokenIdentifier) && p.peek().Value == "ttl" {
		p.advance() // consume 'ttl'
		if !p.check(lexer.TokenAssign) {
			return nil, p.error("expected '=' after ttl")
		}
		p.advance()
		ttl, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		node.TTL = ttl
	}

	if err := p.consumeBlockEnd("cache statement"); err != nil {
		return nil, err
	}
	cacheCounter++
	node.Counter = cacheCounter

	body, err := p.parseBodyUntil(lexer.TokenEndcache)
	if err != nil {
		return nil, err
	}
	node.Body = body
	if err := p.consumeCloser(lexer.TokenEndcache, "cache"); err != nil {
		return nil, err
	}
	return node, nil
}

// parseSlotStatement parses {% slot name %}[default body]{% end %}
func (p *Parser) parseSlotStatement() (Node, error) {
	tok := p.advance() // consume 'slot'
	if !p.check(lexer.TokenIdentifier) && !p.check(lexer.TokenString) {
		return nil, p.error("expected slot name")
	}
	name := p.advance().Value
	if err := p.consumeBlockEnd("slot statement"); err != nil {
		return nil, err
	}
	node := NewSlotNode(name, tok.Line, tok.Column)
	body, err := p.parseBodyUntil(lexer.TokenEndslot)
	if err != nil {
		return nil, err
	}
	node.DefaultBody = body
	if err := p.consumeCloser(lexer.TokenEndslot, "slot"); err != nil {
		return nil, err
	}
	return node, nil
}

// parseEmbedStatement parses {% embed "template" %}{% slot name %}...{% end %}{% end %}
func (p *Parser) parseEmbedStatement() (Node, error) {
	tok := p.advance() // consume 'embed'
	tmplExpr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.consumeBlockEnd("embed statement"); err != nil {
		return nil, err
	}
	node := NewEmbedNode(tmplExpr, tok.Line, tok.Column)

	for !p.isAtEnd() {
		if p.check(lexer.TokenText) {
			p.advance()
			continue
		}
		if (p.check(lexer.TokenBlockStart) || p.check(lexer.TokenBlockStartTrim)) && p.peekBlockType() == lexer.TokenSlot {
			p.advance() // {%
			p.advance() // 'slot'
			if !p.check(lexer.TokenIdentifier) && !p.check(lexer.TokenString) {
				return nil, p.error("expected slot name in embed override")
			}
			slotName := p.advance().Value
			if err := p.consumeBlockEnd("embed slot override"); err != nil {
				return nil, err
			}
			override := NewSlotOverrideNode(slotName, tok.Line, tok.Column)
			body, err := p.parseBodyUntil(lexer.TokenEndslot)
			if err != nil {
				return nil, err
			}
			override.Body = body
			if err := p.consumeCloser(lexer.TokenEndslot, "embed slot"); err != nil {
				return nil, err
			}
			node.Body = append(node.Body, override)
			continue
		}
		break
	}

	if err := p.consumeCloser(lexer.TokenEndembed, "embed"); err != nil {
		return nil, err
	}
	return node, nil
}

// parseSpacelessStatement parses {% spaceless %}...{% end %}
func (p *Parser) parseSpacelessStatement() (Node, error) {
	tok := p.advance() // consume 'spaceless'
	if err := p.consumeBlockEnd("spaceless statement"); err != nil {
		return nil, err
	}
	node := NewSpacelessNode(tok.Line, tok.Column)
	body, err := p.parseBodyUntil(lexer.TokenEndspaceless)
	if err != nil {
		return nil, err
	}
	node.Body = body
	if err := p.consumeCloser(lexer.TokenEndspaceless, "spaceless"); err != nil {
		return nil, err
	}
	return node, nil
}

// parseAsyncForStatement parses {% async for x in iter %}...{% end %}
func (p *Parser) parseAsyncForStatement() (Node, error) {
	tok := p.advance() // consume 'async'
	if !p.check(lexer.TokenFor) {
		return nil, p.error("expected 'for' after 'async'")
	}
	p.advance() // consume 'for'

	var variables []string
	if !p.check(lexer.TokenIdentifier) {
		return nil, p.error("expected loop variable after 'async for'")
	}
	variables = append(variables, p.advance().Value)
	for p.check(lexer.TokenComma) {
		p.advance()
		if !p.check(lexer.TokenIdentifier) {
			return nil, p.error("expected identifier after ','")
		}
		variables = append(variables, p.advance().Value)
	}

	if !p.check(lexer.TokenIn) {
		return nil, p.error("expected 'in' in async for statement")
	}
	p.advance()

	iterable, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	node := NewAsyncForNode(variables, iterable, tok.Line, tok.Column)

	if p.check(lexer.TokenIf) {
		p.advance()
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		node.Condition = cond
	}

	if p.check(lexer.TokenRecursive) {
		return nil, p.error("recursive for is not permitted inside async for")
	}

	if err := p.consumeBlockEnd("async for"); err != nil {
		return nil, err
	}

	body, err := p.parseBodyUntil(lexer.TokenElse, lexer.TokenEndfor)
	if err != nil {
		return nil, err
	}
	node.Body = body

	if (p.check(lexer.TokenBlockStart) || p.check(lexer.TokenBlockStartTrim)) && p.peekBlockType() == lexer.TokenElse {
		p.advance() // '{%'
		p.advance() // 'else'
		if err := p.consumeBlockEnd("async for else"); err != nil {
			return nil, err
		}
		elseBody, err := p.parseBodyUntil(lexer.TokenEndfor)
		if err != nil {
			return nil, err
		}
		node.Else = elseBody
	}

	if err := p.consumeCloser(lexer.TokenEndfor, "async for"); err != nil {
		return nil, err
	}
	return node, nil
}
