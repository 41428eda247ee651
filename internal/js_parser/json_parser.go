package js_parser

import (
	"fmt"

	"github.com/evanw/esmloader/internal/helpers"
	"github.com/evanw/esmloader/internal/js_lexer"
	"github.com/evanw/esmloader/internal/logger"
)

type jsonParser struct {
	log       logger.Log
	source    logger.Source
	lexer     js_lexer.Lexer
	hasErrors bool
}

func (p *jsonParser) parseMaybeTrailingComma(closeToken js_lexer.T) bool {
	commaRange := p.lexer.Range()
	p.lexer.Expect(js_lexer.TComma)

	if p.lexer.Token == closeToken {
		p.log.AddRangeError(&p.source, commaRange, "JSON does not support trailing commas")
		p.hasErrors = true
		return false
	}

	return true
}

func (p *jsonParser) parseValue() {
	switch p.lexer.Token {
	case js_lexer.TFalse, js_lexer.TTrue, js_lexer.TNull,
		js_lexer.TStringLiteral, js_lexer.TNumericLiteral:
		p.lexer.Next()

	case js_lexer.TMinus:
		p.lexer.Next()
		p.lexer.Expect(js_lexer.TNumericLiteral)

	case js_lexer.TOpenBracket:
		p.lexer.Next()
		count := 0

		for p.lexer.Token != js_lexer.TCloseBracket {
			if count > 0 && !p.parseMaybeTrailingComma(js_lexer.TCloseBracket) {
				break
			}
			p.parseValue()
			count++
		}

		p.lexer.Expect(js_lexer.TCloseBracket)

	case js_lexer.TOpenBrace:
		p.lexer.Next()
		duplicates := make(map[string]bool)

		for p.lexer.Token != js_lexer.TCloseBrace {
			if len(duplicates) > 0 && !p.parseMaybeTrailingComma(js_lexer.TCloseBrace) {
				break
			}

			keyRange := p.lexer.Range()
			keyText := helpers.UTF16ToString(p.lexer.StringLiteral)
			p.lexer.Expect(js_lexer.TStringLiteral)

			// Warn about duplicate keys
			if duplicates[keyText] {
				p.log.AddRangeWarning(&p.source, keyRange, fmt.Sprintf("Duplicate key: %q", keyText))
			} else {
				duplicates[keyText] = true
			}

			p.lexer.Expect(js_lexer.TColon)
			p.parseValue()
		}

		p.lexer.Expect(js_lexer.TCloseBrace)

	default:
		p.lexer.Unexpected()
	}
}

// ParseJSON checks that the source is a single JSON value. The compiler
// embeds the original text, so only the diagnostics matter.
func ParseJSON(log logger.Log, source logger.Source) (ok bool) {
	ok = true
	defer func() {
		r := recover()
		if _, isLexerPanic := r.(js_lexer.LexerPanic); isLexerPanic {
			ok = false
		} else if r != nil {
			panic(r)
		}
	}()

	p := &jsonParser{
		log:    log,
		source: source,
		lexer:  js_lexer.NewLexerJSON(log, source),
	}

	p.parseValue()
	p.lexer.Expect(js_lexer.TEndOfFile)
	return !p.hasErrors
}
