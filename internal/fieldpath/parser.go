package fieldpath

import (
	"fmt"
	"strconv"
	"strings"
)

// StepKind identifies a navigation step.
type StepKind int

const (
	// StepUp moves to the parent node.
	StepUp StepKind = iota
	// StepUpUntil moves to the parent, then keeps moving up until a node
	// matching Name is found.
	StepUpUntil
	// StepChildFirst moves into the first child.
	StepChildFirst
	// StepChildIndex moves into the child at position Index.
	StepChildIndex
	// StepChildNamed searches the direct children for one matching Name.
	StepChildNamed
)

// String returns a readable form for error messages.
func (k StepKind) String() string {
	switch k {
	case StepUp:
		return "up"
	case StepUpUntil:
		return "up-until"
	case StepChildFirst:
		return "first-child"
	case StepChildIndex:
		return "child-index"
	case StepChildNamed:
		return "child-named"
	default:
		return "unknown"
	}
}

// Step is one navigation operation of a parsed path.
type Step struct {
	Kind  StepKind
	Name  string // StepUpUntil, StepChildNamed
	Index int    // StepChildIndex
}

// Path is a parsed path expression: navigation steps followed by the name of
// the target field at the landing node.
type Path struct {
	Steps []Step
	Field string
}

// String reassembles the canonical text of the path.
func (p *Path) String() string {
	var b strings.Builder
	for _, s := range p.Steps {
		switch s.Kind {
		case StepUp:
			b.WriteString("^")
			// A bare up run is its own segment; the separator is written
			// by the following segment or the field name below.
		case StepUpUntil:
			b.WriteString("^" + s.Name)
		case StepChildIndex:
			b.WriteString(strconv.Itoa(s.Index))
		case StepChildNamed:
			b.WriteString(s.Name)
		case StepChildFirst:
			// Rendered as an empty segment.
		}
		b.WriteString(".")
	}
	b.WriteString(p.Field)
	return b.String()
}

// Parser parses path tokens into a Path.
type Parser struct {
	lexer   *Lexer
	current Token
	peek    Token
}

// NewParser creates a parser for the input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	// Prime the parser with two tokens
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a full path expression.
// Grammar, with segments separated by ".":
//
//	path    = { segment "." } field
//	segment = caret-run [ name ]   (up k times; with name, up-until-match)
//	        | int                  (child by position)
//	        | name                 (child search by name)
//	        |                      (empty: first child)
//	field   = name
func Parse(input string) (*Path, error) {
	if strings.TrimSpace(input) != input {
		return nil, fmt.Errorf("path %q has surrounding whitespace", input)
	}
	if input == "" {
		return nil, fmt.Errorf("empty path")
	}
	return NewParser(input).Parse()
}

// Parse consumes the token stream and returns the Path.
func (p *Parser) Parse() (*Path, error) {
	path := &Path{}

	for {
		done, err := p.parseSegment(path)
		if err != nil {
			return nil, err
		}
		if done {
			return path, nil
		}
	}
}

// parseSegment parses one dot-separated segment, appending its navigation
// steps to path. It reports done=true once the trailing field name has been
// consumed.
func (p *Parser) parseSegment(path *Path) (bool, error) {
	// Count leading carets.
	ups := 0
	for p.current.Type == TokenCaret {
		ups++
		p.nextToken()
	}

	switch p.current.Type {
	case TokenIdent:
		name := p.current.Literal
		p.nextToken()
		switch p.current.Type {
		case TokenEOF:
			// Final segment: any carets are plain parent steps and the name
			// is the target field ("^^mass").
			for i := 0; i < ups; i++ {
				path.Steps = append(path.Steps, Step{Kind: StepUp})
			}
			path.Field = name
			return true, nil
		case TokenDot:
			p.nextToken()
			if ups > 0 {
				// "^name." navigates upward until a match; extra carets are
				// plain parent steps taken first.
				for i := 0; i < ups-1; i++ {
					path.Steps = append(path.Steps, Step{Kind: StepUp})
				}
				path.Steps = append(path.Steps, Step{Kind: StepUpUntil, Name: name})
			} else {
				path.Steps = append(path.Steps, Step{Kind: StepChildNamed, Name: name})
			}
			return false, nil
		default:
			return false, p.unexpected()
		}

	case TokenInt:
		if ups > 0 {
			return false, fmt.Errorf("child index cannot follow %q at position %d", "^", p.current.Pos)
		}
		n, err := strconv.Atoi(p.current.Literal)
		if err != nil {
			return false, fmt.Errorf("invalid child index %q: %w", p.current.Literal, err)
		}
		p.nextToken()
		if p.current.Type != TokenDot {
			return false, fmt.Errorf("path cannot end in a child index")
		}
		p.nextToken()
		path.Steps = append(path.Steps, Step{Kind: StepChildIndex, Index: n})
		return false, nil

	case TokenDot:
		// Empty segment before the dot: bare caret run, or a step into the
		// first child.
		p.nextToken()
		if ups > 0 {
			for i := 0; i < ups; i++ {
				path.Steps = append(path.Steps, Step{Kind: StepUp})
			}
		} else {
			path.Steps = append(path.Steps, Step{Kind: StepChildFirst})
		}
		return false, nil

	case TokenEOF:
		return false, fmt.Errorf("path is missing a field name")

	default:
		return false, p.unexpected()
	}
}

func (p *Parser) nextToken() {
	p.current = p.peek
	p.peek = p.lexer.NextToken()
}

func (p *Parser) unexpected() error {
	if p.current.Type == TokenIllegal {
		return fmt.Errorf("illegal character %q at position %d", p.current.Literal, p.current.Pos)
	}
	return fmt.Errorf("unexpected token %q at position %d", p.current.Literal, p.current.Pos)
}
