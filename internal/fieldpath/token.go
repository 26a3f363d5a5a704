// Package fieldpath implements the dependency path expression language used
// to locate a Field relative to a node in a catalog tree.
//
// A path is a dot-separated sequence of navigation segments ending in the
// target field name:
//
//	mass                 field "mass" on the path node itself
//	^.mass               parent's "mass"
//	^^.mass              grandparent's "mass"
//	^cluster.mass        nearest ancestor named/typed "cluster", then "mass"
//	0.mass               first child's "mass"
//	core.mass            child named "core", then "mass"
//	.mass                step into the first child, then "mass"
package fieldpath

// TokenType represents the type of lexical token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIllegal

	TokenIdent // segment or field names
	TokenInt   // child index

	TokenCaret // ^
	TokenDot   // .
)

// String returns the string representation of the token type.
func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenIllegal:
		return "ILLEGAL"
	case TokenIdent:
		return "IDENT"
	case TokenInt:
		return "INT"
	case TokenCaret:
		return "^"
	case TokenDot:
		return "."
	default:
		return "UNKNOWN"
	}
}

// Token is a single lexical token with its position in the input.
type Token struct {
	Type    TokenType
	Literal string
	Pos     int
}
