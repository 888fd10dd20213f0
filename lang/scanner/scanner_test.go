package scanner

import (
	"testing"

	"github.com/mna/iii/lang/token"
	"github.com/stretchr/testify/require"
)

func scanAll(src string) []Token {
	s := New(src)
	var toks []Token
	for {
		tok := s.Scan()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks
		}
	}
}

func TestScanPunctuationAndOperators(t *testing.T) {
	toks := scanAll("(){},.-+;*/** ! != = == < <= > >=")
	want := []token.Token{
		token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE, token.COMMA,
		token.DOT, token.MINUS, token.PLUS, token.SEMICOLON, token.STAR,
		token.SLASH, token.STAR_STAR, token.BANG, token.BANG_EQUAL, token.EQUAL, token.EQUAL_EQUAL,
		token.LESS, token.LESS_EQUAL, token.GREATER, token.GREATER_EQUAL, token.EOF,
	}
	require.Len(t, toks, len(want))
	for i, w := range want {
		require.Equalf(t, w, toks[i].Type, "token %d", i)
	}
}

func TestScanKeywordsAndIdents(t *testing.T) {
	toks := scanAll("var x = fn class this super nil true false and or if else for while return notakeyword")
	wantTypes := []token.Token{
		token.VAR, token.IDENT, token.EQUAL, token.FN, token.CLASS, token.THIS,
		token.SUPER, token.NIL, token.TRUE, token.FALSE, token.AND, token.OR,
		token.IF, token.ELSE, token.FOR, token.WHILE, token.RETURN, token.IDENT,
		token.EOF,
	}
	require.Len(t, toks, len(wantTypes))
	for i, w := range wantTypes {
		require.Equalf(t, w, toks[i].Type, "token %d (%s)", i, toks[i].Lexeme)
	}
	require.Equal(t, "x", toks[1].Lexeme)
	require.Equal(t, "notakeyword", toks[len(toks)-2].Lexeme)
}

func TestScanNumbersAndStrings(t *testing.T) {
	toks := scanAll(`123 3.14 "hello world"`)
	require.Equal(t, token.NUMBER, toks[0].Type)
	require.Equal(t, "123", toks[0].Lexeme)
	require.Equal(t, token.NUMBER, toks[1].Type)
	require.Equal(t, "3.14", toks[1].Lexeme)
	require.Equal(t, token.STRING, toks[2].Type)
	require.Equal(t, `"hello world"`, toks[2].Lexeme)
}

func TestScanLineComments(t *testing.T) {
	toks := scanAll("var x = 1; // this is a comment\nvar y = 2;")
	var lines []int
	for _, tk := range toks {
		if tk.Type != token.EOF {
			lines = append(lines, tk.Line)
		}
	}
	require.Equal(t, 1, lines[0])
	require.Equal(t, 2, lines[len(lines)-1])
}

func TestScanUnterminatedString(t *testing.T) {
	toks := scanAll(`"unterminated`)
	require.Equal(t, token.ILLEGAL, toks[0].Type)
	require.Equal(t, "unterminated string", toks[0].Lexeme)
}

func TestScanTracksLineNumbers(t *testing.T) {
	toks := scanAll("var a = 1;\nvar b = 2;\nvar c = 3;")
	require.Equal(t, 1, toks[0].Line)
	// 5 tokens per statement (var, ident, =, number, ;)
	require.Equal(t, 2, toks[5].Line)
	require.Equal(t, 3, toks[10].Line)
}
