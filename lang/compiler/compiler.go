// Package compiler implements the iii front end: a single-pass Pratt
// parser that resolves lexical scope (locals, upvalues, classes) and emits
// bytecode directly, with no intermediate AST (spec §4.2). Compile and
// Interpret are the package's two entry points; Interpret also drives the
// lang/vm dispatch loop, since it is the one place both packages are
// visible without an import cycle (lang/compiler depends on lang/vm for
// the Value/Object/Chunk model it emits into).
package compiler

import (
	"context"
	"strconv"

	"github.com/dolthub/swiss"
	"github.com/mna/iii/lang/scanner"
	"github.com/mna/iii/lang/token"
	"github.com/mna/iii/lang/vm"
)

// precedence climbing order, spec §4.2.
type precedence uint8

const (
	precNone precedence = iota
	precAssignment
	precOr
	precAnd
	precEquality
	precComparison
	precTerm
	precFactor
	precPower
	precUnary
	precCall
	precPrimary
)

type parseFn func(p *parser, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

var rules [256]parseRule

func rule(tok token.Token, prefix, infix parseFn, prec precedence) {
	rules[tok] = parseRule{prefix: prefix, infix: infix, precedence: prec}
}

func init() {
	rule(token.LPAREN, (*parser).grouping, (*parser).call, precCall)
	rule(token.DOT, nil, (*parser).dot, precCall)
	rule(token.MINUS, (*parser).unary, (*parser).binary, precTerm)
	rule(token.PLUS, nil, (*parser).binary, precTerm)
	rule(token.SLASH, nil, (*parser).binary, precFactor)
	rule(token.STAR, nil, (*parser).binary, precFactor)
	rule(token.STAR_STAR, nil, (*parser).binary, precPower)
	rule(token.BANG, (*parser).unary, nil, precNone)
	rule(token.BANG_EQUAL, nil, (*parser).binary, precEquality)
	rule(token.EQUAL_EQUAL, nil, (*parser).binary, precEquality)
	rule(token.GREATER, nil, (*parser).binary, precComparison)
	rule(token.GREATER_EQUAL, nil, (*parser).binary, precComparison)
	rule(token.LESS, nil, (*parser).binary, precComparison)
	rule(token.LESS_EQUAL, nil, (*parser).binary, precComparison)
	rule(token.IDENT, (*parser).variable, nil, precNone)
	rule(token.STRING, (*parser).stringLit, nil, precNone)
	rule(token.NUMBER, (*parser).number, nil, precNone)
	rule(token.AND, nil, (*parser).and_, precAnd)
	rule(token.OR, nil, (*parser).or_, precOr)
	rule(token.FALSE, (*parser).literal, nil, precNone)
	rule(token.TRUE, (*parser).literal, nil, precNone)
	rule(token.NIL, (*parser).literal, nil, precNone)
	rule(token.THIS, (*parser).this_, nil, precNone)
	rule(token.SUPER, (*parser).super_, nil, precNone)
}

type funcType uint8

const (
	typeFunction funcType = iota
	typeScript
	typeMethod
	typeInitializer
)

type localVar struct {
	name       string
	depth      int
	isCaptured bool
}

type upvalueRef struct {
	index   uint16
	isLocal bool
}

// funcCompiler is one nested compilation context: one per function body
// (including the implicit top-level script), chained through enclosing so
// resolveUpvalue can walk outward. This fuses the teacher's separate
// resolver pass directly into the compiler's own bookkeeping (spec §9):
// locals, their scope depth and "declared but not defined" sentinel, and
// the deduplicated upvalue list are exactly the state a standalone
// resolver would compute, just populated as we parse instead of in a
// second pass over a persisted tree.
type funcCompiler struct {
	enclosing *funcCompiler
	function  *vm.ObjFunction
	typ       funcType

	locals     []localVar
	upvalues   []upvalueRef
	scopeDepth int

	// constant-pool dedup, scoped to this function's own chunk
	stringConstants *swiss.Map[string, uint16]
	numberConstants *swiss.Map[float64, uint16]
}

// classCompiler tracks nested class declarations, so "this" and "super"
// can be validated and a class's own superclass status is known to
// super_'s parse rule.
type classCompiler struct {
	enclosing     *classCompiler
	hasSuperclass bool
}

// parser drives the scanner and builds bytecode into the current
// funcCompiler's chunk.
type parser struct {
	v  *vm.VM
	sc *scanner.Scanner

	previous scanner.Token
	current  scanner.Token

	hadError  bool
	panicMode bool
	errors    []vm.CompileIssue

	cur   *funcCompiler
	class *classCompiler
}

// Compile parses and compiles source into a top-level script function, the
// same object shape original_source/src/compiler.c's compile() returns:
// callable as a zero-argument closure by lang/vm.
func Compile(v *vm.VM, source string) (*vm.ObjFunction, error) {
	p := &parser{
		v:  v,
		sc: scanner.New(source),
	}
	p.pushFuncCompiler(typeScript, "")
	p.advance()
	for !p.match(token.EOF) {
		p.declaration()
	}
	fn := p.endCompiler()
	if len(p.errors) > 0 {
		return nil, &vm.CompileError{Errors: p.errors}
	}
	return fn, nil
}

// Interpret compiles and runs source against v, the single top-level entry
// point spec §4.3 describes: Interpret(ctx, source). It lives here rather
// than in lang/vm because producing the function to run requires the
// compiler, and lang/vm cannot import lang/compiler without a cycle.
func Interpret(ctx context.Context, v *vm.VM, source string) (vm.InterpretResult, error) {
	fn, err := Compile(v, source)
	if err != nil {
		return vm.InterpretCompileError, err
	}
	return v.Run(ctx, fn)
}

func (p *parser) pushFuncCompiler(typ funcType, name string) {
	fn := p.v.NewFunction()
	if name != "" {
		fn.Name = p.v.InternString(name)
	}
	p.v.PushCompilerRoot(fn)
	fc := &funcCompiler{enclosing: p.cur, function: fn, typ: typ,
		stringConstants: swiss.NewMap[string, uint16](16),
		numberConstants: swiss.NewMap[float64, uint16](16)}
	// Slot zero of every frame is reserved: the receiver for methods and
	// initializers, an unnamed placeholder for plain functions and the
	// script (spec §4.2/§4.3's call-frame layout).
	receiverName := ""
	if typ == typeMethod || typ == typeInitializer {
		receiverName = "this"
	}
	fc.locals = append(fc.locals, localVar{name: receiverName, depth: 0})
	p.cur = fc
}

func (p *parser) endCompiler() *vm.ObjFunction {
	p.emitReturn()
	fn := p.cur.function
	fn.UpvalueCount = len(p.cur.upvalues)
	p.v.PopCompilerRoot()
	p.cur = p.cur.enclosing
	return fn
}

func (p *parser) chunk() *vm.Chunk { return &p.cur.function.Chunk }

// --- token stream -----------------------------------------------------

func (p *parser) advance() {
	p.previous = p.current
	for {
		p.current = p.sc.Scan()
		if p.current.Type != token.ILLEGAL {
			break
		}
		p.errorAtCurrent(p.current.Lexeme)
	}
}

func (p *parser) check(t token.Token) bool { return p.current.Type == t }

func (p *parser) match(t token.Token) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

func (p *parser) consume(t token.Token, msg string) {
	if p.current.Type == t {
		p.advance()
		return
	}
	p.errorAtCurrent(msg)
}

func (p *parser) errorAtCurrent(msg string) { p.errorAt(p.current, msg) }
func (p *parser) error(msg string)          { p.errorAt(p.previous, msg) }

func (p *parser) errorAt(tok scanner.Token, msg string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.hadError = true
	where := "at '" + tok.Lexeme + "'"
	if tok.Type == token.EOF {
		where = "at end"
	} else if tok.Type == token.ILLEGAL {
		where = ""
	}
	full := msg
	if where != "" {
		full = where + ": " + msg
	}
	p.errors = append(p.errors, vm.CompileIssue{Line: tok.Line, Message: full})
}

// synchronize skips tokens until a likely statement boundary, so one
// reported error doesn't cascade into a wall of follow-on errors (spec
// §4.2).
func (p *parser) synchronize() {
	p.panicMode = false
	for p.current.Type != token.EOF {
		if p.previous.Type == token.SEMICOLON {
			return
		}
		switch p.current.Type {
		case token.CLASS, token.FN, token.VAR, token.FOR, token.IF, token.WHILE, token.RETURN:
			return
		}
		p.advance()
	}
}

// --- declarations and statements ---------------------------------------

func (p *parser) declaration() {
	switch {
	case p.match(token.CLASS):
		p.classDeclaration()
	case p.match(token.FN):
		p.funDeclaration()
	case p.match(token.VAR):
		p.varDeclaration()
	default:
		p.statement()
	}
	if p.panicMode {
		p.synchronize()
	}
}

func (p *parser) classDeclaration() {
	p.consume(token.IDENT, "expect class name")
	nameTok := p.previous
	nameConstant := p.identifierConstant(nameTok.Lexeme)
	p.declareVariable(nameTok.Lexeme)
	p.emitU16(vm.OpClass, nameConstant)
	p.defineVariable(nameConstant)

	cc := &classCompiler{enclosing: p.class}
	p.class = cc

	if p.match(token.LESS) {
		p.consume(token.IDENT, "expect superclass name")
		superTok := p.previous
		p.variableNamed(superTok)
		if superTok.Lexeme == nameTok.Lexeme {
			p.error("a class can't inherit from itself")
		}
		p.beginScope()
		p.addLocal("super")
		p.markInitialized()
		p.variableNamed(nameTok)
		p.emitByte(vm.OpInherit)
		cc.hasSuperclass = true
	}

	p.variableNamed(nameTok)
	p.consume(token.LBRACE, "expect '{' before class body")
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		p.method()
	}
	p.consume(token.RBRACE, "expect '}' after class body")
	p.emitByte(vm.OpPop)

	if cc.hasSuperclass {
		p.endScope()
	}
	p.class = p.class.enclosing
}

func (p *parser) method() {
	p.consume(token.IDENT, "expect method name")
	name := p.previous.Lexeme
	constant := p.identifierConstant(name)
	typ := typeMethod
	if name == "init" {
		typ = typeInitializer
	}
	p.function(typ)
	p.emitU16(vm.OpMethod, constant)
}

func (p *parser) funDeclaration() {
	global := p.parseVariable("expect function name")
	p.markInitialized()
	p.function(typeFunction)
	p.defineVariable(global)
}

func (p *parser) function(typ funcType) {
	name := p.previous.Lexeme
	p.pushFuncCompiler(typ, name)
	p.beginScope()

	p.consume(token.LPAREN, "expect '(' after function name")
	if !p.check(token.RPAREN) {
		for {
			p.cur.function.Arity++
			if p.cur.function.Arity > 255 {
				p.errorAtCurrent("can't have more than 255 parameters")
			}
			constant := p.parseVariable("expect parameter name")
			p.defineVariable(constant)
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RPAREN, "expect ')' after parameters")
	p.consume(token.LBRACE, "expect '{' before function body")
	p.block()

	upvalues := append([]upvalueRef(nil), p.cur.upvalues...)
	fn := p.endCompiler()

	idx := p.addConstant(vm.Object(fn))
	p.emitU16(vm.OpClosure, idx)
	for _, uv := range upvalues {
		isLocal := byte(0)
		if uv.isLocal {
			isLocal = 1
		}
		p.emitRawByte(isLocal)
		p.chunk().WriteU16(uv.index, p.line())
	}
}

func (p *parser) varDeclaration() {
	global := p.parseVariable("expect variable name")
	if p.match(token.EQUAL) {
		p.expression()
	} else {
		p.emitByte(vm.OpNil)
	}
	p.consume(token.SEMICOLON, "expect ';' after variable declaration")
	p.defineVariable(global)
}

func (p *parser) statement() {
	switch {
	case p.match(token.FOR):
		p.forStatement()
	case p.match(token.IF):
		p.ifStatement()
	case p.match(token.RETURN):
		p.returnStatement()
	case p.match(token.WHILE):
		p.whileStatement()
	case p.match(token.LBRACE):
		p.beginScope()
		p.block()
		p.endScope()
	default:
		p.expressionStatement()
	}
}

func (p *parser) block() {
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		p.declaration()
	}
	p.consume(token.RBRACE, "expect '}' after block")
}

func (p *parser) expressionStatement() {
	p.expression()
	p.consume(token.SEMICOLON, "expect ';' after expression")
	p.emitByte(vm.OpPop)
}

func (p *parser) ifStatement() {
	p.consume(token.LPAREN, "expect '(' after 'if'")
	p.expression()
	p.consume(token.RPAREN, "expect ')' after condition")

	thenJump := p.emitJump(vm.OpJumpIfFalse)
	p.emitByte(vm.OpPop)
	p.statement()

	elseJump := p.emitJump(vm.OpJump)
	p.patchJump(thenJump)
	p.emitByte(vm.OpPop)

	if p.match(token.ELSE) {
		p.statement()
	}
	p.patchJump(elseJump)
}

func (p *parser) whileStatement() {
	loopStart := len(p.chunk().Code)
	p.consume(token.LPAREN, "expect '(' after 'while'")
	p.expression()
	p.consume(token.RPAREN, "expect ')' after condition")

	exitJump := p.emitJump(vm.OpJumpIfFalse)
	p.emitByte(vm.OpPop)
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emitByte(vm.OpPop)
}

// forStatement desugars to a while loop, the same transform
// original_source/src/compiler.c's forStatement performs: no dedicated
// opcode, just initializer + condition-guarded loop + increment appended
// before the jump back.
func (p *parser) forStatement() {
	p.beginScope()
	p.consume(token.LPAREN, "expect '(' after 'for'")
	switch {
	case p.match(token.SEMICOLON):
		// no initializer
	case p.match(token.VAR):
		p.varDeclaration()
	default:
		p.expressionStatement()
	}

	loopStart := len(p.chunk().Code)
	exitJump := -1
	if !p.match(token.SEMICOLON) {
		p.expression()
		p.consume(token.SEMICOLON, "expect ';' after loop condition")
		exitJump = p.emitJump(vm.OpJumpIfFalse)
		p.emitByte(vm.OpPop)
	}

	if !p.match(token.RPAREN) {
		bodyJump := p.emitJump(vm.OpJump)
		incrementStart := len(p.chunk().Code)
		p.expression()
		p.emitByte(vm.OpPop)
		p.consume(token.RPAREN, "expect ')' after for clauses")

		p.emitLoop(loopStart)
		loopStart = incrementStart
		p.patchJump(bodyJump)
	}

	p.statement()
	p.emitLoop(loopStart)

	if exitJump != -1 {
		p.patchJump(exitJump)
		p.emitByte(vm.OpPop)
	}
	p.endScope()
}

func (p *parser) returnStatement() {
	if p.cur.typ == typeScript {
		p.error("can't return from top-level code")
	}
	if p.match(token.SEMICOLON) {
		p.emitReturn()
		return
	}
	if p.cur.typ == typeInitializer {
		p.error("can't return a value from an initializer")
	}
	p.expression()
	p.consume(token.SEMICOLON, "expect ';' after return value")
	p.emitByte(vm.OpReturn)
}

// --- scopes and variables -----------------------------------------------

func (p *parser) beginScope() { p.cur.scopeDepth++ }

func (p *parser) endScope() {
	p.cur.scopeDepth--
	for len(p.cur.locals) > 0 && p.cur.locals[len(p.cur.locals)-1].depth > p.cur.scopeDepth {
		last := p.cur.locals[len(p.cur.locals)-1]
		if last.isCaptured {
			p.emitByte(vm.OpCloseUpvalue)
		} else {
			p.emitByte(vm.OpPop)
		}
		p.cur.locals = p.cur.locals[:len(p.cur.locals)-1]
	}
}

func (p *parser) parseVariable(msg string) uint16 {
	p.consume(token.IDENT, msg)
	name := p.previous.Lexeme
	p.declareVariable(name)
	if p.cur.scopeDepth > 0 {
		return 0
	}
	return p.identifierConstant(name)
}

func (p *parser) declareVariable(name string) {
	if p.cur.scopeDepth == 0 {
		return
	}
	for i := len(p.cur.locals) - 1; i >= 0; i-- {
		local := p.cur.locals[i]
		if local.depth != -1 && local.depth < p.cur.scopeDepth {
			break
		}
		if local.name == name {
			p.error("already a variable with this name in this scope")
		}
	}
	p.addLocal(name)
}

func (p *parser) addLocal(name string) {
	if len(p.cur.locals) >= 1<<16 {
		p.error("too many local variables in function")
		return
	}
	p.cur.locals = append(p.cur.locals, localVar{name: name, depth: -1})
}

func (p *parser) markInitialized() {
	if p.cur.scopeDepth == 0 {
		return
	}
	p.cur.locals[len(p.cur.locals)-1].depth = p.cur.scopeDepth
}

func (p *parser) defineVariable(global uint16) {
	if p.cur.scopeDepth > 0 {
		p.markInitialized()
		return
	}
	p.emitU16(vm.OpDefineGlobal, global)
}

// resolveLocal implements spec §4.2's local-resolution step: search
// innermost-out, and catch "var x = x;" style self-reference via the
// depth==-1 sentinel for a declared-but-not-yet-defined local.
func (p *parser) resolveLocal(fc *funcCompiler, name string) int {
	for i := len(fc.locals) - 1; i >= 0; i-- {
		if fc.locals[i].name == name {
			if fc.locals[i].depth == -1 {
				p.error("can't read local variable in its own initializer")
			}
			return i
		}
	}
	return -1
}

func (p *parser) resolveUpvalue(fc *funcCompiler, name string) int {
	if fc.enclosing == nil {
		return -1
	}
	if local := p.resolveLocal(fc.enclosing, name); local != -1 {
		fc.enclosing.locals[local].isCaptured = true
		return p.addUpvalue(fc, uint16(local), true)
	}
	if up := p.resolveUpvalue(fc.enclosing, name); up != -1 {
		return p.addUpvalue(fc, uint16(up), false)
	}
	return -1
}

func (p *parser) addUpvalue(fc *funcCompiler, index uint16, isLocal bool) int {
	for i, uv := range fc.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(fc.upvalues) >= 1<<16 {
		p.error("too many closure variables in function")
		return 0
	}
	fc.upvalues = append(fc.upvalues, upvalueRef{index: index, isLocal: isLocal})
	return len(fc.upvalues) - 1
}

// addConstant appends v to the current chunk's constant pool, reporting a
// compile error instead of letting the pool exceed the 16-bit operand
// width every constant-referencing opcode addresses it with.
func (p *parser) addConstant(v vm.Value) uint16 {
	idx, ok := p.chunk().AddConstant(v)
	if !ok {
		p.error("too many constants in one chunk")
		return 0
	}
	return idx
}

func (p *parser) identifierConstant(name string) uint16 {
	if idx, ok := p.cur.stringConstants.Get(name); ok {
		return idx
	}
	idx := p.addConstant(vm.Object(p.v.InternString(name)))
	p.cur.stringConstants.Put(name, idx)
	return idx
}

// --- expressions ---------------------------------------------------------

func (p *parser) expression() { p.parsePrecedence(precAssignment) }

func (p *parser) parsePrecedence(prec precedence) {
	p.advance()
	prefix := rules[p.previous.Type].prefix
	if prefix == nil {
		p.error("expect expression")
		return
	}
	canAssign := prec <= precAssignment
	prefix(p, canAssign)

	for prec <= rules[p.current.Type].precedence {
		p.advance()
		infix := rules[p.previous.Type].infix
		infix(p, canAssign)
	}

	if canAssign && p.match(token.EQUAL) {
		p.error("invalid assignment target")
	}
}

func (p *parser) grouping(_ bool) {
	p.expression()
	p.consume(token.RPAREN, "expect ')' after expression")
}

func (p *parser) unary(_ bool) {
	opType := p.previous.Type
	p.parsePrecedence(precUnary)
	switch opType {
	case token.BANG:
		p.emitByte(vm.OpNot)
	case token.MINUS:
		p.emitByte(vm.OpNegate)
	}
}

func (p *parser) binary(_ bool) {
	opType := p.previous.Type
	r := rules[opType]
	// '**' is right-associative (1 ** 2 ** 3 == 1 ** (2 ** 3)), so its
	// right-hand operand is parsed at the same precedence, not one above.
	nextPrec := r.precedence + 1
	if opType == token.STAR_STAR {
		nextPrec = r.precedence
	}
	p.parsePrecedence(nextPrec)
	switch opType {
	case token.BANG_EQUAL:
		p.emitByte(vm.OpEqual)
		p.emitByte(vm.OpNot)
	case token.EQUAL_EQUAL:
		p.emitByte(vm.OpEqual)
	case token.GREATER:
		p.emitByte(vm.OpGreater)
	case token.GREATER_EQUAL:
		p.emitByte(vm.OpLess)
		p.emitByte(vm.OpNot)
	case token.LESS:
		p.emitByte(vm.OpLess)
	case token.LESS_EQUAL:
		p.emitByte(vm.OpGreater)
		p.emitByte(vm.OpNot)
	case token.PLUS:
		p.emitByte(vm.OpAdd)
	case token.MINUS:
		p.emitByte(vm.OpSubtract)
	case token.STAR:
		p.emitByte(vm.OpMultiply)
	case token.SLASH:
		p.emitByte(vm.OpDivide)
	case token.STAR_STAR:
		p.emitByte(vm.OpPower)
	}
}

func (p *parser) call(_ bool) {
	argCount := p.argumentList()
	p.emitByte(vm.OpCall)
	p.emitRawByte(argCount)
}

func (p *parser) argumentList() byte {
	count := 0
	if !p.check(token.RPAREN) {
		for {
			p.expression()
			if count == 255 {
				p.error("can't have more than 255 arguments")
			}
			count++
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RPAREN, "expect ')' after arguments")
	return byte(count)
}

func (p *parser) dot(canAssign bool) {
	p.consume(token.IDENT, "expect property name after '.'")
	name := p.identifierConstant(p.previous.Lexeme)
	switch {
	case canAssign && p.match(token.EQUAL):
		p.expression()
		p.emitU16(vm.OpSetProperty, name)
	case p.match(token.LPAREN):
		argCount := p.argumentList()
		p.emitU16(vm.OpInvoke, name)
		p.emitRawByte(argCount)
	default:
		p.emitU16(vm.OpGetProperty, name)
	}
}

func (p *parser) and_(_ bool) {
	endJump := p.emitJump(vm.OpJumpIfFalse)
	p.emitByte(vm.OpPop)
	p.parsePrecedence(precAnd)
	p.patchJump(endJump)
}

func (p *parser) or_(_ bool) {
	elseJump := p.emitJump(vm.OpJumpIfFalse)
	endJump := p.emitJump(vm.OpJump)
	p.patchJump(elseJump)
	p.emitByte(vm.OpPop)
	p.parsePrecedence(precOr)
	p.patchJump(endJump)
}

func (p *parser) number(_ bool) {
	lexeme := p.previous.Lexeme
	if idx, ok := p.cur.numberConstants.Get(mustParseFloat(lexeme)); ok {
		p.emitU16(vm.OpConstant, idx)
		return
	}
	value := mustParseFloat(lexeme)
	idx := p.addConstant(vm.Number(value))
	p.cur.numberConstants.Put(value, idx)
	p.emitU16(vm.OpConstant, idx)
}

func mustParseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func (p *parser) stringLit(_ bool) {
	raw := p.previous.Lexeme
	s := raw[1 : len(raw)-1] // strip the surrounding quotes; no escapes (spec §4.1)
	if idx, ok := p.cur.stringConstants.Get(s); ok {
		p.emitU16(vm.OpConstant, idx)
		return
	}
	str := p.v.InternString(s)
	idx := p.addConstant(vm.Object(str))
	p.cur.stringConstants.Put(s, idx)
	p.emitU16(vm.OpConstant, idx)
}

func (p *parser) literal(_ bool) {
	switch p.previous.Type {
	case token.FALSE:
		p.emitByte(vm.OpFalse)
	case token.NIL:
		p.emitByte(vm.OpNil)
	case token.TRUE:
		p.emitByte(vm.OpTrue)
	}
}

func (p *parser) variable(canAssign bool) { p.namedVariable(p.previous, canAssign) }

func (p *parser) variableNamed(tok scanner.Token) { p.namedVariable(tok, false) }

func (p *parser) namedVariable(tok scanner.Token, canAssign bool) {
	name := tok.Lexeme
	var getOp, setOp vm.OpCode
	var arg uint16

	if local := p.resolveLocal(p.cur, name); local != -1 {
		getOp, setOp = vm.OpGetLocal, vm.OpSetLocal
		arg = uint16(local)
	} else if up := p.resolveUpvalue(p.cur, name); up != -1 {
		getOp, setOp = vm.OpGetUpvalue, vm.OpSetUpvalue
		arg = uint16(up)
	} else {
		getOp, setOp = vm.OpGetGlobal, vm.OpSetGlobal
		arg = p.identifierConstant(name)
	}

	if canAssign && p.match(token.EQUAL) {
		p.expression()
		p.emitU16(setOp, arg)
	} else {
		p.emitU16(getOp, arg)
	}
}

func (p *parser) this_(_ bool) {
	if p.class == nil {
		p.error("can't use 'this' outside of a class")
		return
	}
	p.variable(false)
}

func (p *parser) super_(_ bool) {
	if p.class == nil {
		p.error("can't use 'super' outside of a class")
	} else if !p.class.hasSuperclass {
		p.error("can't use 'super' in a class with no superclass")
	}
	p.consume(token.DOT, "expect '.' after 'super'")
	p.consume(token.IDENT, "expect superclass method name")
	name := p.identifierConstant(p.previous.Lexeme)

	p.namedVariable(scanner.Token{Type: token.IDENT, Lexeme: "this"}, false)
	if p.match(token.LPAREN) {
		argCount := p.argumentList()
		p.namedVariable(scanner.Token{Type: token.IDENT, Lexeme: "super"}, false)
		p.emitU16(vm.OpSuperInvoke, name)
		p.emitRawByte(argCount)
	} else {
		p.namedVariable(scanner.Token{Type: token.IDENT, Lexeme: "super"}, false)
		p.emitU16(vm.OpGetSuper, name)
	}
}

// --- bytecode emission -----------------------------------------------------

func (p *parser) line() int {
	if p.previous.Line != 0 {
		return p.previous.Line
	}
	return p.current.Line
}

func (p *parser) emitByte(op vm.OpCode) { p.chunk().WriteOp(op, p.line()) }

func (p *parser) emitRawByte(b byte) { p.chunk().Write(b, p.line()) }

func (p *parser) emitU16(op vm.OpCode, arg uint16) {
	p.emitByte(op)
	p.chunk().WriteU16(arg, p.line())
}

func (p *parser) emitJump(op vm.OpCode) int {
	p.emitByte(op)
	return p.chunk().WriteU16(0xFFFF, p.line())
}

func (p *parser) patchJump(offset int) {
	jump := len(p.chunk().Code) - offset - 2
	if jump > 0xFFFF {
		p.error("too much code to jump over")
	}
	p.chunk().PatchU16(offset, uint16(jump))
}

func (p *parser) emitLoop(loopStart int) {
	p.emitByte(vm.OpLoop)
	offset := len(p.chunk().Code) - loopStart + 2
	if offset > 0xFFFF {
		p.error("loop body too large")
	}
	p.chunk().WriteU16(uint16(offset), p.line())
}

func (p *parser) emitReturn() {
	if p.cur.typ == typeInitializer {
		p.emitU16(vm.OpGetLocal, 0)
	} else {
		p.emitByte(vm.OpNil)
	}
	p.emitByte(vm.OpReturn)
}
