package parser

import (
	"github.com/kolkov/tawk/internal/ast"
	"github.com/kolkov/tawk/internal/lexer"
	"github.com/kolkov/tawk/internal/token"
	"github.com/kolkov/tawk/internal/types"
)

// Parser is a recursive descent parser for AWK programs. It only checks
// syntax; whether break sits in a loop or a name is a function is decided
// later by the semantic pass.
type Parser struct {
	lexer *lexer.Lexer
	tok   lexer.Token // Current token
	err   *ParseError
}

// Parse parses an AWK program from source code.
func Parse(src string) (*ast.Program, error) {
	return run(lexer.NewFromString(src), (*Parser).parseProgram)
}

// ParseBytes parses an AWK program from a byte slice.
func ParseBytes(src []byte) (*ast.Program, error) {
	return run(lexer.New(src), (*Parser).parseProgram)
}

// ParseSources parses several named sources as one program. Positions in
// errors and in the tree name the source they came from.
func ParseSources(srcs []lexer.Source) (*ast.Program, error) {
	return run(lexer.NewSources(srcs), (*Parser).parseProgram)
}

// ParseExpr parses a single expression (useful for testing).
func ParseExpr(src string) (ast.Expr, error) {
	return run(lexer.NewFromString(src), func(p *Parser) ast.Expr {
		expr := p.parseExpr()
		if p.tok.Type != token.EOF {
			p.error(expectedError(p.tok.Pos, "end of expression", p.tokenDesc()))
		}
		return expr
	})
}

func run[T any](lx *lexer.Lexer, parse func(*Parser) T) (result T, err error) {
	p := &Parser{lexer: lx}
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			var zero T
			result, err = zero, p.err
		}
	}()
	p.next()
	return parse(p), nil
}

// -----------------------------------------------------------------------------
// Token handling
// -----------------------------------------------------------------------------

func (p *Parser) next() {
	p.tok = p.lexer.Scan()
	if p.tok.Type == token.ILLEGAL {
		p.error(&ParseError{Pos: p.tok.Pos, Message: p.tok.Value, Lexical: true})
	}
}

// expect checks that the current token is tok and advances.
func (p *Parser) expect(tok token.Token) {
	if p.tok.Type != tok {
		p.error(expectedError(p.tok.Pos, tokenName(tok), p.tokenDesc()))
	}
	p.next()
}

func (p *Parser) expectName() (string, token.Position) {
	name, pos := p.tok.Value, p.tok.Pos
	p.expect(token.NAME)
	return name, pos
}

func (p *Parser) match(types ...token.Token) bool {
	for _, t := range types {
		if p.tok.Type == t {
			return true
		}
	}
	return false
}

// tokenDesc returns a description of the current token for error messages.
func (p *Parser) tokenDesc() string {
	switch p.tok.Type {
	case token.NAME, token.NUMBER:
		return p.tok.Value
	case token.STRING:
		return "string"
	default:
		return tokenName(p.tok.Type)
	}
}

func tokenName(t token.Token) string {
	switch t {
	case token.EOF:
		return "end of file"
	case token.NEWLINE:
		return "newline"
	case token.NAME:
		return "name"
	case token.NUMBER:
		return "number"
	}
	return t.String()
}

// error records err and unwinds to the entry point.
func (p *Parser) error(err *ParseError) {
	p.err = err
	panic(bailout{})
}

func (p *Parser) errorf(format string, args ...any) {
	p.error(errorf(p.tok.Pos, format, args...))
}

// -----------------------------------------------------------------------------
// Newline and terminator handling
// -----------------------------------------------------------------------------

func (p *Parser) optionalNewlines() {
	for p.tok.Type == token.NEWLINE {
		p.next()
	}
}

// commaNewlines expects a comma followed by optional newlines.
func (p *Parser) commaNewlines() {
	p.expect(token.COMMA)
	p.optionalNewlines()
}

func (p *Parser) isTerminator() bool {
	return p.match(token.NEWLINE, token.SEMICOLON, token.RBRACE, token.EOF)
}

func (p *Parser) skipTerminators() {
	for p.match(token.NEWLINE, token.SEMICOLON) {
		p.next()
	}
}

// endSimpleStmt requires a simple statement to be followed by a terminator.
// An else is accepted too, as in "if (x) y = 1; else y = 2" written on one
// line without the semicolon.
func (p *Parser) endSimpleStmt() {
	if !p.isTerminator() && p.tok.Type != token.ELSE {
		p.error(expectedError(p.tok.Pos, "; or newline", p.tokenDesc()))
	}
}

// -----------------------------------------------------------------------------
// Program parsing
// -----------------------------------------------------------------------------

func (p *Parser) parseProgram() *ast.Program {
	prog := &ast.Program{StartPos: p.tok.Pos}

	// A pattern without an action must be followed by a terminator.
	needsTerminator := false

	for p.tok.Type != token.EOF {
		if needsTerminator {
			if !p.match(token.NEWLINE, token.SEMICOLON) {
				p.errorf("expected ; or newline between items")
			}
			p.next()
			needsTerminator = false
		}
		p.skipTerminators()

		switch p.tok.Type {
		case token.EOF:

		case token.BEGIN:
			p.next()
			prog.Begin = append(prog.Begin, p.parseBlock())

		case token.END:
			p.next()
			prog.EndBlocks = append(prog.EndBlocks, p.parseBlock())

		case token.FUNCTION:
			prog.Functions = append(prog.Functions, p.parseFunction())

		default:
			rule := p.parseRule()
			prog.Rules = append(prog.Rules, rule)
			needsTerminator = rule.Action == nil
		}
	}

	prog.EndPos = p.tok.Pos
	return prog
}

// parseRule parses "pattern", "pattern, pattern", "{ action }" or both.
func (p *Parser) parseRule() *ast.Rule {
	rule := &ast.Rule{StartPos: p.tok.Pos}

	if p.tok.Type != token.LBRACE {
		pattern := p.parseExpr()
		if p.tok.Type == token.COMMA {
			p.next()
			p.optionalNewlines()
			end := p.parseExpr()
			pattern = &ast.CommaExpr{
				BaseExpr: ast.MakeBaseExpr(pattern.Pos(), end.End()),
				Left:     pattern,
				Right:    end,
			}
		}
		rule.Pattern = pattern
	}

	if p.tok.Type == token.LBRACE {
		rule.Action = p.parseBlock()
	}

	rule.EndPos = p.tok.Pos
	return rule
}

func (p *Parser) parseFunction() *ast.FuncDecl {
	startPos := p.tok.Pos
	p.expect(token.FUNCTION)

	name, namePos := p.expectName()
	p.expect(token.LPAREN)

	var params []string
	for p.tok.Type != token.RPAREN {
		if len(params) > 0 {
			p.commaNewlines()
		}
		param, _ := p.expectName()
		params = append(params, param)
	}
	p.expect(token.RPAREN)
	p.optionalNewlines()

	body := p.parseBlock()
	return &ast.FuncDecl{
		BaseDecl: ast.MakeBaseDecl(startPos, body.End()),
		Name:     name,
		Params:   params,
		Body:     body,
		NamePos:  namePos,
	}
}

func (p *Parser) parseBlock() *ast.BlockStmt {
	startPos := p.tok.Pos
	p.expect(token.LBRACE)

	var stmts []ast.Stmt
	for {
		p.skipTerminators()
		if p.tok.Type == token.RBRACE {
			break
		}
		if p.tok.Type == token.EOF {
			p.error(expectedError(p.tok.Pos, "}", p.tokenDesc()))
		}
		stmts = append(stmts, p.parseStmt())
	}

	endPos := p.tok.Pos
	p.next()
	if p.tok.Type == token.SEMICOLON {
		p.next()
	}

	return &ast.BlockStmt{
		BaseStmt: ast.MakeBaseStmt(startPos, endPos),
		Stmts:    stmts,
	}
}

// -----------------------------------------------------------------------------
// Statement parsing
// -----------------------------------------------------------------------------

func (p *Parser) parseStmt() ast.Stmt {
	startPos := p.tok.Pos

	var stmt ast.Stmt
	switch p.tok.Type {
	case token.IF:
		return p.parseIfStmt()
	case token.WHILE:
		return p.parseWhileStmt()
	case token.FOR:
		return p.parseForStmt()
	case token.LBRACE:
		return p.parseBlock()

	case token.DO:
		stmt = p.parseDoWhileStmt()

	case token.BREAK:
		p.next()
		stmt = &ast.BreakStmt{BaseStmt: ast.MakeBaseStmt(startPos, p.tok.Pos)}

	case token.CONTINUE:
		p.next()
		stmt = &ast.ContinueStmt{BaseStmt: ast.MakeBaseStmt(startPos, p.tok.Pos)}

	case token.NEXT:
		p.next()
		stmt = &ast.NextStmt{BaseStmt: ast.MakeBaseStmt(startPos, p.tok.Pos)}

	case token.NEXTFILE:
		p.next()
		stmt = &ast.NextFileStmt{BaseStmt: ast.MakeBaseStmt(startPos, p.tok.Pos)}

	case token.EXIT:
		p.next()
		var code ast.Expr
		if !p.isTerminator() {
			code = p.parseExpr()
		}
		stmt = &ast.ExitStmt{BaseStmt: ast.MakeBaseStmt(startPos, p.tok.Pos), Code: code}

	case token.RETURN:
		p.next()
		var value ast.Expr
		if !p.isTerminator() {
			value = p.parseExpr()
		}
		stmt = &ast.ReturnStmt{BaseStmt: ast.MakeBaseStmt(startPos, p.tok.Pos), Value: value}

	default:
		stmt = p.parseSimpleStmt()
	}

	p.endSimpleStmt()
	return stmt
}

// parseSimpleStmt parses the statements allowed in a for header: an
// expression, print or delete.
func (p *Parser) parseSimpleStmt() ast.Stmt {
	startPos := p.tok.Pos

	switch p.tok.Type {
	case token.PRINT, token.PRINTF:
		return p.parsePrintStmt()
	case token.DELETE:
		return p.parseDeleteStmt()
	}

	expr := p.parseExpr()
	return &ast.ExprStmt{
		BaseStmt: ast.MakeBaseStmt(startPos, p.tok.Pos),
		Expr:     expr,
	}
}

func (p *Parser) parseIfStmt() *ast.IfStmt {
	startPos := p.tok.Pos
	p.next()

	p.expect(token.LPAREN)
	cond := p.parseExpr()
	p.expect(token.RPAREN)
	p.optionalNewlines()

	then := p.parseBody()

	// Terminators may separate the then branch from else. Without an else
	// they would be skipped by the enclosing block anyway.
	p.skipTerminators()

	var elseStmt ast.Stmt
	if p.tok.Type == token.ELSE {
		p.next()
		p.optionalNewlines()
		elseStmt = p.parseBody()
	}

	return &ast.IfStmt{
		BaseStmt: ast.MakeBaseStmt(startPos, p.tok.Pos),
		Cond:     cond,
		Then:     then,
		Else:     elseStmt,
	}
}

func (p *Parser) parseWhileStmt() *ast.WhileStmt {
	startPos := p.tok.Pos
	p.next()

	p.expect(token.LPAREN)
	cond := p.parseExpr()
	p.expect(token.RPAREN)
	p.optionalNewlines()

	body := p.parseBody()
	return &ast.WhileStmt{
		BaseStmt: ast.MakeBaseStmt(startPos, p.tok.Pos),
		Cond:     cond,
		Body:     body,
	}
}

func (p *Parser) parseDoWhileStmt() *ast.DoWhileStmt {
	startPos := p.tok.Pos
	p.next()
	p.optionalNewlines()

	body := p.parseBody()
	p.skipTerminators()

	p.expect(token.WHILE)
	p.expect(token.LPAREN)
	cond := p.parseExpr()
	p.expect(token.RPAREN)

	return &ast.DoWhileStmt{
		BaseStmt: ast.MakeBaseStmt(startPos, p.tok.Pos),
		Body:     body,
		Cond:     cond,
	}
}

// parseForStmt parses "for (init; cond; post)" and "for (var in array)".
func (p *Parser) parseForStmt() ast.Stmt {
	startPos := p.tok.Pos
	p.next()
	p.expect(token.LPAREN)

	var pre ast.Stmt
	if p.tok.Type != token.SEMICOLON {
		pre = p.parseSimpleStmt()
	}

	if pre != nil && p.tok.Type == token.RPAREN {
		in := forInHeader(pre)
		if in == nil {
			p.errorf("expected 'for (var in array)'")
		}
		p.next()
		p.optionalNewlines()
		body := p.parseBody()
		return &ast.ForInStmt{
			BaseStmt: ast.MakeBaseStmt(startPos, p.tok.Pos),
			Var:      in.Index[0].(*ast.Ident),
			Array:    in.Array,
			Body:     body,
		}
	}

	p.expect(token.SEMICOLON)
	p.optionalNewlines()

	var cond ast.Expr
	if p.tok.Type != token.SEMICOLON {
		cond = p.parseExpr()
	}
	p.expect(token.SEMICOLON)
	p.optionalNewlines()

	var post ast.Stmt
	if p.tok.Type != token.RPAREN {
		post = p.parseSimpleStmt()
	}
	p.expect(token.RPAREN)
	p.optionalNewlines()

	body := p.parseBody()
	return &ast.ForStmt{
		BaseStmt: ast.MakeBaseStmt(startPos, p.tok.Pos),
		Init:     pre,
		Cond:     cond,
		Post:     post,
		Body:     body,
	}
}

// forInHeader returns the "name in array" expression of a for-in header.
func forInHeader(s ast.Stmt) *ast.InExpr {
	es, ok := s.(*ast.ExprStmt)
	if !ok {
		return nil
	}
	in, ok := es.Expr.(*ast.InExpr)
	if !ok || len(in.Index) != 1 {
		return nil
	}
	if _, ok := in.Index[0].(*ast.Ident); !ok {
		return nil
	}
	return in
}

// parseBody parses the body of if, while, do and for. A lone semicolon is
// an empty body and yields nil.
func (p *Parser) parseBody() ast.Stmt {
	if p.tok.Type == token.SEMICOLON {
		p.next()
		return nil
	}
	return p.parseStmt()
}

func (p *Parser) parseDeleteStmt() *ast.DeleteStmt {
	startPos := p.tok.Pos
	p.next()

	array := p.parseArrayName()

	var index []ast.Expr
	if p.tok.Type == token.LBRACKET {
		index = p.parseSubscript()
	}

	return &ast.DeleteStmt{
		BaseStmt: ast.MakeBaseStmt(startPos, p.tok.Pos),
		Array:    array,
		Index:    index,
	}
}

func (p *Parser) parsePrintStmt() *ast.PrintStmt {
	startPos := p.tok.Pos
	isPrintf := p.tok.Type == token.PRINTF
	p.next()

	args := p.parseExprList(p.parsePrintExpr)

	// print (a, b) > "file" prints two values.
	if len(args) == 1 {
		if list, ok := args[0].(*ast.ListExpr); ok {
			args = list.Exprs
		}
	}

	redirect := token.ILLEGAL
	var dest ast.Expr
	if p.match(token.GREATER, token.APPEND, token.PIPE) {
		redirect = p.tok.Type
		p.next()
		dest = p.parseConcat()
	}

	if isPrintf && len(args) == 0 {
		p.errorf("printf requires at least one argument")
	}

	return &ast.PrintStmt{
		BaseStmt: ast.MakeBaseStmt(startPos, p.tok.Pos),
		Printf:   isPrintf,
		Args:     args,
		Redirect: redirect,
		Dest:     dest,
	}
}

// -----------------------------------------------------------------------------
// Expression parsing
// -----------------------------------------------------------------------------

func (p *Parser) parseExpr() ast.Expr {
	return p.parseAssign(p.parseGetline)
}

// parsePrintExpr parses an expression in print context, where an unparenthesized
// > starts a redirection.
func (p *Parser) parsePrintExpr() ast.Expr {
	return p.parseAssign(p.parsePrintCond)
}

// parseGetline handles "command | getline [lvalue]", which may chain. A
// comparison may follow, as in: while ("cmd" | getline line > 0).
func (p *Parser) parseGetline() ast.Expr {
	expr := p.parseCond()
	if p.tok.Type != token.PIPE {
		return expr
	}
	for p.tok.Type == token.PIPE {
		p.next()
		if p.tok.Type != token.GETLINE {
			p.error(expectedError(p.tok.Pos, "getline", p.tokenDesc()))
		}
		p.next()
		target := p.parseOptionalLValue()
		expr = &ast.GetlineExpr{
			BaseExpr: ast.MakeBaseExpr(expr.Pos(), p.tok.Pos),
			Command:  expr,
			Target:   target,
		}
	}
	if p.match(token.EQUALS, token.NOT_EQUALS, token.LESS, token.LTE, token.GTE, token.GREATER) {
		op := p.tok.Type
		p.next()
		right := p.parseConcat()
		expr = &ast.BinaryExpr{
			BaseExpr: ast.MakeBaseExpr(expr.Pos(), right.End()),
			Left:     expr,
			Op:       op,
			Right:    right,
		}
	}
	return expr
}

// parseAssign parses right-associative assignment. An assignment whose
// left side is the right operand of a lower-precedence operator, as in
// "x && y = 1", is re-associated to "x && (y = 1)".
func (p *Parser) parseAssign(higher func() ast.Expr) ast.Expr {
	expr := higher()

	if !p.match(token.ASSIGN, token.ADD_ASSIGN, token.SUB_ASSIGN,
		token.MUL_ASSIGN, token.DIV_ASSIGN, token.MOD_ASSIGN, token.POW_ASSIGN) {
		return expr
	}
	opPos := p.tok.Pos
	op := p.tok.Type
	p.next()
	p.optionalNewlines()
	right := p.parseAssign(higher)

	if ast.IsLValue(expr) {
		return makeAssign(expr, op, right)
	}
	if binary, ok := expr.(*ast.BinaryExpr); ok && ast.IsLValue(binary.Right) {
		switch binary.Op {
		case token.AND, token.OR, token.EQUALS, token.NOT_EQUALS,
			token.LESS, token.LTE, token.GTE, token.GREATER:
			return &ast.BinaryExpr{
				BaseExpr: ast.MakeBaseExpr(binary.Pos(), right.End()),
				Left:     binary.Left,
				Op:       binary.Op,
				Right:    makeAssign(binary.Right, op, right),
			}
		}
	}
	p.error(errorf(opPos, "left side of %s must be a variable, field or array element", op))
	return nil
}

func makeAssign(left ast.Expr, op token.Token, right ast.Expr) ast.Expr {
	return &ast.AssignExpr{
		BaseExpr: ast.MakeBaseExpr(left.Pos(), right.End()),
		Left:     left,
		Op:       op,
		Right:    right,
	}
}

func (p *Parser) parseCond() ast.Expr {
	return p.parseTernary(p.parseOr)
}

func (p *Parser) parsePrintCond() ast.Expr {
	return p.parseTernary(p.parsePrintOr)
}

func (p *Parser) parseTernary(higher func() ast.Expr) ast.Expr {
	expr := higher()
	if p.tok.Type != token.QUESTION {
		return expr
	}
	p.next()
	p.optionalNewlines()
	then := p.parseExpr()
	p.optionalNewlines()
	p.expect(token.COLON)
	p.optionalNewlines()
	els := p.parseTernary(higher)
	return &ast.TernaryExpr{
		BaseExpr: ast.MakeBaseExpr(expr.Pos(), els.End()),
		Cond:     expr,
		Then:     then,
		Else:     els,
	}
}

func (p *Parser) parseOr() ast.Expr {
	return p.parseBinaryLeft(p.parseAnd, true, token.OR)
}

func (p *Parser) parsePrintOr() ast.Expr {
	return p.parseBinaryLeft(p.parsePrintAnd, true, token.OR)
}

func (p *Parser) parseAnd() ast.Expr {
	return p.parseBinaryLeft(p.parseIn, true, token.AND)
}

func (p *Parser) parsePrintAnd() ast.Expr {
	return p.parseBinaryLeft(p.parsePrintIn, true, token.AND)
}

func (p *Parser) parseIn() ast.Expr {
	return p.parseInWith(p.parseMatch)
}

func (p *Parser) parsePrintIn() ast.Expr {
	return p.parseInWith(p.parsePrintMatch)
}

func (p *Parser) parseInWith(higher func() ast.Expr) ast.Expr {
	expr := higher()
	for p.tok.Type == token.IN {
		p.next()
		array := p.parseArrayName()
		expr = &ast.InExpr{
			BaseExpr: ast.MakeBaseExpr(expr.Pos(), array.End()),
			Index:    []ast.Expr{expr},
			Array:    array,
		}
	}
	return expr
}

func (p *Parser) parseMatch() ast.Expr {
	return p.parseMatchWith(p.parseCompare)
}

func (p *Parser) parsePrintMatch() ast.Expr {
	return p.parseMatchWith(p.parsePrintCompare)
}

func (p *Parser) parseMatchWith(higher func() ast.Expr) ast.Expr {
	expr := higher()
	for p.match(token.MATCH, token.NOT_MATCH) {
		op := p.tok.Type
		p.next()
		right := higher()
		expr = &ast.MatchExpr{
			BaseExpr: ast.MakeBaseExpr(expr.Pos(), right.End()),
			Expr:     expr,
			Op:       op,
			Pattern:  right,
		}
	}
	return expr
}

func (p *Parser) parseCompare() ast.Expr {
	return p.parseCompareWith(token.EQUALS, token.NOT_EQUALS, token.LESS, token.LTE, token.GTE, token.GREATER)
}

func (p *Parser) parsePrintCompare() ast.Expr {
	return p.parseCompareWith(token.EQUALS, token.NOT_EQUALS, token.LESS, token.LTE, token.GTE)
}

// parseCompareWith parses a non-associative comparison.
func (p *Parser) parseCompareWith(ops ...token.Token) ast.Expr {
	expr := p.parseConcat()
	if p.match(ops...) {
		op := p.tok.Type
		p.next()
		right := p.parseConcat()
		return &ast.BinaryExpr{
			BaseExpr: ast.MakeBaseExpr(expr.Pos(), right.End()),
			Left:     expr,
			Op:       op,
			Right:    right,
		}
	}
	return expr
}

// parseConcat parses implicit concatenation of adjacent expressions.
func (p *Parser) parseConcat() ast.Expr {
	expr := p.parseAdd()
	if !p.canStartConcat() {
		return expr
	}
	exprs := []ast.Expr{expr}
	for p.canStartConcat() {
		exprs = append(exprs, p.parseAdd())
	}
	return &ast.ConcatExpr{
		BaseExpr: ast.MakeBaseExpr(exprs[0].Pos(), exprs[len(exprs)-1].End()),
		Exprs:    exprs,
	}
}

// canStartConcat reports whether the current token can begin the next
// operand of a concatenation. Unary plus and minus cannot: "a -1" is a
// subtraction.
func (p *Parser) canStartConcat() bool {
	switch p.tok.Type {
	case token.DOLLAR, token.NOT, token.NAME, token.NUMBER, token.STRING,
		token.LPAREN, token.INCR, token.DECR:
		return true
	default:
		return p.tok.Type.IsBuiltin()
	}
}

func (p *Parser) parseAdd() ast.Expr {
	return p.parseBinaryLeft(p.parseMul, false, token.ADD, token.SUB)
}

func (p *Parser) parseMul() ast.Expr {
	return p.parseBinaryLeft(p.parseUnary, false, token.MUL, token.DIV, token.MOD)
}

// parseUnary parses prefix !, + and -, which bind looser than ^.
func (p *Parser) parseUnary() ast.Expr {
	switch p.tok.Type {
	case token.NOT, token.ADD, token.SUB:
		startPos := p.tok.Pos
		op := p.tok.Type
		p.next()
		expr := p.parseUnary()
		return &ast.UnaryExpr{
			BaseExpr: ast.MakeBaseExpr(startPos, expr.End()),
			Op:       op,
			Expr:     expr,
		}
	}
	return p.parsePow()
}

// parsePow parses right-associative exponentiation. The exponent may carry
// its own sign: 2^-1.
func (p *Parser) parsePow() ast.Expr {
	expr := p.parsePostIncr()
	if p.tok.Type != token.POW {
		return expr
	}
	p.next()
	var right ast.Expr
	if p.match(token.NOT, token.ADD, token.SUB) {
		right = p.parseUnary()
	} else {
		right = p.parsePow()
	}
	return &ast.BinaryExpr{
		BaseExpr: ast.MakeBaseExpr(expr.Pos(), right.End()),
		Left:     expr,
		Op:       token.POW,
		Right:    right,
	}
}

func (p *Parser) parsePostIncr() ast.Expr {
	expr := p.parsePrimary()
	if p.match(token.INCR, token.DECR) && ast.IsLValue(expr) {
		op := p.tok.Type
		p.next()
		return &ast.UnaryExpr{
			BaseExpr: ast.MakeBaseExpr(expr.Pos(), p.tok.Pos),
			Op:       op,
			Expr:     expr,
			Post:     true,
		}
	}
	return expr
}

func (p *Parser) parsePrimary() ast.Expr {
	startPos := p.tok.Pos

	switch p.tok.Type {
	case token.NUMBER:
		raw := p.tok.Value
		n, err := types.ParseLiteral(raw)
		if err != nil {
			p.errorf("invalid number %q", raw)
		}
		p.next()
		return &ast.NumLit{
			BaseExpr: ast.MakeBaseExpr(startPos, p.tok.Pos),
			Value:    n,
			Raw:      raw,
		}

	case token.STRING:
		s := p.tok.Value
		p.next()
		return &ast.StrLit{
			BaseExpr: ast.MakeBaseExpr(startPos, p.tok.Pos),
			Value:    s,
		}

	case token.REGEX:
		pattern := p.tok.Value
		p.next()
		return &ast.RegexLit{
			BaseExpr: ast.MakeBaseExpr(startPos, p.tok.Pos),
			Pattern:  pattern,
		}

	case token.DIV, token.DIV_ASSIGN:
		// The lexer saw a division where an operand belongs.
		tok := p.lexer.ScanRegex()
		if tok.Type == token.ILLEGAL {
			p.error(&ParseError{Pos: tok.Pos, Message: tok.Value, Lexical: true})
		}
		p.next()
		return &ast.RegexLit{
			BaseExpr: ast.MakeBaseExpr(startPos, p.tok.Pos),
			Pattern:  tok.Value,
		}

	case token.DOLLAR:
		p.next()
		index := p.parseFieldIndex()
		return &ast.FieldExpr{
			BaseExpr: ast.MakeBaseExpr(startPos, index.End()),
			Index:    index,
		}

	case token.NOT, token.ADD, token.SUB:
		return p.parseUnary()

	case token.INCR, token.DECR:
		op := p.tok.Type
		p.next()
		expr := p.parseOptionalLValue()
		if expr == nil {
			p.error(expectedError(p.tok.Pos, "variable, field or array element after "+op.String(), p.tokenDesc()))
		}
		return &ast.UnaryExpr{
			BaseExpr: ast.MakeBaseExpr(startPos, expr.End()),
			Op:       op,
			Expr:     expr,
		}

	case token.NAME:
		name := p.tok.Value
		p.next()

		if p.tok.Type == token.LBRACKET {
			array := &ast.Ident{BaseExpr: ast.MakeBaseExpr(startPos, p.tok.Pos), Name: name}
			index := p.parseSubscript()
			return &ast.IndexExpr{
				BaseExpr: ast.MakeBaseExpr(startPos, p.tok.Pos),
				Array:    array,
				Index:    index,
			}
		}

		// A call needs the parenthesis right after the name.
		if p.tok.Type == token.LPAREN && !p.lexer.HadSpace() {
			return p.parseUserCall(name, startPos)
		}

		return &ast.Ident{
			BaseExpr: ast.MakeBaseExpr(startPos, p.tok.Pos),
			Name:     name,
		}

	case token.LPAREN:
		p.next()
		p.optionalNewlines()
		exprs := []ast.Expr{p.parseExpr()}
		for p.tok.Type == token.COMMA {
			p.commaNewlines()
			exprs = append(exprs, p.parseExpr())
		}
		p.optionalNewlines()
		p.expect(token.RPAREN)

		if len(exprs) == 1 {
			return &ast.GroupExpr{
				BaseExpr: ast.MakeBaseExpr(startPos, p.tok.Pos),
				Expr:     exprs[0],
			}
		}
		if p.tok.Type == token.IN {
			p.next()
			array := p.parseArrayName()
			return &ast.InExpr{
				BaseExpr: ast.MakeBaseExpr(startPos, array.End()),
				Index:    exprs,
				Array:    array,
			}
		}
		return &ast.ListExpr{
			BaseExpr: ast.MakeBaseExpr(startPos, p.tok.Pos),
			Exprs:    exprs,
		}

	case token.GETLINE:
		return p.parseGetlineExpr()

	default:
		if p.tok.Type.IsBuiltin() {
			return p.parseBuiltinCall()
		}
		p.error(expectedError(p.tok.Pos, "expression", p.tokenDesc()))
		return nil
	}
}

// parseFieldIndex parses the operand of $, which binds tighter than
// anything but grouping. The operand may still carry a prefix operator:
// $-1, $!x, $++i.
func (p *Parser) parseFieldIndex() ast.Expr {
	switch p.tok.Type {
	case token.NOT, token.ADD, token.SUB:
		startPos := p.tok.Pos
		op := p.tok.Type
		p.next()
		expr := p.parseFieldIndex()
		return &ast.UnaryExpr{
			BaseExpr: ast.MakeBaseExpr(startPos, expr.End()),
			Op:       op,
			Expr:     expr,
		}
	}
	return p.parsePrimary()
}

// parseGetlineExpr parses "getline [lvalue] [< file]".
func (p *Parser) parseGetlineExpr() ast.Expr {
	startPos := p.tok.Pos
	p.next()

	target := p.parseOptionalLValue()

	var file ast.Expr
	if p.tok.Type == token.LESS {
		p.next()
		file = p.parsePrimary()
	}

	return &ast.GetlineExpr{
		BaseExpr: ast.MakeBaseExpr(startPos, p.tok.Pos),
		Target:   target,
		File:     file,
	}
}

// parseOptionalLValue parses a variable, array element or field if one
// starts here, for getline targets and prefix ++ and --.
func (p *Parser) parseOptionalLValue() ast.Expr {
	startPos := p.tok.Pos
	switch p.tok.Type {
	case token.NAME:
		name := p.tok.Value
		p.next()
		ident := &ast.Ident{BaseExpr: ast.MakeBaseExpr(startPos, p.tok.Pos), Name: name}
		if p.tok.Type != token.LBRACKET {
			return ident
		}
		index := p.parseSubscript()
		return &ast.IndexExpr{
			BaseExpr: ast.MakeBaseExpr(startPos, p.tok.Pos),
			Array:    ident,
			Index:    index,
		}

	case token.DOLLAR:
		p.next()
		index := p.parsePrimary()
		return &ast.FieldExpr{
			BaseExpr: ast.MakeBaseExpr(startPos, index.End()),
			Index:    index,
		}
	}
	return nil
}

func (p *Parser) parseArrayName() *ast.Ident {
	name, pos := p.expectName()
	return &ast.Ident{BaseExpr: ast.MakeBaseExpr(pos, p.tok.Pos), Name: name}
}

// parseSubscript parses "[expr, ...]".
func (p *Parser) parseSubscript() []ast.Expr {
	p.expect(token.LBRACKET)
	p.optionalNewlines()
	index := []ast.Expr{p.parseExpr()}
	for p.tok.Type == token.COMMA {
		p.commaNewlines()
		index = append(index, p.parseExpr())
	}
	p.optionalNewlines()
	p.expect(token.RBRACKET)
	return index
}

// parseUserCall parses the argument list of a function or extension call.
func (p *Parser) parseUserCall(name string, namePos token.Position) *ast.CallExpr {
	args := p.parseArgs()
	return &ast.CallExpr{
		BaseExpr: ast.MakeBaseExpr(namePos, p.tok.Pos),
		Name:     name,
		Args:     args,
	}
}

// parseArgs parses "(expr, ...)", which may be empty.
func (p *Parser) parseArgs() []ast.Expr {
	p.expect(token.LPAREN)
	p.optionalNewlines()
	var args []ast.Expr
	for p.tok.Type != token.RPAREN {
		if len(args) > 0 {
			p.commaNewlines()
		}
		args = append(args, p.parseExpr())
		p.optionalNewlines()
	}
	p.next()
	return args
}

// parseBuiltinCall parses a builtin function call. Argument counts are
// checked by the semantic pass; only length may omit its parentheses.
func (p *Parser) parseBuiltinCall() ast.Expr {
	startPos := p.tok.Pos
	fn := p.tok.Type
	p.next()

	var args []ast.Expr
	if fn != token.F_LENGTH || p.tok.Type == token.LPAREN {
		args = p.parseArgs()
	}
	return &ast.BuiltinExpr{
		BaseExpr: ast.MakeBaseExpr(startPos, p.tok.Pos),
		Func:     fn,
		Args:     args,
	}
}

// -----------------------------------------------------------------------------
// Helper functions
// -----------------------------------------------------------------------------

// parseBinaryLeft parses left-associative binary operators.
func (p *Parser) parseBinaryLeft(higher func() ast.Expr, allowNewline bool, ops ...token.Token) ast.Expr {
	expr := higher()
	for p.match(ops...) {
		op := p.tok.Type
		p.next()
		if allowNewline {
			p.optionalNewlines()
		}
		right := higher()
		expr = &ast.BinaryExpr{
			BaseExpr: ast.MakeBaseExpr(expr.Pos(), right.End()),
			Left:     expr,
			Op:       op,
			Right:    right,
		}
	}
	return expr
}

// parseExprList parses the comma-separated expressions of a print
// statement, stopping at a terminator or redirection.
func (p *Parser) parseExprList(parse func() ast.Expr) []ast.Expr {
	var exprs []ast.Expr
	for !p.match(token.NEWLINE, token.SEMICOLON, token.RBRACE, token.RBRACKET,
		token.RPAREN, token.GREATER, token.PIPE, token.APPEND, token.EOF, token.ELSE) {
		if len(exprs) > 0 {
			p.commaNewlines()
		}
		exprs = append(exprs, parse())
	}
	return exprs
}
