package macro

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseMacro compiles a raw AM-statement body (the text between "AM<name>*"
// and the closing "%") into a Macro. Each primitive is a "*"-terminated
// statement; a leading "0" statement is a comment and is kept only to
// preserve primitive ordering for error messages, never evaluated.
func ParseMacro(name, body string) (Macro, error) {
	m := Macro{Name: name}
	for i, stmt := range splitStatements(body) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		prim, err := parsePrimitive(stmt)
		if err != nil {
			return Macro{}, fmt.Errorf("macro %s: statement %d: %w", name, i, err)
		}
		m.Primitives = append(m.Primitives, prim)
	}
	return m, nil
}

func splitStatements(body string) []string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		for _, stmt := range strings.Split(line, "*") {
			stmt = strings.TrimSpace(stmt)
			if stmt != "" {
				out = append(out, stmt)
			}
		}
	}
	return out
}

func parsePrimitive(stmt string) (Primitive, error) {
	if strings.HasPrefix(stmt, "$") {
		return parseVariableDef(stmt)
	}
	if stmt == "0" || strings.HasPrefix(stmt, "0 ") {
		return Primitive{Kind: PrimComment}, nil
	}

	fields := strings.Split(stmt, ",")
	code := strings.TrimSpace(fields[0])
	args := fields[1:]

	switch code {
	case "0":
		return Primitive{Kind: PrimComment}, nil
	case "1":
		exprs, err := compileAll(args)
		if err != nil {
			return Primitive{}, err
		}
		return Primitive{Kind: PrimCircle, Args: exprs}, nil
	case "20":
		exprs, err := compileAll(args)
		if err != nil {
			return Primitive{}, err
		}
		return Primitive{Kind: PrimVectorLine, Args: exprs}, nil
	case "21":
		exprs, err := compileAll(args)
		if err != nil {
			return Primitive{}, err
		}
		return Primitive{Kind: PrimCenterLine, Args: exprs}, nil
	case "4":
		return parseOutline(args)
	case "5":
		exprs, err := compileAll(args)
		if err != nil {
			return Primitive{}, err
		}
		return Primitive{Kind: PrimPolygon, Args: exprs}, nil
	case "7":
		exprs, err := compileAll(args)
		if err != nil {
			return Primitive{}, err
		}
		return Primitive{Kind: PrimThermal, Args: exprs}, nil
	default:
		return Primitive{}, fmt.Errorf("unknown macro primitive code %q", code)
	}
}

func parseVariableDef(stmt string) (Primitive, error) {
	eq := strings.IndexByte(stmt, '=')
	if eq < 0 {
		return Primitive{}, fmt.Errorf("malformed variable definition %q", stmt)
	}
	idxStr := strings.TrimSpace(strings.TrimPrefix(stmt[:eq], "$"))
	idx, err := strconv.Atoi(idxStr)
	if err != nil {
		return Primitive{}, fmt.Errorf("malformed variable index in %q: %w", stmt, err)
	}
	expr, err := ParseExpression(strings.TrimSpace(stmt[eq+1:]))
	if err != nil {
		return Primitive{}, err
	}
	return Primitive{Kind: PrimVariableDef, VarIndex: idx, Args: []Expr{expr}}, nil
}

func parseOutline(args []string) (Primitive, error) {
	if len(args) < 2 {
		return Primitive{}, fmt.Errorf("outline primitive requires exposure and vertex count")
	}
	exposureExpr, err := ParseExpression(strings.TrimSpace(args[0]))
	if err != nil {
		return Primitive{}, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(args[1]))
	if err != nil {
		return Primitive{}, fmt.Errorf("invalid outline vertex count %q: %w", args[1], err)
	}
	// args[2:] holds 2*(n+1) coordinate fields followed by a trailing
	// rotation field.
	coordFields := args[2:]
	wantCoords := 2 * (n + 1)
	if len(coordFields) != wantCoords+1 {
		return Primitive{}, fmt.Errorf("outline primitive declares %d vertices but supplies %d coordinate fields", n, len(coordFields)-1)
	}

	prim := Primitive{Kind: PrimOutline}
	nExpr, err := ParseExpression(strings.TrimSpace(args[1]))
	if err != nil {
		return Primitive{}, err
	}
	rotExpr, err := ParseExpression(strings.TrimSpace(coordFields[wantCoords]))
	if err != nil {
		return Primitive{}, err
	}
	prim.Args = []Expr{exposureExpr, nExpr, rotExpr}

	for i := 0; i < wantCoords; i += 2 {
		xExpr, err := ParseExpression(strings.TrimSpace(coordFields[i]))
		if err != nil {
			return Primitive{}, err
		}
		yExpr, err := ParseExpression(strings.TrimSpace(coordFields[i+1]))
		if err != nil {
			return Primitive{}, err
		}
		prim.Outline = append(prim.Outline, OutlinePoint{X: xExpr, Y: yExpr})
	}
	return prim, nil
}

func compileAll(fields []string) ([]Expr, error) {
	exprs := make([]Expr, len(fields))
	for i, f := range fields {
		e, err := ParseExpression(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		exprs[i] = e
	}
	return exprs, nil
}
