package trigger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/bft-labs/sigcap/internal/domain"
)

var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
	{Name: "Number", Pattern: `[-+]?([0-9]+(\.[0-9]*)?|\.[0-9]+)([eE][-+]?[0-9]+)?`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Op", Pattern: `[=<>]`},
	{Name: "Punct", Pattern: `[;,:]`},
})

// expr is the grammar root: stages separated by ';', conditions by ','.
type expr struct {
	Stages []*stageExpr `@@ ( ";" @@ )*`
}

type stageExpr struct {
	Conds []*condExpr `@@ ( "," @@ )*`
}

// condExpr covers "D0=r", "D1=1", "A0=r:1.5", "A0>1.5" and "A0<0.2".
type condExpr struct {
	Channel   string  `@Ident`
	Op        string  `@Op`
	Value     string  `@( Ident | Number )`
	Threshold *string `( ":" @Number )?`
}

var exprParser = participle.MustBuild[expr](
	participle.Lexer(exprLexer),
	participle.Elide("Whitespace"),
)

// Parse builds a trigger from an expression. Channel names are resolved
// against channels; an unknown name yields ErrNotFound and a condition that
// does not fit the channel yields ErrInvalidArgument.
func Parse(expression string, channels []Channel) (*Trigger, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, fmt.Errorf("%w: empty trigger expression", domain.ErrInvalidArgument)
	}
	ast, err := exprParser.ParseString("", expression)
	if err != nil {
		return nil, fmt.Errorf("%w: trigger %q: %v", domain.ErrInvalidArgument, expression, err)
	}

	byName := make(map[string]Channel, len(channels))
	for _, ch := range channels {
		byName[ch.Name] = ch
	}

	t := New(expression)
	for _, se := range ast.Stages {
		stage := t.AddStage()
		for _, c := range se.Conds {
			ch, ok := byName[c.Channel]
			if !ok {
				return nil, fmt.Errorf("%w: trigger channel %q", domain.ErrNotFound, c.Channel)
			}
			m, value, err := c.match()
			if err != nil {
				return nil, err
			}
			if err := stage.AddMatch(ch, m, value); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

func (c *condExpr) match() (MatchType, float64, error) {
	switch c.Op {
	case ">", "<":
		if c.Threshold != nil {
			return 0, 0, fmt.Errorf("%w: %s%s takes a single value", domain.ErrInvalidArgument, c.Channel, c.Op)
		}
		v, err := strconv.ParseFloat(c.Value, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: threshold %q", domain.ErrInvalidArgument, c.Value)
		}
		if c.Op == ">" {
			return MatchOver, v, nil
		}
		return MatchUnder, v, nil
	}

	var m MatchType
	switch strings.ToLower(c.Value) {
	case "0":
		m = MatchZero
	case "1":
		m = MatchOne
	case "r", "rising":
		m = MatchRising
	case "f", "falling":
		m = MatchFalling
	case "e", "edge":
		m = MatchEdge
	default:
		return 0, 0, fmt.Errorf("%w: match %q on %s", domain.ErrInvalidArgument, c.Value, c.Channel)
	}
	var value float64
	if c.Threshold != nil {
		v, err := strconv.ParseFloat(*c.Threshold, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: threshold %q", domain.ErrInvalidArgument, *c.Threshold)
		}
		value = v
	}
	return m, value, nil
}
