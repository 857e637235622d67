package condexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileCollectsNamesInFirstUseOrder(t *testing.T) {
	tests := []struct {
		expr  string
		names []string
	}{
		{"loss < 0.5", []string{"loss"}},
		{"loss < acc && loss > 0", []string{"loss", "acc"}},
		{"b + a + b + c", []string{"b", "a", "c"}},
		{"min(val.loss, train_loss) < 1", []string{"val.loss", "train_loss"}},
		{"1 + 2 < 4", nil},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			c, err := Compile(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.names, c.Names)
			assert.Equal(t, len(tt.names), c.Arity())
			assert.Equal(t, tt.expr, c.Source)
		})
	}
}

func TestEval(t *testing.T) {
	tests := []struct {
		name   string
		expr   string
		values []float64
		want   bool
	}{
		{"simple comparison true", "loss < 0.5", []float64{0.2}, true},
		{"simple comparison false", "loss < 0.5", []float64{0.7}, false},
		{"boundary not less", "loss < 0.5", []float64{0.5}, false},
		{"less or equal boundary", "loss <= 0.5", []float64{0.5}, true},
		{"greater", "acc > 0.9", []float64{0.95}, true},
		{"greater or equal", "acc >= 0.9", []float64{0.9}, true},
		{"equality", "epoch == 10", []float64{10}, true},
		{"inequality", "epoch != 10", []float64{9}, true},
		{"precedence multiply before add", "a + 2 * 3 == 7", []float64{1}, true},
		{"parens override precedence", "(a + 2) * 3 == 9", []float64{1}, true},
		{"unary minus", "-loss < 0", []float64{1}, true},
		{"double unary minus", "--loss > 0", []float64{1}, true},
		{"division", "total / count > 2", []float64{10, 4}, true},
		{"subtraction", "a - b == 1", []float64{3, 2}, true},
		{"and both true", "loss < 1 && acc > 0", []float64{0.5, 0.5}, true},
		{"and one false", "loss < 1 && acc > 0", []float64{0.5, -1}, false},
		{"or one true", "loss < 1 || acc > 2", []float64{0.5, 0}, true},
		{"or both false", "loss < 0 || acc > 2", []float64{0.5, 0}, false},
		{"and binds tighter than or", "a == 1 || a == 2 && a == 3", []float64{1}, true},
		{"abs negative", "abs(grad) < 10", []float64{-5}, true},
		{"abs positive over limit", "abs(grad) < 10", []float64{15}, false},
		{"min picks smaller", "min(a, b) == 2", []float64{5, 2}, true},
		{"max picks larger", "max(a, b, c) == 9", []float64{5, 9, 2}, true},
		{"nested calls", "max(abs(a), abs(b)) < 4", []float64{-3, 2}, true},
		{"bare scalar nonzero is true", "flag", []float64{1}, true},
		{"bare scalar zero is false", "flag", []float64{0}, false},
		{"division by zero gives inf", "a / b > 1000", []float64{1, 0}, true},
		{"nan comparison is false", "a / b > 0", []float64{0, 0}, false},
		{"no names constant expression", "1 + 1 == 2", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Compile(tt.expr)
			require.NoError(t, err)

			got, err := c.Eval(tt.values)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalValueCountMismatch(t *testing.T) {
	c, err := Compile("loss < acc")
	require.NoError(t, err)

	_, err = c.Eval([]float64{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "takes 2 values")
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name     string
		expr     string
		contains string
	}{
		{"empty expression", "", "unexpected end"},
		{"dangling operator", "loss <", "unexpected end"},
		{"single equals", "loss = 1", "'=='"},
		{"single ampersand", "a & b", "'&&'"},
		{"single pipe", "a | b", "'||'"},
		{"bare bang", "!a", "'!='"},
		{"unknown character", "a % b", "unexpected character"},
		{"double dot number", "1.2.3", "malformed number"},
		{"bare dot", ". < 1", "malformed number"},
		{"unknown function", "foo(1)", "unknown function"},
		{"builtin without call", "abs < 1", "expected '('"},
		{"abs arity", "abs(1, 2)", "exactly 1 argument"},
		{"missing close paren", "(a + b", "expected ')'"},
		{"trailing garbage", "1 2", "unexpected"},
		{"dangling comma", "min(a, )", "unexpected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.expr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestIsValidName(t *testing.T) {
	valid := []string{"loss", "val.loss", "train_loss", "x2", "_private"}
	invalid := []string{"", "2fast", "a b", "a-b", "a+b"}

	for _, name := range valid {
		assert.True(t, IsValidName(name), "expected %q to be valid", name)
	}
	for _, name := range invalid {
		assert.False(t, IsValidName(name), "expected %q to be invalid", name)
	}
}
