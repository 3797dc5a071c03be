package expr

import (
	"errors"
	"testing"
)

func TestParseAndEval(t *testing.T) {
	testCases := []struct {
		name string
		expr string
		vars []float64
		want float64
	}{
		{"Single Volume", "v0", []float64{42}, 42},
		{"Sum", "v0+v1", []float64{10, 20}, 30},
		{"Difference", "v0 - v1", []float64{10, 4}, 6},
		{"Scale", "2*v0", []float64{21}, 42},
		{"Average", "(v0+v1)/2", []float64{10, 30}, 20},
		{"Precedence", "v0+v1*2", []float64{1, 3}, 7},
		{"Parentheses", "(v0+v1)*2", []float64{1, 3}, 8},
		{"Unary Minus", "-v0+5", []float64{2}, 3},
		{"Constant", "1.5", nil, 1.5},
		{"Division By Zero", "v0/0", []float64{9}, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tree, err := Parse(tc.expr)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tc.expr, err)
			}
			got, err := tree.Eval(tc.vars)
			if err != nil {
				t.Fatalf("Eval failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("Eval(%q) = %g, want %g", tc.expr, got, tc.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		name string
		expr string
	}{
		{"Empty", ""},
		{"Trailing Operator", "v0+"},
		{"Unbalanced Paren", "(v0+v1"},
		{"Bare Variable Prefix", "v"},
		{"Garbage", "v0 # v1"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.expr); err == nil {
				t.Errorf("Parse(%q) succeeded, want error", tc.expr)
			}
		})
	}
}

func TestSyntaxErrorPosition(t *testing.T) {
	_, err := Parse("v0 + + v1")
	var syn *SyntaxError
	if !errors.As(err, &syn) {
		t.Fatalf("got %T, want *SyntaxError", err)
	}
	if syn.Pos != 5 {
		t.Errorf("error position = %d, want 5", syn.Pos)
	}
}

func TestMaxVariable(t *testing.T) {
	tree, err := Parse("v0 + v3*v1")
	if err != nil {
		t.Fatal(err)
	}
	if got := tree.MaxVariable(); got != 3 {
		t.Errorf("MaxVariable() = %d, want 3", got)
	}
}

func TestEvaluateBricks(t *testing.T) {
	tree, err := Parse("v0+v1")
	if err != nil {
		t.Fatal(err)
	}
	in := [][]float64{{10, 10, 10}, {20, 20, 20}}
	out := make([]float64, 3)
	if err := EvaluateBricks(tree, in, out); err != nil {
		t.Fatal(err)
	}
	for i, v := range out {
		if v != 30 {
			t.Errorf("out[%d] = %g, want 30", i, v)
		}
	}
}

func TestEvaluateBricksMissingVolume(t *testing.T) {
	tree, err := Parse("v2")
	if err != nil {
		t.Fatal(err)
	}
	if err := EvaluateBricks(tree, [][]float64{{1}}, make([]float64, 1)); err == nil {
		t.Error("missing volume accepted")
	}
}
