// Package expr parses and evaluates voxel expressions over volume
// variables v0..vn-1.
package expr

import "fmt"

type NodeKind int

const (
	NodeConstant NodeKind = iota
	NodeVariable
	NodeAdd
	NodeSub
	NodeMul
	NodeDiv
	NodeNeg
)

// Node is one node of a parsed expression tree.
type Node struct {
	Kind        NodeKind
	Value       float64 // NodeConstant
	Variable    int     // NodeVariable: index into the volume list
	Left, Right *Node
}

// MaxVariable returns the highest volume index referenced by the tree, or
// -1 when the expression uses no volume.
func (n *Node) MaxVariable() int {
	if n == nil {
		return -1
	}
	max := -1
	if n.Kind == NodeVariable {
		max = n.Variable
	}
	if l := n.Left.MaxVariable(); l > max {
		max = l
	}
	if r := n.Right.MaxVariable(); r > max {
		max = r
	}
	return max
}

// Eval computes the expression for a single voxel position, pulling
// variable values from vars.
func (n *Node) Eval(vars []float64) (float64, error) {
	switch n.Kind {
	case NodeConstant:
		return n.Value, nil
	case NodeVariable:
		if n.Variable >= len(vars) {
			return 0, fmt.Errorf("expression references v%d but only %d volumes are loaded",
				n.Variable, len(vars))
		}
		return vars[n.Variable], nil
	case NodeNeg:
		v, err := n.Left.Eval(vars)
		return -v, err
	}

	l, err := n.Left.Eval(vars)
	if err != nil {
		return 0, err
	}
	r, err := n.Right.Eval(vars)
	if err != nil {
		return 0, err
	}
	switch n.Kind {
	case NodeAdd:
		return l + r, nil
	case NodeSub:
		return l - r, nil
	case NodeMul:
		return l * r, nil
	case NodeDiv:
		if r == 0 {
			return 0, nil
		}
		return l / r, nil
	}
	return 0, fmt.Errorf("unknown node kind %d", n.Kind)
}

// EvaluateBricks applies the tree voxel-wise across n aligned brick
// buffers, writing into out. All buffers must share a length.
func EvaluateBricks(n *Node, inputs [][]float64, out []float64) error {
	if got := n.MaxVariable(); got >= len(inputs) {
		return fmt.Errorf("expression references v%d but only %d volumes are loaded",
			got, len(inputs))
	}
	vars := make([]float64, len(inputs))
	for i := range out {
		for j := range inputs {
			vars[j] = inputs[j][i]
		}
		v, err := n.Eval(vars)
		if err != nil {
			return err
		}
		out[i] = v
	}
	return nil
}
