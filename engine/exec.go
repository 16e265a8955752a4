package engine

import (
	"context"
	"fmt"
	"iter"
	"math"

	"github.com/zooba/esdlc/model"
)

// AttribGetter is implemented by values that expose named attributes to
// definitions.
type AttribGetter interface {
	Attrib(name string) (any, bool)
}

// AttribSetter is implemented by values whose attributes definitions may
// assign.
type AttribSetter interface {
	SetAttrib(name string, value any) error
}

// Joined is one tuple produced by a joiner; the i-th element comes from the
// i-th joined source.
type Joined struct {
	Items []any
}

// ExecuteBlock runs one block's statements in order against ec, stopping at
// the first error.
func ExecuteBlock(ctx context.Context, ec *Context, stmts []model.Stmt) error {
	for _, s := range stmts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := executeStmt(ctx, ec, s); err != nil {
			return err
		}
	}
	return nil
}

func executeStmt(ctx context.Context, ec *Context, s model.Stmt) error {
	switch s := s.(type) {
	case *model.Assign:
		return executeAssign(ctx, ec, s)
	case *model.ExprStmt:
		_, err := evalExpr(ctx, ec, s.X)
		return err
	case *model.Store:
		return executeStore(ctx, ec, s)
	case *model.EvalStmt:
		return executeEval(ctx, ec, s)
	case *model.YieldStmt:
		return executeYield(ec, s)
	case *model.RepeatBlock:
		return executeRepeat(ctx, ec, s)
	case *model.Pragma:
		return nil
	}
	return fmt.Errorf("unsupported statement type %T", s)
}

func executeAssign(ctx context.Context, ec *Context, s *model.Assign) error {
	value, err := evalExpr(ctx, ec, s.Src)
	if err != nil {
		return err
	}
	switch dest := s.Dest.(type) {
	case *model.VariableRef:
		// Immutability is enforced here as well as at validation, so a
		// hand-built model cannot slip past the check.
		if dest.Var.Constant || dest.Var.External {
			return fmt.Errorf("cannot assign to %q", dest.Var.Name)
		}
		ec.Set(dest.Var.Name, value)
		return nil

	case *model.GetAttrib:
		obj, err := evalExpr(ctx, ec, dest.Source)
		if err != nil {
			return err
		}
		return setAttrib(obj, dest.Attrib, value)

	case *model.GetIndex:
		obj, err := evalExpr(ctx, ec, dest.Source)
		if err != nil {
			return err
		}
		items, ok := obj.([]any)
		if !ok {
			return fmt.Errorf("value of type %T is not indexable", obj)
		}
		idx, err := evalIndex(ctx, ec, dest.Index, len(items))
		if err != nil {
			return err
		}
		items[idx] = value
		return nil
	}
	return fmt.Errorf("cannot assign to %T expression", s.Dest)
}

func evalExpr(ctx context.Context, ec *Context, x model.Expr) (any, error) {
	switch x := x.(type) {
	case *model.VariableRef:
		if x.Var.Constant {
			return x.Var.Value, nil
		}
		if v, ok := ec.Get(x.Var.Name); ok {
			return v, nil
		}
		if ec.Funcs != nil {
			if fn, ok := ec.Funcs.Lookup(x.Var.Name); ok {
				return fn, nil
			}
		}
		return nil, fmt.Errorf("%q is not defined", x.Var.Name)

	case *model.UnaryOp:
		f, err := evalFloat(ctx, ec, x.Right)
		if err != nil {
			return nil, err
		}
		if x.Op == "-" {
			return -f, nil
		}
		return f, nil

	case *model.BinaryOp:
		l, err := evalFloat(ctx, ec, x.Left)
		if err != nil {
			return nil, err
		}
		r, err := evalFloat(ctx, ec, x.Right)
		if err != nil {
			return nil, err
		}
		return arith(x.Op, l, r)

	case *model.Call:
		return evalCall(ctx, ec, x)

	case *model.GetAttrib:
		src, err := evalExpr(ctx, ec, x.Source)
		if err != nil {
			return nil, err
		}
		return getAttrib(src, x.Attrib, attribPath(x))

	case *model.GetIndex:
		src, err := evalExpr(ctx, ec, x.Source)
		if err != nil {
			return nil, err
		}
		items, ok := src.([]any)
		if !ok {
			return nil, fmt.Errorf("value of type %T is not indexable", src)
		}
		idx, err := evalIndex(ctx, ec, x.Index, len(items))
		if err != nil {
			return nil, err
		}
		return items[idx], nil
	}
	return nil, fmt.Errorf("unsupported expression type %T", x)
}

func arith(op string, l, r float64) (float64, error) {
	switch op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return l / r, nil
	case "%":
		if r == 0 {
			return 0, fmt.Errorf("modulo by zero")
		}
		return math.Mod(l, r), nil
	case "^":
		v := math.Pow(l, r)
		if math.IsNaN(v) {
			return 0, fmt.Errorf("invalid exponentiation %v^%v", l, r)
		}
		return v, nil
	}
	return 0, fmt.Errorf("unsupported operator %q", op)
}

func toFloat(v any) (float64, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("value of type %T is not a number", v)
}

func evalFloat(ctx context.Context, ec *Context, x model.Expr) (float64, error) {
	v, err := evalExpr(ctx, ec, x)
	if err != nil {
		return 0, err
	}
	return toFloat(v)
}

// evalIndex evaluates an index expression against a collection of length n.
// Negative indexes count from the end.
func evalIndex(ctx context.Context, ec *Context, x model.Expr, n int) (int, error) {
	f, err := evalFloat(ctx, ec, x)
	if err != nil {
		return 0, err
	}
	idx := int(f)
	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n {
		return 0, fmt.Errorf("index %d out of range for %d items", int(f), n)
	}
	return idx, nil
}

func getAttrib(src any, name, path string) (any, error) {
	switch s := src.(type) {
	case AttribGetter:
		if v, ok := s.Attrib(name); ok {
			return v, nil
		}
	case map[string]any:
		if v, ok := s[name]; ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("missing required key %s on value of type %T", path, src)
}

// attribPath rebuilds the dotted name of an attribute access so a miss deep
// in a nested config reports the whole path, not just the leaf.
func attribPath(x *model.GetAttrib) string {
	switch src := x.Source.(type) {
	case *model.GetAttrib:
		return attribPath(src) + "." + x.Attrib
	case *model.VariableRef:
		return src.Var.Name + "." + x.Attrib
	}
	return x.Attrib
}

func setAttrib(src any, name string, value any) error {
	switch s := src.(type) {
	case AttribSetter:
		return s.SetAttrib(name, value)
	case map[string]any:
		s[name] = value
		return nil
	}
	return fmt.Errorf("cannot set attribute %q on value of type %T", name, src)
}

func evalCall(ctx context.Context, ec *Context, c *model.Call) (any, error) {
	fnValue, err := evalExpr(ctx, ec, c.Fn)
	if err != nil {
		return nil, err
	}
	fn, err := ec.callable(fnValue)
	if err != nil {
		return nil, err
	}
	args := make(map[string]any, len(c.Params))
	for _, p := range c.Params {
		if p.Value != nil {
			args[p.Name], err = evalExpr(ctx, ec, p.Value)
			if err != nil {
				return nil, err
			}
			continue
		}
		// Implicit parameter: take the current context binding, or true
		// for a bare flag.
		if v, ok := ec.Get(p.Name); ok {
			args[p.Name] = v
		} else {
			args[p.Name] = true
		}
	}
	return fn(ctx, ec, args)
}

// callWithSource invokes fn with the upstream source added to its arguments.
func callWithSource(ctx context.Context, ec *Context, c *model.Call, source any) (any, error) {
	fnValue, err := evalExpr(ctx, ec, c.Fn)
	if err != nil {
		return nil, err
	}
	fn, err := ec.callable(fnValue)
	if err != nil {
		return nil, err
	}
	args := make(map[string]any, len(c.Params)+1)
	for _, p := range c.Params {
		if p.Value != nil {
			args[p.Name], err = evalExpr(ctx, ec, p.Value)
			if err != nil {
				return nil, err
			}
		} else if v, ok := ec.Get(p.Name); ok {
			args[p.Name] = v
		} else {
			args[p.Name] = true
		}
	}
	args[SourceArg] = source
	return fn(ctx, ec, args)
}

// itemSeq evaluates one merge or join source to a lazy sequence.
func itemSeq(ctx context.Context, ec *Context, it model.StreamItem) (iter.Seq[any], error) {
	switch it := it.(type) {
	case *model.GroupRef:
		group, err := groupItems(ec, it.Group.Name)
		if err != nil {
			return nil, err
		}
		return seqOf(group), nil
	case *model.Call:
		// An external bound to plain data rather than a generator function
		// streams its value directly.
		if len(it.Params) == 0 {
			if v, err := evalExpr(ctx, ec, it.Fn); err == nil {
				if _, cerr := ec.callable(v); cerr != nil {
					if seq, serr := toSeq(v); serr == nil {
						return seq, nil
					}
				}
			}
		}
		out, err := evalCall(ctx, ec, it)
		if err != nil {
			return nil, err
		}
		return toSeq(out)
	}
	return nil, fmt.Errorf("unsupported stream source %T", it)
}

func groupItems(ec *Context, name string) ([]any, error) {
	v, ok := ec.Get(name)
	if !ok {
		return nil, fmt.Errorf("group %q is not defined", name)
	}
	group, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%q does not hold a group", name)
	}
	return group, nil
}

// joinSource evaluates the sources of a JOIN without combining them.
func joinSource(ctx context.Context, ec *Context, j *model.Join) (*JoinSource, error) {
	js := &JoinSource{}
	for _, it := range j.Sources {
		seq, err := itemSeq(ctx, ec, it)
		if err != nil {
			return nil, err
		}
		name := ""
		if g, ok := it.(*model.GroupRef); ok {
			name = g.Group.Name
		}
		js.Seqs = append(js.Seqs, seq)
		js.Names = append(js.Names, name)
	}
	return js, nil
}

// ZipJoin pairs sources index-aligned, ending at the shortest. It is the
// joining behavior used when a JOIN has no USING operator.
func ZipJoin(js *JoinSource) iter.Seq[any] {
	return func(yield func(any) bool) {
		nexts := make([]func() (any, bool), len(js.Seqs))
		for i, s := range js.Seqs {
			next, stop := iter.Pull(s)
			defer stop()
			nexts[i] = next
		}
		for {
			tuple := &Joined{Items: make([]any, len(nexts))}
			for i, next := range nexts {
				v, ok := next()
				if !ok {
					return
				}
				tuple.Items[i] = v
			}
			if !yield(tuple) {
				return
			}
		}
	}
}

// evalStream builds the single-pass cursor for a Store source.
func evalStream(ctx context.Context, ec *Context, src model.StreamSource) (stream, error) {
	switch src := src.(type) {
	case *model.Operator:
		var arg any
		if j, ok := src.Source.(*model.Join); ok {
			js, err := joinSource(ctx, ec, j)
			if err != nil {
				return nil, err
			}
			arg = js
		} else {
			inner, err := evalStream(ctx, ec, src.Source)
			if err != nil {
				return nil, err
			}
			arg = streamSeq(inner)
		}
		out, err := callWithSource(ctx, ec, src.Fn, arg)
		if err != nil {
			return nil, err
		}
		seq, err := toSeq(out)
		if err != nil {
			return nil, err
		}
		return newSeqStream(seq), nil

	case *model.Merge:
		// A single plain group keeps its slice backing, so an unlimited
		// destination can take the remainder without iterating.
		if len(src.Sources) == 1 {
			if g, ok := src.Sources[0].(*model.GroupRef); ok {
				group, err := groupItems(ec, g.Group.Name)
				if err != nil {
					return nil, err
				}
				return &sliceStream{items: group}, nil
			}
		}
		seqs := make([]iter.Seq[any], 0, len(src.Sources))
		for _, it := range src.Sources {
			seq, err := itemSeq(ctx, ec, it)
			if err != nil {
				return nil, err
			}
			seqs = append(seqs, seq)
		}
		return newSeqStream(chain(seqs)), nil

	case *model.Join:
		js, err := joinSource(ctx, ec, src)
		if err != nil {
			return nil, err
		}
		return newSeqStream(ZipJoin(js)), nil
	}
	return nil, fmt.Errorf("unsupported stream type %T", src)
}

func streamSeq(s stream) iter.Seq[any] {
	return func(yield func(any) bool) {
		defer s.Stop()
		for {
			v, ok := s.Next()
			if !ok {
				return
			}
			if !yield(v) {
				return
			}
		}
	}
}

// executeStore drains one shared cursor across the destination list, left
// to right. Each size limit is evaluated fresh, so it may reference
// variables mutated by earlier destinations of the same statement.
func executeStore(ctx context.Context, ec *Context, s *model.Store) error {
	st, err := evalStream(ctx, ec, s.Source)
	if err != nil {
		return err
	}
	defer st.Stop()
	for _, d := range s.Destinations {
		var group []any
		if d.Limit != nil {
			limit, err := evalFloat(ctx, ec, d.Limit)
			if err != nil {
				return err
			}
			group = take(st, int(limit))
		} else {
			group = drain(st)
		}
		ec.Set(d.Group.Name, group)
	}
	return nil
}

func executeEval(ctx context.Context, ec *Context, s *model.EvalStmt) error {
	if ec.Evaluate == nil {
		return fmt.Errorf("no evaluator driver configured")
	}
	var evaluator any
	if len(s.Evaluators) > 0 {
		var err error
		evaluator, err = evalExpr(ctx, ec, s.Evaluators[0])
		if err != nil {
			return err
		}
	}
	for _, g := range s.Sources {
		group, err := groupItems(ec, g.Group.Name)
		if err != nil {
			return err
		}
		if err := ec.Evaluate(ctx, ec, g.Group.Name, group, evaluator); err != nil {
			return err
		}
	}
	return nil
}

func executeYield(ec *Context, s *model.YieldStmt) error {
	for _, g := range s.Sources {
		group, err := groupItems(ec, g.Group.Name)
		if err != nil {
			return err
		}
		if ec.OnYield != nil {
			ec.OnYield(g.Group.Name, group)
		}
	}
	return nil
}

// executeRepeat evaluates the count once per invocation, then runs the body
// that many times with no isolation between iterations.
func executeRepeat(ctx context.Context, ec *Context, s *model.RepeatBlock) error {
	if s.Count == nil {
		return fmt.Errorf("repeat block has no count")
	}
	count, err := evalFloat(ctx, ec, s.Count)
	if err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		if err := ExecuteBlock(ctx, ec, s.Statements); err != nil {
			return err
		}
	}
	return nil
}
