package engine

import (
	"fmt"
	"iter"
)

// stream is a single-pass cursor over a sequence of individuals.
type stream interface {
	Next() (any, bool)
	Stop()
}

// RemainderView is an optional stream capability: the unconsumed tail can
// be materialized in one step. Slice-backed group streams support it;
// operator outputs generally do not.
type RemainderView interface {
	Remainder() []any
}

type sliceStream struct {
	items []any
	pos   int
}

func (s *sliceStream) Next() (any, bool) {
	if s.pos >= len(s.items) {
		return nil, false
	}
	v := s.items[s.pos]
	s.pos++
	return v, true
}

func (s *sliceStream) Stop() {}

func (s *sliceStream) Remainder() []any {
	rest := s.items[s.pos:]
	s.pos = len(s.items)
	out := make([]any, len(rest))
	copy(out, rest)
	return out
}

type seqStream struct {
	next func() (any, bool)
	stop func()
}

func newSeqStream(seq iter.Seq[any]) *seqStream {
	next, stop := iter.Pull(seq)
	return &seqStream{next: next, stop: stop}
}

func (s *seqStream) Next() (any, bool) { return s.next() }
func (s *seqStream) Stop()             { s.stop() }

func seqOf(items []any) iter.Seq[any] {
	return func(yield func(any) bool) {
		for _, v := range items {
			if !yield(v) {
				return
			}
		}
	}
}

func chain(seqs []iter.Seq[any]) iter.Seq[any] {
	return func(yield func(any) bool) {
		for _, s := range seqs {
			for v := range s {
				if !yield(v) {
					return
				}
			}
		}
	}
}

// toSeq converts a function result into a lazy sequence. Functions may
// return either a materialized slice or a sequence of their own.
func toSeq(v any) (iter.Seq[any], error) {
	switch v := v.(type) {
	case iter.Seq[any]:
		return v, nil
	case func(func(any) bool):
		return v, nil
	case []any:
		return seqOf(v), nil
	}
	return nil, fmt.Errorf("value of type %T is not a sequence", v)
}

// drain materializes an entire sequence. Only safe on finite sequences.
func drain(s stream) []any {
	if r, ok := s.(RemainderView); ok {
		return r.Remainder()
	}
	var out []any
	for {
		v, ok := s.Next()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

// take consumes up to n items from a stream.
func take(s stream, n int) []any {
	out := make([]any, 0, max(n, 0))
	for len(out) < n {
		v, ok := s.Next()
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}
