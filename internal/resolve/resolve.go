// Package resolve evaluates confidence-ranked candidate functions and keeps
// the first one that produces a valid value.
package resolve

// Candidate is one stage of a chain. Compute reports false when it has no answer.
type Candidate[T any] struct {
	Name       string
	Confidence float64
	Compute    func() (T, bool)
}

// Result is the winning value together with the stage that produced it.
// OK is false when every stage declined; Value is then the chain's zero value.
type Result[T any] struct {
	Value      T
	Name       string
	Confidence float64
	OK         bool
}

// Chain runs candidates in order
type Chain[T any] struct {
	candidates []Candidate[T]
	valid      func(T) bool
}

// NewChain creates a chain. valid may be nil, in which case every value a
// candidate reports is accepted.
func NewChain[T any](valid func(T) bool, candidates ...Candidate[T]) *Chain[T] {
	return &Chain[T]{candidates: candidates, valid: valid}
}

// Evaluate returns the first valid result. A panicking candidate counts as declined.
func (c *Chain[T]) Evaluate() Result[T] {
	for _, cand := range c.candidates {
		v, ok := safeCompute(cand.Compute)
		if !ok {
			continue
		}
		if c.valid != nil && !c.valid(v) {
			continue
		}
		return Result[T]{Value: v, Name: cand.Name, Confidence: cand.Confidence, OK: true}
	}
	var zero T
	return Result[T]{Value: zero}
}

func safeCompute[T any](fn func() (T, bool)) (v T, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			v, ok = zero, false
		}
	}()
	return fn()
}
