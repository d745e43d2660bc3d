package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/vcore/internal/vdom"
)

// AssertionError is returned when an assertion fails.
// It carries the recorded mutations to help debug the failure.
type AssertionError struct {
	Type      string          // Assertion type for categorization
	Expected  string          // Human-readable expected outcome
	Actual    string          // Human-readable actual outcome
	Mutations []vdom.Mutation // Mutations the assertion looked at
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Mutations) > 0 {
		fmt.Fprintf(&buf, "\nMutations:\n")
		for i, m := range e.Mutations {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, m)
		}
	}

	return buf.String()
}

// assertMutationCount checks the number of mutations, optionally of one op.
func assertMutationCount(muts []vdom.Mutation, a Assertion) error {
	n := 0
	for _, m := range muts {
		if a.Op == "" || string(m.Op) == a.Op {
			n++
		}
	}
	if n == a.Count {
		return nil
	}
	what := "mutations"
	if a.Op != "" {
		what = a.Op + " mutations"
	}
	return &AssertionError{
		Type:      AssertMutationCount,
		Expected:  fmt.Sprintf("%d %s", a.Count, what),
		Actual:    fmt.Sprintf("%d %s", n, what),
		Mutations: muts,
	}
}

// assertMutationOrder checks that ops appear in the given order.
// Other mutations may appear between them.
func assertMutationOrder(muts []vdom.Mutation, a Assertion) error {
	next := 0
	for _, m := range muts {
		if next < len(a.Ops) && string(m.Op) == a.Ops[next] {
			next++
		}
	}
	if next == len(a.Ops) {
		return nil
	}
	return &AssertionError{
		Type:      AssertMutationOrder,
		Expected:  fmt.Sprintf("ops in order: %s", strings.Join(a.Ops, " -> ")),
		Actual:    fmt.Sprintf("matched %d of %d, first missing %q", next, len(a.Ops), a.Ops[next]),
		Mutations: muts,
	}
}

// assertNoStructural checks that updates only touched text and attributes.
func assertNoStructural(muts []vdom.Mutation) error {
	for _, m := range muts {
		if m.Op.IsStructural() {
			return &AssertionError{
				Type:      AssertNoStructural,
				Expected:  "only set_text, set_attribute and remove_attribute after rebuild",
				Actual:    m.String(),
				Mutations: muts,
			}
		}
	}
	return nil
}

// assertTextSequence checks the set_text values, in order.
func assertTextSequence(muts []vdom.Mutation, a Assertion) error {
	texts := []string{}
	for _, m := range muts {
		if m.Op == vdom.OpSetText {
			texts = append(texts, m.Value)
		}
	}
	if slices.Equal(texts, a.Texts) {
		return nil
	}
	return &AssertionError{
		Type:      AssertTextSequence,
		Expected:  fmt.Sprintf("%q", a.Texts),
		Actual:    fmt.Sprintf("%q", texts),
		Mutations: muts,
	}
}

// assertErrorCode checks that some step finished with the code.
func assertErrorCode(codes []string, a Assertion) error {
	if slices.Contains(codes, a.Code) {
		return nil
	}
	return &AssertionError{
		Type:     AssertErrorCode,
		Expected: a.Code,
		Actual:   fmt.Sprintf("codes %q", codes),
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
//
// mutation_count, mutation_order and text_sequence look at every pass;
// no_structural skips the rebuild.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string

	all := result.Mutations(false)
	updates := result.Mutations(true)

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertMutationCount:
			err = assertMutationCount(all, assertion)
		case AssertMutationOrder:
			err = assertMutationOrder(all, assertion)
		case AssertNoStructural:
			err = assertNoStructural(updates)
		case AssertTextSequence:
			err = assertTextSequence(all, assertion)
		case AssertErrorCode:
			err = assertErrorCode(result.Codes, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
