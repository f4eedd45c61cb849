package types

import "fmt"

// Creator identifies the user who owns a Param, Indicator, or Strategy.
// Param/Indicator/Strategy identity is (creator, name) per spec.md §3.
type Creator string

// FQName builds the fully-qualified name "<creator>.<name>" used to key the
// value panel and every parameter view passed to user code (spec.md §9,
// "Fully-qualified parameter naming").
func FQName(creator Creator, name string) string {
	return fmt.Sprintf("%s.%s", creator, name)
}
