// Package hook synthesizes post-move hooks for relocatable value types.
//
// A struct may declare a post-move callback that repairs references after
// the compiler relocates an instance by bitwise copy. The synthesized hook
// for a type visits every field in declaration order, running the field
// type's own hook first, and invokes the type's callback last, so a parent
// callback always observes already-repaired children.
//
// The Analyzer memoizes two derived artifacts per type: the presence trait
// (does relocation of this type require any hook at all) and the hook plan
// for each qualifier. Types whose presence trait is false get an empty plan
// and call sites elide the hook entirely; that is the zero-cost guarantee.
package hook
