// Package relocate implements both halves of the relocation contract.
//
// The emission half (PlanRelocation) is what the compiler does at every
// point it relocates a value by bitwise copy: consult the presence trait,
// fetch the synthesized hook, and reject the site when the qualified hook
// does not exist, is disabled, or is weaker than the effects the calling
// context demands. Types without elaborate move cost nothing: the hook
// invocation is elided outright.
//
// The execution half (Arena, Relocate, Swap) is a modeled memory in which
// relocations actually run: bitwise copy old to new, invoke the hook
// exactly once, then retire the old storage without running any
// destruction logic on it. Generic utilities performing a manual move are
// held to the same sequence.
package relocate
