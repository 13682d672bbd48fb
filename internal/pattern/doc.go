// Package pattern compiles match expressions into executable patterns.
//
// The expression syntax is a small subset of the Rosie Pattern Language:
// named character classes ([:digit:]), bracket sets, string literals,
// sequence, ordered choice (/), grouping, and the usual repetition
// operators. Identifiers refer to definitions held in an Env, typically
// loaded from a manifest.
//
// Expressions are translated to RE2 syntax and executed by go-re2. Matching
// is anchored at the start position, and every non-alias definition that
// participates in a match is reported as a sub-match:
//
//	env := pattern.NewEnv()
//	env.Define(pattern.Definition{Name: "num.int", Expr: "[:digit:]+", Package: "num"})
//	p, err := pattern.Compile(`num.int "." num.int`, env)
//	m, leftover, err := p.Match([]byte("3.14 rest"), 1)
//	// m.Data == "3.14", leftover == 5, m.Subs holds both num.int matches
//
// ^ matches only at the first byte of the input, so a pattern using it
// fails when matching starts later. . matches one character, or a single
// byte where the input is not valid UTF-8. Character classes and bracket
// sets match characters only.
//
// A repetition whose body reports sub-matches reports them for every
// iteration, in input order.
//
// RE2 has no lookaround, so predicates (!, >, <) are rejected with
// ErrUnsupported.
package pattern
