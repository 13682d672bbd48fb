// Package engine implements one pattern-matching engine instance.
//
// An Engine owns a definition environment, its effective configuration and
// the pattern compiled from that configuration. Its lifecycle is:
//
//	New        Uninitialized -> Ready (home directory validated)
//	Configure  Ready -> Ready (patch applied, or nothing changes)
//	Inspect    Ready -> Ready (read only)
//	LoadManifest Ready -> Ready (definitions merged, or nothing changes)
//	Match      Ready -> Ready
//	Close      Ready -> Finalized
//
// Every mutating operation builds its new state on the side and swaps it in
// only after it fully succeeded. A failed call leaves the engine exactly as
// it was, so the last good configuration stays in effect.
//
// Once closed, every operation returns an error with code FINALIZED.
//
// Methods are serialized by a per-engine mutex. Callers that need parallel
// matching create several engines.
package engine
