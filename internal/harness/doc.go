// Package harness runs conformance scenarios against the boundary runtime.
//
// A scenario is a YAML list of boundary calls, each with an optional
// expectation, followed by assertions over the recorded trace and the call
// journal:
//
//	name: digits
//	description: "Configure a digit pattern and match against it"
//	home: ../home
//	steps:
//	  - op: initialize
//	  - op: configure
//	    input: '{"expression":"[:digit:]+","encode":"json"}'
//	    expect: { status: "true" }
//	  - op: match
//	    input: "321"
//	    extra: "2"
//	    expect:
//	      status: "true"
//	      items: ['{"type":"*","s":2,"e":4,"data":"21"}', "0", "true"]
//	  - op: finalize
//	assertions:
//	  - type: trace_order
//	    ops: [initialize, configure, match, finalize]
//	  - type: journal_count
//	    op: match
//	    count: 1
//
// # Steps
//
// Every step names an op (initialize, configure, inspect, load_manifest,
// match, free, finalize) and the engine alias it targets, "main" unless
// given. initialize with no input uses the scenario home. The literal
// {home} inside an input expands to the scenario home.
//
// The harness frees every result array right after recording it unless the
// step sets keep. A free step releases the most recent array again, so a
// free after a step without keep reports a double free.
//
// # Assertion Types
//
//   - trace_contains: a step with the op (and engine, status when given) ran
//   - trace_order: the ops ran in this order, not necessarily adjacent
//   - trace_count: the op ran exactly count times
//   - journal_count: the journal holds exactly count calls of the op
//   - outstanding: exactly count arrays were live after the last step
//
// # Deterministic Testing
//
// Engine ids come from engine.SequentialGenerator, trace seqs from a fresh
// logical clock and the journal lives in memory, so the same scenario
// always yields the same trace. The home directory is written as <home> in
// traces, which keeps golden files independent of temporary paths.
package harness
