// Package abi defines the values that cross the engine boundary.
//
// A Buffer is a length-prefixed byte view. An Array is a counted, ordered
// sequence of Buffers produced by an engine call. Arrays are engine-owned:
// they are issued by a Ledger and must be released through the same Ledger
// exactly once.
//
// # Ownership
//
// Inputs are caller-owned. The engine copies whatever it keeps, so a caller
// may reuse or mutate an input Buffer as soon as the call returns.
//
// Outputs are engine-owned until released:
//
//	arr := ledger.Issue([]byte("true"), payload)
//	strs, _ := arr.Strings()
//	if err := ledger.Release(arr); err != nil {
//	    // ErrDoubleFree, ErrForeignArray or ErrNilArray
//	}
//
// After Release every accessor on the Array fails with ErrReleased.
//
// # Lengths
//
// Lengths are always carried explicitly. Nothing in this package scans for a
// terminator, so embedded zero bytes survive every conversion.
package abi
