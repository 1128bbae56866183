// Package vm implements the Javelin bytecode interpreter.
//
// This package contains:
//   - Tagged-slot frame storage for locals and the operand stack
//   - The instruction decoder and dispatch loop
//   - Lazy call/field-site specialization backed by a per-method side table
//   - Table-driven exception dispatch with a zero-allocation
//     stack-exhaustion path
//   - Exact integer and floating arithmetic primitives
package vm
