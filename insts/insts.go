// Package insts provides V3D QPU instruction definitions, encoding and decoding.
//
// This package turns symbolic QPU operations into the 64-bit machine words
// executed by the VideoCore VI (V3D 4.2) QPU. It supports:
//   - ALU instructions: one add-pipe and one mul-pipe operation per word
//     (dual issue), with signals and per-pipe conditions
//   - Branch instructions: to a general-file register or to a label
//   - Small immediates on read port B
//   - Decoding machine words back into their bit fields
//
// Usage:
//
//	inst := insts.NewALU()
//	err := inst.Apply(insts.Add("add", "rf2", insts.Reg("rf0"), insts.Reg("rf1")))
//	inst.Freeze()
//	word, err := inst.Encode()
package insts
