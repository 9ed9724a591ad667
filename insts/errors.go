package insts

import "errors"

// Encoding errors. All of them are fatal to the program being assembled.
var (
	// ErrPortConflict is returned when an instruction needs a third distinct
	// register-file read or two different small immediates.
	ErrPortConflict = errors.New("read port conflict")

	// ErrInvalidOperand is returned for a source operand that is neither an
	// accumulator, a register-file entry nor an exact small immediate.
	ErrInvalidOperand = errors.New("invalid operand")

	// ErrInvalidSignal is returned when the signal set of an instruction is
	// not one the hardware can encode.
	ErrInvalidSignal = errors.New("invalid signal")

	// ErrOperandArity is returned when a second source is given without a
	// first one, or when a mnemonic needs a source that was not given.
	ErrOperandArity = errors.New("malformed operand arity")

	// ErrNotFinalized is returned when a word is requested before the
	// program was finalized.
	ErrNotFinalized = errors.New("instruction not finalized")

	ErrFinalized          = errors.New("instruction already finalized")
	ErrUnknownMnemonic    = errors.New("unknown mnemonic")
	ErrInvalidDestination = errors.New("invalid destination")
	ErrInvalidCondition   = errors.New("invalid condition")
	ErrConditionConflict  = errors.New("condition pairing not encodable")
	ErrPipeBusy           = errors.New("pipe already issued")
)
