package ledger

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace is the error namespace for ledger errors.
const Codespace = "pickem"

var (
	ErrDuplicateKey              = errorsmod.Register(Codespace, 2, "series already exists")
	ErrInvalidFee                = errorsmod.Register(Codespace, 3, "entry fee too low")
	ErrInvalidDuration           = errorsmod.Register(Codespace, 4, "duration out of range")
	ErrNotFound                  = errorsmod.Register(Codespace, 5, "series not found")
	ErrSeriesClosed              = errorsmod.Register(Codespace, 6, "series closed")
	ErrSeriesLocked              = errorsmod.Register(Codespace, 7, "series locked")
	ErrIncorrectFee              = errorsmod.Register(Codespace, 8, "incorrect entry fee")
	ErrAlreadyEntered            = errorsmod.Register(Codespace, 9, "already entered")
	ErrInvalidConfidentialProof  = errorsmod.Register(Codespace, 10, "invalid confidential proof")
	ErrAlreadySettledOrCancelled = errorsmod.Register(Codespace, 11, "already settled or cancelled")
	ErrNotYetLocked              = errorsmod.Register(Codespace, 12, "not yet locked")
	ErrNotSettled                = errorsmod.Register(Codespace, 13, "not settled")
	ErrNotAWinner                = errorsmod.Register(Codespace, 14, "not a winner")
	ErrNotEligible               = errorsmod.Register(Codespace, 15, "not eligible for refund")
	ErrAlreadyClaimed            = errorsmod.Register(Codespace, 16, "already claimed")
	ErrUnauthorized              = errorsmod.Register(Codespace, 17, "unauthorized")
	ErrInvalidRequest            = errorsmod.Register(Codespace, 18, "invalid request")
	ErrInvalidSide               = errorsmod.Register(Codespace, 19, "invalid side")
	ErrInvalidOutcome            = errorsmod.Register(Codespace, 20, "invalid outcome")
	ErrTransferFailed            = errorsmod.Register(Codespace, 21, "fund transfer failed")
)
