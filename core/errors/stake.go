package errors

import stderrors "errors"

var (
	ErrOverflow             = stderrors.New("stake: arithmetic overflow")
	ErrUnderflow            = stderrors.New("stake: arithmetic underflow")
	ErrInvalidLockPeriod    = stderrors.New("stake: lock period below minimum freeze period")
	ErrLockPeriodNotElapsed = stderrors.New("stake: lock period not elapsed")
	ErrUnauthorized         = stderrors.New("stake: unauthorized")
	ErrRecordNotFound       = stderrors.New("stake: position not found")
	ErrDuplicatePosition    = stderrors.New("stake: position already exists")
	ErrCustodyFailure       = stderrors.New("stake: custody failure")
	ErrAlreadyInitialized   = stderrors.New("stake: config already initialized")
	ErrNotInitialized       = stderrors.New("stake: config not initialized")
	ErrInvalidAsset         = stderrors.New("stake: invalid asset")
)
