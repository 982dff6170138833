package krpc

import "errors"

// Standard KRPC error codes.
const (
	ErrCodeGeneric        = 201
	ErrCodeServer         = 202
	ErrCodeProtocol       = 203
	ErrCodeUnknownMethod  = 204
	ErrMessageInvalidTok  = "Invalid token"
	ErrMessageUnknownMeth = "Unknown method"
)

// Decoder/dispatch error taxonomy. Each is handled at the message
// boundary and never surfaces past the engine.
var (
	ErrMalformedMessage   = errors.New("krpc: malformed message")
	ErrUnsolicitedResp    = errors.New("krpc: unsolicited response")
	ErrAddressMismatch    = errors.New("krpc: response address mismatch")
	ErrUnknownMethod      = errors.New("krpc: unknown query method")
	ErrInvalidToken       = errors.New("krpc: invalid token")
	ErrTransactionTimeout = errors.New("krpc: transaction timed out")
)
