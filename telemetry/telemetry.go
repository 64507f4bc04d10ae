// Package telemetry frames scheduler trace events for a serial link.
//
// Frames follow the Klipper message block layout:
//
//	[len][seq][payload...][crc_hi][crc_lo][0x7E]
//
// len counts the whole frame, seq carries 0x10 in its high nibble and a
// rolling counter in the low nibble, and the CRC covers len, seq and payload.
// The payload is a run of events, each five VLQ-encoded fields:
// kind, id, slot, second, value.
package telemetry

// Framing constants
const (
	MessageMax         = 512 // Scratch buffer size
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePayloadMax  = MessageLengthMax - MessageLengthMin
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
	MessageSeqMask     = 0x0F
)
