package telemetry

import (
	"io"

	"rrsched/core"
)

// Writer batches trace events into frames and writes each finished frame
// to the underlying writer. It is not safe for concurrent use.
type Writer struct {
	w       io.Writer
	frame   *ScratchOutput
	event   *ScratchOutput
	seq     uint8
	pending int // Events in the open frame
}

// NewWriter creates a Writer sending frames to w
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:     w,
		frame: NewScratchOutput(),
		event: NewScratchOutput(),
	}
}

// EncodeEvent appends the payload encoding of e to output
func EncodeEvent(output OutputBuffer, e core.TraceEvent) {
	EncodeVLQUint(output, uint32(e.Kind))
	EncodeVLQUint(output, uint32(e.ID))
	EncodeVLQUint(output, uint32(e.Slot))
	EncodeVLQUint(output, e.Second)
	EncodeVLQUint(output, e.Value)
}

// WriteEvent queues e, flushing the open frame first if e does not fit
func (fw *Writer) WriteEvent(e core.TraceEvent) error {
	fw.event.Reset()
	EncodeEvent(fw.event, e)
	encoded := fw.event.Result() // At most 25 bytes, always fits an empty frame

	if fw.pending > 0 {
		payload := fw.frame.CurPosition() - MessageHeaderSize
		if payload+len(encoded) > MessagePayloadMax {
			if err := fw.Flush(); err != nil {
				return err
			}
		}
	}

	if fw.pending == 0 {
		// Length placeholder and sequence
		fw.frame.Output([]byte{0, MessageDest | (fw.seq & MessageSeqMask)})
	}
	fw.frame.Output(encoded)
	fw.pending++
	return nil
}

// Flush closes the open frame and writes it. No-op if nothing is queued.
func (fw *Writer) Flush() error {
	if fw.pending == 0 {
		return nil
	}

	msgLen := fw.frame.CurPosition() + MessageTrailerSize
	fw.frame.Update(MessagePositionLen, uint8(msgLen))

	crc := CRC16(fw.frame.DataSince(0))
	fw.frame.Output([]byte{
		uint8((crc & 0xFF00) >> 8),
		uint8(crc & 0xFF),
		MessageValueSync,
	})

	_, err := fw.w.Write(fw.frame.Result())
	fw.frame.Reset()
	fw.pending = 0
	fw.seq = (fw.seq + 1) & MessageSeqMask
	return err
}
