package telemetry

import "rrsched/core"

// DecoderStats counts what a Decoder has seen
type DecoderStats struct {
	Frames    uint32 // Frames that passed CRC
	Events    uint32 // Events delivered
	Resyncs   uint32 // Times the stream lost framing
	SeqGaps   uint32 // Frames whose sequence skipped ahead (frames lost)
	BadEvents uint32 // CRC-valid frames with an undecodable payload
}

// Decoder reassembles frames from an arbitrary byte stream and decodes the
// events they carry. Garbage and corrupt frames are skipped by hunting for
// the next sync byte. It is not safe for concurrent use.
type Decoder struct {
	fifo         *FifoBuffer
	synchronized bool
	haveSeq      bool
	nextSeq      uint8
	stats        DecoderStats
}

// NewDecoder creates a Decoder
func NewDecoder() *Decoder {
	return &Decoder{
		fifo:         NewFifoBuffer(MessageMax),
		synchronized: true,
	}
}

// Feed consumes stream bytes and calls fn for every decoded event.
// Incomplete frames are kept until more bytes arrive.
// Returns the number of events delivered.
func (d *Decoder) Feed(data []byte, fn func(core.TraceEvent)) int {
	delivered := 0
	for len(data) > 0 {
		n := d.fifo.Write(data)
		data = data[n:]

		buf := d.fifo.Data()
		input := NewSliceInputBuffer(buf)
		delivered += d.receive(input, fn)
		d.fifo.Pop(len(buf) - input.Available())

		if n == 0 && d.fifo.Free() == 0 {
			// Nothing could be consumed from a full buffer
			d.fifo.Reset()
			d.synchronized = false
			d.stats.Resyncs++
		}
	}
	return delivered
}

// Stats returns the decoder counters
func (d *Decoder) Stats() DecoderStats {
	return d.stats
}

// receive parses every complete frame in input
func (d *Decoder) receive(input InputBuffer, fn func(core.TraceEvent)) int {
	data := input.Data()
	delivered := 0

	for len(data) > 0 {
		if !d.synchronized {
			// Look for sync byte to resynchronize
			syncPos := -1
			for i, b := range data {
				if b == MessageValueSync {
					syncPos = i
					break
				}
			}
			if syncPos < 0 {
				data = nil
				break
			}
			data = data[syncPos+1:]
			d.synchronized = true
			continue
		}

		// Skip leading sync bytes
		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePositionLen])
		if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
			d.desync()
			continue
		}

		seq := data[MessagePositionSeq]
		if seq&^MessageSeqMask != MessageDest {
			d.desync()
			continue
		}

		// Wait for full message
		if len(data) < msgLen {
			break
		}

		if data[msgLen-MessageTrailerSync] != MessageValueSync {
			d.desync()
			continue
		}

		frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
			uint16(data[msgLen-MessageTrailerCRC+1])
		if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
			d.desync()
			continue
		}

		payload := data[MessageHeaderSize : msgLen-MessageTrailerSize]
		data = data[msgLen:]

		d.stats.Frames++
		if d.haveSeq && seq != d.nextSeq {
			d.stats.SeqGaps++
		}
		d.haveSeq = true
		d.nextSeq = ((seq + 1) & MessageSeqMask) | MessageDest

		delivered += d.decodePayload(payload, fn)
	}

	input.Pop(input.Available() - len(data))
	return delivered
}

func (d *Decoder) desync() {
	d.synchronized = false
	d.stats.Resyncs++
}

// decodePayload delivers every event in a CRC-valid payload
func (d *Decoder) decodePayload(payload []byte, fn func(core.TraceEvent)) int {
	delivered := 0
	for len(payload) > 0 {
		e, err := DecodeEvent(&payload)
		if err != nil {
			d.stats.BadEvents++
			return delivered
		}
		d.stats.Events++
		delivered++
		if fn != nil {
			fn(e)
		}
	}
	return delivered
}

// DecodeEvent decodes one event and advances data past it
func DecodeEvent(data *[]byte) (core.TraceEvent, error) {
	var fields [5]uint32
	for i := range fields {
		v, err := DecodeVLQUint(data)
		if err != nil {
			return core.TraceEvent{}, err
		}
		fields[i] = v
	}
	return core.TraceEvent{
		Kind:   core.EventKind(fields[0]),
		ID:     uint8(fields[1]),
		Slot:   uint8(fields[2]),
		Second: fields[3],
		Value:  fields[4],
	}, nil
}
