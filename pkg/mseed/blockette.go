package mseed

import (
	"encoding/binary"
	"fmt"
)

// Blockette type codes.
const (
	TypeSampleRate              uint16 = 100
	TypeEventDetection          uint16 = 200
	TypeMurdockEvent            uint16 = 201
	TypeStepCalibration         uint16 = 300
	TypeSineCalibration         uint16 = 310
	TypePseudoRandomCalibration uint16 = 320
	TypeGenericCalibration      uint16 = 390
	TypeCalibrationAbort        uint16 = 395
	TypeBeam                    uint16 = 400
	TypeBeamDelay               uint16 = 405
	TypeTiming                  uint16 = 500
	TypeDataExtension           uint16 = 1000
	TypeTimeExtension           uint16 = 1001
	TypeOpaque                  uint16 = 2000
)

// Blockette is one entry of a record's blockette chain. The value is owned by
// the Record that decoded it and is overwritten on the next Load.
type Blockette interface {
	// Type returns the wire type code.
	Type() uint16
	// Offset returns the position of the blockette within its record.
	Offset() int
	// Next returns the offset of the following blockette, 0 at the end.
	Next() int
	// Bytes returns the raw blockette bytes.
	Bytes() []byte
	// Encode writes the decoded fields back into Bytes.
	Encode(order binary.ByteOrder)

	base() *blocketteBase
	decode(order binary.ByteOrder)
}

type blocketteBase struct {
	typ    uint16
	offset int
	next   int
	raw    []byte
}

func (b *blocketteBase) Type() uint16         { return b.typ }
func (b *blocketteBase) Offset() int          { return b.offset }
func (b *blocketteBase) Next() int            { return b.next }
func (b *blocketteBase) Bytes() []byte        { return b.raw }
func (b *blocketteBase) base() *blocketteBase { return b }

// load copies src into the reusable buffer, growing it only when undersized.
func (b *blocketteBase) load(typ uint16, offset, next int, src []byte) {
	b.typ = typ
	b.offset = offset
	b.next = next
	b.raw = append(b.raw[:0], src...)
}

func (b *blocketteBase) encodeHeader(order binary.ByteOrder) {
	order.PutUint16(b.raw[0:], b.typ)
	order.PutUint16(b.raw[2:], uint16(b.next))
}

// SetNext changes the chain pointer held in the blockette bytes.
func (b *blocketteBase) SetNext(next int, order binary.ByteOrder) {
	b.next = next
	order.PutUint16(b.raw[2:], uint16(next))
}

type blocketteKind struct {
	typ  uint16
	size int // 0 for variable length
	make func() Blockette
}

const (
	kindSampleRate = iota
	kindEventDetection
	kindMurdockEvent
	kindStepCalibration
	kindSineCalibration
	kindPseudoRandomCalibration
	kindGenericCalibration
	kindCalibrationAbort
	kindBeam
	kindBeamDelay
	kindTiming
	kindDataExtension
	kindTimeExtension
	kindOpaque
	kindUnknown
	kindCount
)

var blocketteKinds = [kindCount]blocketteKind{
	kindSampleRate:              {TypeSampleRate, 12, func() Blockette { return &SampleRate{} }},
	kindEventDetection:          {TypeEventDetection, 52, func() Blockette { return &EventDetection{} }},
	kindMurdockEvent:            {TypeMurdockEvent, 60, func() Blockette { return &MurdockEvent{} }},
	kindStepCalibration:         {TypeStepCalibration, 60, func() Blockette { return &StepCalibration{} }},
	kindSineCalibration:         {TypeSineCalibration, 60, func() Blockette { return &SineCalibration{} }},
	kindPseudoRandomCalibration: {TypePseudoRandomCalibration, 64, func() Blockette { return &PseudoRandomCalibration{} }},
	kindGenericCalibration:      {TypeGenericCalibration, 28, func() Blockette { return &GenericCalibration{} }},
	kindCalibrationAbort:        {TypeCalibrationAbort, 16, func() Blockette { return &CalibrationAbort{} }},
	kindBeam:                    {TypeBeam, 16, func() Blockette { return &Beam{} }},
	kindBeamDelay:               {TypeBeamDelay, 6, func() Blockette { return &BeamDelay{} }},
	kindTiming:                  {TypeTiming, 200, func() Blockette { return &Timing{} }},
	kindDataExtension:           {TypeDataExtension, 8, func() Blockette { return &DataExtension{} }},
	kindTimeExtension:           {TypeTimeExtension, 8, func() Blockette { return &TimeExtension{} }},
	kindOpaque:                  {TypeOpaque, 0, func() Blockette { return &Opaque{} }},
	kindUnknown:                 {0, 0, func() Blockette { return &Unknown{} }},
}

var kindByType = func() map[uint16]int {
	m := make(map[uint16]int, kindCount)
	for k := 0; k < kindUnknown; k++ {
		m[blocketteKinds[k].typ] = k
	}
	return m
}()

func kindOf(typ uint16) int {
	if k, ok := kindByType[typ]; ok {
		return k
	}
	return kindUnknown
}

// BlocketteSize returns the fixed wire size of a known blockette type, or 0
// for variable length and unknown types.
func BlocketteSize(typ uint16) int {
	return blocketteKinds[kindOf(typ)].size
}

// Compatibility rule for one historical producer: during 2006 and 2007 some
// dataloggers wrote the type code of blockette 1001 byte-swapped inside an
// otherwise big-endian header.
const (
	swappedTimeExtensionType = 0xE903
	swappedTypeWindowStart   = 2006001 // yyyyddd
	swappedTypeWindowEnd     = 2007365
)

func compatType(typ uint16, start BTime) uint16 {
	if typ != swappedTimeExtensionType {
		return typ
	}
	yd := int(start.Year)*1000 + int(start.Day)
	if yd >= swappedTypeWindowStart && yd <= swappedTypeWindowEnd {
		return TypeTimeExtension
	}
	return typ
}

// arena holds one grow-only list of blockette values per kind. Reloading a
// record resets the counters and reuses the same values and byte buffers.
type arena struct {
	slots [kindCount][]Blockette
	used  [kindCount]int
}

func (a *arena) reset() {
	a.used = [kindCount]int{}
}

func (a *arena) take(kind int) Blockette {
	i := a.used[kind]
	if i == len(a.slots[kind]) {
		a.slots[kind] = append(a.slots[kind], blocketteKinds[kind].make())
	}
	a.used[kind]++
	return a.slots[kind][i]
}

// chainWalk describes one pass over a record's blockette chain.
type chainWalk struct {
	buf       []byte
	first     int
	count     int
	recordLen int
	order     binary.ByteOrder
	start     BTime
}

// decodeChain appends the decoded blockettes to out. A corrupt entry stops
// the walk with an anomaly; everything decoded before it is kept.
func (a *arena) decodeChain(w chainWalk, out []Blockette, report func(kind AnomalyKind, off int, msg string)) []Blockette {
	off := w.first
	for i := 0; i < w.count; i++ {
		if off < FixedHeaderSize || off >= w.recordLen {
			report(MalformedBlocketteChain, off, fmt.Sprintf("blockette %d offset outside [%d,%d)", i+1, FixedHeaderSize, w.recordLen))
			return out
		}
		if off+4 > w.recordLen || off+4 > len(w.buf) {
			report(MalformedBlocketteChain, off, "blockette header overruns record")
			return out
		}
		typ := compatType(w.order.Uint16(w.buf[off:]), w.start)
		next := int(w.order.Uint16(w.buf[off+2:]))
		kind := kindOf(typ)

		size := blocketteKinds[kind].size
		switch kind {
		case kindOpaque:
			if off+6 <= len(w.buf) {
				size = int(w.order.Uint16(w.buf[off+4:]))
			}
		case kindUnknown:
			end := next
			if next == 0 {
				end = w.recordLen
			}
			size = end - off
		}
		if size < 4 || off+size > w.recordLen || off+size > len(w.buf) {
			report(MalformedBlocketteChain, off, fmt.Sprintf("blockette %d type %d has bad length %d", i+1, typ, size))
			return out
		}

		b := a.take(kind)
		b.base().load(typ, off, next, w.buf[off:off+size])
		b.decode(w.order)
		out = append(out, b)

		if next == 0 {
			if i < w.count-1 {
				report(MalformedBlocketteChain, off, fmt.Sprintf("chain ended after %d of %d blockettes", i+1, w.count))
			}
			return out
		}
		if next <= off {
			report(MalformedBlocketteChain, off, fmt.Sprintf("blockette %d points backwards to %d", i+1, next))
			return out
		}
		off = next
	}
	return out
}
