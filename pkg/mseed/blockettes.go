package mseed

import (
	"encoding/binary"
	"math"
	"strings"
)

func getF32(b []byte, order binary.ByteOrder) float32 {
	return math.Float32frombits(order.Uint32(b))
}

func putF32(b []byte, order binary.ByteOrder, v float32) {
	order.PutUint32(b, math.Float32bits(v))
}

func trimField(b []byte) string {
	return strings.TrimRight(string(b), " \x00")
}

// SampleRate is blockette 100, an exact floating point sample rate.
type SampleRate struct {
	blocketteBase
	Rate  float32
	Flags uint8
}

func (b *SampleRate) decode(o binary.ByteOrder) {
	b.Rate = getF32(b.raw[4:], o)
	b.Flags = b.raw[8]
}

func (b *SampleRate) Encode(o binary.ByteOrder) {
	b.encodeHeader(o)
	putF32(b.raw[4:], o, b.Rate)
	b.raw[8] = b.Flags
}

// EventDetection is blockette 200, a generic event detection.
type EventDetection struct {
	blocketteBase
	Amplitude  float32
	Period     float32
	Background float32
	Flags      uint8
	Onset      BTime
	detector   [24]byte
}

// Detector returns the detector name.
func (b *EventDetection) Detector() string { return trimField(b.detector[:]) }

func (b *EventDetection) decode(o binary.ByteOrder) {
	b.Amplitude = getF32(b.raw[4:], o)
	b.Period = getF32(b.raw[8:], o)
	b.Background = getF32(b.raw[12:], o)
	b.Flags = b.raw[16]
	b.Onset = decodeBTime(b.raw[18:], o)
	copy(b.detector[:], b.raw[28:52])
}

func (b *EventDetection) Encode(o binary.ByteOrder) {
	b.encodeHeader(o)
	putF32(b.raw[4:], o, b.Amplitude)
	putF32(b.raw[8:], o, b.Period)
	putF32(b.raw[12:], o, b.Background)
	b.raw[16] = b.Flags
	encodeBTime(b.raw[18:], o, b.Onset)
	copy(b.raw[28:52], b.detector[:])
}

// MurdockEvent is blockette 201, a Murdock event detection.
type MurdockEvent struct {
	blocketteBase
	Amplitude     float32
	Period        float32
	Background    float32
	Flags         uint8
	Onset         BTime
	SNR           [6]uint8
	Lookback      uint8
	PickAlgorithm uint8
	detector      [24]byte
}

// Detector returns the detector name.
func (b *MurdockEvent) Detector() string { return trimField(b.detector[:]) }

func (b *MurdockEvent) decode(o binary.ByteOrder) {
	b.Amplitude = getF32(b.raw[4:], o)
	b.Period = getF32(b.raw[8:], o)
	b.Background = getF32(b.raw[12:], o)
	b.Flags = b.raw[16]
	b.Onset = decodeBTime(b.raw[18:], o)
	copy(b.SNR[:], b.raw[28:34])
	b.Lookback = b.raw[34]
	b.PickAlgorithm = b.raw[35]
	copy(b.detector[:], b.raw[36:60])
}

func (b *MurdockEvent) Encode(o binary.ByteOrder) {
	b.encodeHeader(o)
	putF32(b.raw[4:], o, b.Amplitude)
	putF32(b.raw[8:], o, b.Period)
	putF32(b.raw[12:], o, b.Background)
	b.raw[16] = b.Flags
	encodeBTime(b.raw[18:], o, b.Onset)
	copy(b.raw[28:34], b.SNR[:])
	b.raw[34] = b.Lookback
	b.raw[35] = b.PickAlgorithm
	copy(b.raw[36:60], b.detector[:])
}

// calibration carries the fields shared by the calibration blockettes.
type calibration struct {
	Start   BTime
	Flags   uint8
	channel [3]byte
}

// Channel returns the channel the calibration signal was input on.
func (c *calibration) Channel() string { return trimField(c.channel[:]) }

// StepCalibration is blockette 300.
type StepCalibration struct {
	blocketteBase
	calibration
	Steps              uint8
	StepDuration       uint32
	IntervalDuration   uint32
	Amplitude          float32
	ReferenceAmplitude uint32
	coupling           [12]byte
	rolloff            [12]byte
}

func (b *StepCalibration) Coupling() string { return trimField(b.coupling[:]) }
func (b *StepCalibration) Rolloff() string  { return trimField(b.rolloff[:]) }

func (b *StepCalibration) decode(o binary.ByteOrder) {
	b.Start = decodeBTime(b.raw[4:], o)
	b.Steps = b.raw[14]
	b.Flags = b.raw[15]
	b.StepDuration = o.Uint32(b.raw[16:])
	b.IntervalDuration = o.Uint32(b.raw[20:])
	b.Amplitude = getF32(b.raw[24:], o)
	copy(b.channel[:], b.raw[28:31])
	b.ReferenceAmplitude = o.Uint32(b.raw[32:])
	copy(b.coupling[:], b.raw[36:48])
	copy(b.rolloff[:], b.raw[48:60])
}

func (b *StepCalibration) Encode(o binary.ByteOrder) {
	b.encodeHeader(o)
	encodeBTime(b.raw[4:], o, b.Start)
	b.raw[14] = b.Steps
	b.raw[15] = b.Flags
	o.PutUint32(b.raw[16:], b.StepDuration)
	o.PutUint32(b.raw[20:], b.IntervalDuration)
	putF32(b.raw[24:], o, b.Amplitude)
	copy(b.raw[28:31], b.channel[:])
	o.PutUint32(b.raw[32:], b.ReferenceAmplitude)
	copy(b.raw[36:48], b.coupling[:])
	copy(b.raw[48:60], b.rolloff[:])
}

// SineCalibration is blockette 310.
type SineCalibration struct {
	blocketteBase
	calibration
	Duration           uint32
	Period             float32
	Amplitude          float32
	ReferenceAmplitude uint32
	coupling           [12]byte
	rolloff            [12]byte
}

func (b *SineCalibration) Coupling() string { return trimField(b.coupling[:]) }
func (b *SineCalibration) Rolloff() string  { return trimField(b.rolloff[:]) }

func (b *SineCalibration) decode(o binary.ByteOrder) {
	b.Start = decodeBTime(b.raw[4:], o)
	b.Flags = b.raw[15]
	b.Duration = o.Uint32(b.raw[16:])
	b.Period = getF32(b.raw[20:], o)
	b.Amplitude = getF32(b.raw[24:], o)
	copy(b.channel[:], b.raw[28:31])
	b.ReferenceAmplitude = o.Uint32(b.raw[32:])
	copy(b.coupling[:], b.raw[36:48])
	copy(b.rolloff[:], b.raw[48:60])
}

func (b *SineCalibration) Encode(o binary.ByteOrder) {
	b.encodeHeader(o)
	encodeBTime(b.raw[4:], o, b.Start)
	b.raw[15] = b.Flags
	o.PutUint32(b.raw[16:], b.Duration)
	putF32(b.raw[20:], o, b.Period)
	putF32(b.raw[24:], o, b.Amplitude)
	copy(b.raw[28:31], b.channel[:])
	o.PutUint32(b.raw[32:], b.ReferenceAmplitude)
	copy(b.raw[36:48], b.coupling[:])
	copy(b.raw[48:60], b.rolloff[:])
}

// PseudoRandomCalibration is blockette 320.
type PseudoRandomCalibration struct {
	blocketteBase
	calibration
	Duration           uint32
	PeakToPeak         float32
	ReferenceAmplitude uint32
	coupling           [12]byte
	rolloff            [12]byte
	noise              [8]byte
}

func (b *PseudoRandomCalibration) Coupling() string  { return trimField(b.coupling[:]) }
func (b *PseudoRandomCalibration) Rolloff() string   { return trimField(b.rolloff[:]) }
func (b *PseudoRandomCalibration) NoiseType() string { return trimField(b.noise[:]) }

func (b *PseudoRandomCalibration) decode(o binary.ByteOrder) {
	b.Start = decodeBTime(b.raw[4:], o)
	b.Flags = b.raw[15]
	b.Duration = o.Uint32(b.raw[16:])
	b.PeakToPeak = getF32(b.raw[20:], o)
	copy(b.channel[:], b.raw[24:27])
	b.ReferenceAmplitude = o.Uint32(b.raw[28:])
	copy(b.coupling[:], b.raw[32:44])
	copy(b.rolloff[:], b.raw[44:56])
	copy(b.noise[:], b.raw[56:64])
}

func (b *PseudoRandomCalibration) Encode(o binary.ByteOrder) {
	b.encodeHeader(o)
	encodeBTime(b.raw[4:], o, b.Start)
	b.raw[15] = b.Flags
	o.PutUint32(b.raw[16:], b.Duration)
	putF32(b.raw[20:], o, b.PeakToPeak)
	copy(b.raw[24:27], b.channel[:])
	o.PutUint32(b.raw[28:], b.ReferenceAmplitude)
	copy(b.raw[32:44], b.coupling[:])
	copy(b.raw[44:56], b.rolloff[:])
	copy(b.raw[56:64], b.noise[:])
}

// GenericCalibration is blockette 390.
type GenericCalibration struct {
	blocketteBase
	calibration
	Duration  uint32
	Amplitude float32
}

func (b *GenericCalibration) decode(o binary.ByteOrder) {
	b.Start = decodeBTime(b.raw[4:], o)
	b.Flags = b.raw[15]
	b.Duration = o.Uint32(b.raw[16:])
	b.Amplitude = getF32(b.raw[20:], o)
	copy(b.channel[:], b.raw[24:27])
}

func (b *GenericCalibration) Encode(o binary.ByteOrder) {
	b.encodeHeader(o)
	encodeBTime(b.raw[4:], o, b.Start)
	b.raw[15] = b.Flags
	o.PutUint32(b.raw[16:], b.Duration)
	putF32(b.raw[20:], o, b.Amplitude)
	copy(b.raw[24:27], b.channel[:])
}

// CalibrationAbort is blockette 395.
type CalibrationAbort struct {
	blocketteBase
	End BTime
}

func (b *CalibrationAbort) decode(o binary.ByteOrder) {
	b.End = decodeBTime(b.raw[4:], o)
}

func (b *CalibrationAbort) Encode(o binary.ByteOrder) {
	b.encodeHeader(o)
	encodeBTime(b.raw[4:], o, b.End)
}

// Beam is blockette 400.
type Beam struct {
	blocketteBase
	Azimuth       float32
	Slowness      float32
	Configuration uint16
}

func (b *Beam) decode(o binary.ByteOrder) {
	b.Azimuth = getF32(b.raw[4:], o)
	b.Slowness = getF32(b.raw[8:], o)
	b.Configuration = o.Uint16(b.raw[12:])
}

func (b *Beam) Encode(o binary.ByteOrder) {
	b.encodeHeader(o)
	putF32(b.raw[4:], o, b.Azimuth)
	putF32(b.raw[8:], o, b.Slowness)
	o.PutUint16(b.raw[12:], b.Configuration)
}

// BeamDelay is blockette 405.
type BeamDelay struct {
	blocketteBase
	Delay uint16
}

func (b *BeamDelay) decode(o binary.ByteOrder) {
	b.Delay = o.Uint16(b.raw[4:])
}

func (b *BeamDelay) Encode(o binary.ByteOrder) {
	b.encodeHeader(o)
	o.PutUint16(b.raw[4:], b.Delay)
}

// Timing is blockette 500, clock status and timing exceptions.
type Timing struct {
	blocketteBase
	VCOCorrection    float32
	Exception        BTime
	Microseconds     int8
	ReceptionQuality uint8
	ExceptionCount   uint32
	exceptionType    [16]byte
	clockModel       [32]byte
	clockStatus      [128]byte
}

func (b *Timing) ExceptionType() string { return trimField(b.exceptionType[:]) }
func (b *Timing) ClockModel() string    { return trimField(b.clockModel[:]) }
func (b *Timing) ClockStatus() string   { return trimField(b.clockStatus[:]) }

func (b *Timing) decode(o binary.ByteOrder) {
	b.VCOCorrection = getF32(b.raw[4:], o)
	b.Exception = decodeBTime(b.raw[8:], o)
	b.Microseconds = int8(b.raw[18])
	b.ReceptionQuality = b.raw[19]
	b.ExceptionCount = o.Uint32(b.raw[20:])
	copy(b.exceptionType[:], b.raw[24:40])
	copy(b.clockModel[:], b.raw[40:72])
	copy(b.clockStatus[:], b.raw[72:200])
}

func (b *Timing) Encode(o binary.ByteOrder) {
	b.encodeHeader(o)
	putF32(b.raw[4:], o, b.VCOCorrection)
	encodeBTime(b.raw[8:], o, b.Exception)
	b.raw[18] = byte(b.Microseconds)
	b.raw[19] = b.ReceptionQuality
	o.PutUint32(b.raw[20:], b.ExceptionCount)
	copy(b.raw[24:40], b.exceptionType[:])
	copy(b.raw[40:72], b.clockModel[:])
	copy(b.raw[72:200], b.clockStatus[:])
}

// DataExtension is blockette 1000. Its record length and encoding are
// authoritative for the record.
type DataExtension struct {
	blocketteBase
	Encoding        Encoding
	WordOrder       uint8 // 1 big-endian, 0 little-endian
	RecordLengthPow uint8
}

// RecordLength returns the declared record length in bytes.
func (b *DataExtension) RecordLength() int {
	if b.RecordLengthPow > 30 {
		return 0
	}
	return 1 << b.RecordLengthPow
}

func (b *DataExtension) decode(_ binary.ByteOrder) {
	b.Encoding = Encoding(b.raw[4])
	b.WordOrder = b.raw[5]
	b.RecordLengthPow = b.raw[6]
}

func (b *DataExtension) Encode(o binary.ByteOrder) {
	b.encodeHeader(o)
	b.raw[4] = byte(b.Encoding)
	b.raw[5] = b.WordOrder
	b.raw[6] = b.RecordLengthPow
	b.raw[7] = 0
}

// TimeExtension is blockette 1001: timing quality, a microsecond correction
// to the header time and the count of frames in use.
type TimeExtension struct {
	blocketteBase
	TimingQuality uint8
	Microseconds  int8
	FrameCount    uint8
}

func (b *TimeExtension) decode(_ binary.ByteOrder) {
	b.TimingQuality = b.raw[4]
	b.Microseconds = int8(b.raw[5])
	b.FrameCount = b.raw[7]
}

func (b *TimeExtension) Encode(o binary.ByteOrder) {
	b.encodeHeader(o)
	b.raw[4] = b.TimingQuality
	b.raw[5] = byte(b.Microseconds)
	b.raw[6] = 0
	b.raw[7] = b.FrameCount
}

// Opaque is blockette 2000, a variable length container.
type Opaque struct {
	blocketteBase
	Length           uint16
	DataOffset       uint16
	RecordNumber     uint32
	WordOrder        uint8
	Flags            uint8
	HeaderFieldCount uint8
}

// HeaderFields returns the tilde separated header fields.
func (b *Opaque) HeaderFields() []byte {
	end := int(b.DataOffset)
	if end < 15 || end > len(b.raw) {
		return nil
	}
	return b.raw[15:end]
}

// Payload returns the opaque data section.
func (b *Opaque) Payload() []byte {
	start := int(b.DataOffset)
	if start < 15 || start > len(b.raw) {
		return nil
	}
	return b.raw[start:]
}

func (b *Opaque) decode(o binary.ByteOrder) {
	if len(b.raw) < 15 {
		return
	}
	b.Length = o.Uint16(b.raw[4:])
	b.DataOffset = o.Uint16(b.raw[6:])
	b.RecordNumber = o.Uint32(b.raw[8:])
	b.WordOrder = b.raw[12]
	b.Flags = b.raw[13]
	b.HeaderFieldCount = b.raw[14]
}

func (b *Opaque) Encode(o binary.ByteOrder) {
	b.encodeHeader(o)
	if len(b.raw) < 15 {
		return
	}
	o.PutUint16(b.raw[4:], b.Length)
	o.PutUint16(b.raw[6:], b.DataOffset)
	o.PutUint32(b.raw[8:], b.RecordNumber)
	b.raw[12] = b.WordOrder
	b.raw[13] = b.Flags
	b.raw[14] = b.HeaderFieldCount
}

// Unknown holds the raw bytes of a blockette type this package does not
// decode.
type Unknown struct {
	blocketteBase
}

func (b *Unknown) decode(_ binary.ByteOrder) {}

func (b *Unknown) Encode(o binary.ByteOrder) { b.encodeHeader(o) }
