package mseed

import "fmt"

// AnomalyKind classifies the non-fatal conditions found while cracking or
// resegmenting a record.
type AnomalyKind int

const (
	InvalidRecordName AnomalyKind = iota + 1
	AmbiguousByteOrder
	ByteOrderCorrected
	MalformedBlocketteChain
	MalformedHeader
	ImplausibleTime
	FrameCountMismatch
	CodecFailure
	ResegmentSampleCountMismatch
)

var anomalyNames = map[AnomalyKind]string{
	InvalidRecordName:            "invalid_record_name",
	AmbiguousByteOrder:           "ambiguous_byte_order",
	ByteOrderCorrected:           "byte_order_corrected",
	MalformedBlocketteChain:      "malformed_blockette_chain",
	MalformedHeader:              "malformed_header",
	ImplausibleTime:              "implausible_time",
	FrameCountMismatch:           "frame_count_mismatch",
	CodecFailure:                 "codec_error",
	ResegmentSampleCountMismatch: "resegment_sample_count_mismatch",
}

func (k AnomalyKind) String() string {
	if s, ok := anomalyNames[k]; ok {
		return s
	}
	return fmt.Sprintf("anomaly(%d)", int(k))
}

// Anomaly is a reportable problem that did not stop processing.
type Anomaly struct {
	Kind    AnomalyKind
	Name    string // NSCL of the record, when known
	Offset  int    // byte offset the anomaly refers to, -1 if none
	Message string
}

func (a Anomaly) Error() string {
	if a.Offset >= 0 {
		return fmt.Sprintf("%s: %s at offset %d: %s", a.Kind, a.Name, a.Offset, a.Message)
	}
	return fmt.Sprintf("%s: %s: %s", a.Kind, a.Name, a.Message)
}

// Observer receives anomalies as they are found.
type Observer interface {
	Observe(a Anomaly)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(a Anomaly)

func (f ObserverFunc) Observe(a Anomaly) { f(a) }

// RecordError represents a fatal record error
type RecordError struct {
	Message string
}

func (e *RecordError) Error() string {
	return e.Message
}

// Errors
var (
	ErrInvalidRecordName   = &RecordError{"invalid record name"}
	ErrShortRecord         = &RecordError{"record shorter than fixed header"}
	ErrUnsupportedEncoding = &RecordError{"unsupported payload encoding"}
	ErrNoCodec             = &RecordError{"no codec configured"}
	ErrHeartbeat           = &RecordError{"heartbeat record has no data"}
)

// ReverseIntegrationError reports that the last decoded sample did not match
// the reverse integration constant stored in the first frame.
type ReverseIntegrationError struct {
	Expected int32
	Found    int32
}

func (e *ReverseIntegrationError) Error() string {
	return fmt.Sprintf("reverse integration mismatch: expected %d, found %d", e.Expected, e.Found)
}

// SampleCountError reports that the frames held a different number of
// samples than the header declared.
type SampleCountError struct {
	Expected int
	Found    int
}

func (e *SampleCountError) Error() string {
	return fmt.Sprintf("sample count mismatch: expected %d, found %d", e.Expected, e.Found)
}
