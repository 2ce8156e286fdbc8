// Package mseed implements the MiniSEED record engine for mseedkit.
//
// A MiniSEED record is a power of two sized block (128 to 65536 bytes) made
// of a 48 byte fixed header, a chain of typed metadata blockettes and a
// payload that is usually Steim compressed.
//
// # Record Format
//
//	[Sequence(6)][Indicator(1)][Reserved(1)][Station(5)][Location(2)][Channel(3)][Network(2)]
//	[StartTime BTIME(10)][Nsamp(2)][RateFactor(2)][RateMultiplier(2)]
//	[Activity(1)][IOClock(1)][Quality(1)][Blockettes(1)][TimeCorrection(4)]
//	[DataOffset(2)][FirstBlockette(2)] [blockette chain...] [payload...]
//
// The station identity is stored station/location/channel/network on disk and
// exposed as NSCL (network, station, channel, location).
//
// # Byte Order
//
// SEED is big-endian, but many producers write little-endian headers.
// DetectByteOrder combines a geometry heuristic over the fixed header with the
// word order byte of blockette 1000; the blockette wins when they disagree.
//
// # Cracking
//
// Load copies bytes into a Record and detects the byte order. The header and
// blockette chain are decoded on first access ("cracking"). Blockettes decode
// into per-kind scratch values owned by the Record, so reloading a Record
// costs no allocations once its buffers have grown to the largest record
// seen.
//
// Malformed input never stops a stream: a bad blockette offset truncates the
// chain but keeps what was decoded before it, an implausible start time or an
// ambiguous byte order is recorded as an Anomaly and passed to the configured
// Observer. Only strict mode turns a malformed record name into an error.
//
// # Resegmentation
//
// Record.Resegment splits a large record into standard 512 byte records.
// Records built by concatenating independently compressed 512 byte units are
// sliced on frame boundaries; anything else is decoded and recompressed
// through the Decoder and Compressor adapters (see package steim).
//
// # Thread Safety
//
// Records are not safe for concurrent use. The Peek helpers are, and use
// pooled scratch records instead of a shared buffer.
package mseed
