// Package codec implements the wire format for skill attestation records.
//
// Each record is stored as a length-prefixed frame:
//
//	[2B frame_len BE][frame_len bytes: struct payload]
//
// The struct payload is self-describing for its three variable-length
// string fields. It starts with a fixed 22-byte header:
//
//	bytes 0-1   offset to mode string data
//	bytes 2-3   offset to domain string data
//	bytes 4-11  score (uint64 BE)
//	bytes 12-13 offset to artifact_hash string data
//	bytes 14-21 timestamp (uint64 BE)
//
// followed by the string payloads in the order the offsets reference them,
// each encoded as [2B len BE][UTF-8 bytes]. Offsets are byte positions
// within the struct payload, excluding the outer frame-length prefix.
// Frames are concatenated with no separators. The layout is byte-for-byte
// compatible with the deployed ledger format.
package codec

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/verax/verax/internal/domain/model"
)

const (
	// frame_len and every string length prefix are 16-bit big-endian.
	lenPrefixSize = 2

	// headerSize is the fixed struct header: three 2-byte offsets plus
	// two 8-byte integers.
	headerSize = 22

	// MaxFrameSize bounds a single struct payload; frame_len must fit
	// in 16 bits, so larger records cannot be represented on the wire.
	MaxFrameSize = 65535

	// MaxStringSize bounds each string field's byte length.
	MaxStringSize = 65535
)

// FrameError describes one malformed frame encountered during a decode
// walk. The raw frame bytes are preserved as hex for diagnostics.
type FrameError struct {
	Index  int    // frame position in the buffer, 0-based
	Offset int    // byte offset of the frame payload in the buffer
	RawHex string // hex dump of the malformed frame
	Err    error
}

func (e FrameError) Error() string {
	return fmt.Sprintf("frame %d at byte %d: %v", e.Index, e.Offset, e.Err)
}

func (e FrameError) Unwrap() error { return e.Err }

// Result carries the outcome of a best-effort decode walk. A truncated
// tail and malformed frames are reported alongside the records that did
// decode; neither aborts the walk.
type Result struct {
	Records  []model.SkillRecord
	Failures []FrameError

	// Truncated is set when the buffer ends before a length prefix's
	// promise is fulfilled. A concurrent writer may be mid-append, so
	// this is a recoverable condition, not corruption.
	Truncated bool

	// TruncatedBytes is the number of trailing bytes left undecoded.
	TruncatedBytes int
}

// Encode serializes a record into one length-prefixed frame.
func Encode(rec model.SkillRecord) ([]byte, error) {
	mode := []byte(rec.Mode)
	domain := []byte(rec.Domain)
	artifact := []byte(rec.ArtifactHash)

	for _, f := range []struct {
		name string
		data []byte
	}{
		{"mode", mode},
		{"domain", domain},
		{"artifact_hash", artifact},
	} {
		if len(f.data) > MaxStringSize {
			return nil, fmt.Errorf("%w: %s is %d bytes, max %d", ErrEncoding, f.name, len(f.data), MaxStringSize)
		}
	}

	frameLen := headerSize +
		lenPrefixSize + len(mode) +
		lenPrefixSize + len(domain) +
		lenPrefixSize + len(artifact)
	if frameLen > MaxFrameSize {
		return nil, fmt.Errorf("%w: frame is %d bytes, max %d", ErrEncoding, frameLen, MaxFrameSize)
	}

	buf := make([]byte, lenPrefixSize+frameLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(frameLen))

	frame := buf[lenPrefixSize:]
	modeOff := headerSize
	domainOff := modeOff + lenPrefixSize + len(mode)
	artifactOff := domainOff + lenPrefixSize + len(domain)

	binary.BigEndian.PutUint16(frame[0:2], uint16(modeOff))
	binary.BigEndian.PutUint16(frame[2:4], uint16(domainOff))
	binary.BigEndian.PutUint64(frame[4:12], rec.Score)
	binary.BigEndian.PutUint16(frame[12:14], uint16(artifactOff))
	binary.BigEndian.PutUint64(frame[14:22], rec.Timestamp)

	putString(frame, modeOff, mode)
	putString(frame, domainOff, domain)
	putString(frame, artifactOff, artifact)

	return buf, nil
}

func putString(frame []byte, off int, data []byte) {
	binary.BigEndian.PutUint16(frame[off:off+lenPrefixSize], uint16(len(data)))
	copy(frame[off+lenPrefixSize:], data)
}

// Decode walks a buffer of concatenated frames and returns every record
// it can recover. Decoding is lazy and restartable at record boundaries:
// the walk never raises, and a malformed frame only costs that frame.
func Decode(buf []byte) Result {
	var res Result
	cursor := 0
	index := 0

	for len(buf)-cursor >= lenPrefixSize {
		frameLen := int(binary.BigEndian.Uint16(buf[cursor : cursor+lenPrefixSize]))
		payloadStart := cursor + lenPrefixSize

		if len(buf)-payloadStart < frameLen {
			// Partial trailing frame; a writer may be mid-append.
			res.Truncated = true
			res.TruncatedBytes = len(buf) - cursor
			return res
		}

		frame := buf[payloadStart : payloadStart+frameLen]
		rec, err := decodeFrame(frame)
		if err != nil {
			res.Failures = append(res.Failures, FrameError{
				Index:  index,
				Offset: payloadStart,
				RawHex: hex.EncodeToString(frame),
				Err:    err,
			})
		} else {
			res.Records = append(res.Records, rec)
		}

		cursor = payloadStart + frameLen
		index++
	}

	if cursor < len(buf) {
		// A lone trailing byte cannot even hold a length prefix.
		res.Truncated = true
		res.TruncatedBytes = len(buf) - cursor
	}
	return res
}

// decodeFrame parses one struct payload. Offsets or lengths inconsistent
// with the frame's own bounds make the frame malformed.
func decodeFrame(frame []byte) (model.SkillRecord, error) {
	var rec model.SkillRecord
	if len(frame) < headerSize {
		return rec, fmt.Errorf("%w: frame is %d bytes, header needs %d", ErrMalformedFrame, len(frame), headerSize)
	}

	modeOff := int(binary.BigEndian.Uint16(frame[0:2]))
	domainOff := int(binary.BigEndian.Uint16(frame[2:4]))
	rec.Score = binary.BigEndian.Uint64(frame[4:12])
	artifactOff := int(binary.BigEndian.Uint16(frame[12:14]))
	rec.Timestamp = binary.BigEndian.Uint64(frame[14:22])

	var err error
	if rec.Mode, err = readString(frame, modeOff); err != nil {
		return rec, fmt.Errorf("mode: %w", err)
	}
	if rec.Domain, err = readString(frame, domainOff); err != nil {
		return rec, fmt.Errorf("domain: %w", err)
	}
	if rec.ArtifactHash, err = readString(frame, artifactOff); err != nil {
		return rec, fmt.Errorf("artifact_hash: %w", err)
	}
	return rec, nil
}

func readString(frame []byte, off int) (string, error) {
	if off < 0 || off+lenPrefixSize > len(frame) {
		return "", fmt.Errorf("%w: offset %d outside frame of %d bytes", ErrMalformedFrame, off, len(frame))
	}
	strLen := int(binary.BigEndian.Uint16(frame[off : off+lenPrefixSize]))
	start := off + lenPrefixSize
	if start+strLen > len(frame) {
		return "", fmt.Errorf("%w: string of %d bytes at offset %d exceeds frame of %d bytes", ErrMalformedFrame, strLen, off, len(frame))
	}
	return string(frame[start : start+strLen]), nil
}

// Count walks only the 2-byte length prefixes and reports how many
// complete frames the buffer holds. It matches len(Decode(buf).Records)
// plus the number of malformed frames for any buffer, without paying the
// cost of parsing struct contents.
func Count(buf []byte) int {
	count := 0
	cursor := 0
	for len(buf)-cursor >= lenPrefixSize {
		frameLen := int(binary.BigEndian.Uint16(buf[cursor : cursor+lenPrefixSize]))
		if len(buf)-cursor-lenPrefixSize < frameLen {
			break
		}
		cursor += lenPrefixSize + frameLen
		count++
	}
	return count
}
