package codec_test

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	codec "github.com/verax/verax/internal/domain/codec"
	"github.com/verax/verax/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEncode_WireLayout(t *testing.T) {
	Convey("Given a record with known field values", t, func() {
		rec := model.SkillRecord{
			Mode:         "ai-graded",
			Domain:       "python",
			Score:        80,
			ArtifactHash: "deadbeef",
			Timestamp:    1700000000,
		}

		buf, err := codec.Encode(rec)
		So(err, ShouldBeNil)

		Convey("Then the frame length prefix covers the struct payload exactly", func() {
			// header 22 + (2+9) mode + (2+6) domain + (2+8) artifact = 51
			So(binary.BigEndian.Uint16(buf[0:2]), ShouldEqual, 51)
			So(len(buf), ShouldEqual, 53)
		})

		Convey("Then the static header carries offsets and big-endian integers", func() {
			frame := buf[2:]
			So(binary.BigEndian.Uint16(frame[0:2]), ShouldEqual, 22)  // mode offset
			So(binary.BigEndian.Uint16(frame[2:4]), ShouldEqual, 33)  // domain offset
			So(binary.BigEndian.Uint64(frame[4:12]), ShouldEqual, 80) // score
			So(binary.BigEndian.Uint16(frame[12:14]), ShouldEqual, 41)
			So(binary.BigEndian.Uint64(frame[14:22]), ShouldEqual, 1700000000)
		})

		Convey("Then each string block is length-prefixed UTF-8", func() {
			frame := buf[2:]
			So(binary.BigEndian.Uint16(frame[22:24]), ShouldEqual, 9)
			So(string(frame[24:33]), ShouldEqual, "ai-graded")
			So(binary.BigEndian.Uint16(frame[33:35]), ShouldEqual, 6)
			So(string(frame[35:41]), ShouldEqual, "python")
			So(binary.BigEndian.Uint16(frame[41:43]), ShouldEqual, 8)
			So(string(frame[43:51]), ShouldEqual, "deadbeef")
		})
	})
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	Convey("Given a variety of valid records", t, func() {
		records := []model.SkillRecord{
			{Mode: "ai-graded", Domain: "python", Score: 80, ArtifactHash: "deadbeef", Timestamp: 1700000000},
			{Mode: "peer-review", Domain: "rust:systems", Score: 100, ArtifactHash: "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG", Timestamp: 1},
			{Mode: "", Domain: "", Score: 0, ArtifactHash: "", Timestamp: 0},
			{Mode: "self-assessed", Domain: "gÃ¶", Score: ^uint64(0), ArtifactHash: "ÃŸ", Timestamp: ^uint64(0)},
		}

		Convey("When each is encoded and decoded back", func() {
			for _, rec := range records {
				buf, err := codec.Encode(rec)
				So(err, ShouldBeNil)

				res := codec.Decode(buf)
				So(res.Truncated, ShouldBeFalse)
				So(res.Failures, ShouldBeEmpty)
				So(len(res.Records), ShouldEqual, 1)
				So(res.Records[0], ShouldResemble, rec)
			}
		})
	})
}

func TestEncode_SizeLimits(t *testing.T) {
	Convey("Given records that cannot fit the wire format", t, func() {
		Convey("A string field over 65535 bytes is an encoding error", func() {
			rec := model.SkillRecord{Domain: strings.Repeat("x", 65536)}
			_, err := codec.Encode(rec)
			So(err, ShouldWrap, codec.ErrEncoding)
		})

		Convey("A frame over 65535 bytes is an encoding error even when each string fits", func() {
			rec := model.SkillRecord{
				Mode:         strings.Repeat("m", 30000),
				Domain:       strings.Repeat("d", 30000),
				ArtifactHash: strings.Repeat("a", 10000),
			}
			_, err := codec.Encode(rec)
			So(err, ShouldWrap, codec.ErrEncoding)
		})

		Convey("A string at exactly 65000 bytes still encodes", func() {
			rec := model.SkillRecord{Domain: strings.Repeat("x", 65000)}
			buf, err := codec.Encode(rec)
			So(err, ShouldBeNil)
			res := codec.Decode(buf)
			So(len(res.Records), ShouldEqual, 1)
			So(res.Records[0].Domain, ShouldEqual, rec.Domain)
		})
	})
}

func TestDecode_TruncationSafety(t *testing.T) {
	Convey("Given a buffer holding three valid frames", t, func() {
		var buf []byte
		recs := []model.SkillRecord{
			{Mode: "ai-graded", Domain: "python", Score: 80, ArtifactHash: "aa", Timestamp: 100},
			{Mode: "peer-review", Domain: "rust", Score: 70, ArtifactHash: "bb", Timestamp: 200},
			{Mode: "self-assessed", Domain: "go", Score: 90, ArtifactHash: "cc", Timestamp: 300},
		}
		frameEnds := make([]int, 0, len(recs))
		for _, r := range recs {
			b, err := codec.Encode(r)
			So(err, ShouldBeNil)
			buf = append(buf, b...)
			frameEnds = append(frameEnds, len(buf))
		}

		Convey("Cutting at any byte offset never loses a complete frame", func() {
			for cut := 0; cut <= len(buf); cut++ {
				res := codec.Decode(buf[:cut])
				So(res.Failures, ShouldBeEmpty)

				want := 0
				for _, end := range frameEnds {
					if cut >= end {
						want++
					}
				}
				So(len(res.Records), ShouldEqual, want)
				So(res.Truncated, ShouldEqual, cut != 0 && cut != frameEnds[0] && cut != frameEnds[1] && cut != frameEnds[2])
			}
		})

		Convey("Two frames plus one stray trailing byte decode as exactly two records", func() {
			stray := append(append([]byte{}, buf[:frameEnds[1]]...), 0x7f)
			res := codec.Decode(stray)
			So(len(res.Records), ShouldEqual, 2)
			So(res.Truncated, ShouldBeTrue)
			So(res.TruncatedBytes, ShouldEqual, 1)
			So(res.Failures, ShouldBeEmpty)
		})
	})
}

func TestDecode_MalformedFrames(t *testing.T) {
	Convey("Given a buffer with a malformed frame between two valid ones", t, func() {
		good1, err := codec.Encode(model.SkillRecord{Mode: "ai-graded", Domain: "python", Score: 80, ArtifactHash: "aa", Timestamp: 100})
		So(err, ShouldBeNil)
		good2, err := codec.Encode(model.SkillRecord{Mode: "peer-review", Domain: "rust", Score: 60, ArtifactHash: "bb", Timestamp: 200})
		So(err, ShouldBeNil)

		// 24-byte frame whose mode offset points past its own end.
		bad := make([]byte, 2+24)
		binary.BigEndian.PutUint16(bad[0:2], 24)
		binary.BigEndian.PutUint16(bad[2:4], 500)

		buf := append(append(append([]byte{}, good1...), bad...), good2...)

		Convey("When the buffer is decoded", func() {
			res := codec.Decode(buf)

			Convey("Then both valid frames survive", func() {
				So(len(res.Records), ShouldEqual, 2)
				So(res.Records[0].Domain, ShouldEqual, "python")
				So(res.Records[1].Domain, ShouldEqual, "rust")
			})

			Convey("Then the malformed frame is reported with its raw hex", func() {
				So(len(res.Failures), ShouldEqual, 1)
				So(res.Failures[0].Index, ShouldEqual, 1)
				So(res.Failures[0].RawHex, ShouldEqual, "01f4"+strings.Repeat("00", 22))
				So(res.Failures[0].Err, ShouldWrap, codec.ErrMalformedFrame)
			})

			Convey("Then the walk is not flagged truncated", func() {
				So(res.Truncated, ShouldBeFalse)
			})
		})

		Convey("A frame shorter than the 22-byte header is malformed, not fatal", func() {
			short := []byte{0x00, 0x03, 0x01, 0x02, 0x03}
			res := codec.Decode(append(append([]byte{}, short...), good1...))
			So(len(res.Records), ShouldEqual, 1)
			So(len(res.Failures), ShouldEqual, 1)
		})

		Convey("A string length prefix exceeding the frame is malformed", func() {
			frame := make([]byte, 2+24)
			binary.BigEndian.PutUint16(frame[0:2], 24)
			binary.BigEndian.PutUint16(frame[2:4], 22)   // mode at 22
			binary.BigEndian.PutUint16(frame[2+22:], 99) // claims 99 bytes, none follow
			res := codec.Decode(frame)
			So(len(res.Failures), ShouldEqual, 1)
			So(res.Failures[0].Err, ShouldWrap, codec.ErrMalformedFrame)
		})
	})
}

func TestCount(t *testing.T) {
	Convey("Given buffers of concatenated frames", t, func() {
		var buf []byte
		for i := 0; i < 5; i++ {
			b, err := codec.Encode(model.SkillRecord{Mode: "ai-graded", Domain: "python", Score: uint64(i), Timestamp: uint64(i)})
			So(err, ShouldBeNil)
			buf = append(buf, b...)
		}

		Convey("Count matches a full decode for well-formed buffers", func() {
			So(codec.Count(buf), ShouldEqual, 5)
			So(codec.Count(buf), ShouldEqual, len(codec.Decode(buf).Records))
		})

		Convey("Count ignores a truncated tail", func() {
			So(codec.Count(buf[:len(buf)-1]), ShouldEqual, 4)
			So(codec.Count(append(append([]byte{}, buf...), 0x01)), ShouldEqual, 5)
		})

		Convey("Count of an empty buffer is zero", func() {
			So(codec.Count(nil), ShouldEqual, 0)
			So(codec.Count([]byte{}), ShouldEqual, 0)
		})
	})
}

func TestAppendMonotonicity(t *testing.T) {
	Convey("Given an existing buffer and a new record", t, func() {
		var buf []byte
		existing := []model.SkillRecord{
			{Mode: "ai-graded", Domain: "python", Score: 80, ArtifactHash: "aa", Timestamp: 100},
			{Mode: "peer-review", Domain: "rust", Score: 70, ArtifactHash: "bb", Timestamp: 200},
		}
		for _, r := range existing {
			b, err := codec.Encode(r)
			So(err, ShouldBeNil)
			buf = append(buf, b...)
		}
		before := append([]byte{}, buf...)

		newRec := model.SkillRecord{Mode: "self-assessed", Domain: "go", Score: 90, ArtifactHash: "cc", Timestamp: 300}
		encoded, err := codec.Encode(newRec)
		So(err, ShouldBeNil)
		appended := append(append([]byte{}, buf...), encoded...)

		Convey("Appending leaves prior bytes and decoded values untouched", func() {
			So(bytes.Equal(appended[:len(before)], before), ShouldBeTrue)

			res := codec.Decode(appended)
			So(len(res.Records), ShouldEqual, 3)
			So(res.Records[0], ShouldResemble, existing[0])
			So(res.Records[1], ShouldResemble, existing[1])
			So(res.Records[2], ShouldResemble, newRec)
		})
	})
}
