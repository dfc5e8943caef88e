package capture

import (
	"encoding/binary"
	"math"

	"github.com/gwillem/rover/pkg/motion"
)

// RecordSize is the width in bytes of every capture record: six float32
// features followed by an int32 command code, host byte order, no header.
const RecordSize = motion.NumFeatures*4 + 4

// Record is one captured (features, command) sample.
type Record struct {
	Features motion.FeatureVector
	Command  motion.Command
}

// EncodeRecord serializes a record into its fixed-width binary layout.
func EncodeRecord(fv motion.FeatureVector, cmd motion.Command) []byte {
	buf := make([]byte, RecordSize)
	for i, v := range fv {
		binary.NativeEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
	}
	binary.NativeEndian.PutUint32(buf[motion.NumFeatures*4:], uint32(int32(cmd)))
	return buf
}

// DecodeRecord parses one record. buf must hold at least RecordSize bytes.
// The command code is returned as stored, even if it is not a defined
// command.
func DecodeRecord(buf []byte) Record {
	var rec Record
	for i := range rec.Features {
		rec.Features[i] = float64(math.Float32frombits(binary.NativeEndian.Uint32(buf[i*4:])))
	}
	rec.Command = motion.Command(int32(binary.NativeEndian.Uint32(buf[motion.NumFeatures*4:])))
	return rec
}
