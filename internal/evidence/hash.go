// Package evidence computes the integrity hash attached to citizen-
// submitted evidence at complaint filing time (domain.Attachment).
package evidence

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// Hash computes a SHA-256 digest over raw image bytes, latitude, longitude,
// and a server-generated capture timestamp. Input layout:
//
//	image_bytes (raw) || latitude (float64 LE) || longitude (float64 LE) || captured_at (Unix nano int64 LE)
//
// capturedAt must be server-generated at upload time, never a
// client-supplied value, or the hash proves nothing about when the
// evidence actually arrived.
//
// This is an integrity signal (detects post-capture tampering), not an
// authenticity proof: it does not establish who captured the evidence or
// where beyond what is recorded alongside it.
func Hash(imageBytes []byte, latitude, longitude float64, capturedAt time.Time) string {
	buf := bytes.NewBuffer(imageBytes)
	_ = binary.Write(buf, binary.LittleEndian, latitude)
	_ = binary.Write(buf, binary.LittleEndian, longitude)
	_ = binary.Write(buf, binary.LittleEndian, capturedAt.UnixNano())

	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}
