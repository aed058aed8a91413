package testutil

import (
	"encoding/binary"
	"testing"
)

// buildWAV assembles a minimal PCM WAV buffer by hand so the assertion
// helpers are tested against known-good and known-bad byte layouts.
func buildWAV(sampleRate int, sampleCount int) []byte {
	dataSize := sampleCount * 2
	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	return buf
}

func TestAssertValidWAV_AcceptsMinimalFile(t *testing.T) {
	data := buildWAV(24000, 240)
	AssertValidWAV(t, data, 24000)
}

func TestAssertWAVDurationApprox_WithinRange(t *testing.T) {
	// 2400 samples at 24 kHz is 100 ms.
	data := buildWAV(24000, 2400)
	AssertWAVDurationApprox(t, data, 24000, 0.09, 0.11)
}

func TestFindDataChunkSize_SkipsUnknownChunks(t *testing.T) {
	data := buildWAV(24000, 10)

	// Splice an unknown chunk between fmt and data.
	extra := make([]byte, 8+4)
	copy(extra[0:4], "LIST")
	binary.LittleEndian.PutUint32(extra[4:8], 4)

	spliced := append(append(append([]byte{}, data[:36]...), extra...), data[36:]...)
	binary.LittleEndian.PutUint32(spliced[4:8], uint32(len(spliced)-8))

	size, err := findDataChunkSize(spliced)
	if err != nil {
		t.Fatalf("findDataChunkSize: %v", err)
	}
	if size != 20 {
		t.Errorf("want data size 20, got %d", size)
	}
}

func TestFindDataChunkSize_MissingDataChunk(t *testing.T) {
	data := buildWAV(24000, 10)
	copy(data[36:40], "LIST")

	_, err := findDataChunkSize(data)
	if err == nil {
		t.Error("expected error for WAV without data chunk")
	}
}
