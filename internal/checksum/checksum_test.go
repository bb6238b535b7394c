package checksum

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestHeaderStreamingMatchesOneShot(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	data := make([]byte, 10000)
	rng.Read(data)

	want := Header(data)

	h := NewHeaderHasher()
	chunks := [][]byte{data[:100], data[100:3333], data[3333:9999], data[9999:]}
	for _, c := range chunks {
		h.Write(c)
	}
	if got := h.Sum32(); got != want {
		t.Fatalf("streaming Header = %x, want %x", got, want)
	}
}

func TestPayloadStreamingMatchesOneShot(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	data := make([]byte, 20000)
	rng.Read(data)

	want := Payload(data)

	h := NewPayloadHasher()
	chunks := bytes.SplitAfter(data, []byte{0})
	for _, c := range chunks {
		h.Write(c)
	}
	if got := h.Sum64(); got != want {
		t.Fatalf("streaming Payload = %x, want %x", got, want)
	}
}

func TestPayloadDeterministic(t *testing.T) {
	data := []byte("packet payload bytes")
	if Payload(data) != Payload(append([]byte(nil), data...)) {
		t.Fatal("Payload is not deterministic across equal byte slices")
	}
}

func TestHeaderSensitiveToCorruption(t *testing.T) {
	data := []byte("file header bytes go here")
	want := Header(data)
	corrupt := append([]byte(nil), data...)
	corrupt[3] ^= 0xFF
	if Header(corrupt) == want {
		t.Fatal("Header did not change after single-byte corruption")
	}
}
