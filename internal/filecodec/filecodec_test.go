package filecodec

import (
	"bytes"
	"testing"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		framing     Framing
		compression Compression
		batch       bool
		want        ID
		wantErr     bool
	}{
		{FramingStream, CompressionNone, false, Stream001, false},
		{FramingStream, CompressionLZ4, false, StreamLZ4001, false},
		{FramingPacket, CompressionNone, false, Packet001, false},
		{FramingPacket, CompressionLZ4, false, PacketLZ4001, false},
		{FramingPacket, CompressionLZ4, true, PacketLZ4Batch001, false},
		{FramingStream, CompressionLZ4, true, 0, true},
		{FramingStream, CompressionNone, true, 0, true},
	}
	for _, c := range cases {
		got, err := Resolve(c.framing, c.compression, c.batch)
		if (err != nil) != c.wantErr {
			t.Errorf("Resolve(%v,%v,%v): err=%v, wantErr=%v", c.framing, c.compression, c.batch, err, c.wantErr)
			continue
		}
		if err == nil && got != c.want {
			t.Errorf("Resolve(%v,%v,%v) = %v, want %v", c.framing, c.compression, c.batch, got, c.want)
		}
	}
}

func TestPacketPayloadRoundTripUncompressed(t *testing.T) {
	raw := []byte("hello packet payload")
	enc, err := EncodePacketPayload(Packet001, raw, 0)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodePacketPayload(Packet001, bytes.NewReader(enc))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, raw) {
		t.Fatalf("got %q, want %q", got, raw)
	}
}

func TestPacketPayloadRoundTripLZ4(t *testing.T) {
	raw := bytes.Repeat([]byte("row row row your boat "), 500)
	enc, err := EncodePacketPayload(PacketLZ4001, raw, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(enc) >= len(raw) {
		t.Errorf("compressed size %d not smaller than raw %d", len(enc), len(raw))
	}
	got, err := DecodePacketPayload(PacketLZ4001, bytes.NewReader(enc))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, raw) {
		t.Fatal("decompressed payload does not match original")
	}
}

func TestStreamRoundTrip(t *testing.T) {
	for _, id := range []ID{Stream001, StreamLZ4001} {
		sw, err := NewStreamWriter(id, 3)
		if err != nil {
			t.Fatal(err)
		}
		sw.Write([]byte("abc"))
		sw.Write([]byte("def"))
		final, err := sw.Finish()
		if err != nil {
			t.Fatal(err)
		}
		got, err := DecodeStream(id, bytes.NewReader(final))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "abcdef" {
			t.Errorf("id=%v: got %q, want %q", id, got, "abcdef")
		}
	}
}

func TestBatchWriterReaderRoundTrip(t *testing.T) {
	bw := NewBatchWriter(3)
	payloads := [][]byte{
		bytes.Repeat([]byte("a"), 100),
		bytes.Repeat([]byte("b"), 200),
		bytes.Repeat([]byte("c"), 50),
	}
	for _, p := range payloads {
		bw.Add(p)
	}
	chunks, err := bw.Flush()
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != len(payloads) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(payloads))
	}

	var br BatchReader
	for i, chunk := range chunks {
		got, err := br.DecodeNext(bytes.NewReader(chunk))
		if err != nil {
			t.Fatalf("chunk %d: %v", i, err)
		}
		if !bytes.Equal(got, payloads[i]) {
			t.Fatalf("chunk %d: mismatch", i)
		}
	}
}
