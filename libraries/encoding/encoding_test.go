package encoding

import (
	"bytes"
	"testing"
)

func TestVarintRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 127, -128, 300, -300, 1 << 40, -(1 << 40)}
	for _, v := range values {
		var buf bytes.Buffer
		PutAsVarint(&buf, v)
		got := GetAsVarint(bytes.NewReader(buf.Bytes()))
		if got != v {
			t.Errorf("varint round trip: put %d, got %d", v, got)
		}
	}
}

func TestUVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 1 << 40, ^uint64(0)}
	for _, v := range values {
		var buf bytes.Buffer
		PutAsUVarint(&buf, v)
		got := GetAsUVarint(bytes.NewReader(buf.Bytes()))
		if got != v {
			t.Errorf("uvarint round trip: put %d, got %d", v, got)
		}
	}
}

func TestReadUvarintCountsBytes(t *testing.T) {
	cases := []struct {
		value     uint64
		wantBytes int
	}{
		{0, 1},
		{127, 1},
		{128, 2},
		{16383, 2},
		{16384, 3},
	}
	for _, c := range cases {
		var buf bytes.Buffer
		PutAsUVarint(&buf, c.value)
		got, n, err := ReadUvarint(&buf)
		if err != nil {
			t.Fatalf("ReadUvarint(%d): %v", c.value, err)
		}
		if got != c.value {
			t.Errorf("ReadUvarint: got %d, want %d", got, c.value)
		}
		if n != c.wantBytes {
			t.Errorf("ReadUvarint(%d): consumed %d bytes, want %d", c.value, n, c.wantBytes)
		}
	}
}

func TestReadUvarintEmptyInput(t *testing.T) {
	if _, _, err := ReadUvarint(bytes.NewReader(nil)); err == nil {
		t.Error("expected error on empty input")
	}
}

func TestJSONiterRoundTrip(t *testing.T) {
	type sample struct {
		Num  uint32 `json:"num"`
		Name string `json:"name"`
	}
	in := sample{Num: 42, Name: "alice"}

	data, err := JSONiter.Marshal(&in)
	if err != nil {
		t.Fatal(err)
	}

	var out sample
	if err := JSONiter.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Errorf("round trip mismatch: %+v != %+v", out, in)
	}
}
