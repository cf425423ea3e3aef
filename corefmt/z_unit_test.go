// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package corefmt

import (
	"bytes"
	"errors"
	"testing"

	"github.com/zintix-labs/lerwlab/errs"
)

func TestBase64URL(t *testing.T) {
	raw := []byte{0xfb, 0xff, 0x00, 0x10}
	s := EncodeBase64URL(raw)
	got, err := DecodeBase64URL(s)
	if err != nil || !bytes.Equal(got, raw) {
		t.Fatalf("roundtrip mismatch: %v %v", got, err)
	}
	if _, err := DecodeBase64URL("***"); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("bad input must be invalid argument, got %v", err)
	}
}

func TestMultiFrame(t *testing.T) {
	var blob []byte
	blob = AppendBlobFrame(blob, []byte("alpha"))
	blob = AppendBlobFrame(blob, nil)
	blob = AppendBlobFrame(blob, []byte("omega"))

	want := []string{"alpha", "", "omega"}
	rest := blob
	for _, w := range want {
		var p []byte
		var err error
		p, rest, err = NextBlobFrame(rest)
		if err != nil || string(p) != w {
			t.Fatalf("frame want %q, got %q (%v)", w, p, err)
		}
	}
	if len(rest) != 0 {
		t.Fatalf("leftover %d bytes", len(rest))
	}

	if _, err := DecodeBlobFrame(blob); err == nil {
		t.Fatalf("trailing frames must be rejected by DecodeBlobFrame")
	}
	if _, _, err := NextBlobFrame(blob[:3]); err == nil {
		t.Fatalf("truncated frame must fail")
	}
}

func TestStreamFrame(t *testing.T) {
	var b bytes.Buffer
	if err := WriteBlobFrame(&b, []byte("payload")); err != nil {
		t.Fatal(err)
	}
	if err := WriteBlobFrame(&b, []byte("second")); err != nil {
		t.Fatal(err)
	}
	r := bytes.NewReader(b.Bytes())
	p, err := ReadBlobFrame(r, 64)
	if err != nil || string(p) != "payload" {
		t.Fatalf("first frame: %q %v", p, err)
	}
	p, err = ReadBlobFrame(r, 64)
	if err != nil || string(p) != "second" {
		t.Fatalf("second frame: %q %v", p, err)
	}

	b.Reset()
	_ = WriteBlobFrame(&b, make([]byte, 100))
	if _, err := ReadBlobFrame(&b, 10); err == nil {
		t.Fatalf("oversized frame must be rejected")
	}
}

func TestCompress(t *testing.T) {
	sparse := make([]byte, 1<<16)
	sparse[100] = 0x08
	sparse[40000] = 0x81
	z, err := Compress(sparse)
	if err != nil {
		t.Fatal(err)
	}
	if len(z) >= len(sparse)/10 {
		t.Fatalf("sparse bitset should compress well, got %d bytes", len(z))
	}
	back, err := Decompress(z, uint64(len(sparse)))
	if err != nil || !bytes.Equal(back, sparse) {
		t.Fatalf("decompress mismatch: %v", err)
	}
	if _, err := Decompress(z, 10); err == nil {
		t.Fatalf("size cap must apply")
	}
	if _, err := Decompress([]byte("not zstd"), 0); err == nil {
		t.Fatalf("garbage must fail")
	}
}
