// Package corefmt 定義 walker 快照的二進位格式與文字傳輸編碼。
//
// 快照由多個 length-prefixed frame 串接而成：
//
//	frame := uvarint(len(payload)) || payload
//
// 需要走 JSON / URL 時再以 base64url 包一層。
package corefmt

import (
	"bufio"
	"encoding/base64"
	"encoding/binary"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/zintix-labs/lerwlab/errs"
)

func EncodeBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func DecodeBase64URL(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, errs.Wrap(errs.Invalidf("%v", err), "decode base64url failed")
	}
	return b, nil
}

// AppendBlobFrame 把 payload 以 frame 形式接在 dst 之後。
func AppendBlobFrame(dst []byte, payload []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(payload)))
	return append(dst, payload...)
}

// EncodeBlobFrame 將單一 payload 編成一個 frame。
func EncodeBlobFrame(payload []byte) []byte {
	return AppendBlobFrame(make([]byte, 0, binary.MaxVarintLen64+len(payload)), payload)
}

// NextBlobFrame 從 src 讀出第一個 frame，回傳其 payload（複本）與剩餘的 bytes。
func NextBlobFrame(src []byte) (payload []byte, rest []byte, err error) {
	n, size := binary.Uvarint(src)
	if size <= 0 {
		return nil, nil, errs.Invalidf("decode blob frame failed: invalid varint length")
	}
	if uint64(len(src)-size) < n {
		return nil, nil, errs.Invalidf("decode blob frame failed: truncated payload")
	}
	end := size + int(n)
	out := make([]byte, int(n))
	copy(out, src[size:end])
	return out, src[end:], nil
}

// DecodeBlobFrame 解出單一 frame；frame 之後不允許有多餘資料。
func DecodeBlobFrame(frame []byte) ([]byte, error) {
	payload, rest, err := NextBlobFrame(frame)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, errs.Invalidf("decode blob frame failed: %d trailing bytes", len(rest))
	}
	return payload, nil
}

// WriteBlobFrame 把 frame 寫入 w（快照落地檔案用）。
func WriteBlobFrame(w io.Writer, payload []byte) error {
	var hdr [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[:], uint64(len(payload)))
	if _, err := w.Write(hdr[:n]); err != nil {
		return errs.Wrap(err, "write blob frame header failed")
	}
	if _, err := w.Write(payload); err != nil {
		return errs.Wrap(err, "write blob frame payload failed")
	}
	return nil
}

// ReadBlobFrame 從 r 讀出一個 frame。
//
// maxBytes 限制單一 payload 大小，避免不可信輸入造成無上限配置；0 表示不限制。
func ReadBlobFrame(r io.Reader, maxBytes uint64) ([]byte, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		b := bufio.NewReader(r)
		br, r = b, b
	}
	ln, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, errs.Wrap(err, "read blob frame header failed")
	}
	if maxBytes > 0 && ln > maxBytes {
		return nil, errs.Invalidf("read blob frame failed: payload %d exceeds %d bytes", ln, maxBytes)
	}
	out := make([]byte, ln)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, errs.Wrap(err, "read blob frame payload failed")
	}
	return out, nil
}

// 佔用 bitset 幾乎全為 0，壓縮後通常只剩幾 KB。
var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
	zstdErr  error
)

func zstdCodec() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEnc, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if zstdErr != nil {
			return
		}
		zstdDec, zstdErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
	return zstdEnc, zstdDec, zstdErr
}

// Compress 以 zstd 壓縮 b。EncodeAll / DecodeAll 可併發呼叫。
func Compress(b []byte) ([]byte, error) {
	enc, _, err := zstdCodec()
	if err != nil {
		return nil, errs.Wrap(err, "init zstd failed")
	}
	return enc.EncodeAll(b, make([]byte, 0, len(b)/64+64)), nil
}

// Decompress 解壓 Compress 的輸出；maxBytes > 0 時限制解壓後大小。
func Decompress(b []byte, maxBytes uint64) ([]byte, error) {
	_, dec, err := zstdCodec()
	if err != nil {
		return nil, errs.Wrap(err, "init zstd failed")
	}
	out, err := dec.DecodeAll(b, nil)
	if err != nil {
		return nil, errs.Wrap(errs.Invalidf("%v", err), "zstd decode failed")
	}
	if maxBytes > 0 && uint64(len(out)) > maxBytes {
		return nil, errs.Invalidf("zstd decode failed: output %d exceeds %d bytes", len(out), maxBytes)
	}
	return out, nil
}
