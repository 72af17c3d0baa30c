package util

import "github.com/vmihailenco/msgpack"

// EncodePayload msgpack-encodes obj and writes it into the first bytes of
// buf, which is typically a page-sized frame buffer borrowed from the
// buffer pool. The core itself never does this — page payloads are opaque
// to it (spec: "does not interpret page contents") — this is for callers
// that want to store a struct in a page and know its own wire format.
//
// It returns an error if the encoded value does not fit in buf.
func EncodePayload[T any](buf []byte, obj T) error {
	data, err := msgpack.Marshal(obj)
	if err != nil {
		return err
	}
	if len(data) > len(buf) {
		return ErrPayloadTooLarge
	}
	clear(buf)
	copy(buf, data)
	return nil
}

// DecodePayload msgpack-decodes a T previously written with EncodePayload
// out of buf. Trailing zero padding in buf is harmless: msgpack framing is
// self-delimiting, so the decoder stops after the single encoded value.
func DecodePayload[T any](buf []byte) (T, error) {
	var res T
	if err := msgpack.Unmarshal(buf, &res); err != nil {
		return res, err
	}
	return res, nil
}
