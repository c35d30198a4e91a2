package tars

import (
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// The Tencent JCE ecosystem predates widespread UTF-8 adoption and
// still carries GBK-encoded strings in many deployments. These helpers
// back the FallbackGBK decode option and let producers interoperate
// with such peers.

// decodeGBK transcodes a GBK payload to a UTF-8 string.
func decodeGBK(b []byte) (string, error) {
	out, _, err := transform.Bytes(simplifiedchinese.GBK.NewDecoder(), b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// EncodeGBK transcodes a UTF-8 string to GBK bytes, for callers that
// must emit string payloads readable by GBK-only peers (via
// Writer.WriteStringBytes).
func EncodeGBK(s string) ([]byte, error) {
	out, _, err := transform.Bytes(simplifiedchinese.GBK.NewEncoder(), []byte(s))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeGBKString is the exported twin of the decode fallback.
func DecodeGBKString(b []byte) (string, error) {
	return decodeGBK(b)
}
