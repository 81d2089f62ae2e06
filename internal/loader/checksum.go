package loader

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	apperrors "github.com/alexisbeaulieu97/appflow/pkg/errors"
)

// ErrUnsupportedHash is returned for checksum methods other than md5 and sha1.
var ErrUnsupportedHash = errors.New("unsupported hash method")

// Checksum hashes the canonical JSON form of doc: compact, keys sorted and
// non-ASCII characters escaped.
func Checksum(doc any, method string) (string, error) {
	var h hash.Hash
	switch method {
	case "md5":
		h = md5.New()
	case "sha1":
		h = sha1.New()
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedHash, method)
	}

	canonical, err := canonicalJSON(doc)
	if err != nil {
		return "", err
	}
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func verifyChecksum(value any, fragment any) error {
	if value == nil {
		return nil
	}
	checksum, ok := value.(string)
	if !ok {
		return apperrors.NewValidationError(checksumField, fmt.Sprintf("bad checksum format: %v", value), nil)
	}
	if checksum == "" {
		return nil
	}

	parts := strings.Split(checksum, "$")
	if len(parts) != 2 {
		return apperrors.NewValidationError(checksumField, fmt.Sprintf("bad checksum format: %s", checksum), nil)
	}
	actual, err := Checksum(fragment, parts[0])
	if err != nil {
		return err
	}
	if !strings.EqualFold(actual, parts[1]) {
		return apperrors.NewValidationError(checksumField, fmt.Sprintf("checksum does not match: %s", checksum), nil)
	}
	return nil
}

func canonicalJSON(doc any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(pythonFloats(doc)); err != nil {
		return nil, fmt.Errorf("encode canonical json: %w", err)
	}
	return escapeNonASCII(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// pythonFloats copies doc with every float spelled the way Python's json
// module writes it: integral values keep a ".0" and exponents are used below
// 1e-4 and from 1e16 up.
func pythonFloats(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = pythonFloats(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = pythonFloats(item)
		}
		return out
	case float32:
		return json.Number(formatFloat(float64(v)))
	case float64:
		return json.Number(formatFloat(v))
	default:
		return value
	}
}

func formatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e16 {
		return strconv.FormatFloat(f, 'f', -1, 64) + ".0"
	}
	scientific := strconv.FormatFloat(f, 'e', -1, 64)
	_, exponent, _ := strings.Cut(scientific, "e")
	if exp, err := strconv.Atoi(exponent); err == nil && exp >= -4 && exp < 16 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return scientific
}

func escapeNonASCII(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		if r < utf8.RuneSelf {
			out = append(out, byte(r))
			continue
		}
		if r > 0xFFFF {
			r -= 0x10000
			out = fmt.Appendf(out, `\u%04x\u%04x`, 0xD800+(r>>10), 0xDC00+(r&0x3FF))
			continue
		}
		out = fmt.Appendf(out, `\u%04x`, r)
	}
	return out
}
