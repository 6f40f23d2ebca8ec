package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var errMalformedSignature = errors.New("malformed_signature")

// TimestampedSignature is a parsed "t=<unix>,v1=<hex>[,v1=<hex>]" header.
type TimestampedSignature struct {
	Timestamp  string
	Signatures []string
}

// Time returns the signing time carried by the header.
func (s TimestampedSignature) Time() (time.Time, error) {
	ts, err := strconv.ParseInt(s.Timestamp, 10, 64)
	if err != nil {
		return time.Time{}, errMalformedSignature
	}
	return time.Unix(ts, 0).UTC(), nil
}

func ParseTimestampedSignature(header string) (TimestampedSignature, error) {
	var sig TimestampedSignature
	for _, part := range strings.Split(header, ",") {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		switch key {
		case "t":
			sig.Timestamp = value
		case "v1":
			sig.Signatures = append(sig.Signatures, value)
		}
	}
	if sig.Timestamp == "" || len(sig.Signatures) == 0 {
		return TimestampedSignature{}, errMalformedSignature
	}
	return sig, nil
}

// VerifyTimestampedHMAC checks a "t=..,v1=.." header where v1 is the hex
// HMAC-SHA256 of "<t>.<payload>". Any matching v1 entry is accepted.
func VerifyTimestampedHMAC(payload []byte, header, secret string) bool {
	if secret == "" {
		return false
	}
	sig, err := ParseTimestampedSignature(header)
	if err != nil {
		return false
	}
	expected := []byte(timestampedDigest(payload, sig.Timestamp, secret))
	for _, candidate := range sig.Signatures {
		if hmac.Equal([]byte(strings.ToLower(candidate)), expected) {
			return true
		}
	}
	return false
}

// SignTimestampedHMAC builds the header VerifyTimestampedHMAC accepts.
func SignTimestampedHMAC(payload []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", ts, timestampedDigest(payload, ts, secret))
}

func timestampedDigest(payload []byte, timestamp, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMACSHA256 checks a hex HMAC-SHA256 of the raw body. An optional
// "sha256=" prefix is tolerated.
func VerifyHMACSHA256(payload []byte, signature, secret string) bool {
	if secret == "" {
		return false
	}
	signature = strings.TrimSpace(signature)
	signature = strings.TrimPrefix(signature, "sha256=")
	if signature == "" {
		return false
	}
	expected := SignHMACSHA256(payload, secret)
	return hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected))
}

func SignHMACSHA256(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyToken compares a static callback token in constant time.
func VerifyToken(token, expected string) bool {
	token = strings.TrimSpace(token)
	if token == "" || expected == "" {
		return false
	}
	return hmac.Equal([]byte(token), []byte(expected))
}

// SortedFieldsMessage drops signatureField, sorts the remaining keys and
// joins them as key=value pairs separated by '&'.
func SortedFieldsMessage(fields map[string]string, signatureField string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == signatureField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	return b.String()
}

// SignSortedFields returns the base64 HMAC-SHA256 of the sorted field message.
func SignSortedFields(fields map[string]string, signatureField, secret string) string {
	return base64.StdEncoding.EncodeToString(sortedFieldsDigest(fields, signatureField, secret))
}

// VerifySortedFields checks signature, or the value of signatureField when
// signature is empty, against the sorted field message. Base64 and hex
// digests are both accepted.
func VerifySortedFields(fields map[string]string, signatureField, signature, secret string) bool {
	if secret == "" {
		return false
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		signature = strings.TrimSpace(fields[signatureField])
	}
	if signature == "" {
		return false
	}
	digest := sortedFieldsDigest(fields, signatureField, secret)

	if decoded, err := base64.StdEncoding.DecodeString(signature); err == nil && len(decoded) == len(digest) {
		if hmac.Equal(decoded, digest) {
			return true
		}
	}
	if decoded, err := hex.DecodeString(signature); err == nil {
		return hmac.Equal(decoded, digest)
	}
	return false
}

func sortedFieldsDigest(fields map[string]string, signatureField, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(SortedFieldsMessage(fields, signatureField)))
	return mac.Sum(nil)
}

// ParseFields reads a flat field map from a JSON object or a form-encoded
// body. Non-string JSON values keep their compact JSON text.
func ParseFields(payload []byte) (map[string]string, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, errors.New("empty payload")
	}

	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		var raw map[string]any
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		fields := make(map[string]string, len(raw))
		for k, v := range raw {
			switch cast := v.(type) {
			case string:
				fields[k] = cast
			case json.Number:
				fields[k] = cast.String()
			case nil:
				fields[k] = ""
			default:
				encoded, err := json.Marshal(cast)
				if err != nil {
					return nil, err
				}
				fields[k] = string(encoded)
			}
		}
		return fields, nil
	}

	values, err := url.ParseQuery(string(trimmed))
	if err != nil {
		return nil, err
	}
	fields := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return fields, nil
}
