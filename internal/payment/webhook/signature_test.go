package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampedHMACRoundTrip(t *testing.T) {
	payload := []byte(`{"type":"x"}`)
	at := time.Unix(1700000000, 0)

	mac := hmac.New(sha256.New, []byte("s"))
	mac.Write([]byte("1700000000." + string(payload)))
	header := "t=1700000000,v1=" + hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, header, SignTimestampedHMAC(payload, "s", at))
	assert.True(t, VerifyTimestampedHMAC(payload, header, "s"))

	for i := range payload {
		flipped := append([]byte(nil), payload...)
		flipped[i] ^= 0x01
		assert.Falsef(t, VerifyTimestampedHMAC(flipped, header, "s"), "byte %d", i)
	}
	assert.False(t, VerifyTimestampedHMAC(payload, header, "other"))
	assert.False(t, VerifyTimestampedHMAC(payload, header, ""))
}

func TestTimestampedHMACAcceptsAnyV1(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	good := SignTimestampedHMAC(payload, "whsec", time.Unix(1700000000, 0))
	sig, err := ParseTimestampedSignature(good)
	require.NoError(t, err)

	header := "t=" + sig.Timestamp + ",v1=deadbeef,v0=ignored,v1=" + sig.Signatures[0]
	assert.True(t, VerifyTimestampedHMAC(payload, header, "whsec"))

	ts, err := sig.Time()
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), ts.Unix())
}

func TestParseTimestampedSignatureRejectsMalformed(t *testing.T) {
	for _, header := range []string{"", "t=1", "v1=abc", "garbage"} {
		_, err := ParseTimestampedSignature(header)
		assert.Error(t, err, header)
	}
}

func TestHMACSHA256(t *testing.T) {
	payload := []byte(`{"meta":{"event_name":"subscription_created"}}`)
	sig := SignHMACSHA256(payload, "secret")

	assert.True(t, VerifyHMACSHA256(payload, sig, "secret"))
	assert.True(t, VerifyHMACSHA256(payload, "sha256="+sig, "secret"))
	assert.False(t, VerifyHMACSHA256(payload, sig, "wrong"))
	assert.False(t, VerifyHMACSHA256([]byte(`{}`), sig, "secret"))
	assert.False(t, VerifyHMACSHA256(payload, "", "secret"))
}

func TestSortedFields(t *testing.T) {
	fields := map[string]string{
		"alert_name":      "subscription_created",
		"subscription_id": "502198",
		"event_time":      "2025-01-01 10:00:00",
		"p_signature":     "ignored",
	}
	assert.Equal(t, "alert_name=subscription_created&event_time=2025-01-01 10:00:00&subscription_id=502198",
		SortedFieldsMessage(fields, "p_signature"))

	sig := SignSortedFields(fields, "p_signature", "pub")
	fields["p_signature"] = sig
	assert.True(t, VerifySortedFields(fields, "p_signature", "", "pub"))
	assert.True(t, VerifySortedFields(fields, "p_signature", sig, "pub"))
	assert.False(t, VerifySortedFields(fields, "p_signature", "", "other"))

	mac := hmac.New(sha256.New, []byte("pub"))
	mac.Write([]byte(SortedFieldsMessage(fields, "p_signature")))
	assert.True(t, VerifySortedFields(fields, "p_signature", hex.EncodeToString(mac.Sum(nil)), "pub"))

	fields["subscription_id"] = "502199"
	assert.False(t, VerifySortedFields(fields, "p_signature", "", "pub"))
}

func TestParseFields(t *testing.T) {
	fields, err := ParseFields([]byte(`{"alert_name":"payment_succeeded","quantity":2,"passthrough":{"a":1},"coupon":null}`))
	require.NoError(t, err)
	assert.Equal(t, "payment_succeeded", fields["alert_name"])
	assert.Equal(t, "2", fields["quantity"])
	assert.Equal(t, `{"a":1}`, fields["passthrough"])
	assert.Equal(t, "", fields["coupon"])

	fields, err = ParseFields([]byte("alert_name=subscription_cancelled&subscription_id=9"))
	require.NoError(t, err)
	assert.Equal(t, "9", fields["subscription_id"])

	_, err = ParseFields(nil)
	assert.Error(t, err)
}

func TestVerifyToken(t *testing.T) {
	assert.True(t, VerifyToken("tok", "tok"))
	assert.False(t, VerifyToken("tok", "other"))
	assert.False(t, VerifyToken("", ""))
}
