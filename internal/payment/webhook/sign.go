package webhook

import (
	"strings"
	"time"

	"github.com/railzwaylabs/paybridge/internal/payment/domain"
)

// PaddleSignatureField is the body field carrying a Paddle alert signature.
const PaddleSignatureField = "p_signature"

// Sign produces the signature provider would attach to payload. Paddle
// signatures belong in the p_signature field of the body; Xendit sends the
// callback token itself.
func Sign(provider domain.Provider, payload []byte, secret string, at time.Time) (string, error) {
	provider = domain.Provider(strings.ToLower(strings.TrimSpace(string(provider))))
	switch provider {
	case domain.ProviderStripe:
		return SignTimestampedHMAC(payload, secret, at), nil
	case domain.ProviderLemonSqueezy, domain.ProviderBraintree:
		return SignHMACSHA256(payload, secret), nil
	case domain.ProviderXendit:
		return secret, nil
	case domain.ProviderPaddle:
		fields, err := ParseFields(payload)
		if err != nil {
			return "", domain.NewWebhookError(provider, domain.CodeInvalidPayload, "alert is neither form-encoded nor json")
		}
		return SignSortedFields(fields, PaddleSignatureField, secret), nil
	default:
		return "", domain.NewWebhookError(provider, CodeUnknownProvider, "no signing scheme for provider "+string(provider))
	}
}
