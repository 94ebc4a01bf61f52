package polly

import (
	"context"

	"github.com/aws/smithy-go"

	"github.com/tphakala/voicekit/internal/errors"
	"github.com/tphakala/voicekit/internal/voice"
)

// normalizeError maps Polly API failures onto a SynthesisError with a short
// reason. Context errors pass through unchanged.
func normalizeError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	reason := "transport error"
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "TooManyRequestsException", "ThrottlingException":
			reason = "rate limited"
		case "InvalidSsmlException", "TextLengthExceededException", "InvalidSampleRateException",
			"LexiconNotFoundException", "MarksNotSupportedForFormatException":
			reason = "request rejected"
		case "EngineNotSupportedException", "LanguageNotSupportedException":
			reason = "voice not supported"
		default:
			reason = "service error"
		}
	}

	enhanced := errors.New(err).
		Component(componentPolly).
		Category(errors.CategorySynthesis).
		Context("operation", op).
		Build()
	return &voice.SynthesisError{Reason: reason, Err: enhanced}
}
