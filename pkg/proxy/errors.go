package proxy

import (
	"errors"

	"mercator-hq/relay/pkg/providers"
	"mercator-hq/relay/pkg/proxy/types"
)

// HandleError converts dispatch errors to OpenAI-compatible error
// responses. The mapping follows the error taxonomy:
//
//	not_found            -> 404
//	timeout              -> 504
//	credential_exhausted -> 503
//	provider             -> 502
//
// Request parsing and validation errors map to 400 before this is ever
// reached; anything unclassifiable becomes a 500.
func HandleError(err error) *types.ErrorResponse {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.ToErrorResponse()
	}

	switch providers.Classify(err) {
	case providers.KindNotFound:
		return types.NewNotFoundError(err.Error())

	case providers.KindTimeout:
		return types.NewGatewayTimeoutError(err.Error())

	case providers.KindCredentialExhausted:
		return types.NewServiceUnavailableError(err.Error(), types.CodeCredentialsExhausted)

	case providers.KindProvider:
		return types.NewBadGatewayError(err.Error())

	default:
		return types.NewServerError("An internal error occurred. Please try again later.")
	}
}
