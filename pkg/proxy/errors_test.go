package proxy

import (
	"errors"
	"testing"
	"time"

	"mercator-hq/relay/pkg/providers"
	"mercator-hq/relay/pkg/proxy/types"
)

func TestHandleErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{
			name:       "model not found",
			err:        &providers.NotFoundError{Model: "ghost"},
			wantStatus: 404,
			wantType:   types.ErrorTypeNotFound,
		},
		{
			name:       "timeout",
			err:        &providers.TimeoutError{Backend: "b", Deadline: 5 * time.Second},
			wantStatus: 504,
			wantType:   types.ErrorTypeGatewayTimeout,
		},
		{
			name:       "credential exhaustion",
			err:        &providers.CredentialExhaustedError{Backend: "b"},
			wantStatus: 503,
			wantType:   types.ErrorTypeServiceUnavailable,
		},
		{
			name:       "backend failure",
			err:        &providers.BackendError{Backend: "b", StatusCode: 500, Message: "boom"},
			wantStatus: 502,
			wantType:   types.ErrorTypeBadGateway,
		},
		{
			name:       "unclassified error is a backend failure",
			err:        errors.New("mystery"),
			wantStatus: 502,
			wantType:   types.ErrorTypeBadGateway,
		},
		{
			name:       "validation error",
			err:        &RequestError{Message: "model is required", Code: types.CodeMissingField, Param: "model"},
			wantStatus: 400,
			wantType:   types.ErrorTypeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := HandleError(tt.err)

			if resp.Error.Type != tt.wantType {
				t.Errorf("error type = %q, want %q", resp.Error.Type, tt.wantType)
			}
			if got := resp.Error.HTTPStatusCode(); got != tt.wantStatus {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.wantStatus)
			}
			if resp.Error.Message == "" {
				t.Error("error message is empty")
			}
		})
	}
}

func TestHandleErrorExhaustionCode(t *testing.T) {
	resp := HandleError(&providers.CredentialExhaustedError{Backend: "b"})
	if resp.Error.Code != types.CodeCredentialsExhausted {
		t.Errorf("error code = %q, want %q", resp.Error.Code, types.CodeCredentialsExhausted)
	}
}
