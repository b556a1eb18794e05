package fantasybridge

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"charm.land/fantasy"

	"github.com/dotcommander/mcpagent/internal/errs"
)

// describe attaches a user-facing reason to a completion error.
func describe(api string, err error) error {
	var providerErr *fantasy.ProviderError
	if !errors.As(err, &providerErr) {
		return errs.Error{Err: err, Reason: fmt.Sprintf("There was a problem with the %s API request.", api)}
	}

	switch {
	case providerErr.StatusCode == http.StatusNotFound:
		return errs.Error{Err: err, Reason: fmt.Sprintf("The %s API does not know the configured model.", api)}
	case providerErr.StatusCode == http.StatusBadRequest && isContextLengthExceeded(providerErr):
		return errs.Error{Err: err, Reason: "Maximum prompt size exceeded."}
	}

	reason := fantasy.ErrorTitleForStatusCode(providerErr.StatusCode)
	if reason == "" {
		reason = fmt.Sprintf("%s API request error.", api)
	}
	return errs.Error{Err: err, Reason: reason}
}

// retryable reports whether a completion error is worth retrying.
func retryable(err error) bool {
	var providerErr *fantasy.ProviderError
	return errors.As(err, &providerErr) && providerErr.IsRetryable()
}

func isContextLengthExceeded(err *fantasy.ProviderError) bool {
	return strings.Contains(strings.ToLower(err.Message), "context_length_exceeded") ||
		strings.Contains(strings.ToLower(string(err.ResponseBody)), "context_length_exceeded")
}
