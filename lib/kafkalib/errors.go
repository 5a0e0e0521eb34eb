package kafkalib

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

type FetchMessageError struct {
	Err error
}

func NewFetchMessageError(err error) FetchMessageError {
	return FetchMessageError{
		Err: err,
	}
}

func (e FetchMessageError) Error() string {
	return fmt.Sprintf("failed to fetch message: %v", e.Err)
}

func (e FetchMessageError) Unwrap() error {
	return e.Err
}

// IsRetryableErr returns true for broker errors that resolve themselves once the group rebalances.
func IsRetryableErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, kerr.RebalanceInProgress) || errors.Is(err, kerr.NotCoordinator) {
		return true
	}

	return strings.Contains(err.Error(), "Group Authorization Failed") || strings.Contains(err.Error(), "REBALANCE_IN_PROGRESS")
}

// fetchErrors joins the errors of a poll, ignoring the ones caused by the poll deadline.
func fetchErrors(fetches kgo.Fetches) error {
	var errs []error
	for _, fetchErr := range fetches.Errors() {
		if errors.Is(fetchErr.Err, context.DeadlineExceeded) || errors.Is(fetchErr.Err, context.Canceled) {
			continue
		}
		errs = append(errs, fmt.Errorf("topic %q partition %d: %w", fetchErr.Topic, fetchErr.Partition, fetchErr.Err))
	}
	return errors.Join(errs...)
}
