package kafkalib

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

func Test_IsRetryableErr(t *testing.T) {
	type _tc struct {
		err            error
		expectedResult bool
	}

	tcs := []_tc{
		{
			err:            nil,
			expectedResult: false,
		},
		{
			err:            fmt.Errorf("[30] Group Authorization Failed: the client is not authorized to access a particular group id"),
			expectedResult: true,
		},
		{
			err:            fmt.Errorf("topic %q partition %d: %w", "orders", 0, kerr.RebalanceInProgress),
			expectedResult: true,
		},
		{
			err:            fmt.Errorf("unknown topic"),
			expectedResult: false,
		},
	}

	for _, tc := range tcs {
		assert.Equal(t, tc.expectedResult, IsRetryableErr(tc.err), tc.err)
	}
}

func TestFetchMessageError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewFetchMessageError(fmt.Errorf("boom")))
	var fetchErr FetchMessageError
	assert.ErrorAs(t, err, &fetchErr)
	assert.ErrorContains(t, fetchErr, "failed to fetch message: boom")
}

func TestFetchErrors(t *testing.T) {
	assert.NoError(t, fetchErrors(nil))
	assert.NoError(t, fetchErrors(kgo.NewErrFetch(context.DeadlineExceeded)))
	assert.ErrorContains(t, fetchErrors(kgo.NewErrFetch(fmt.Errorf("broker down"))), "broker down")
}
