package activities

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"

	"github.com/jordanhubbard/convreview/internal/pipeline"
)

func TestResolveLeadsActivity(t *testing.T) {
	a := NewActivities(pipeline.New(nil, nil, nil, nil, nil, pipeline.Options{MaxBatch: 2}))

	ids, err := a.ResolveLeadsActivity(context.Background(), pipeline.BatchRequest{LeadIDs: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	_, err = a.ResolveLeadsActivity(context.Background(), pipeline.BatchRequest{LeadIDs: []string{"a", "b", "c"}})
	require.Error(t, err)
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.True(t, appErr.NonRetryable())
	assert.Equal(t, "InvalidInput", appErr.Type())
}
