package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricTypeService_List(t *testing.T) {
	store := newMemStore()
	svc := NewMetricTypeService(memMetrics{store}, testLogger())

	types, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, types)
	assert.Empty(t, types)

	_, err = store.newIngestionService().Ingest(context.Background(), testOwner(),
		mustParse(t, `{"report_saved_raw_data": {"multiqc_fastqc": {"s1": {"percent_gc": 41}}}}`))
	require.NoError(t, err)

	types, err = svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, "fastqc: percent gc", types[0].NiceName)
}
