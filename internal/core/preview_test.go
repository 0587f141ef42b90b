package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviewImport(t *testing.T) {
	body := "WORK_ID,WRITERS,DISTRIBUTED_AMOUNT,NOTES\n" +
		`W1,"Doe, Jane [IP1]; Roe, Rick [IP2]",10,x` + "\n" +
		`W1,"Doe, Jane [IP1]",abc,` + "\n" +
		`W2,,5,` + "\n"

	res, err := PreviewImport(strings.NewReader(body))
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalRows)
	assert.Equal(t, 2, res.Works)
	assert.Equal(t, 2, res.Writers)
	assert.Equal(t, []string{ColBatchID}, res.MissingColumns)
	assert.Equal(t, []string{"NOTES"}, res.UnknownColumns)
	assert.False(t, res.Valid)

	// BATCH_ID is missing from every row plus one bad amount.
	assert.Equal(t, 4, res.ErrorCount)
	assert.Contains(t, res.Errors, RowError{Line: 3, Message: "DISTRIBUTED_AMOUNT must be numeric"})
}

func TestPreviewImport_CapsErrors(t *testing.T) {
	var b strings.Builder
	b.WriteString("WORK_ID,BATCH_ID\n")
	for i := 0; i < maxErrorSamples+5; i++ {
		b.WriteString(",B1\n")
	}

	res, err := PreviewImport(strings.NewReader(b.String()))
	require.NoError(t, err)
	assert.Equal(t, maxErrorSamples+5, res.ErrorCount)
	assert.Len(t, res.Errors, maxErrorSamples)
}

func TestPreviewImport_EmptyFile(t *testing.T) {
	_, err := PreviewImport(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyFile)
}
