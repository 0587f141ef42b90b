package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/royalties/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "WORK_ID,WORK_TITLE,WRITERS,BATCH_ID,RIGHT_TYPE,RIGHT_TYPE_GROUP,TERRITORY,DISTRIBUTED_AMOUNT,ROYALTY_PERIOD_START_DATE\n"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root, cleanup := newRootCommand()
	defer cleanup()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "royalties.csv")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestPreview_Valid(t *testing.T) {
	p := writeFile(t, header+`W1,Song,"Doe, Jane [IP1]",B1,Perf,PERF,US,10.00,2024-01-01`+"\n")

	out, err := execute(t, "preview", p)
	require.NoError(t, err)

	var res core.PreviewResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Valid)
	assert.Equal(t, 1, res.TotalRows)
}

func TestPreview_Invalid(t *testing.T) {
	p := writeFile(t, header+`W1,Song,"Doe, Jane [IP1]",B1,Perf,PERF,US,abc,`+"\n")

	out, err := execute(t, "preview", p)
	require.Error(t, err)
	assert.Contains(t, out, `"valid": false`)
}

func TestImport_RequiresPeriodFlags(t *testing.T) {
	_, err := execute(t, "import", "x.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestStatementCreate_RequiresWriter(t *testing.T) {
	_, err := execute(t, "statement", "create", "--year", "2024", "--quarter", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "writer")
}

func TestExport_BadID(t *testing.T) {
	_, err := execute(t, "export", "not-a-uuid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid id")
}
