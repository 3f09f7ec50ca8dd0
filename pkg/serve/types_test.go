package serve

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/hypergrep/pkg/types"
)

func TestRequest_GrepUnmarshal(t *testing.T) {
	input := `{"type":"grep","payload":{"paths":["a.log","b.log.gz"],"patterns":["timeout","refused"],"flags":["caseless"]}}`

	var req Request
	err := json.Unmarshal([]byte(input), &req)
	require.NoError(t, err)

	assert.Equal(t, "grep", req.Type)

	var payload GrepPayload
	err = json.Unmarshal(req.Payload, &payload)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.log", "b.log.gz"}, payload.Paths)
	assert.Equal(t, []string{"timeout", "refused"}, payload.Patterns)
	assert.Equal(t, []string{"caseless"}, payload.Flags)
	assert.Empty(t, payload.Syntax)
}

func TestResponse_Marshal(t *testing.T) {
	resp := Response{
		Success: true,
		Type:    "ready",
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"success":true`)
	assert.Contains(t, string(data), `"type":"ready"`)
	assert.NotContains(t, string(data), `"error"`)
}

func TestFileResult_Marshal(t *testing.T) {
	res := types.ScanResult{Path: "a.log", Status: types.StatusOpenError, Err: types.ErrOpen}

	data, err := json.Marshal(FileResult{ScanResult: res, Message: res.Message()})
	require.NoError(t, err)

	assert.Contains(t, string(data), `"path":"a.log"`)
	assert.Contains(t, string(data), `"status":"open_error"`)
	assert.Contains(t, string(data), `"message":"open failed"`)
}
