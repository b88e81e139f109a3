package ingress

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgenet-x/client-go/crypto"
)

func TestRawFormatterSeparatesEnvelopeFromData(t *testing.T) {
	envelope := map[string]interface{}{
		"EE_SENDER":       "0xai_abc",
		"EE_SIGN":         "sig",
		"EE_HASH":         "hash",
		"EE_PAYLOAD_PATH": []interface{}{"node-1", nil, nil, nil},
		"EE_EVENT_TYPE":   "HEARTBEAT",
		"ENCODED_DATA":    "abc123",
	}

	out := rawFormatter(envelope)

	assert.Equal(t, "0xai_abc", out["EE_SENDER"])
	data, ok := out["DATA"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "abc123", data["ENCODED_DATA"])
	_, hasEnvelopeKeyInData := data["EE_SENDER"]
	assert.False(t, hasEnvelopeKeyInData)
}

func TestFleetFilterDropsOutOfFleetAddresses(t *testing.T) {
	f := NewFleet([]string{"node-A"})
	assert.True(t, f.Contains("node-A"))
	assert.False(t, f.Contains("node-B"))

	f.Add("node-B")
	assert.True(t, f.Contains("node-B"))

	f.Remove("node-B")
	assert.False(t, f.Contains("node-B"))
}

func TestFleetWildcardAcceptsEverything(t *testing.T) {
	f := NewFleet([]string{"*"})
	assert.True(t, f.Contains("anything"))
}

func TestDecodeEncodedDataInflatesAndDecodesBase64JSON(t *testing.T) {
	inner := map[string]interface{}{"cpu": 42.0}
	raw, err := json.Marshal(inner)
	require.NoError(t, err)

	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = fw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, fw.Close())

	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())

	decoded, err := decodeEncodedData(encoded)
	require.NoError(t, err)
	assert.Equal(t, 42.0, decoded["cpu"])
}

func TestDecodePayloadSplitsMetaPrefixes(t *testing.T) {
	data := map[string]interface{}{
		"NAME":        "foo",
		"_P_VERSION":  "1.0",
		"_C_PIPELINE": "p1",
	}

	out := decodePayload(data)

	assert.Equal(t, "foo", out["NAME"])
	pluginMeta, ok := out["PLUGIN_META"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "1.0", pluginMeta["VERSION"])
	pipelineMeta, ok := out["PIPELINE_META"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "p1", pipelineMeta["PIPELINE"])
}

func TestHandleFrameDropsOnFailedVerification(t *testing.T) {
	kp, err := crypto.GenerateKeys()
	require.NoError(t, err)

	envelope, err := crypto.Sign(map[string]interface{}{
		"EE_PAYLOAD_PATH": []string{"node-1"},
		"EE_EVENT_TYPE":   "HEARTBEAT",
	}, kp)
	require.NoError(t, err)
	envelope[crypto.FieldHash] = "0000000000000000000000000000000000000000000000000000000000000"

	frame, err := json.Marshal(envelope)
	require.NoError(t, err)

	w := New(Options{ThreadType: ThreadHeartbeats, Secure: true})
	reports := w.handleFrame(frame)
	assert.Empty(t, reports)
}

func TestHandleFrameEmitsObservedNodeForHeartbeats(t *testing.T) {
	kp, err := crypto.GenerateKeys()
	require.NoError(t, err)

	envelope, err := crypto.Sign(map[string]interface{}{
		"EE_PAYLOAD_PATH": []string{"node-1"},
		"EE_EVENT_TYPE":   "HEARTBEAT",
	}, kp)
	require.NoError(t, err)

	frame, err := json.Marshal(envelope)
	require.NoError(t, err)

	w := New(Options{ThreadType: ThreadHeartbeats, Secure: true})
	reports := w.handleFrame(frame)
	require.NotEmpty(t, reports)

	foundObserved := false
	for _, r := range reports {
		if r.Kind == ReportEvent && r.Event == EventObservedNode {
			foundObserved = true
		}
	}
	assert.True(t, foundObserved)
}
