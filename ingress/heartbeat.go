package ingress

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
)

// decodeEncodedData reverses the heartbeat payload's ENCODED_DATA
// transport encoding: base64 then raw DEFLATE. No suitable third-party
// inflate codec is available, so this one step stays on the standard
// library; see DESIGN.md.
func decodeEncodedData(encoded string) (map[string]interface{}, error) {
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("ingress: decode ENCODED_DATA base64: %w", err)
	}

	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ingress: inflate ENCODED_DATA: %w", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("ingress: unmarshal ENCODED_DATA: %w", err)
	}
	return decoded, nil
}

// HeartbeatData is the decoded, split shape of a heartbeat's DATA
// section, per spec.md §4.5 step 8.
type HeartbeatData struct {
	Raw       map[string]interface{}       `json:"raw"`
	Pipelines []PipelineHeartbeat          `json:"pipelines"`
	Node      map[string]interface{}       `json:"node"`
	Hardware  map[string]interface{}       `json:"hardware"`
}

// PipelineHeartbeat pairs one pipeline's stats with its active plugins'
// stats, keyed by (stream, signature, instance).
type PipelineHeartbeat struct {
	ID      string                 `json:"id"`
	Stats   map[string]interface{} `json:"stats"`
	Plugins []PluginHeartbeat      `json:"plugins"`
}

// PluginHeartbeat is one active plugin instance's stats within a
// pipeline heartbeat.
type PluginHeartbeat struct {
	Stream    string                 `json:"stream"`
	Signature string                 `json:"signature"`
	Instance  string                 `json:"instance"`
	Stats     map[string]interface{} `json:"stats"`
}

// decodeHeartbeat applies step 8's heartbeat-specific decoding: inflate
// ENCODED_DATA if present and merge it into data, then split the merged
// result into raw/pipelines/node/hardware, pairing each pipeline's
// stats with its active-plugin stats.
func decodeHeartbeat(data map[string]interface{}) HeartbeatData {
	merged := make(map[string]interface{}, len(data))
	for k, v := range data {
		merged[k] = v
	}

	if encoded, ok := merged["ENCODED_DATA"].(string); ok && encoded != "" {
		if decoded, err := decodeEncodedData(encoded); err == nil {
			delete(merged, "ENCODED_DATA")
			for k, v := range decoded {
				merged[k] = v
			}
		}
	}

	hd := HeartbeatData{Raw: merged}

	if node, ok := merged["node"].(map[string]interface{}); ok {
		hd.Node = node
	}
	if hw, ok := merged["hardware"].(map[string]interface{}); ok {
		hd.Hardware = hw
	}

	pluginsByPipeline := map[string][]PluginHeartbeat{}
	if activePlugins, ok := merged["activePlugins"].([]interface{}); ok {
		for _, p := range activePlugins {
			entry, ok := p.(map[string]interface{})
			if !ok {
				continue
			}
			stream, _ := entry["stream"].(string)
			sig, _ := entry["signature"].(string)
			inst, _ := entry["instance"].(string)
			stats, _ := entry["stats"].(map[string]interface{})

			ph := PluginHeartbeat{Stream: stream, Signature: sig, Instance: inst, Stats: stats}
			pluginsByPipeline[stream] = append(pluginsByPipeline[stream], ph)
		}
	}

	if pipelines, ok := merged["pipelines"].([]interface{}); ok {
		for _, p := range pipelines {
			entry, ok := p.(map[string]interface{})
			if !ok {
				continue
			}
			id, _ := entry["id"].(string)
			stats, _ := entry["stats"].(map[string]interface{})
			hd.Pipelines = append(hd.Pipelines, PipelineHeartbeat{
				ID:      id,
				Stats:   stats,
				Plugins: pluginsByPipeline[id],
			})
		}
	}

	return hd
}
