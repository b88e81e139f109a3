package ingress

import "strings"

// decodePayload applies step 8's payload-specific decoding: any key
// starting with _P_ moves into PLUGIN_META, any key starting with _C_
// moves into PIPELINE_META, with the prefix stripped from the moved
// key's name.
func decodePayload(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	pluginMeta := make(map[string]interface{})
	pipelineMeta := make(map[string]interface{})

	for k, v := range data {
		switch {
		case strings.HasPrefix(k, pluginMetaPrefix):
			pluginMeta[strings.TrimPrefix(k, pluginMetaPrefix)] = v
		case strings.HasPrefix(k, pipelineMetaPrefix):
			pipelineMeta[strings.TrimPrefix(k, pipelineMetaPrefix)] = v
		default:
			out[k] = v
		}
	}

	if len(pluginMeta) > 0 {
		out["PLUGIN_META"] = pluginMeta
	}
	if len(pipelineMeta) > 0 {
		out["PIPELINE_META"] = pipelineMeta
	}
	return out
}

// stickyCommandID extracts COMMAND_PARAMS.__COMMAND_ID from a decoded
// payload, used to route sticky-session payloads.
func stickyCommandID(data map[string]interface{}) (string, bool) {
	params, ok := data["COMMAND_PARAMS"].(map[string]interface{})
	if !ok {
		return "", false
	}
	id, ok := params["__COMMAND_ID"].(string)
	return id, ok && id != ""
}
