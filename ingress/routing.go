package ingress

// supervisorSideEffects implements spec.md §4.5 step 5: payload workers
// inspect admin_pipeline/netmon payloads for network-view side effects
// before the regular routing path runs.
func (w *Worker) supervisorSideEffects(path []string, envelope map[string]interface{}) []Report {
	if len(path) < 3 || path[1] != AdminPipelineNode || path[2] != NetmonPluginSignature {
		return nil
	}

	var reports []Report
	reports = append(reports, Report{Kind: ReportEvent, Event: EventSupervisorStatus, Payload: envelope})

	if network, ok := envelope["CURRENT_NETWORK"].(map[string]interface{}); ok {
		reports = append(reports, Report{
			Kind:    ReportEvent,
			Event:   EventAddressesRefresh,
			Payload: network,
		})
	}

	if isAlert, _ := envelope["IS_ALERT"].(bool); isAlert {
		if alerted, ok := envelope["CURRENT_ALERTED"].([]interface{}); ok {
			nodes := make([]map[string]interface{}, 0, len(alerted))
			for _, a := range alerted {
				if entry, ok := a.(map[string]interface{}); ok {
					nodes = append(nodes, map[string]interface{}{
						"node":     entry["node"],
						"lastSeen": entry["lastSeen"],
					})
				}
			}
			if len(nodes) > 0 {
				reports = append(reports, Report{
					Kind:  ReportEvent,
					Event: EventNetworkNodeDown,
					Payload: map[string]interface{}{
						"alerted": nodes,
					},
				})
			}
		}
	}

	reports = append(reports, Report{
		Kind:    ReportSupervisorPayload,
		Address: path[0],
		Payload: envelope,
	})

	return reports
}

func (w *Worker) routeHeartbeat(address string, data map[string]interface{}) []Report {
	hb := decodeHeartbeat(data)

	return []Report{
		{
			Kind:         ReportHeartbeat,
			Address:      address,
			HeartbeatRaw: hb.Raw,
		},
		{
			Kind:    ReportEvent,
			Event:   EventReceivedHeartbeat,
			Payload: hb.Raw,
		},
		{
			Kind:    ReportEvent,
			Event:   EventReceivedHBByAddress,
			Payload: map[string]interface{}{"address": address, "data": hb.Raw},
		},
	}
}

func (w *Worker) routeNotification(path []string, data map[string]interface{}) []Report {
	metadata := map[string]interface{}{}
	code, _ := data["NOTIFICATION_CODE"].(string)
	typ, _ := data["NOTIFICATION_TYPE"].(string)
	tag, _ := data["NOTIFICATION_TAG"].(string)
	metadata["NOTIFICATION_CODE"] = code
	metadata["NOTIFICATION_TYPE"] = typ
	metadata["NOTIFICATION_TAG"] = tag

	ctx := w.buildContext(path, metadata)
	notif := NotificationReport{Type: typ, Code: code, Tag: tag, Raw: data}

	reports := []Report{
		{
			Kind:         ReportNotificationMatch,
			Path:         path,
			Notification: notif,
			Payload:      contextPayload(ctx),
		},
		{
			Kind:    ReportEvent,
			Event:   EventNotificationPlain,
			Payload: data,
		},
	}

	if sessionID, ok := data["SESSION_ID"].(string); ok && sessionID != "" {
		w.stateMu.Lock()
		inbox, watched := w.watchBySess[sessionID]
		w.stateMu.Unlock()
		if watched {
			reports = append(reports, Report{
				Kind:    ReportEvent,
				Event:   EventRequestResponse,
				Address: inbox,
				Payload: data,
			})
		}
	}

	w.stateMu.Lock()
	inboxes := append([]string(nil), w.watchByPath[pathKey(path)]...)
	w.stateMu.Unlock()
	for _, inbox := range inboxes {
		reports = append(reports, Report{
			Kind:    ReportEvent,
			Event:   EventRequestResponse,
			Address: inbox,
			Path:    path,
			Payload: data,
		})
	}

	return reports
}

func pathKey(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += ":"
		}
		out += p
	}
	return out
}

func (w *Worker) routePayload(path []string, data map[string]interface{}) []Report {
	decoded := decodePayload(data)

	if cmdID, ok := stickyCommandID(decoded); ok {
		w.stateMu.Lock()
		inbox, bound := w.stickyByID[cmdID]
		w.stateMu.Unlock()
		if bound {
			return []Report{{
				Kind:     ReportEvent,
				Event:    EventStickyPayload,
				StickyID: cmdID,
				InboxID:  inbox,
				Payload:  decoded,
			}}
		}
	}

	signature := ""
	if len(path) > 2 {
		signature = path[2]
	}
	eventName := signature
	if eventName == "" {
		eventName = "PAYLOAD"
	}

	return []Report{{
		Kind:    ReportEvent,
		Event:   eventName,
		Payload: decoded,
	}}
}

func contextPayload(ctx Context) map[string]interface{} {
	return map[string]interface{}{
		"pipeline": ctx.Pipeline,
		"instance": ctx.Instance,
		"metadata": ctx.Metadata,
	}
}
