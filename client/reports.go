package client

import (
	"time"

	"github.com/edgenet-x/client-go/ingress"
	"github.com/edgenet-x/client-go/internal/logger"
	"github.com/edgenet-x/client-go/internal/metrics"
	"github.com/edgenet-x/client-go/registry"
	"github.com/edgenet-x/client-go/state"
)

// reportLoop is the single consumer of every worker's Report stream. It
// is the only place that mutates Client-owned state in response to
// ingress activity, per spec.md §3's ownership rule.
func (c *Client) reportLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case report, ok := <-c.reports:
			if !ok {
				return
			}
			c.handleReport(report)
		}
	}
}

func (c *Client) handleReport(report ingress.Report) {
	switch report.Kind {
	case ingress.ReportEvent:
		c.handleEventReport(report)

	case ingress.ReportHeartbeat:
		snapshot := state.HeartbeatSnapshot{
			LastUpdateMs: time.Now().UnixMilli(),
			Data:         report.HeartbeatRaw,
		}
		if err := c.stateMgr.NodeInfoUpdate(c.ctx, report.Address, snapshot); err != nil {
			c.log.Warn("client: heartbeat update failed", logger.String("address", report.Address), logger.Error(err))
		}

	case ingress.ReportObservedSeen:
		// OBSERVED_NODE itself is emitted only by heartbeat workers, via
		// their own ReportEvent (worker.go); every stream marks the
		// universe seen, but only heartbeats are a liveness signal.
		c.stateMgr.MarkAsSeen(c.ctx, report.Address, report.TimestampMs)

	case ingress.ReportNotificationMatch:
		c.registry.Dispatch(registry.PathKey(report.Path), registry.Notification{
			Type: report.Notification.Type,
			Code: report.Notification.Code,
			Tag:  report.Notification.Tag,
			Raw:  report.Notification.Raw,
		})

	case ingress.ReportSupervisorPayload:
		if err := c.stateMgr.UpdateNetworkSnapshot(c.ctx, report.Address, report.Payload); err != nil {
			c.log.Warn("client: supervisor snapshot update failed", logger.String("supervisor", report.Address), logger.Error(err))
		}

	case ingress.ReportStickySession:
		c.events.emit(ingress.EventStickyPayload, map[string]interface{}{
			"stickyId": report.StickyID,
			"inboxId":  report.InboxID,
		})

	case ingress.ReportMemoryUsage:
		c.recordWorkerStats(report.Stats)
	}
}

func (c *Client) handleEventReport(report ingress.Report) {
	switch report.Event {
	case ingress.EventAddressesRefresh:
		c.refreshDirectory(report.Payload)
		c.events.emit(report.Event, report.Payload)

	case ingress.EventNetworkNodeDown:
		c.handleAlertTransition(report.Payload)
		c.events.emit(report.Event, report.Payload)

	case ingress.EventSupervisorStatus:
		// A supervisor payload with no alerted nodes produces no
		// NETWORK_NODE_DOWN report, so it clears the alert set here.
		isAlert, _ := report.Payload["IS_ALERT"].(bool)
		alerted, _ := report.Payload["CURRENT_ALERTED"].([]interface{})
		if !isAlert || len(alerted) == 0 {
			c.handleAlertTransition(map[string]interface{}{"alerted": []map[string]interface{}{}})
		}
		c.events.emit(report.Event, report.Payload)

	default:
		c.events.emit(report.Event, report.Payload)
	}
}

// refreshDirectory applies a CURRENT_NETWORK payload (node name -> address)
// to the address directory, per spec.md §4.5 step 5.
func (c *Client) refreshDirectory(network map[string]interface{}) {
	for name, raw := range network {
		address, ok := raw.(string)
		if !ok || address == "" {
			continue
		}
		c.directory.Set(name, address)
	}
}

// handleAlertTransition implements the S5 scenario: an address moving in
// or out of a supervisor's CURRENT_ALERTED list is translated into
// ENGINE_OFFLINE/ENGINE_ONLINE application events, tracked per-address so
// each transition fires exactly once.
func (c *Client) handleAlertTransition(payload map[string]interface{}) {
	alertedRaw, ok := payload["alerted"].([]map[string]interface{})
	if !ok {
		return
	}

	now := make(map[string]bool, len(alertedRaw))
	for _, entry := range alertedRaw {
		node, _ := entry["node"].(string)
		if node == "" {
			continue
		}
		now[node] = true
	}

	c.alertMu.Lock()
	defer c.alertMu.Unlock()

	for node := range now {
		if !c.alerted[node] {
			c.alerted[node] = true
			c.events.emit(EventEngineOffline, map[string]interface{}{"node": node})
		}
	}
	for node := range c.alerted {
		if !now[node] {
			delete(c.alerted, node)
			c.events.emit(EventEngineOnline, map[string]interface{}{"node": node})
		}
	}
}

func (c *Client) recordWorkerStats(stats ingress.WorkerStats) {
	thread := string(stats.ThreadType)
	metrics.FramesHandled.WithLabelValues(thread, stats.WorkerID).Set(float64(stats.MessagesHandled))
	metrics.FramesDropped.WithLabelValues(thread, stats.WorkerID).Set(float64(stats.MessagesDropped))
	metrics.WorkerMemoryBytes.WithLabelValues(thread, stats.WorkerID).Set(float64(stats.AllocBytes))
}

// memoryReportLoop polls every worker for its MEMORY_USAGE stats every
// memoryReportInterval and keeps the pending-request gauge current, per
// spec.md §5.
func (c *Client) memoryReportLoop() {
	ticker := time.NewTicker(memoryReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.broadcastAll(ingress.Command{Kind: ingress.CmdMemoryUsage})
			metrics.PendingRequests.Set(float64(c.registry.Len()))
		}
	}
}
