package ingress

import (
	"context"
	"encoding/json"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edgenet-x/client-go/crypto"
	"github.com/edgenet-x/client-go/internal/logger"
)

// NetmonPluginSignature identifies the supervisor's network-monitor
// plugin inside an admin_pipeline payload path, per spec.md §4.5 step 5.
const NetmonPluginSignature = "netmon"

// AdminPipelineNode is the well-known pipeline name supervisor payloads
// arrive on.
const AdminPipelineNode = "admin_pipeline"

// Options configures one Worker instance.
type Options struct {
	ThreadType ThreadType
	WorkerID   string
	Identity   *crypto.KeyPair
	Secure     bool
	Fleet      *Fleet
	Formatters *FormatterRegistry
	Log        logger.Logger
}

// Worker consumes one bus subscription and runs the full inbound
// pipeline over every frame it receives, serially, per spec.md §4.5. It
// never shares mutable state with any other worker; all coordination
// with the client happens through frames in and reports out.
type Worker struct {
	opts Options
	log  logger.Logger

	nodeState    map[string]map[string]interface{}
	watchByPath  map[string][]string
	watchBySess  map[string]string
	stickyByID   map[string]string
	stateMu      sync.Mutex

	handled uint32
	dropped uint32
}

// New creates a Worker ready to Run.
func New(opts Options) *Worker {
	log := opts.Log
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	if opts.Formatters == nil {
		opts.Formatters = NewFormatterRegistry(nil)
	}
	if opts.Fleet == nil {
		opts.Fleet = NewFleet([]string{"*"})
	}
	return &Worker{
		opts:        opts,
		log:         log,
		nodeState:   make(map[string]map[string]interface{}),
		watchByPath: make(map[string][]string),
		watchBySess: make(map[string]string),
		stickyByID:  make(map[string]string),
	}
}

// Run processes frames and commands until ctx is cancelled or frames
// closes. reports must have enough buffer (or a draining consumer) that
// a slow client doesn't stall the bus read loop indefinitely.
func (w *Worker) Run(ctx context.Context, frames <-chan []byte, commands <-chan Command, reports chan<- Report) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			for _, r := range w.handleFrame(frame) {
				select {
				case reports <- r:
				case <-ctx.Done():
					return
				}
			}
		case cmd, ok := <-commands:
			if !ok {
				continue
			}
			if r := w.handleCommand(cmd); r != nil {
				select {
				case reports <- *r:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (w *Worker) handleCommand(cmd Command) *Report {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	switch cmd.Kind {
	case CmdUpdateState:
		w.nodeState[cmd.Address] = cmd.State
	case CmdUpdateFleet:
		if cmd.FleetAdd {
			w.opts.Fleet.Add(cmd.Address)
		} else {
			w.opts.Fleet.Remove(cmd.Address)
		}
	case CmdRefreshAddresses:
		// The directory itself is client-owned; workers only need the
		// fleet/state keyed by address, so this is a no-op placeholder
		// for symmetry with spec.md's command list.
	case CmdWatchForSessionID:
		if cmd.SessionID != "" {
			w.watchBySess[cmd.SessionID] = cmd.InboxID
		}
		if cmd.PathKey != "" {
			w.watchByPath[cmd.PathKey] = append(w.watchByPath[cmd.PathKey], cmd.InboxID)
		}
	case CmdIgnoreSessionID:
		if cmd.SessionID != "" {
			delete(w.watchBySess, cmd.SessionID)
		}
		if cmd.PathKey != "" {
			delete(w.watchByPath, cmd.PathKey)
		}
	case CmdWatchForStickySessionID:
		w.stickyByID[cmd.StickyID] = cmd.InboxID
	case CmdMemoryUsage:
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		return &Report{
			Kind: ReportMemoryUsage,
			Stats: WorkerStats{
				ThreadType:      w.opts.ThreadType,
				WorkerID:        w.opts.WorkerID,
				MessagesHandled: uint64(atomic.LoadUint32(&w.handled)),
				MessagesDropped: uint64(atomic.LoadUint32(&w.dropped)),
				AllocBytes:      mem.Alloc,
			},
		}
	}
	return nil
}

// handleFrame runs the full step 1-10 pipeline over one raw bus frame.
func (w *Worker) handleFrame(frame []byte) []Report {
	var envelope map[string]interface{}
	if err := json.Unmarshal(frame, &envelope); err != nil {
		w.drop("malformed json")
		return nil
	}

	// Step 2: verify.
	if w.opts.Secure && !crypto.Verify(envelope) {
		w.drop("signature verification failed")
		return nil
	}

	// Step 3: decrypt if needed.
	if encrypted, _ := envelope[FieldIsEncrypted].(bool); encrypted {
		b64, _ := envelope[FieldEncryptedData].(string)
		sender, _ := envelope[crypto.FieldSender].(string)
		if b64 == "" || sender == "" || w.opts.Identity == nil {
			w.drop("missing encrypted payload fields")
			return nil
		}
		plaintext, err := w.opts.Identity.Decrypt(b64, crypto.Address(sender))
		if err != nil {
			w.drop("decryption failed")
			return nil
		}
		var inner map[string]interface{}
		if err := json.Unmarshal(plaintext, &inner); err != nil {
			w.drop("malformed decrypted payload")
			return nil
		}
		for k, v := range inner {
			envelope[k] = v
		}
	}

	// Step 4: require EE_PAYLOAD_PATH.
	pathRaw, ok := envelope[FieldPayloadPath].([]interface{})
	if !ok || len(pathRaw) == 0 {
		w.drop("missing EE_PAYLOAD_PATH")
		return nil
	}
	path := toStringPath(pathRaw)

	atomic.AddUint32(&w.handled, 1)
	var reports []Report

	// Step 5: supervisor side-effect (payload workers only).
	if w.opts.ThreadType == ThreadPayloads {
		reports = append(reports, w.supervisorSideEffects(path, envelope)...)
	}

	// Step 6: fleet filter. Every kind marks the address seen in the
	// universe regardless of filter; heartbeat workers additionally
	// always emit an app-visible OBSERVED_NODE event first.
	address := path[0]
	reports = append(reports, Report{Kind: ReportObservedSeen, Address: address, TimestampMs: time.Now().UnixMilli()})
	if w.opts.ThreadType == ThreadHeartbeats {
		reports = append(reports, Report{Kind: ReportEvent, Event: EventObservedNode, Payload: map[string]interface{}{"address": address}})
	}

	if !w.opts.Fleet.Contains(address) {
		return reports
	}

	// Step 7: format dispatch.
	formatterName, _ := envelope[FieldFormatter].(string)
	formatter, ok := w.opts.Formatters.Lookup(formatterName)
	if !ok {
		w.log.Warn("ingress: unknown formatter", logger.String("formatter", formatterName))
		w.drop("unknown formatter")
		return reports
	}
	formatted := formatter(envelope)
	data, _ := formatted["DATA"].(map[string]interface{})
	if data == nil {
		data = formatted
	}

	// Step 8/9/10: per-kind decoding, context assembly, routing.
	switch w.opts.ThreadType {
	case ThreadHeartbeats:
		reports = append(reports, w.routeHeartbeat(address, data)...)
	case ThreadNotifications:
		reports = append(reports, w.routeNotification(path, data)...)
	case ThreadPayloads:
		reports = append(reports, w.routePayload(path, data)...)
	}

	return reports
}

func (w *Worker) drop(reason string) {
	atomic.AddUint32(&w.dropped, 1)
	w.log.Debug("ingress: dropped frame", logger.String("reason", reason))
}

func toStringPath(raw []interface{}) []string {
	out := make([]string, len(raw))
	for i, v := range raw {
		if s, ok := v.(string); ok {
			out[i] = s
		}
	}
	return out
}

// buildContext assembles {pipeline, instance, metadata} from the
// worker's local state copy, per spec.md §4.5 step 9.
func (w *Worker) buildContext(path []string, metadata map[string]interface{}) Context {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	ctx := Context{Metadata: metadata}
	if len(path) < 2 {
		return ctx
	}

	nodeMap, ok := w.nodeState[path[0]]
	if !ok {
		return ctx
	}
	pipelines, ok := nodeMap["pipelines"].(map[string]interface{})
	if !ok {
		return ctx
	}
	pipeline, ok := pipelines[path[1]].(map[string]interface{})
	if !ok {
		return ctx
	}
	ctx.Pipeline = pipeline

	if len(path) < 4 || path[2] == "" || path[3] == "" {
		return ctx
	}
	plugins, ok := pipeline["plugins"].(map[string]interface{})
	if !ok {
		return ctx
	}
	sig, ok := plugins[path[2]].(map[string]interface{})
	if !ok {
		return ctx
	}
	ctx.Instance = sig[path[3]]
	return ctx
}
