// Package registry implements the client's per-process registry of
// outstanding commands: their watched notification paths, resolution
// strategy, and the two independent timeout timers that bound how long
// an application waits for a reply.
package registry

import (
	"strings"
	"sync"
	"time"

	"github.com/edgenet-x/client-go/internal/logger"
)

// Timeouts from spec.md §4.7/§8/§9. The naming looks inverted —
// "first response" waits far longer than "completion" — but the source
// applies these constants literally and so do we; see DESIGN.md.
const (
	FirstResponseTimeout = 1500 * time.Second
	CompletionTimeout    = 90 * time.Second
)

// TargetStatus is the resolution state of one watched path.
type TargetStatus int

const (
	StatusPending TargetStatus = iota
	StatusOK
	StatusFail
)

// Target tracks one watched path's outcome.
type Target struct {
	Status TargetStatus
	Reason string
}

// Notification is a single network notification delivered to a pending
// request because it landed on one of its watched paths. An
// EXCEPTION-typed one fails that path's target regardless of strategy.
type Notification struct {
	Path string
	Type string
	Code string
	Tag  string
	Raw  map[string]interface{}
}

// NotificationTypeException marks a notification that forces an
// immediate reject attempt, per spec.md §4.7.
const NotificationTypeException = "EXCEPTION"

// Strategy decides, for a given notification code, whether it resolves
// or rejects the target it landed on. Codes not present in either set
// are ignored (the target stays pending).
type Strategy struct {
	Name         string
	ResolveCodes map[string]bool
	RejectCodes  map[string]bool
}

// outcome reports what a notification code means to this strategy.
func (s Strategy) outcome(code string) (status TargetStatus, matched bool) {
	if s.ResolveCodes[code] {
		return StatusOK, true
	}
	if s.RejectCodes[code] {
		return StatusFail, true
	}
	return StatusPending, false
}

// Action names from spec.md §4.7 that create a pending request.
const (
	ActionArchiveConfig               = "ARCHIVE_CONFIG"
	ActionUpdateConfig                = "UPDATE_CONFIG"
	ActionPipelineCommand             = "PIPELINE_COMMAND"
	ActionUpdatePipelineInstance      = "UPDATE_PIPELINE_INSTANCE"
	ActionBatchUpdatePipelineInstance = "BATCH_UPDATE_PIPELINE_INSTANCE"
)

// StrategyFor selects the resolve/reject notification codes for an
// outgoing action, per spec.md §4.7's strategy-selection table.
func StrategyFor(action string) Strategy {
	switch action {
	case ActionArchiveConfig:
		return Strategy{
			Name:         action,
			ResolveCodes: set("PIPELINE_ARCHIVE_OK"),
			RejectCodes:  set("PIPELINE_ARCHIVE_FAILED"),
		}
	case ActionUpdateConfig, ActionPipelineCommand:
		return Strategy{
			Name: action,
			ResolveCodes: set(
				"PIPELINE_STATE_OK", "DCT_STATE_OK", "PLUGIN_STATE_OK",
			),
			RejectCodes: set(
				"PIPELINE_STATE_FAILED", "DCT_STATE_FAILED", "PLUGIN_STATE_FAILED",
			),
		}
	case ActionUpdatePipelineInstance, ActionBatchUpdatePipelineInstance:
		return Strategy{
			Name: action,
			ResolveCodes: set(
				"PLUGIN_OK", "INSTANCE_COMMAND_OK", "PLUGIN_PAUSE_OK",
				"PLUGIN_RESUME_OK", "WORKING_HOURS_OK", "CONFIG_IN_PAUSE_OK",
			),
			RejectCodes: set(
				"PLUGIN_FAILED", "INSTANCE_COMMAND_FAILED", "PLUGIN_PAUSE_FAILED",
				"PLUGIN_RESUME_FAILED", "WORKING_HOURS_FAILED", "CONFIG_IN_PAUSE_FAILED",
			),
		}
	default:
		return Strategy{Name: action, ResolveCodes: map[string]bool{}, RejectCodes: map[string]bool{}}
	}
}

func set(codes ...string) map[string]bool {
	m := make(map[string]bool, len(codes))
	for _, c := range codes {
		m[c] = true
	}
	return m
}

// PathKey joins a payload path the way the registry indexes it.
func PathKey(path []string) string {
	return strings.Join(path, ":")
}

// state is the PendingRequest's lifecycle stage.
type state int

const (
	stateOpen state = iota
	stateResolved
	stateRejected
	stateTimedOut
)

// PendingRequest is a local handle to an outgoing command, resolved by
// correlated notifications arriving on its watched paths.
type PendingRequest struct {
	ID       string
	strategy Strategy

	onSuccess func([]Notification)
	onFail    func([]Notification)

	mu            sync.Mutex
	targets       map[string]*Target
	notifications []Notification
	st            state

	firstResponseTimer *time.Timer
	completionTimer    *time.Timer
	gotFirstResponse   bool

	onClose func()
}

// isComplete reports whether every target has a non-pending status.
func (r *PendingRequest) isComplete() bool {
	for _, t := range r.targets {
		if t.Status == StatusPending {
			return false
		}
	}
	return true
}

func (r *PendingRequest) anyFailed() bool {
	for _, t := range r.targets {
		if t.Status == StatusFail {
			return true
		}
	}
	return false
}

// deliver applies one notification on the target identified by n.Path
// (if it is one of this request's watched targets) and, for
// EXCEPTION-typed notifications, marks the target failed regardless of
// the configured strategy. It returns true if the request reached a
// terminal state as a result.
func (r *PendingRequest) deliver(n Notification) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.st != stateOpen {
		return false
	}

	target, watched := r.targets[n.Path]
	if !watched {
		return false
	}

	r.notifications = append(r.notifications, n)

	if !r.gotFirstResponse {
		r.gotFirstResponse = true
		if r.firstResponseTimer != nil {
			r.firstResponseTimer.Stop()
		}
		r.completionTimer = time.AfterFunc(CompletionTimeout, func() {
			r.timeout("completion_timeout")
		})
	}

	if n.Type == NotificationTypeException {
		target.Status = StatusFail
		target.Reason = "exception"
		return r.finalizeLocked()
	}

	if status, matched := r.strategy.outcome(n.Code); matched {
		target.Status = status
		return r.finalizeLocked()
	}

	return false
}

// finalizeLocked resolves or rejects the request if every target has
// settled. Caller must hold r.mu.
func (r *PendingRequest) finalizeLocked() bool {
	if !r.isComplete() {
		return false
	}
	if r.anyFailed() {
		r.settleLocked(stateRejected)
	} else {
		r.settleLocked(stateResolved)
	}
	return true
}

// settleLocked transitions to a terminal state, stops timers, and
// invokes the matching continuation. Caller must hold r.mu.
func (r *PendingRequest) settleLocked(to state) {
	r.st = to
	if r.firstResponseTimer != nil {
		r.firstResponseTimer.Stop()
	}
	if r.completionTimer != nil {
		r.completionTimer.Stop()
	}

	notifications := append([]Notification(nil), r.notifications...)
	onSuccess, onFail := r.onSuccess, r.onFail
	onClose := r.onClose

	go func() {
		switch to {
		case stateResolved:
			if onSuccess != nil {
				onSuccess(notifications)
			}
		case stateRejected, stateTimedOut:
			if onFail != nil {
				onFail(notifications)
			}
		}
		if onClose != nil {
			onClose()
		}
	}()
}

func (r *PendingRequest) timeout(reason string) {
	r.mu.Lock()
	if r.st != stateOpen {
		r.mu.Unlock()
		return
	}
	r.notifications = append(r.notifications, Notification{
		Type: "TIMEOUT",
		Code: reason,
	})
	r.settleLocked(stateTimedOut)
	r.mu.Unlock()
}

// Registry indexes outstanding PendingRequests by watched path so
// incoming notifications can be routed in O(1), per spec.md §4.7.
type Registry struct {
	log logger.Logger

	mu    sync.RWMutex
	byID  map[string]*PendingRequest
	byKey map[string]*PendingRequest
}

// New creates an empty Registry.
func New(log logger.Logger) *Registry {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Registry{
		log:   log,
		byID:  make(map[string]*PendingRequest),
		byKey: make(map[string]*PendingRequest),
	}
}

// Open creates and indexes a new PendingRequest for the given watched
// paths, starting its timeout timers immediately.
func (reg *Registry) Open(id string, watches [][]string, strategy Strategy, onSuccess, onFail func([]Notification)) *PendingRequest {
	targets := make(map[string]*Target, len(watches))
	keys := make([]string, 0, len(watches))
	for _, w := range watches {
		key := PathKey(w)
		targets[key] = &Target{Status: StatusPending}
		keys = append(keys, key)
	}

	req := &PendingRequest{
		ID:        id,
		strategy:  strategy,
		onSuccess: onSuccess,
		onFail:    onFail,
		targets:   targets,
	}
	req.onClose = func() { reg.remove(id, keys) }

	reg.mu.Lock()
	reg.byID[id] = req
	for _, key := range keys {
		reg.byKey[key] = req
	}
	reg.mu.Unlock()

	if len(watches) == 0 {
		// Fire-and-forget: resolve immediately with a synthetic
		// notification, per spec.md §4.8.
		req.mu.Lock()
		req.settleLocked(stateResolved)
		req.mu.Unlock()
		return req
	}

	req.firstResponseTimer = time.AfterFunc(FirstResponseTimeout, func() {
		req.timeout("first_response_timeout")
	})

	return req
}

func (reg *Registry) remove(id string, keys []string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.byID, id)
	for _, key := range keys {
		if reg.byKey[key] != nil && reg.byKey[key].ID == id {
			delete(reg.byKey, key)
		}
	}
}

// Dispatch routes an incoming notification to the pending request
// watching its path, if any. It returns the request and true if one was
// found, regardless of whether the notification completed it.
func (reg *Registry) Dispatch(path string, n Notification) (*PendingRequest, bool) {
	n.Path = path

	reg.mu.RLock()
	req, ok := reg.byKey[path]
	reg.mu.RUnlock()
	if !ok {
		return nil, false
	}

	req.deliver(n)
	return req, true
}

// Get returns the pending request with id, if still open.
func (reg *Registry) Get(id string) (*PendingRequest, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	req, ok := reg.byID[id]
	return req, ok
}

// CancelAll force-fails every open request with a shutdown reason, used
// by Client.Shutdown per spec.md §9.
func (reg *Registry) CancelAll(reason string) {
	reg.mu.RLock()
	reqs := make([]*PendingRequest, 0, len(reg.byID))
	for _, r := range reg.byID {
		reqs = append(reqs, r)
	}
	reg.mu.RUnlock()

	for _, r := range reqs {
		r.timeout(reason)
	}
}

// Len reports the number of open requests, used by memory-usage
// reporting.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.byID)
}
