package client

import (
	"context"
	"fmt"

	"github.com/edgenet-x/client-go/bus"
	"github.com/edgenet-x/client-go/ingress"
	"github.com/edgenet-x/client-go/internal/logger"
)

// pool is the set of workers servicing one bus stream. Each worker owns
// its own subscription (a distinct topic suffix so a shared-subscription
// broker load-balances frames across the pool) and its own command
// channel; the client never addresses one worker directly, only the pool.
type pool struct {
	thread   ingress.ThreadType
	stream   bus.Stream
	commands []chan ingress.Command
}

// broadcast posts cmd to every worker in the pool. Used for state that
// must be visible to whichever worker happens to receive a given frame
// (fleet membership, session watches, sticky subscriptions).
func (p *pool) broadcast(cmd ingress.Command) {
	for _, ch := range p.commands {
		select {
		case ch <- cmd:
		default:
			// A full command channel means a worker is badly backed up;
			// spec.md §5 treats back-pressure as drop-not-buffer for
			// frames, and the same applies to control commands here.
		}
	}
}

// spawnPool starts count workers for one stream, subscribing each to its
// own topic suffix and running it against reports until ctx is cancelled.
func (c *Client) spawnPool(ctx context.Context, thread ingress.ThreadType, stream bus.Stream, count int) (*pool, error) {
	if count <= 0 {
		count = 1
	}

	p := &pool{thread: thread, stream: stream}

	for i := 0; i < count; i++ {
		suffix := fmt.Sprintf("%d", i)
		topic := bus.InboundTopic(c.cfg.Bus.Prefix, c.cfg.Initiator, c.cfg.TopicRoot, stream, suffix)

		frames, err := c.bus.Subscribe(ctx, topic)
		if err != nil {
			return nil, fmt.Errorf("client: subscribe %s: %w", topic, err)
		}

		commands := make(chan ingress.Command, 64)
		p.commands = append(p.commands, commands)

		worker := ingress.New(ingress.Options{
			ThreadType: thread,
			WorkerID:   fmt.Sprintf("%s-%s", thread, suffix),
			Identity:   c.identity,
			Secure:     c.cfg.SecureEnabled(),
			Fleet:      ingress.NewFleet(c.cfg.Fleet),
			Formatters: c.formatters,
			Log:        c.log.WithFields(logger.String("thread", string(thread)), logger.String("worker", suffix)),
		})

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			worker.Run(ctx, frames, commands, c.reports)
		}()
	}

	return p, nil
}

// broadcastAll posts cmd to every pool's every worker.
func (c *Client) broadcastAll(cmd ingress.Command) {
	c.poolsMu.RLock()
	defer c.poolsMu.RUnlock()
	for _, p := range c.pools {
		p.broadcast(cmd)
	}
}
