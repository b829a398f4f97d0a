package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/emailauth/emailauth/internal/api/metrics"
	"github.com/emailauth/emailauth/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// Throttle decides whether a mail may be sent right now.
type Throttle interface {
	Allow(ctx context.Context, recipient, subject string) (bool, error)
}

// MailDispatcher delivers queued mail on a fixed set of workers. Mails are
// sharded by recipient so messages to one address go out in order.
type MailDispatcher struct {
	workers  []chan ports.Mail
	mailer   ports.Mailer
	throttle Throttle
	log      zerolog.Logger
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewMailDispatcher creates a MailDispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used. throttle may be nil.
func NewMailDispatcher(numWorkers int, mailer ports.Mailer, throttle Throttle, log zerolog.Logger) *MailDispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &MailDispatcher{
		workers:  make([]chan ports.Mail, numWorkers),
		mailer:   mailer,
		throttle: throttle,
		log:      log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.Mail, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop only after Close has
// drained their channel; cancelling ctx does not drop accepted mail, and
// deliveries see ctx's values without its cancellation.
func (d *MailDispatcher) Start(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue hands m to the worker responsible for its first recipient. It
// never blocks: a full shard yields ports.ErrMailQueueFull and a closed
// dispatcher ports.ErrMailQueueClosed.
func (d *MailDispatcher) Enqueue(m ports.Mail) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ports.ErrMailQueueClosed
	}

	idx := d.shardIndex(m)
	select {
	case d.workers[idx] <- m:
	default:
		metrics.MailsSentTotal.WithLabelValues("rejected").Inc()
		return ports.ErrMailQueueFull
	}
	metrics.MailQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	return nil
}

// Close stops accepting mail, delivers what is already queued and waits for
// the workers to finish. Calling it twice is harmless.
func (d *MailDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.workers {
		close(ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *MailDispatcher) shardIndex(m ports.Mail) int {
	var key string
	if len(m.To) > 0 {
		key = strings.ToLower(m.To[0])
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *MailDispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.Mail) {
	defer d.wg.Done()
	label := strconv.Itoa(id)
	for m := range ch {
		metrics.MailQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
		d.deliver(ctx, id, m)
	}
}

func (d *MailDispatcher) deliver(ctx context.Context, id int, m ports.Mail) {
	if d.throttle != nil && len(m.To) > 0 {
		ok, err := d.throttle.Allow(ctx, m.To[0], m.Subject)
		if err != nil {
			d.log.Warn().Err(err).Int("worker_id", id).Msg("throttle check failed, sending anyway")
		} else if !ok {
			d.log.Debug().Strs("to", m.To).Str("subject", m.Subject).Msg("mail suppressed, sent too recently")
			metrics.MailsSentTotal.WithLabelValues("throttled").Inc()
			return
		}
	}

	if err := d.mailer.Send(ctx, m); err != nil {
		d.log.Error().Err(err).
			Strs("to", m.To).
			Int("worker_id", id).
			Msg("mail delivery failed")
		metrics.MailsSentTotal.WithLabelValues("error").Inc()
		return
	}
	metrics.MailsSentTotal.WithLabelValues("sent").Inc()
}
