package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	googleuuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loosh-ai/miner-core/apierr"
	"github.com/loosh-ai/miner-core/backend"
	"github.com/loosh-ai/miner-core/mlts"
	"github.com/loosh-ai/miner-core/timing"
)

// ticket is one admitted-or-waiting challenge.
type ticket struct {
	id      string
	peer    mlts.PeerID
	uuid    string
	payload string // encrypted challenge envelope
	done    chan Result
}

// Result is what a worker hands back to the waiting caller.
type Result struct {
	Ciphertext string
	Err        error
}

// Config sizes the pipeline.
type Config struct {
	MaxConcurrent int
	MaxPending    int // 0 = unbounded; advisory only, see Submit
}

// Pipeline is the bounded-concurrency admission pipeline tying the
// session layer to the backend adapter: Decrypt -> ChatCompletion ->
// Encrypt, run by however many workers the semaphore currently allows.
type Pipeline struct {
	cfg     Config
	session *mlts.Server
	adapter backend.Adapter
	logger  *zap.Logger

	sem chan struct{}

	mu      sync.Mutex
	cond    *sync.Cond
	pending []*ticket
	active  map[string]*ticket
	closed  bool

	wg sync.WaitGroup
}

// New constructs a pipeline bound to a session server and backend
// adapter. Run must be called to start the dispatch loop.
func New(cfg Config, session *mlts.Server, adapter backend.Adapter, logger *zap.Logger) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		session: session,
		adapter: adapter,
		logger:  logger,
		sem:     make(chan struct{}, cfg.MaxConcurrent),
		active:  make(map[string]*ticket),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Run starts the dispatch (pump) goroutine. It returns once ctx is
// done and every pending/active ticket has drained.
func (p *Pipeline) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		p.mu.Lock()
		p.closed = true
		p.cond.Broadcast()
		p.mu.Unlock()
	}()

	for {
		p.mu.Lock()
		for len(p.pending) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.pending) == 0 && p.closed {
			p.mu.Unlock()
			break
		}
		t := p.pending[0]
		p.mu.Unlock()

		// Acquire a permit before removing t from Pending: the k-th
		// admitted ticket can never be dequeued ahead of the
		// (k-1)-th, since Pending[0] is only popped here.
		p.sem <- struct{}{}

		p.mu.Lock()
		p.pending = p.pending[1:]
		p.active[t.id] = t
		p.mu.Unlock()

		p.wg.Add(1)
		go p.service(t)
	}

	p.wg.Wait()
}

// Pending returns the current FIFO queue depth.
func (p *Pipeline) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Active returns the current number of in-flight tickets.
func (p *Pipeline) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// Submit enqueues an encrypted challenge and blocks until it is
// serviced or ctx is canceled. MaxPending, when set, is advisory: it
// only produces a log warning, since queue depth alone is not one of
// the node's well-known rejectable error conditions.
func (p *Pipeline) Submit(ctx context.Context, peer mlts.PeerID, uuid, payload string) (string, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return "", apierr.New(apierr.NotReady, "pipeline is shutting down")
	}
	if p.cfg.MaxPending > 0 && len(p.pending) >= p.cfg.MaxPending {
		p.logger.Warn("pipeline: pending queue exceeds advisory bound",
			zap.Int("pending", len(p.pending)), zap.Int("bound", p.cfg.MaxPending))
	}

	t := &ticket{
		id:      googleuuid.NewString(),
		peer:    peer,
		uuid:    uuid,
		payload: payload,
		done:    make(chan Result, 1),
	}
	p.pending = append(p.pending, t)
	p.cond.Signal()
	p.mu.Unlock()

	select {
	case r := <-t.done:
		return r.Ciphertext, r.Err
	case <-ctx.Done():
		// The worker, once it starts, still runs to completion: a
		// disconnected caller does not cancel in-flight backend work.
		return "", ctx.Err()
	}
}

func (p *Pipeline) service(t *ticket) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline: worker panicked", zap.Any("panic", r))
			t.done <- Result{Err: apierr.New(apierr.Internal, "worker panicked")}
		}
		p.mu.Lock()
		delete(p.active, t.id)
		p.mu.Unlock()
		<-p.sem
		p.wg.Done()
	}()

	plaintext, err := p.session.Decrypt(t.peer, t.uuid, t.payload)
	if err != nil {
		t.done <- Result{Err: err}
		return
	}

	envelope, err := decodeEnvelope(plaintext)
	if err != nil {
		t.done <- Result{Err: apierr.Wrap(apierr.BadEnvelope, "malformed challenge payload", err)}
		return
	}

	// metadata.timing_data, when present, is extracted and stripped
	// before the envelope reaches the adapter, then re-attached to the
	// result with the two stages this request spent in the pipeline.
	requestTiming, hasTiming := extractTiming(envelope.Metadata)
	envelope.Metadata = nil

	var inferenceStage *timing.Stage
	if hasTiming {
		inferenceStage = requestTiming.AddStage("miner_inference", time.Now())
	}
	result, err := p.adapter.ChatCompletion(context.Background(), envelope)
	if inferenceStage != nil {
		inferenceStage.Finish(time.Now())
	}
	if err != nil {
		t.done <- Result{Err: err}
		return
	}

	if hasTiming {
		responseStage := requestTiming.AddStage("miner_response", time.Now())
		result.Metadata = map[string]any{"timing_data": requestTiming}
		responseStage.Finish(time.Now())
	}

	encoded, err := encodeResult(result)
	if err != nil {
		t.done <- Result{Err: apierr.Wrap(apierr.Internal, "marshal result", err)}
		return
	}
	ciphertext, err := p.session.Encrypt(t.peer, t.uuid, encoded)
	if err != nil {
		t.done <- Result{Err: err}
		return
	}

	t.done <- Result{Ciphertext: ciphertext}
}

func decodeEnvelope(plaintext []byte) (backend.ChallengeEnvelope, error) {
	var env backend.ChallengeEnvelope
	if err := json.Unmarshal(plaintext, &env); err != nil {
		return backend.ChallengeEnvelope{}, err
	}
	return env, nil
}

// extractTiming pulls metadata.timing_data out of a decoded envelope's
// metadata map, reporting whether one was present and well-formed.
func extractTiming(metadata map[string]any) (*timing.Timing, bool) {
	raw, ok := metadata["timing_data"]
	if !ok {
		return nil, false
	}
	t, err := timing.FromValue(raw)
	if err != nil {
		return nil, false
	}
	return t, true
}

func encodeResult(r *backend.InferenceResult) ([]byte, error) {
	return json.Marshal(r)
}
