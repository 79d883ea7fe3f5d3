package prover

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btclog"
	"github.com/google/uuid"

	"btc-prover/pkg/node"
)

// Status is the lifecycle of a proof job. A job transitions exactly once
// from pending through running to a terminal state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// BlockSource is the node collaborator seam: locate and fetch the block
// containing a transaction.
type BlockSource interface {
	BlockForTx(txid *chainhash.Hash) (*node.Block, error)
}

const (
	defaultFallbackQuota  = 5
	defaultFallbackWindow = time.Hour
)

// Options tunes an Orchestrator. Zero values select the defaults: strict
// commitment policy, in-memory store, 5 fallback runs per caller per hour.
type Options struct {
	Store          Store
	Policy         CommitmentPolicy
	FallbackQuota  int
	FallbackWindow time.Duration
	Logger         btclog.Logger
}

// Job tracks one proof computation. All mutable fields are guarded by the
// orchestrator mutex and are final once done is closed.
type Job struct {
	ID        string
	Key       string
	StartedAt time.Time

	done chan struct{}

	status      Status
	result      *ProofSet
	err         error
	finishedAt  time.Time
	invalidated bool
}

// JobSnapshot is what PollJob observes.
type JobSnapshot struct {
	ID      string
	Key     string
	Status  Status
	Result  *ProofSet
	Err     error
	Elapsed time.Duration
}

// Orchestrator turns proof requests into deduplicated asynchronous jobs.
// There is at most one in-flight computation per transaction id; every
// concurrent caller for the same key observes the identical outcome.
// Completed results are cached for the life of the store.
type Orchestrator struct {
	source   BlockSource
	store    Store
	policy   CommitmentPolicy
	quota    *callerQuota
	log      btclog.Logger
	primary  strategyFunc
	fallback strategyFunc

	mu    sync.Mutex
	byKey map[string]*Job
	byID  map[string]*Job
}

func NewOrchestrator(source BlockSource, opts Options) *Orchestrator {
	store := opts.Store
	if store == nil {
		store = NewMemoryStore()
	}
	policy := opts.Policy
	if policy == "" {
		policy = PolicyStrict
	}
	quota := opts.FallbackQuota
	if quota == 0 {
		quota = defaultFallbackQuota
	}
	window := opts.FallbackWindow
	if window == 0 {
		window = defaultFallbackWindow
	}
	log := opts.Logger
	if log == nil {
		log = btclog.Disabled
	}
	return &Orchestrator{
		source:   source,
		store:    store,
		policy:   policy,
		quota:    newCallerQuota(quota, window),
		log:      log,
		primary:  primaryStrategy,
		fallback: fallbackStrategy,
		byKey:    make(map[string]*Job),
		byID:     make(map[string]*Job),
	}
}

// RequestProof is the synchronous facade: return the cached proof, attach to
// the in-flight job for this txid, or start one. The context bounds only
// this caller's wait; a started job always runs to completion and still
// populates the cache.
func (o *Orchestrator) RequestProof(ctx context.Context, txid, caller string) (*ProofSet, error) {
	job, cached, err := o.lookup(ctx, txid, caller)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	select {
	case <-job.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	o.mu.Lock()
	result, jerr := job.result, job.err
	o.mu.Unlock()
	return result, jerr
}

// StartJob is the asynchronous facade: same cache and dedup rules, but it
// returns a job id immediately. A cache hit yields an already-completed job
// so polling stays uniform.
func (o *Orchestrator) StartJob(ctx context.Context, txid, caller string) (string, error) {
	job, cached, err := o.lookup(ctx, txid, caller)
	if err != nil {
		return "", err
	}
	if cached == nil {
		return job.ID, nil
	}

	done := make(chan struct{})
	close(done)
	completed := &Job{
		ID:         uuid.NewString(),
		Key:        cached.TxID.String(),
		StartedAt:  time.Now(),
		done:       done,
		status:     StatusCompleted,
		result:     cached,
		finishedAt: time.Now(),
	}
	o.mu.Lock()
	o.byID[completed.ID] = completed
	o.mu.Unlock()
	return completed.ID, nil
}

// PollJob observes a job's progress.
func (o *Orchestrator) PollJob(jobID string) (*JobSnapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	job, ok := o.byID[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	elapsed := time.Since(job.StartedAt)
	if !job.finishedAt.IsZero() {
		elapsed = job.finishedAt.Sub(job.StartedAt)
	}
	return &JobSnapshot{
		ID:      job.ID,
		Key:     job.Key,
		Status:  job.status,
		Result:  job.result,
		Err:     job.err,
		Elapsed: elapsed,
	}, nil
}

// Invalidate drops one key's cached result and detaches any in-flight job
// for it. Administrative escape hatch, not part of normal request flow.
func (o *Orchestrator) Invalidate(ctx context.Context, txid string) error {
	key, err := normalizeTxID(txid)
	if err != nil {
		return err
	}
	o.mu.Lock()
	if job := o.byKey[key]; job != nil {
		job.invalidated = true
		delete(o.byKey, key)
	}
	o.mu.Unlock()
	return o.store.Delete(ctx, key)
}

// Reset clears the whole cache and all job tracking.
func (o *Orchestrator) Reset(ctx context.Context) error {
	o.mu.Lock()
	for _, job := range o.byKey {
		job.invalidated = true
	}
	o.byKey = make(map[string]*Job)
	o.byID = make(map[string]*Job)
	o.mu.Unlock()
	return o.store.Clear(ctx)
}

// lookup resolves a request to either a cached result or the single job
// responsible for the key, creating it when absent.
func (o *Orchestrator) lookup(ctx context.Context, txid, caller string) (*Job, *ProofSet, error) {
	key, err := normalizeTxID(txid)
	if err != nil {
		return nil, nil, err
	}

	cached, err := o.store.Get(ctx, key)
	if err != nil {
		o.log.Warnf("store lookup for %s failed: %v", key, err)
	} else if cached != nil {
		return nil, cached, nil
	}

	target, _ := chainhash.NewHashFromStr(key)

	// The store Get above can predate a finishing job's Put while the byKey
	// check below postdates its removal; the key is then recomputed once.
	// Proof sets are immutable and Put is an idempotent upsert, so both
	// runs converge on the same stored value.
	o.mu.Lock()
	if job := o.byKey[key]; job != nil {
		o.mu.Unlock()
		return job, nil, nil
	}
	job := &Job{
		ID:        uuid.NewString(),
		Key:       key,
		StartedAt: time.Now(),
		done:      make(chan struct{}),
		status:    StatusPending,
	}
	o.byKey[key] = job
	o.byID[job.ID] = job
	o.mu.Unlock()

	go o.run(job, target, caller)
	return job, nil, nil
}

// run executes the strategy pipeline for one job. The result is written to
// the store before the key entry is removed, so no caller can observe a
// completed key regress to running.
func (o *Orchestrator) run(job *Job, target *chainhash.Hash, caller string) {
	o.mu.Lock()
	job.status = StatusRunning
	o.mu.Unlock()
	o.log.Debugf("job %s running for %s", job.ID, job.Key)

	result, err := o.execute(target, caller)

	if err == nil {
		o.mu.Lock()
		invalidated := job.invalidated
		o.mu.Unlock()
		if !invalidated {
			if perr := o.store.Put(context.Background(), result); perr != nil {
				o.log.Warnf("caching proof for %s failed: %v", job.Key, perr)
			}
		}
	}

	o.mu.Lock()
	if o.byKey[job.Key] == job {
		delete(o.byKey, job.Key)
	}
	job.finishedAt = time.Now()
	if err != nil {
		job.status = StatusFailed
		job.err = err
	} else {
		job.status = StatusCompleted
		job.result = result
	}
	o.mu.Unlock()
	close(job.done)

	if err != nil {
		o.log.Errorf("job %s for %s failed: %v", job.ID, job.Key, err)
	} else {
		o.log.Infof("job %s completed proof for %s at height %d", job.ID, job.Key, result.Height)
	}
}

// execute runs the primary strategy and falls back exactly when the failure
// class is an unsupported transaction format. The fallback consumes one
// metered slot for the caller.
func (o *Orchestrator) execute(target *chainhash.Hash, caller string) (*ProofSet, error) {
	blk, err := o.source.BlockForTx(target)
	if err != nil {
		return nil, err
	}

	result, err := o.primary(blk, *target, o.policy)
	if err == nil || !errors.Is(err, ErrUnsupportedTxFormat) {
		return result, err
	}

	o.log.Infof("primary strategy cannot handle %s (%v), using fallback", target, err)
	if qerr := o.quota.reserve(caller); qerr != nil {
		return nil, qerr
	}
	return o.fallback(blk, *target, o.policy)
}

func normalizeTxID(txid string) (string, error) {
	// NewHashFromStr zero-pads short inputs, which would alias distinct
	// malformed ids onto padded keys.
	if len(txid) != chainhash.MaxHashStringSize {
		return "", fmt.Errorf("prover: invalid txid %q: %d hex characters, want %d",
			txid, len(txid), chainhash.MaxHashStringSize)
	}
	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return "", fmt.Errorf("prover: invalid txid %q: %v", txid, err)
	}
	return hash.String(), nil
}
