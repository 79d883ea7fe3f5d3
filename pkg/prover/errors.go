package prover

import (
	"errors"
	"fmt"
	"time"

	"btc-prover/pkg/txcodec"
)

var (
	// ErrTxNotInBlock is returned when the requested transaction is not in
	// the fetched block's transaction list.
	ErrTxNotInBlock = errors.New("prover: transaction not in block")

	// ErrMerkleRootMismatch means the root computed from the block's txids
	// disagrees with the root the node reported. The proof is withheld.
	ErrMerkleRootMismatch = errors.New("prover: computed merkle root disagrees with block header")

	// ErrCommitmentNotFound is returned under the strict policy for a segwit
	// target whose block has no extractable, verifiable witness commitment.
	ErrCommitmentNotFound = errors.New("prover: witness commitment not found")

	// ErrRateLimited is returned when a caller exhausts the fallback quota.
	ErrRateLimited = errors.New("prover: fallback quota exceeded")

	// ErrJobNotFound is returned by PollJob for an unknown job id.
	ErrJobNotFound = errors.New("prover: job not found")
)

// Decode failures keep their class across package boundaries; the
// orchestrator's fallback decision is keyed on ErrUnsupportedTxFormat and
// nothing else.
var (
	ErrMalformedTx         = txcodec.ErrMalformed
	ErrUnsupportedTxFormat = txcodec.ErrUnsupported
)

// RateLimitError carries the retry-after hint. errors.Is matches it against
// ErrRateLimited.
type RateLimitError struct {
	Caller     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("prover: fallback quota exceeded for caller %q, retry in %s",
		e.Caller, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}
