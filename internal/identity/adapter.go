package identity

import (
	"context"
	"errors"
	"time"

	"github.com/sheikh-saqib/split-ledger-gateway/internal/identity/tma"
)

// Kind names an adapter variant.
type Kind string

const (
	KindTON   Kind = "ton"
	KindDummy Kind = "dummy"
)

// DevSubjectID is the non-production subject used by the stub adapter and the
// development no-credential fallback.
const DevSubjectID = "999"

// Result is the uniform adapter reply.
type Result struct {
	Verified  bool
	SubjectID string
	Adapter   string
	Error     string
}

// Adapter verifies one transport's credential payload. Implementations report
// every failure through Result and never panic.
type Adapter interface {
	Name() string
	VerifyIdentity(ctx context.Context, payload string) Result
}

// SignatureAdapter verifies TON transport payloads with a tma.Verifier.
type SignatureAdapter struct {
	verifier *tma.Verifier
}

func NewSignatureAdapter(verifier *tma.Verifier) *SignatureAdapter {
	return &SignatureAdapter{verifier: verifier}
}

func (a *SignatureAdapter) Name() string { return string(KindTON) }

func (a *SignatureAdapter) VerifyIdentity(ctx context.Context, payload string) Result {
	if a == nil || a.verifier == nil {
		return Result{Adapter: string(KindTON), Error: CodeInternalFailure}
	}
	if err := ctx.Err(); err != nil {
		return Result{Adapter: a.Name(), Error: CodeCancelled}
	}

	subjectID, err := a.verifier.Verify(payload)
	if err != nil {
		return Result{Adapter: a.Name(), Error: verifierCode(err)}
	}
	return Result{Verified: true, SubjectID: subjectID, Adapter: a.Name()}
}

func verifierCode(err error) string {
	switch {
	case errors.Is(err, tma.ErrMalformed), errors.Is(err, tma.ErrMissingHash):
		return CodeMalformedCredential
	case errors.Is(err, tma.ErrStale):
		return CodeStaleCredential
	case errors.Is(err, tma.ErrMalformedUserData):
		return CodeMalformedUserData
	default:
		return CodeSignatureMismatch
	}
}

// DefaultStubDelay simulates the latency of a remote verification.
const DefaultStubDelay = 200 * time.Millisecond

// StubAdapter accepts any payload as DevSubjectID after Delay. It is only
// installed when the development flag is set.
type StubAdapter struct {
	Delay time.Duration
}

func (a *StubAdapter) Name() string { return string(KindDummy) }

func (a *StubAdapter) VerifyIdentity(ctx context.Context, _ string) Result {
	if a.Delay > 0 {
		timer := time.NewTimer(a.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Result{Adapter: a.Name(), Error: CodeCancelled}
		case <-timer.C:
		}
	}
	return Result{Verified: true, SubjectID: DevSubjectID, Adapter: a.Name()}
}
