package identity

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// IdentityVerifier resolves the caller identity from request headers.
type IdentityVerifier interface {
	Verify(ctx context.Context, header http.Header) Identity
}

// Guard is the perimeter every protected route passes through.
type Guard struct {
	verifier IdentityVerifier
	logger   *slog.Logger
}

func NewGuard(verifier IdentityVerifier, logger *slog.Logger) *Guard {
	return &Guard{verifier: verifier, logger: ResolveLogger(logger)}
}

// Authorize returns the subject id for r or the rejection reason.
func (g *Guard) Authorize(r *http.Request) (string, error) {
	id := g.verifier.Verify(r.Context(), r.Header)
	if !id.Resolved {
		if id.Err == nil {
			return "", ErrInternalFailure
		}
		return "", id.Err
	}
	return id.SubjectID, nil
}

// Middleware authorizes the request, strips credential headers and forwards
// it with the subject id in its context. Preflight requests pass untouched.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, stripCredentials(r.Context(), r))
			return
		}

		subjectID, err := g.Authorize(r)
		if err != nil {
			g.logger.Info("request rejected",
				"event", "identity_rejected",
				"module", "internal/identity",
				"method", r.Method,
				"path", r.URL.Path,
				"code", Code(err),
			)
			writeRejection(w, err)
			return
		}

		next.ServeHTTP(w, stripCredentials(WithSubjectID(r.Context(), subjectID), r))
	})
}

// stripCredentials clones r onto ctx without the credential headers.
func stripCredentials(ctx context.Context, r *http.Request) *http.Request {
	forwarded := r.Clone(ctx)
	for _, name := range CredentialHeaders {
		forwarded.Header.Del(name)
	}
	return forwarded
}

type rejectionBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeRejection(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(err))
	_ = json.NewEncoder(w).Encode(rejectionBody{Error: Code(err), Message: err.Error()})
}

// subjectIDContextKey is the context key for the verified subject.
type subjectIDContextKey struct{}

// WithSubjectID stores a verified subject id in context.
func WithSubjectID(ctx context.Context, subjectID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, subjectIDContextKey{}, subjectID)
}

// SubjectIDFromContext returns the subject id stored by the guard.
func SubjectIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(subjectIDContextKey{}).(string)
	return value
}
