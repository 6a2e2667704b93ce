package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sheikh-saqib/split-ledger-gateway/internal/identity/tma"
)

// Credential headers. Values are opaque transport payloads.
const (
	HeaderTONCredential    = "Identity-Credential-Ton"
	HeaderBackupCredential = "Identity-Credential-Backup"
)

// DefaultAdapterTimeout bounds a single adapter invocation.
const DefaultAdapterTimeout = 5 * time.Second

const maxBackupIDLength = 20

// CredentialHeaders lists every header the switchboard recognises.
var CredentialHeaders = []string{HeaderTONCredential, HeaderBackupCredential}

// Method records how an identity was resolved.
type Method string

const (
	MethodSignature Method = "signature"
	MethodFallback  Method = "fallback"
	MethodRejected  Method = "rejected"
)

// Identity is the per-request verification outcome. It is never cached.
type Identity struct {
	Resolved  bool
	SubjectID string
	Method    Method
	Adapter   string
	Err       error
}

func rejected(adapter string, err error) Identity {
	return Identity{Method: MethodRejected, Adapter: adapter, Err: err}
}

// SwitchboardConfig selects the active adapter at startup.
type SwitchboardConfig struct {
	Adapter         string
	BotToken        string
	Dev             bool
	Timeout         time.Duration
	StubDelay       time.Duration
	VerifierOptions []tma.Option
}

// Switchboard dispatches each request's credential to exactly one adapter.
// It is immutable after construction and safe for concurrent use.
type Switchboard struct {
	adapters map[string]Adapter // credential header -> adapter
	dev      bool
	timeout  time.Duration
	logger   *slog.Logger
}

// NewSwitchboard builds the adapter named by cfg.Adapter. In production an
// unsupported adapter or a missing bot token is an error; in development both
// fall back to the stub adapter with a warning.
func NewSwitchboard(cfg SwitchboardConfig, logger *slog.Logger) (*Switchboard, error) {
	logger = ResolveLogger(logger)

	mode := normalizeAdapterName(cfg.Adapter)
	var adapter Adapter
	switch Kind(mode) {
	case KindTON:
		verifier, err := tma.NewVerifier(cfg.BotToken, cfg.VerifierOptions...)
		if err != nil {
			if !cfg.Dev {
				return nil, fmt.Errorf("ton adapter: %w", err)
			}
			logger.Warn("bot token missing, falling back to stub adapter",
				"event", "identity_adapter_fallback",
				"module", "internal/identity",
				"requested", mode,
			)
			adapter = &StubAdapter{Delay: cfg.StubDelay}
			break
		}
		adapter = NewSignatureAdapter(verifier)
	case KindDummy:
		if !cfg.Dev {
			return nil, fmt.Errorf("identity adapter %q requires development mode", mode)
		}
		adapter = &StubAdapter{Delay: cfg.StubDelay}
	default:
		if !cfg.Dev {
			return nil, fmt.Errorf("unsupported identity adapter %q", mode)
		}
		logger.Warn("unsupported identity adapter, falling back to stub adapter",
			"event", "identity_adapter_fallback",
			"module", "internal/identity",
			"requested", mode,
		)
		adapter = &StubAdapter{Delay: cfg.StubDelay}
	}

	logger.Info("identity switchboard ready",
		"event", "identity_switchboard_ready",
		"module", "internal/identity",
		"adapter", adapter.Name(),
		"dev", cfg.Dev,
	)
	return NewSwitchboardWithAdapter(adapter, cfg.Dev, cfg.Timeout, logger), nil
}

// NewSwitchboardWithAdapter installs adapter for the TON credential header.
func NewSwitchboardWithAdapter(adapter Adapter, dev bool, timeout time.Duration, logger *slog.Logger) *Switchboard {
	if timeout <= 0 {
		timeout = DefaultAdapterTimeout
	}
	return &Switchboard{
		adapters: map[string]Adapter{HeaderTONCredential: adapter},
		dev:      dev,
		timeout:  timeout,
		logger:   ResolveLogger(logger),
	}
}

// AdapterName reports the adapter bound to the TON transport.
func (s *Switchboard) AdapterName() string {
	return s.adapters[HeaderTONCredential].Name()
}

// Verify resolves the identity for one request's headers.
//
//	multiple credentials -> rejected (ambiguous)
//	one transport credential -> adapter, bounded by the timeout
//	backup credential -> honoured in development only
//	no credential -> rejected, or DevSubjectID in development
func (s *Switchboard) Verify(ctx context.Context, header http.Header) Identity {
	present := presentCredentials(header)
	if len(present) > 1 || (len(present) == 1 && len(header.Values(present[0])) > 1) {
		return rejected("", ErrAmbiguousIdentity)
	}

	if len(present) == 1 {
		name := present[0]
		if adapter, ok := s.adapters[name]; ok {
			return s.invoke(ctx, adapter, header.Get(name))
		}
		if name == HeaderBackupCredential {
			return s.backup(header.Get(name))
		}
	}

	if s.dev {
		return Identity{Resolved: true, SubjectID: DevSubjectID, Method: MethodFallback}
	}
	return rejected("", ErrNoCredential)
}

func (s *Switchboard) backup(value string) Identity {
	if !s.dev {
		return rejected("", ErrNoCredential)
	}
	value = strings.TrimSpace(value)
	if value == "" || len(value) > maxBackupIDLength || !isDigits(value) {
		return rejected("backup", ErrMalformedCredential)
	}
	return Identity{Resolved: true, SubjectID: value, Method: MethodFallback, Adapter: "backup"}
}

func (s *Switchboard) invoke(parent context.Context, adapter Adapter, payload string) Identity {
	name := adapter.Name()
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("identity adapter panicked",
					"event", "identity_adapter_panic",
					"module", "internal/identity",
					"adapter", name,
					"panic", fmt.Sprint(r),
				)
				done <- Result{Adapter: name, Error: CodeInternalFailure}
			}
		}()
		done <- adapter.VerifyIdentity(ctx, payload)
	}()

	var res Result
	select {
	case res = <-done:
	case <-ctx.Done():
		if parent.Err() != nil {
			return rejected(name, ErrCancelled)
		}
		s.logger.Warn("identity adapter timed out",
			"event", "identity_adapter_timeout",
			"module", "internal/identity",
			"adapter", name,
			"timeout", s.timeout.String(),
		)
		return rejected(name, ErrAdapterTimeout)
	}

	if res.Verified {
		if strings.TrimSpace(res.SubjectID) == "" || res.Adapter != name || res.Error != "" {
			s.logger.Error("identity adapter returned malformed result",
				"event", "identity_adapter_schema_breach",
				"module", "internal/identity",
				"adapter", name,
			)
			return rejected(name, ErrSchemaBreach)
		}
		return Identity{Resolved: true, SubjectID: res.SubjectID, Method: MethodSignature, Adapter: name}
	}

	err := errorForCode(res.Error)
	if res.Error == CodeInternalFailure {
		s.logger.Error("identity adapter failed",
			"event", "identity_adapter_failure",
			"module", "internal/identity",
			"adapter", name,
		)
	}
	return rejected(name, err)
}

func presentCredentials(header http.Header) []string {
	var present []string
	for _, name := range CredentialHeaders {
		if len(header.Values(name)) > 0 {
			present = append(present, name)
		}
	}
	return present
}

func normalizeAdapterName(raw string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(raw), `"'`))
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return value != ""
}

// ResolveLogger returns logger, or slog.Default when it is nil.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
