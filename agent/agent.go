// Package agent runs the adl flows: account login with device activation,
// book fulfillment and e-reader registration.
package agent

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/libreadept/adl/agent/types"
	"github.com/libreadept/adl/sdk/adept"
	"github.com/libreadept/adl/sdk/models"
	"github.com/libreadept/adl/sdk/transport"
	"github.com/libreadept/adl/shared-lib/fingerprint"
	"github.com/libreadept/adl/shared-lib/nonce"
	"github.com/libreadept/adl/shared-lib/xmlsig"
)

var (
	ErrNoCurrentAccount = errors.New("no account selected, run login first")
	ErrNotConfigured    = errors.New("activation service was never discovered, run login first")
)

// Repository stores accounts, their devices and discovery state.
type Repository interface {
	Load() (*models.Config, []*models.Account, error)
	AddAccount(account *models.Account) error
	DeleteAccount(urn string) error
	SetCurrentAccount(urn string) error
	AddDevice(urn string, device *models.Device) error
	StoreConfig(config *models.Config) error
}

// Result is what a flow reports to the command line.
type Result struct {
	OK      bool
	Message string
}

// NewResult turns a flow error into a one line diagnostic.
func NewResult(err error, success string) Result {
	if err != nil {
		return Result{OK: false, Message: err.Error()}
	}
	return Result{OK: true, Message: success}
}

// Agent owns the protocol client, signer and nonce source shared by flows.
type Agent struct {
	config      *types.Config
	repo        Repository
	client      *adept.Client
	signer      adept.Signer
	nonces      *nonce.Source
	fingerprint func() (string, error)
	random      io.Reader
	now         func() time.Time
	log         *zap.SugaredLogger
}

type Option = func(*Agent)

func WithClient(client *adept.Client) Option {
	return func(a *Agent) {
		a.client = client
	}
}

func WithSigner(signer adept.Signer) Option {
	return func(a *Agent) {
		a.signer = signer
	}
}

func WithNonceSource(source *nonce.Source) Option {
	return func(a *Agent) {
		a.nonces = source
	}
}

// WithFingerprint replaces the host machine-id lookup.
func WithFingerprint(fp func() (string, error)) Option {
	return func(a *Agent) {
		a.fingerprint = fp
	}
}

// WithRandom sets the source of device keys.
func WithRandom(random io.Reader) Option {
	return func(a *Agent) {
		a.random = random
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		a.now = now
	}
}

func NewAgent(config *types.Config, repo Repository, log *zap.SugaredLogger, opts ...Option) (*Agent, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if repo == nil {
		return nil, fmt.Errorf("repository cannot be nil")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	a := &Agent{
		config: config,
		repo:   repo,
		fingerprint: func() (string, error) {
			return fingerprint.Compute()
		},
		random: rand.Reader,
		now:    time.Now,
		log:    log,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.client == nil {
		tr, err := transport.NewTransport(transport.Config{
			Protocol: transport.HTTP1,
			Timeout:  config.Transport.Timeout,
			Retries:  config.Transport.Retries,
			Logger:   log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create transport: %w", err)
		}
		a.client = adept.NewClient(
			adept.WithBaseURL(config.ActivationServiceURL),
			adept.WithTransport(tr),
			adept.WithLogger(log),
		)
	}
	if a.signer == nil {
		a.signer = xmlsig.NewSigner(xmlsig.WithLogger(log))
	}
	if a.nonces == nil {
		a.nonces = nonce.NewSource(nonce.WithClock(a.now))
	}
	return a, nil
}

// Close releases network resources.
func (a *Agent) Close() error {
	return a.client.Close()
}

// step is one state of a flow.
type step struct {
	state     string
	operation types.AgentOperation
	run       func(ctx context.Context) error
}

// runSteps executes steps in order. Cancellation is honoured between steps
// only.
func (a *Agent) runSteps(ctx context.Context, flow string, wrap func(types.AgentOperation, error, bool) *types.AgentError, steps []step) error {
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return wrap(s.operation, err, false)
		}
		a.log.Debugw("flow state", "flow", flow, "state", s.state)
		if err := s.run(ctx); err != nil {
			a.log.Errorw("flow step failed", "flow", flow, "state", s.state, "error", err)
			return wrap(s.operation, err, adept.IsKind(err, adept.KindTransport))
		}
	}
	return nil
}

func (a *Agent) signedStamp() (string, string, error) {
	n, err := a.nonces.Next()
	if err != nil {
		return "", "", err
	}
	return n, nonce.Expiration(a.now()), nil
}

// currentAccount loads the repository and resolves the selected account and
// its local device.
func (a *Agent) currentAccount() (*models.Config, *models.Account, *models.Device, error) {
	config, accounts, err := a.repo.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	if !config.Ready() {
		return nil, nil, nil, ErrNotConfigured
	}
	if config.CurrentUser == "" {
		return nil, nil, nil, ErrNoCurrentAccount
	}
	account := findAccount(accounts, config.CurrentUser)
	if account == nil {
		return nil, nil, nil, fmt.Errorf("%w: %s is unknown", ErrNoCurrentAccount, config.CurrentUser)
	}
	local := account.LocalDevice()
	if local == nil || len(local.DeviceKey) == 0 {
		return nil, nil, nil, fmt.Errorf("%s: %w", account.URN, models.ErrNoLocalDevice)
	}
	return config, account, local, nil
}

func findAccount(accounts []*models.Account, urn string) *models.Account {
	for _, acc := range accounts {
		if acc.URN == urn {
			return acc
		}
	}
	return nil
}
