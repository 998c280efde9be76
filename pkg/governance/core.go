package governance

import (
	"log/slog"
	"time"

	"github.com/xtoazt/gummybear-sub000/pkg/audit"
	"github.com/xtoazt/gummybear-sub000/pkg/deploy"
	"github.com/xtoazt/gummybear-sub000/pkg/ledger"
	"github.com/xtoazt/gummybear-sub000/pkg/repo"
)

// Core wires the gate, the dispatch router, and the pending-change lifecycle.
// It is the only writer of the Pending Change Ledger.
type Core struct {
	users      UserDirectory
	messages   MessageStore
	components ComponentStore
	repo       repo.Client // nil means modify_code/deploy are unavailable
	deployer   deploy.Deployer
	changes    ledger.Store

	validator *ParamValidator
	advisor   *Advisor
	audit     audit.Logger
	logger    *slog.Logger
	clock     func() time.Time

	aiActorID       string
	repoBranch      string
	contextChannels []ChannelSpec
}

// Config assembles a Core. Users, Messages, Components, and Changes are
// required; Repo may be nil (capability-gated actions then fail with
// ErrIntegrationNotConfigured at dispatch time, never at queue time).
type Config struct {
	Users      UserDirectory
	Messages   MessageStore
	Components ComponentStore
	Repo       repo.Client
	Deployer   deploy.Deployer
	Changes    ledger.Store

	Audit           audit.Logger
	Logger          *slog.Logger
	Advisor         *Advisor
	AIActorID       string
	RepoBranch      string
	ContextChannels []ChannelSpec
}

// New builds a Core. The param validator compiles embedded JSON Schemas and
// only fails on a programming error in those schemas.
func New(cfg Config) (*Core, error) {
	validator, err := NewParamValidator()
	if err != nil {
		return nil, err
	}

	c := &Core{
		users:           cfg.Users,
		messages:        cfg.Messages,
		components:      cfg.Components,
		repo:            cfg.Repo,
		deployer:        cfg.Deployer,
		changes:         cfg.Changes,
		validator:       validator,
		advisor:         cfg.Advisor,
		audit:           cfg.Audit,
		logger:          cfg.Logger,
		clock:           time.Now,
		aiActorID:       cfg.AIActorID,
		repoBranch:      cfg.RepoBranch,
		contextChannels: cfg.ContextChannels,
	}
	if c.logger == nil {
		c.logger = slog.Default().With("component", "governance")
	}
	if c.audit == nil {
		c.audit = audit.Nop()
	}
	if c.deployer == nil {
		versions, verr := deploy.NewVersioned("0.1.0")
		if verr != nil {
			return nil, verr
		}
		c.deployer = versions
	}
	if c.aiActorID == "" {
		c.aiActorID = SystemActorID
	}
	if c.repoBranch == "" {
		c.repoBranch = "main"
	}
	if len(c.contextChannels) == 0 {
		c.contextChannels = DefaultContextChannels
	}
	return c, nil
}

// WithClock overrides the clock for testing.
func (c *Core) WithClock(clock func() time.Time) *Core {
	c.clock = clock
	return c
}

// Capabilities reports which action families are currently available.
// Code-touching capabilities depend on whether a repository client is
// configured; the rest are always on.
func (c *Core) Capabilities() CapabilitySnapshot {
	repoConfigured := c.repo != nil
	return CapabilitySnapshot{
		CanSendMessages:     true,
		CanManageUsers:      true,
		CanCreateComponents: true,
		CanApproveRequests:  true,
		CanModifyCode:       repoConfigured,
		CanDeployChanges:    repoConfigured,
	}
}
