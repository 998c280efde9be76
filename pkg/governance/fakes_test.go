package governance_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xtoazt/gummybear-sub000/pkg/components"
	"github.com/xtoazt/gummybear-sub000/pkg/deploy"
	"github.com/xtoazt/gummybear-sub000/pkg/directory"
	"github.com/xtoazt/gummybear-sub000/pkg/governance"
	"github.com/xtoazt/gummybear-sub000/pkg/ledger"
	"github.com/xtoazt/gummybear-sub000/pkg/messages"
	"github.com/xtoazt/gummybear-sub000/pkg/repo"
)

// fakeDirectory implements governance.UserDirectory with canned data and
// per-method error injection.
type fakeDirectory struct {
	mu       sync.Mutex
	users    map[string]*directory.User
	requests map[string]*directory.AccessRequest

	getAllErr error
	roles     map[string]directory.Role
	banned    map[string]bool
	approved  []string
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users:    make(map[string]*directory.User),
		requests: make(map[string]*directory.AccessRequest),
		roles:    make(map[string]directory.Role),
		banned:   make(map[string]bool),
	}
}

func (f *fakeDirectory) addUser(u *directory.User) {
	f.users[u.ID] = u
}

func (f *fakeDirectory) GetAll(context.Context) ([]*directory.User, error) {
	if f.getAllErr != nil {
		return nil, f.getAllErr
	}
	out := make([]*directory.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeDirectory) FindByID(_ context.Context, id string) (*directory.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return u, nil
}

func (f *fakeDirectory) ChangeRole(_ context.Context, id string, role directory.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return directory.ErrNotFound
	}
	f.roles[id] = role
	return nil
}

func (f *fakeDirectory) Ban(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return directory.ErrNotFound
	}
	f.banned[id] = true
	return nil
}

func (f *fakeDirectory) Unban(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return directory.ErrNotFound
	}
	f.banned[id] = false
	return nil
}

func (f *fakeDirectory) Count(context.Context) (int, error) {
	return len(f.users), nil
}

func (f *fakeDirectory) ListPendingRequests(context.Context) ([]*directory.AccessRequest, error) {
	out := make([]*directory.AccessRequest, 0, len(f.requests))
	for _, r := range f.requests {
		if r.Status == "pending" {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeDirectory) ApproveRequest(_ context.Context, requestID, reviewerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[requestID]
	if !ok {
		return directory.ErrNotFound
	}
	if r.Status != "pending" {
		return directory.ErrRequestNotPending
	}
	r.Status = "approved"
	r.ReviewedBy = reviewerID
	f.approved = append(f.approved, requestID)
	return nil
}

// fakeMessages implements governance.MessageStore.
type fakeMessages struct {
	mu        sync.Mutex
	created   []*messages.Message
	byChannel map[string][]*messages.Message
	createErr error
	fetchErr  error
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{byChannel: make(map[string][]*messages.Message)}
}

func (f *fakeMessages) Create(_ context.Context, senderID, content, channel, recipientID, msgType string) (*messages.Message, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := &messages.Message{
		ID:          "msg-" + content,
		SenderID:    senderID,
		Content:     content,
		Channel:     channel,
		RecipientID: recipientID,
		Type:        msgType,
		CreatedAt:   time.Now(),
	}
	f.created = append(f.created, msg)
	f.byChannel[channel] = append(f.byChannel[channel], msg)
	return msg, nil
}

func (f *fakeMessages) GetChannelMessages(_ context.Context, channel string, limit int) ([]*messages.Message, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	msgs := f.byChannel[channel]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (f *fakeMessages) Count(context.Context) (int, error) {
	return len(f.created), nil
}

// fakeComponents implements governance.ComponentStore.
type fakeComponents struct {
	mu        sync.Mutex
	created   []*components.Component
	createErr error
}

func (f *fakeComponents) Create(_ context.Context, c *components.Component) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, c)
	return "comp-" + c.Name, nil
}

func (f *fakeComponents) Count(context.Context) (int, error) {
	return len(f.created), nil
}

// fakeRepo implements repo.Client.
type fakeRepo struct {
	mu          sync.Mutex
	revisions   map[string]string
	writes      []repoWrite
	revisionErr error
	writeErr    error
}

type repoWrite struct {
	path, content, message, branch, revision string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{revisions: make(map[string]string)}
}

func (f *fakeRepo) GetFileRevision(_ context.Context, path, _ string) (string, error) {
	if f.revisionErr != nil {
		return "", f.revisionErr
	}
	rev, ok := f.revisions[path]
	if !ok {
		return "", repo.ErrNotFound
	}
	return rev, nil
}

func (f *fakeRepo) WriteFile(_ context.Context, path, content, commitMessage, branch, revision string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, repoWrite{path, content, commitMessage, branch, revision})
	return nil
}

// failingDeployer always errors.
type failingDeployer struct{}

func (failingDeployer) Deploy(context.Context) (*deploy.Release, error) {
	return nil, errors.New("ci exploded")
}

// harness bundles a Core with its fakes.
type harness struct {
	core       *governance.Core
	users      *fakeDirectory
	messages   *fakeMessages
	components *fakeComponents
	repo       *fakeRepo
	changes    *ledger.MemoryStore
}

type harnessOption func(*harness, *governance.Config)

// withRepo wires the harness's fake repository client into the core.
func withRepo() harnessOption {
	return func(h *harness, cfg *governance.Config) { cfg.Repo = h.repo }
}

func withDeployer(d deploy.Deployer) harnessOption {
	return func(_ *harness, cfg *governance.Config) { cfg.Deployer = d }
}

func withAdvisor(a *governance.Advisor) harnessOption {
	return func(_ *harness, cfg *governance.Config) { cfg.Advisor = a }
}

func newHarness(t interface{ Fatalf(string, ...any) }, opts ...harnessOption) *harness {
	h := &harness{
		users:      newFakeDirectory(),
		messages:   newFakeMessages(),
		components: &fakeComponents{},
		repo:       newFakeRepo(),
		changes:    ledger.NewMemoryStore(),
	}
	cfg := governance.Config{
		Users:      h.users,
		Messages:   h.messages,
		Components: h.components,
		Changes:    h.changes,
	}
	for _, opt := range opts {
		opt(h, &cfg)
	}
	core, err := governance.New(cfg)
	if err != nil {
		t.Fatalf("governance.New: %v", err)
	}
	h.core = core
	return h
}

// pendingID extracts the queued change id from an ExecuteAction result.
func pendingID(t interface{ Fatalf(string, ...any) }, result any) string {
	receipt, ok := result.(*governance.PendingReceipt)
	if !ok {
		t.Fatalf("expected *PendingReceipt, got %T", result)
	}
	return receipt.PendingChangeID
}
