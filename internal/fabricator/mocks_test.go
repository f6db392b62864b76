package fabricator

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"google.golang.org/api/cloudscheduler/v1"
	"google.golang.org/api/cloudtasks/v2"
	"google.golang.org/api/identitytoolkit/v2"
	"google.golang.org/api/run/v2"

	"github.com/fnforge/fnforge/internal/gcp"
	"github.com/fnforge/fnforge/internal/plan"
	"github.com/fnforge/fnforge/internal/poller"
)

// directExecutor runs functions inline. Tests that care about retry or
// concurrency behavior live in the executor package.
type directExecutor struct{}

func (directExecutor) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockFunctionsV1 struct {
	mu sync.Mutex

	createFunc   func(ctx context.Context, ep *plan.Endpoint, sourceURL, sourceToken string) (string, error)
	updateFunc   func(ctx context.Context, ep *plan.Endpoint, sourceURL, sourceToken string) (string, error)
	deleteFunc   func(ctx context.Context, name string) (string, error)
	getOpFunc    func(ctx context.Context, name string) (*poller.Operation, error)
	setInvFunc   func(ctx context.Context, name string, members []string) error
	createTokens []string
	deleted      []string
	invokerCalls [][]string
}

func (m *mockFunctionsV1) CreateFunction(ctx context.Context, ep *plan.Endpoint, sourceURL, sourceToken string) (string, error) {
	m.mu.Lock()
	m.createTokens = append(m.createTokens, sourceToken)
	m.mu.Unlock()
	if m.createFunc != nil {
		return m.createFunc(ctx, ep, sourceURL, sourceToken)
	}
	return "operations/v1-create-" + ep.ID, nil
}

func (m *mockFunctionsV1) UpdateFunction(ctx context.Context, ep *plan.Endpoint, sourceURL, sourceToken string) (string, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, ep, sourceURL, sourceToken)
	}
	return "operations/v1-update-" + ep.ID, nil
}

func (m *mockFunctionsV1) DeleteFunction(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	m.deleted = append(m.deleted, name)
	m.mu.Unlock()
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, name)
	}
	return "operations/v1-delete", nil
}

func (m *mockFunctionsV1) GetOperation(ctx context.Context, name string) (*poller.Operation, error) {
	if m.getOpFunc != nil {
		return m.getOpFunc(ctx, name)
	}
	return &poller.Operation{Name: name, Done: true}, nil
}

func (m *mockFunctionsV1) SetInvoker(ctx context.Context, name string, members []string) error {
	m.mu.Lock()
	m.invokerCalls = append(m.invokerCalls, members)
	m.mu.Unlock()
	if m.setInvFunc != nil {
		return m.setInvFunc(ctx, name, members)
	}
	return nil
}

type mockFunctionsV2 struct {
	mu sync.Mutex

	createFunc func(ctx context.Context, ep *plan.Endpoint, src gcp.StorageSource) (string, error)
	updateFunc func(ctx context.Context, ep *plan.Endpoint, src gcp.StorageSource) (string, error)
	deleteFunc func(ctx context.Context, name string) (string, error)
	getOpFunc  func(ctx context.Context, name string) (*poller.Operation, error)
	deleted    []string
}

func (m *mockFunctionsV2) CreateFunction(ctx context.Context, ep *plan.Endpoint, src gcp.StorageSource) (string, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, ep, src)
	}
	return "operations/v2-create-" + ep.ID, nil
}

func (m *mockFunctionsV2) UpdateFunction(ctx context.Context, ep *plan.Endpoint, src gcp.StorageSource) (string, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, ep, src)
	}
	return "operations/v2-update-" + ep.ID, nil
}

func (m *mockFunctionsV2) DeleteFunction(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	m.deleted = append(m.deleted, name)
	m.mu.Unlock()
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, name)
	}
	return "operations/v2-delete", nil
}

func (m *mockFunctionsV2) GetOperation(ctx context.Context, name string) (*poller.Operation, error) {
	if m.getOpFunc != nil {
		return m.getOpFunc(ctx, name)
	}
	return &poller.Operation{Name: name, Done: true}, nil
}

type mockRun struct {
	mu sync.Mutex

	getFunc      func(ctx context.Context, name string) (*run.GoogleCloudRunV2Service, error)
	updateFunc   func(ctx context.Context, svc *run.GoogleCloudRunV2Service) error
	setInvFunc   func(ctx context.Context, name string, members []string) error
	updates      []*run.GoogleCloudRunV2Service
	invokerCalls [][]string
}

func (m *mockRun) GetService(ctx context.Context, name string) (*run.GoogleCloudRunV2Service, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, name)
	}
	return &run.GoogleCloudRunV2Service{
		Name:     name,
		Template: &run.GoogleCloudRunV2RevisionTemplate{MaxInstanceRequestConcurrency: 1},
	}, nil
}

func (m *mockRun) UpdateService(ctx context.Context, svc *run.GoogleCloudRunV2Service) error {
	m.mu.Lock()
	m.updates = append(m.updates, svc)
	m.mu.Unlock()
	if m.updateFunc != nil {
		return m.updateFunc(ctx, svc)
	}
	return nil
}

func (m *mockRun) SetInvoker(ctx context.Context, name string, members []string) error {
	m.mu.Lock()
	m.invokerCalls = append(m.invokerCalls, members)
	m.mu.Unlock()
	if m.setInvFunc != nil {
		return m.setInvFunc(ctx, name, members)
	}
	return nil
}

type mockPubSub struct {
	mu sync.Mutex

	createFunc func(ctx context.Context, name string, labels map[string]string) error
	deleteFunc func(ctx context.Context, name string) error
	created    []string
	deleted    []string
}

func (m *mockPubSub) CreateTopic(ctx context.Context, name string, labels map[string]string) error {
	m.mu.Lock()
	m.created = append(m.created, name)
	m.mu.Unlock()
	if m.createFunc != nil {
		return m.createFunc(ctx, name, labels)
	}
	return nil
}

func (m *mockPubSub) DeleteTopic(ctx context.Context, name string) error {
	m.mu.Lock()
	m.deleted = append(m.deleted, name)
	m.mu.Unlock()
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, name)
	}
	return nil
}

type mockScheduler struct {
	mu sync.Mutex

	upsertFunc func(ctx context.Context, job *cloudscheduler.Job) error
	deleteFunc func(ctx context.Context, name string) error
	upserted   []*cloudscheduler.Job
	deleted    []string
}

func (m *mockScheduler) UpsertJob(ctx context.Context, job *cloudscheduler.Job) error {
	m.mu.Lock()
	m.upserted = append(m.upserted, job)
	m.mu.Unlock()
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, job)
	}
	return nil
}

func (m *mockScheduler) DeleteJob(ctx context.Context, name string) error {
	m.mu.Lock()
	m.deleted = append(m.deleted, name)
	m.mu.Unlock()
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, name)
	}
	return nil
}

type mockTasks struct {
	mu sync.Mutex

	upsertFunc    func(ctx context.Context, queue *cloudtasks.Queue) error
	disableFunc   func(ctx context.Context, name string) error
	enqueuerFunc  func(ctx context.Context, name string, members []string) error
	upserted      []*cloudtasks.Queue
	disabled      []string
	enqueuerCalls [][]string
}

func (m *mockTasks) UpsertQueue(ctx context.Context, queue *cloudtasks.Queue) error {
	m.mu.Lock()
	m.upserted = append(m.upserted, queue)
	m.mu.Unlock()
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, queue)
	}
	return nil
}

func (m *mockTasks) DisableQueue(ctx context.Context, name string) error {
	m.mu.Lock()
	m.disabled = append(m.disabled, name)
	m.mu.Unlock()
	if m.disableFunc != nil {
		return m.disableFunc(ctx, name)
	}
	return nil
}

func (m *mockTasks) SetEnqueuer(ctx context.Context, name string, members []string) error {
	m.mu.Lock()
	m.enqueuerCalls = append(m.enqueuerCalls, members)
	m.mu.Unlock()
	if m.enqueuerFunc != nil {
		return m.enqueuerFunc(ctx, name, members)
	}
	return nil
}

type mockIdentity struct {
	mu sync.Mutex

	getFunc    func(ctx context.Context, project string) (*identitytoolkit.GoogleCloudIdentitytoolkitAdminV2BlockingFunctionsConfig, error)
	updateFunc func(ctx context.Context, project string, cfg *identitytoolkit.GoogleCloudIdentitytoolkitAdminV2BlockingFunctionsConfig) error
	config     *identitytoolkit.GoogleCloudIdentitytoolkitAdminV2BlockingFunctionsConfig
	updates    int
}

func (m *mockIdentity) GetBlockingConfig(ctx context.Context, project string) (*identitytoolkit.GoogleCloudIdentitytoolkitAdminV2BlockingFunctionsConfig, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, project)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config == nil {
		m.config = &identitytoolkit.GoogleCloudIdentitytoolkitAdminV2BlockingFunctionsConfig{}
	}
	return m.config, nil
}

func (m *mockIdentity) UpdateBlockingConfig(ctx context.Context, project string, cfg *identitytoolkit.GoogleCloudIdentitytoolkitAdminV2BlockingFunctionsConfig) error {
	m.mu.Lock()
	m.config = cfg
	m.updates++
	m.mu.Unlock()
	if m.updateFunc != nil {
		return m.updateFunc(ctx, project, cfg)
	}
	return nil
}

// testEnv bundles a fabricator wired to mocks for one test.
type testEnv struct {
	fab       *Fabricator
	v1        *mockFunctionsV1
	v2        *mockFunctionsV2
	run       *mockRun
	pubsub    *mockPubSub
	scheduler *mockScheduler
	tasks     *mockTasks
	identity  *mockIdentity
}

func newTestEnv(t *testing.T) *testEnv {
	env := &testEnv{
		v1:        &mockFunctionsV1{},
		v2:        &mockFunctionsV2{},
		run:       &mockRun{},
		pubsub:    &mockPubSub{},
		scheduler: &mockScheduler{},
		tasks:     &mockTasks{},
		identity:  &mockIdentity{},
	}

	fab, err := New(Config{
		QueueExecutor:    directExecutor{},
		FunctionExecutor: directExecutor{},
		Clients: &gcp.Clients{
			FunctionsV1: env.v1,
			FunctionsV2: env.v2,
			Run:         env.run,
			PubSub:      env.pubsub,
			Scheduler:   env.scheduler,
			Tasks:       env.tasks,
			Identity:    env.identity,
		},
		LegacyLocation: "us-central1",
		V1SourceURL:    "gs://bucket/source.zip",
		V2Sources: map[string]gcp.StorageSource{
			"us-central1": {Bucket: "bucket", Object: "source-us-central1.zip"},
			"europe-west1": {Bucket: "bucket", Object: "source-europe-west1.zip"},
		},
		Logger: slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("new fabricator: %v", err)
	}
	env.fab = fab
	t.Cleanup(fab.Close)
	return env
}
