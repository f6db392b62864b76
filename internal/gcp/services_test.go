package gcp

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/cloudscheduler/v1"
	"google.golang.org/api/cloudtasks/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/pubsub/v1"
)

// apiRecorder serves canned per-route statuses shaped like the REST APIs'
// error envelope, recording every call so tests can assert on the request
// sequence the client issued.
type apiRecorder struct {
	mu     sync.Mutex
	calls  []string
	masks  []string
	status map[string]int
}

func newAPIRecorder(status map[string]int) *apiRecorder {
	return &apiRecorder{status: status}
}

func (a *apiRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path

	a.mu.Lock()
	a.calls = append(a.calls, key)
	if mask := r.URL.Query().Get("updateMask"); mask != "" {
		a.masks = append(a.masks, mask)
	}
	a.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if code, ok := a.status[key]; ok && code != http.StatusOK {
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"error":{"code":%d,"message":"%s"}}`, code, http.StatusText(code))
		return
	}
	fmt.Fprint(w, "{}")
}

func (a *apiRecorder) recorded() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

func (a *apiRecorder) updateMasks() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.masks...)
}

func (a *apiRecorder) serve(t *testing.T) string {
	server := httptest.NewServer(a)
	t.Cleanup(server.Close)
	return server.URL
}

func schedulerClientFor(t *testing.T, rec *apiRecorder) *defaultSchedulerClient {
	svc, err := cloudscheduler.NewService(context.Background(),
		option.WithEndpoint(rec.serve(t)), option.WithoutAuthentication())
	require.NoError(t, err)
	return &defaultSchedulerClient{service: svc}
}

func pubSubClientFor(t *testing.T, rec *apiRecorder) *defaultPubSubClient {
	svc, err := pubsub.NewService(context.Background(),
		option.WithEndpoint(rec.serve(t)), option.WithoutAuthentication())
	require.NoError(t, err)
	return &defaultPubSubClient{service: svc}
}

func tasksClientFor(t *testing.T, rec *apiRecorder) *defaultTasksClient {
	svc, err := cloudtasks.NewService(context.Background(),
		option.WithEndpoint(rec.serve(t)), option.WithoutAuthentication())
	require.NoError(t, err)
	return &defaultTasksClient{service: svc}
}

func TestSchedulerUpsertJob_CreatesWhenAbsent(t *testing.T) {
	rec := newAPIRecorder(nil)
	client := schedulerClientFor(t, rec)

	job := &cloudscheduler.Job{Name: "projects/p/locations/r/jobs/j"}
	require.NoError(t, client.UpsertJob(context.Background(), job))

	assert.Equal(t, []string{"POST /v1/projects/p/locations/r/jobs"}, rec.recorded())
}

func TestSchedulerUpsertJob_PatchesOnConflict(t *testing.T) {
	rec := newAPIRecorder(map[string]int{
		"POST /v1/projects/p/locations/r/jobs": http.StatusConflict,
	})
	client := schedulerClientFor(t, rec)

	job := &cloudscheduler.Job{Name: "projects/p/locations/r/jobs/j"}
	require.NoError(t, client.UpsertJob(context.Background(), job))

	assert.Equal(t, []string{
		"POST /v1/projects/p/locations/r/jobs",
		"PATCH /v1/projects/p/locations/r/jobs/j",
	}, rec.recorded())
}

func TestSchedulerUpsertJob_SurfacesPatchFailure(t *testing.T) {
	rec := newAPIRecorder(map[string]int{
		"POST /v1/projects/p/locations/r/jobs":    http.StatusConflict,
		"PATCH /v1/projects/p/locations/r/jobs/j": http.StatusForbidden,
	})
	client := schedulerClientFor(t, rec)

	job := &cloudscheduler.Job{Name: "projects/p/locations/r/jobs/j"}
	err := client.UpsertJob(context.Background(), job)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "patch scheduler job")
}

func TestSchedulerDeleteJob_MissingJobIsSuccess(t *testing.T) {
	rec := newAPIRecorder(map[string]int{
		"DELETE /v1/projects/p/locations/r/jobs/j": http.StatusNotFound,
	})
	client := schedulerClientFor(t, rec)

	err := client.DeleteJob(context.Background(), "projects/p/locations/r/jobs/j")
	assert.NoError(t, err)
}

func TestSchedulerDeleteJob_SurfacesOtherFailures(t *testing.T) {
	rec := newAPIRecorder(map[string]int{
		"DELETE /v1/projects/p/locations/r/jobs/j": http.StatusForbidden,
	})
	client := schedulerClientFor(t, rec)

	err := client.DeleteJob(context.Background(), "projects/p/locations/r/jobs/j")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete scheduler job")
}

func TestPubSubCreateTopic_ExistingTopicIsSuccess(t *testing.T) {
	rec := newAPIRecorder(map[string]int{
		"PUT /v1/projects/p/topics/t": http.StatusConflict,
	})
	client := pubSubClientFor(t, rec)

	err := client.CreateTopic(context.Background(), "projects/p/topics/t", nil)
	assert.NoError(t, err)
}

func TestPubSubCreateTopic_SurfacesOtherFailures(t *testing.T) {
	rec := newAPIRecorder(map[string]int{
		"PUT /v1/projects/p/topics/t": http.StatusForbidden,
	})
	client := pubSubClientFor(t, rec)

	err := client.CreateTopic(context.Background(), "projects/p/topics/t", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create topic")
}

func TestPubSubDeleteTopic_MissingTopicIsSuccess(t *testing.T) {
	rec := newAPIRecorder(map[string]int{
		"DELETE /v1/projects/p/topics/t": http.StatusNotFound,
	})
	client := pubSubClientFor(t, rec)

	err := client.DeleteTopic(context.Background(), "projects/p/topics/t")
	assert.NoError(t, err)
}

func TestTasksUpsertQueue_PatchesOnConflict(t *testing.T) {
	rec := newAPIRecorder(map[string]int{
		"POST /v2/projects/p/locations/r/queues": http.StatusConflict,
	})
	client := tasksClientFor(t, rec)

	queue := &cloudtasks.Queue{Name: "projects/p/locations/r/queues/q"}
	require.NoError(t, client.UpsertQueue(context.Background(), queue))

	assert.Equal(t, []string{
		"POST /v2/projects/p/locations/r/queues",
		"PATCH /v2/projects/p/locations/r/queues/q",
	}, rec.recorded())
	assert.Equal(t, []string{"rateLimits,retryConfig"}, rec.updateMasks())
}

func TestTasksDisableQueue_MissingQueueIsSuccess(t *testing.T) {
	rec := newAPIRecorder(map[string]int{
		"PATCH /v2/projects/p/locations/r/queues/q": http.StatusNotFound,
	})
	client := tasksClientFor(t, rec)

	err := client.DisableQueue(context.Background(), "projects/p/locations/r/queues/q")
	assert.NoError(t, err)
	assert.Equal(t, []string{"state"}, rec.updateMasks())
}
