package httpapi

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"go.uber.org/zap/zaptest"

	"github.com/fastygo/groupbuy/api/handler"
	"github.com/fastygo/groupbuy/domain"
	"github.com/fastygo/groupbuy/internal/infrastructure/monitor"
	"github.com/fastygo/groupbuy/internal/router"
	"github.com/fastygo/groupbuy/pkg/httpcontext"
	"github.com/fastygo/groupbuy/repository"
	"github.com/fastygo/groupbuy/repository/memory"
	storeUC "github.com/fastygo/groupbuy/usecase/store"
)

type staticStatus monitor.Status

func (s staticStatus) GetStatus() monitor.Status { return monitor.Status(s) }

func newTestServer(t *testing.T, reporter handler.StatusReporter) *fasthttp.Client {
	t.Helper()
	log := zaptest.NewLogger(t)
	adapter := httpcontext.NewAdapter(context.Background(), time.Second)
	uc := storeUC.New(memory.NewCampaignStore(), log)
	r := router.New(router.Handlers{
		Campaign: handler.NewCampaignHandler(uc, adapter, log),
		Health:   handler.NewHealthHandler(reporter, "memory", adapter, log),
	})

	ln := fasthttputil.NewInmemoryListener()
	server := &fasthttp.Server{Handler: r.Handler}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = server.Serve(ln)
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		<-done
	})

	return &fasthttp.Client{
		Dial: func(string) (net.Conn, error) { return ln.Dial() },
	}
}

func newTestStore(t *testing.T) repository.CampaignStore {
	t.Helper()
	client := newTestServer(t, staticStatus{Online: true})
	store, err := NewCampaignStore("http://campaigns.test", client, time.Second)
	require.NoError(t, err)
	return store
}

func TestPing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	online := newTestServer(t, staticStatus{Online: true})
	assert.NoError(t, Ping(ctx, "http://campaigns.test/", online))

	degraded := newTestServer(t, staticStatus{
		Checks: map[string]monitor.CheckResult{"postgresql": {Critical: true, Error: "connection refused"}},
	})
	assert.ErrorContains(t, Ping(ctx, "http://campaigns.test", degraded), "503")
}

func TestCampaignStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	local, err := domain.NewCampaign(domain.DefaultCampaignInput(), "c-42", "creator-1", now)
	require.NoError(t, err)

	created, err := store.Create(ctx, local)
	require.NoError(t, err)
	assert.Equal(t, "c-42", created.ID)
	assert.True(t, created.SameState(local))

	again, err := store.Create(ctx, local)
	require.NoError(t, err)
	assert.Equal(t, created.Version, again.Version, "resubmitted create is a no-op")

	got, err := store.Get(ctx, "c-42")
	require.NoError(t, err)
	assert.Equal(t, local.ProductName, got.ProductName)
	assert.Equal(t, "creator-1", got.Participants[0].ID)

	name := "Renamed"
	updated, err := store.Update(ctx, "c-42", domain.Patch{ProductName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.ProductName)
	assert.Greater(t, updated.Version, created.Version)

	p, err := store.AddParticipant(ctx, "c-42", domain.Participant{ID: "p-2", Name: "Participant 2", JoinedAt: now})
	require.NoError(t, err)
	assert.Equal(t, "p-2", p.ID)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].CurrentParticipants)

	require.NoError(t, store.Delete(ctx, "c-42"))
	_, err = store.Get(ctx, "c-42")
	assert.ErrorIs(t, err, domain.ErrCampaignNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "c-42"), domain.ErrCampaignNotFound)
}

func TestCampaignStore_ValidationErrors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, &domain.Campaign{ID: "bad", ProductName: "x", RegularPrice: 10, GroupPrice: 20, RequiredParticipants: 1})
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	_, err = store.AddParticipant(ctx, "missing", domain.Participant{ID: "p"})
	assert.ErrorIs(t, err, domain.ErrCampaignNotFound)
}

type failingDoer struct{ err error }

func (f failingDoer) DoDeadline(*fasthttp.Request, *fasthttp.Response, time.Time) error {
	return f.err
}

func TestCampaignStore_TransportFailureIsUnavailable(t *testing.T) {
	store, err := NewCampaignStore("http://campaigns.test", failingDoer{errors.New("dial tcp: connection refused")}, time.Second)
	require.NoError(t, err)

	_, err = store.List(context.Background())
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Get(ctx, "x")
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
}

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{"no content", 204, "", func(t *testing.T, err error) { assert.NoError(t, err) }},
		{"not found", 404, `{"status":"error","code":"NOT_FOUND","error":"campaign not found"}`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, domain.ErrCampaignNotFound)
		}},
		{"bad request", 400, `{"status":"error","code":"INVALID","error":"group price too high"}`, func(t *testing.T, err error) {
			assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
			assert.Contains(t, err.Error(), "group price too high")
		}},
		{"server error with envelope", 503, `{"status":"error","code":"UNAVAILABLE","error":"db down"}`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
		}},
		{"gateway html", 502, `<html>bad gateway</html>`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
		}},
		{"teapot", 418, `{"status":"error","code":"X"}`, func(t *testing.T, err error) {
			assert.True(t, domain.IsDomainError(err, domain.ErrCodeInternal))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, decodeResponse("GET", "/x", tt.status, []byte(tt.body), nil))
		})
	}
}

func TestNewCampaignStore_RejectsBadURL(t *testing.T) {
	_, err := NewCampaignStore("campaigns", nil, 0)
	assert.Error(t, err)
}
