package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/autoshop/backend/internal/application/event"
	"github.com/autoshop/backend/internal/domain/shared"
	infraevent "github.com/autoshop/backend/internal/infrastructure/event"
)

type outboxFixture struct {
	engine *gin.Engine
	repo   *infraevent.GormOutboxRepository
}

func newOutboxFixture(t *testing.T) *outboxFixture {
	t.Helper()
	repo := infraevent.NewGormOutboxRepository(newSQLiteDB(t))
	h := NewOutboxHandler(event.NewOutboxService(repo, zap.NewNop()))

	r := newTestEngine()
	g := r.Group("/admin/outbox")
	g.GET("/stats", h.GetStats)
	g.GET("/dead", h.GetDeadLetterEntries)
	g.POST("/dead/retry-all", h.RetryAllDeadEntries)
	g.GET("/:id", h.GetEntry)
	g.POST("/:id/retry", h.RetryDeadEntry)

	return &outboxFixture{engine: r, repo: repo}
}

func (f *outboxFixture) save(t *testing.T, dead bool) *shared.OutboxEntry {
	t.Helper()
	entry := shared.NewOutboxEntry("invoice.created", []byte(`{"invoice_id":"x"}`))
	if dead {
		for !entry.IsDead() {
			entry.MarkFailed("sidecar returned 503", time.Now())
		}
	}
	require.NoError(t, f.repo.Save(context.Background(), entry))
	return entry
}

func TestOutboxHandler_Stats(t *testing.T) {
	f := newOutboxFixture(t)
	f.save(t, false)
	f.save(t, true)
	f.save(t, true)

	w := perform(f.engine, http.MethodGet, "/admin/outbox/stats", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true,"data":{"pending":1,"processing":0,"sent":0,"failed":0,"dead":2,"total":3}}`, w.Body.String())
}

func TestOutboxHandler_DeadLetterList(t *testing.T) {
	f := newOutboxFixture(t)
	f.save(t, false)
	dead := f.save(t, true)

	w := perform(f.engine, http.MethodGet, "/admin/outbox/dead?page=1&page_size=10", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	items := body["data"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, dead.ID.String(), item["id"])
	assert.Equal(t, "DEAD", item["status"])
	assert.Equal(t, "sidecar returned 503", item["last_error"])

	meta := body["meta"].(map[string]any)
	assert.EqualValues(t, 1, meta["total"])
	assert.EqualValues(t, 10, meta["page_size"])
}

func TestOutboxHandler_DeadLetterListRejectsBadPage(t *testing.T) {
	f := newOutboxFixture(t)

	w := perform(f.engine, http.MethodGet, "/admin/outbox/dead?page_size=1000", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOutboxHandler_RetryDeadEntry(t *testing.T) {
	f := newOutboxFixture(t)
	dead := f.save(t, true)

	w := perform(f.engine, http.MethodPost, "/admin/outbox/"+dead.ID.String()+"/retry", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, "PENDING", data["status"])
	assert.EqualValues(t, 0, data["retry_count"])

	stored, err := f.repo.FindByID(context.Background(), dead.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.OutboxStatusPending, stored.Status)
	assert.Empty(t, stored.LastError)
}

func TestOutboxHandler_RetryPendingEntryIsInvalidState(t *testing.T) {
	f := newOutboxFixture(t)
	pending := f.save(t, false)

	w := perform(f.engine, http.MethodPost, "/admin/outbox/"+pending.ID.String()+"/retry", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "ERR_INVALID_STATE", decodeBody(t, w)["error"].(map[string]any)["code"])
}

func TestOutboxHandler_RetryAll(t *testing.T) {
	f := newOutboxFixture(t)
	f.save(t, true)
	f.save(t, true)
	f.save(t, false)

	w := perform(f.engine, http.MethodPost, "/admin/outbox/dead/retry-all", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true,"data":{"count":2}}`, w.Body.String())

	counts, err := f.repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, counts[shared.OutboxStatusPending])
	assert.Zero(t, counts[shared.OutboxStatusDead])
}

func TestOutboxHandler_GetEntry(t *testing.T) {
	f := newOutboxFixture(t)
	entry := f.save(t, false)

	t.Run("found", func(t *testing.T) {
		w := perform(f.engine, http.MethodGet, "/admin/outbox/"+entry.ID.String(), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "invoice.created", decodeBody(t, w)["data"].(map[string]any)["topic"])
	})

	t.Run("unknown id", func(t *testing.T) {
		w := perform(f.engine, http.MethodGet, "/admin/outbox/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		w := perform(f.engine, http.MethodGet, "/admin/outbox/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
