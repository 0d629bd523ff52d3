package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"momentiq.app/pipeline/internal/http/handler"
	"momentiq.app/pipeline/internal/queue"
)

type fakeQueueAdmin struct {
	stats    queue.Stats
	statsErr error
	retried  string
	found    bool
	cleared  int64
}

func (f *fakeQueueAdmin) Stats(ctx context.Context) (queue.Stats, error) {
	return f.stats, f.statsErr
}

func (f *fakeQueueAdmin) RetryDeadLetter(ctx context.Context, jobID string) (bool, error) {
	f.retried = jobID
	return f.found, nil
}

func (f *fakeQueueAdmin) ClearDeadLetter(ctx context.Context) (int64, error) {
	return f.cleared, nil
}

var _ = Describe("QueueHandler", func() {
	var (
		router *gin.Engine
		admin  *fakeQueueAdmin
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		admin = &fakeQueueAdmin{}

		h := handler.NewQueueHandler(admin)
		router.GET("/queue/stats", h.Stats)
		router.POST("/queue/dead-letter/:job_id/retry", h.RetryDeadLetter)
		router.DELETE("/queue/dead-letter", h.ClearDeadLetter)
	})

	It("reports queue depths", func() {
		admin.stats = queue.Stats{Pending: 4, DeadLetter: 2}

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/queue/stats", nil))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(MatchJSON(`{"pending":4,"dead_letter":2}`))
	})

	It("maps stats failures to 500", func() {
		admin.statsErr = errors.New("redis down")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/queue/stats", nil))

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
	})

	It("retries a dead-letter job by id", func() {
		admin.found = true

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/queue/dead-letter/job-9/retry", nil))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(admin.retried).To(Equal("job-9"))
	})

	It("returns 404 for an unknown dead-letter job", func() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/queue/dead-letter/missing/retry", nil))

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("clears the dead-letter set", func() {
		admin.cleared = 3

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/queue/dead-letter", nil))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"cleared":3`))
	})
})
