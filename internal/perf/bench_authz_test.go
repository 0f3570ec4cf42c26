package perf

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/stackit-qa/stackit/internal/rbac"
)

func moderatorSubject() *rbac.Subject {
	return &rbac.Subject{
		ID:                    "7f0c1d2e-3a4b-4c5d-8e9f-0a1b2c3d4e5f",
		Role:                  rbac.RoleUser,
		IsActive:              true,
		CustomPermissions:     []rbac.Permission{rbac.QuestionModerate, rbac.AnswerModerate, rbac.CommentModerate},
		RestrictedPermissions: []rbac.Permission{rbac.QuestionVote},
	}
}

func BenchmarkAuthorizerNew(b *testing.B) {
	catalog := rbac.DefaultCatalog()
	subject := moderatorSubject()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = rbac.New(catalog, subject)
	}
}

func BenchmarkCanPerformAction(b *testing.B) {
	authz := rbac.New(rbac.DefaultCatalog(), moderatorSubject())
	req := rbac.ResourceAction{Resource: rbac.ResourceAnswer, Action: rbac.ActionUpdate, OwnerID: "someone-else"}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if !authz.CanPerformAction(req) {
			b.Fatal("moderator should edit foreign answers")
		}
	}
}

func BenchmarkRequireAnyGuest(b *testing.B) {
	mw := rbac.Middleware{Catalog: rbac.DefaultCatalog(), Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	h := mw.Bind(mw.RequireAny(rbac.SystemLogs)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	req := httptest.NewRequest(http.MethodGet, "/moderation/logs", nil)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			b.Fatalf("status = %d", rec.Code)
		}
	}
}

func TestAuthorizationLatencyTarget(t *testing.T) {
	catalog := rbac.DefaultCatalog()
	subject := moderatorSubject()
	samples := make([]time.Duration, 0, 200)
	for i := 0; i < 200; i++ {
		start := time.Now()
		authz := rbac.New(catalog, subject)
		_ = authz.CanModerate()
		_ = authz.CanVote("someone-else")
		_ = authz.Permissions()
		samples = append(samples, time.Since(start))
	}
	if p95 := percentile95(samples); p95 > 5*time.Millisecond {
		t.Fatalf("authorization latency regression: p95=%s", p95)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[int(float64(len(sorted)-1)*0.95)]
}
