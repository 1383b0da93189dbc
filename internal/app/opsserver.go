// Package app — служебный HTTP-сервер: health-check и метрики Prometheus.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/school-lms/internal/metrics"
)

// Pinger — *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type OpsServer struct {
	srv *http.Server
}

// OpsHandler — /healthz (ping БД) и /metrics.
func OpsHandler(db Pinger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 800*time.Millisecond)
		defer cancel()
		t0 := time.Now()
		if err := db.PingContext(ctx); err != nil {
			http.Error(w, "db not ok", http.StatusServiceUnavailable)
			return
		}
		metrics.ObserveDBPing(time.Since(t0))
		_, _ = w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// StartOps запускает сервер в фоне и гасит его по отмене ctx.
func StartOps(ctx context.Context, addr string, db Pinger, log *zap.Logger) *OpsServer {
	srv := &http.Server{Addr: addr, Handler: OpsHandler(db), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ops server stopped", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
	}()

	return &OpsServer{srv: srv}
}
