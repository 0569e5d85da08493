package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/timeoff"
)

// ActorHeader carries the caller's employee ID. Authentication happens
// upstream; the engine only resolves the identity to a role.
const ActorHeader = "X-Actor-ID"

type actorKey struct{}

// ActorResolver maps an identity to an actor.
type ActorResolver interface {
	ResolveActor(ctx context.Context, id generic.EntityID) (timeoff.Actor, error)
}

// ActorMiddleware rejects requests without a known actor with 401.
func ActorMiddleware(resolver ActorResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(ActorHeader))
			actor, err := resolver.ResolveActor(r.Context(), generic.EntityID(id))
			if err != nil {
				writeDomainError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
		})
	}
}

// ActorFromContext returns the actor set by ActorMiddleware.
func ActorFromContext(ctx context.Context) (timeoff.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(timeoff.Actor)
	return actor, ok
}

// RequestLogger writes one access log line per request.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			fields := []zap.Field{
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			}
			if id := r.Header.Get(ActorHeader); id != "" {
				fields = append(fields, zap.String("actor_id", id))
			}

			switch {
			case ww.Status() >= 500:
				logger.Error("http request", fields...)
			case ww.Status() >= 400:
				logger.Warn("http request", fields...)
			default:
				logger.Info("http request", fields...)
			}
		})
	}
}
