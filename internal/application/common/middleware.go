package common

import (
	"context"
	"log"
	"reflect"

	"github.com/go-playground/validator/v10"

	"github.com/andrescamacho/fleetd/internal/domain/shared"
)

// LoggingMiddleware records request type, player, latency, and outcome
// for every dispatch
func LoggingMiddleware(clock shared.Clock) Middleware {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return func(next RequestHandler) RequestHandler {
		return HandlerFunc(func(ctx context.Context, request Request) (Response, error) {
			start := clock.Now()
			requestType := reflect.TypeOf(request).String()
			playerID := PlayerIDFromContext(ctx)

			response, err := next.Handle(ctx, request)

			elapsed := clock.Now().Sub(start)
			if err != nil {
				log.Printf("dispatch %s player=%d took=%s error=%v",
					requestType, playerID, elapsed, err)
			} else {
				log.Printf("dispatch %s player=%d took=%s ok",
					requestType, playerID, elapsed)
			}
			return response, err
		})
	}
}

// ValidationMiddleware rejects malformed requests before they reach a
// handler. Requests declare constraints with `validate` struct tags.
func ValidationMiddleware() Middleware {
	validate := validator.New()

	return func(next RequestHandler) RequestHandler {
		return HandlerFunc(func(ctx context.Context, request Request) (Response, error) {
			v := reflect.ValueOf(request)
			for v.Kind() == reflect.Ptr {
				if v.IsNil() {
					return nil, shared.NewValidationError("request", "cannot be nil")
				}
				v = v.Elem()
			}
			if v.Kind() == reflect.Struct {
				if err := validate.StructCtx(ctx, v.Interface()); err != nil {
					if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
						return nil, shared.NewValidationError(verrs[0].Field(), verrs[0].Tag())
					}
					return nil, shared.WrapError(shared.KindBadRequest, "request validation failed", err)
				}
			}
			return next.Handle(ctx, request)
		})
	}
}
