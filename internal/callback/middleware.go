package callback

import (
	"fmt"
	"net/http"
)

// recoverer turns a handler panic into a 500 for the browser and a failed
// Result for the waiting login, which would otherwise block until cancelled.
// The panic itself is logged by the Logging middleware further out.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.publish(Result{Err: fmt.Errorf("callback handler panicked: %v", v)})
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// chain wraps h so that the first middleware runs first.
func chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
