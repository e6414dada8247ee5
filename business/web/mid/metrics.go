package mid

import (
	"context"
	"net/http"
	"time"

	"github.com/ardanlabs/chaintraits/business/sys/metrics"
	"github.com/ardanlabs/chaintraits/foundation/web"
)

// Metrics updates program counters.
func Metrics(m *metrics.Metrics) web.Middleware {

	// This is the actual middleware function to be executed.
	mw := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			// Call the next handler.
			err := handler(ctx, w, r)

			// Record the request and any error.
			v := web.GetValues(ctx)
			m.Request(r.Method, v.StatusCode, time.Since(v.Now).Seconds())
			if err != nil {
				m.Error()
			}

			return err
		}

		return h
	}

	return mw
}
