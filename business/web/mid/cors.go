package mid

import (
	"context"
	"net/http"
	"strings"

	"github.com/ardanlabs/ledger/foundation/web"
)

// corsMethods are the methods the ledger API serves. Blocks are only read
// or submitted, nothing is updated or deleted in place.
var corsMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", ")

// corsHeaders are the request headers a browser may send. POST bodies are
// JSON batches and blocks.
const corsHeaders = "Accept, Content-Type"

// corsMaxAge is how long a browser may cache a preflight response, in seconds.
const corsMaxAge = "600"

// Cors sets the response headers needed for Cross-Origin Resource Sharing.
func Cors(origin string) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			hdr := w.Header()
			hdr.Set("Access-Control-Allow-Origin", origin)
			hdr.Set("Access-Control-Allow-Methods", corsMethods)
			hdr.Set("Access-Control-Allow-Headers", corsHeaders)
			hdr.Set("Access-Control-Max-Age", corsMaxAge)

			// Caches must not share a response between origins.
			if origin != "*" {
				hdr.Add("Vary", "Origin")
			}

			return handler(ctx, w, r)
		}

		return h
	}

	return m
}
