package middleware

import (
	"net/http"

	"github.com/Garzer09/biz-data-guide-sub001/internal/logloader"
	"github.com/Garzer09/biz-data-guide-sub001/internal/repository"
)

// DataLoaderMiddleware attaches a request scoped import log loader to the context.
func DataLoaderMiddleware(repo repository.ImportLogRepository, perJob int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := logloader.NewLogLoader(repo, perJob)
			next.ServeHTTP(w, r.WithContext(logloader.WithLogLoader(r.Context(), loader)))
		})
	}
}
