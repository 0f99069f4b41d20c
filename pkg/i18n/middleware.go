package i18n

import (
	"net/http"
)

// Middleware resolves the request locale from the lang query parameter or
// the Accept-Language header and stores it in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale := r.URL.Query().Get("lang")
		if !IsSupported(locale) {
			locale = ParseAcceptLanguage(r.Header.Get("Accept-Language"))
		}

		w.Header().Set("Content-Language", locale)
		next.ServeHTTP(w, r.WithContext(WithLocale(r.Context(), locale)))
	})
}
