package i18n

import "net/http"

// Middleware injects a localizer for the language the client asks for in
// Accept-Language, falling back to the language given to Init.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := Negotiate(r.Header.Get("Accept-Language"))
			w.Header().Set("Content-Language", lang)
			ctx := WithLocalizer(r.Context(), NewLocalizer(lang))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
