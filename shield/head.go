package shield

import "net/http"

// ReadOnly admits only GET and HEAD. HEAD is served by the GET route with
// the body dropped by net/http; any other method gets a JSON 405.
func ReadOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
		case http.MethodHead:
			r.Method = http.MethodGet
		default:
			w.Header().Set("Allow", "GET, HEAD")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusMethodNotAllowed)
			w.Write([]byte(`{"error":"method not allowed"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
