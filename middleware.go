package honeybadger

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fussybeaver/honeybadger-go/notice"
)

// redactedHeaderValue replaces sensitive header values in reported cgi_data.
const redactedHeaderValue = "[REDACTED]"

// sensitiveHeaders are never reported verbatim.
var sensitiveHeaders = map[string]struct{}{
	"authorization":       {},
	"proxy-authorization": {},
	"cookie":              {},
	"x-api-key":           {},
}

// Handler returns middleware that reports panics from the handler chain and
// panics again, leaving the response to the server's own recovery
// middleware. The report carries the request url, query parameters, and
// CGI-style headers; when the handler runs inside a chi router the matched
// route pattern becomes the request component. Reporting is asynchronous so
// the failing response is not delayed; call Flush during shutdown to wait
// for it.
func (c *Client) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				// ErrAbortHandler is the server's own flow control,
				// not an application error.
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				c.NotifyAsync(notice.FromPanic(rvr), WithRequest(r))
				panic(rvr)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// requestInfo is the reportable slice of an inbound HTTP request.
type requestInfo struct {
	URL       string
	Component string
	Params    map[string]any
	CGIData   map[string]string
}

func extractRequestInfo(r *http.Request) requestInfo {
	info := requestInfo{
		URL:     requestURL(r),
		Params:  collapseValues(r.URL.Query()),
		CGIData: cgiData(r),
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			info.Component = pattern
		}
	}
	return info
}

// requestURL reconstructs the full URL of an inbound request.
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// collapseValues flattens url.Values, collapsing single-valued keys.
func collapseValues(values url.Values) map[string]any {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, vs := range values {
		if len(vs) == 1 {
			out[k] = vs[0]
		} else {
			out[k] = vs
		}
	}
	return out
}

// cgiData renders request headers as CGI-style variables (HTTP_USER_AGENT
// and friends), redacting sensitive ones.
func cgiData(r *http.Request) map[string]string {
	out := make(map[string]string, len(r.Header)+2)
	out["REQUEST_METHOD"] = r.Method
	if r.RemoteAddr != "" {
		out["REMOTE_ADDR"] = r.RemoteAddr
	}
	for name, values := range r.Header {
		key := "HTTP_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		if _, sensitive := sensitiveHeaders[strings.ToLower(name)]; sensitive {
			out[key] = redactedHeaderValue
			continue
		}
		out[key] = strings.Join(values, ", ")
	}
	return out
}
