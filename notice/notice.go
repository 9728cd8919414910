// Package notice defines the payload schema for error notifications and the
// adapters that turn arbitrary Go values into reportable error descriptions.
//
// A Notice is the complete JSON document POSTed to the collector's
// /v1/notices endpoint. The Error type inside it is built from any Go error
// (or panic value, or plain message) by NewError and friends; optional
// richness such as a custom class name or a captured stack is discovered
// through small capability interfaces rather than required up front.
package notice

// Notice is the complete wire payload delivered to the collector.
type Notice struct {
	APIKey   string   `json:"api_key,omitempty"`
	Notifier Notifier `json:"notifier"`
	Error    Error    `json:"error"`
	Request  *Request `json:"request,omitempty"`
	Server   Server   `json:"server"`
}

// Notifier identifies the reporting library to the collector.
type Notifier struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Version string `json:"version"`
}

// Request carries the context surrounding the error: caller-supplied
// key/value context, HTTP request parameters and session data, and CGI-style
// environment variables. The section is omitted from the wire payload when
// it holds no data.
type Request struct {
	URL       string            `json:"url,omitempty"`
	Component string            `json:"component,omitempty"`
	Action    string            `json:"action,omitempty"`
	Context   map[string]any    `json:"context,omitempty"`
	Params    map[string]any    `json:"params,omitempty"`
	Session   map[string]any    `json:"session,omitempty"`
	CGIData   map[string]string `json:"cgi_data,omitempty"`
}

// IsEmpty reports whether the request section carries no data at all.
func (r *Request) IsEmpty() bool {
	if r == nil {
		return true
	}
	return r.URL == "" && r.Component == "" && r.Action == "" &&
		len(r.Context) == 0 && len(r.Params) == 0 &&
		len(r.Session) == 0 && len(r.CGIData) == 0
}

// Server describes the reporting host and process.
type Server struct {
	ProjectRoot     string `json:"project_root,omitempty"`
	EnvironmentName string `json:"environment_name,omitempty"`
	Hostname        string `json:"hostname,omitempty"`
	Time            int64  `json:"time"`
	PID             int    `json:"pid"`
}
