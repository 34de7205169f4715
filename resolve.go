package gradio

import "strings"

// EndpointInfo is the subset of the server's view_api response this core
// needs per endpoint: its positional parameter schema, used by the
// Payload Preparer to find blob/file arguments.
type EndpointInfo struct {
	Parameters      []ParameterInfo `json:"parameters"`
	Returns         []ParameterInfo `json:"returns"`
	AverageDuration float64         `json:"average_duration,omitempty"`
}

// ParameterInfo describes one positional argument or return value.
type ParameterInfo struct {
	Label      string `json:"label"`
	Type       string `json:"type,omitempty"`
	PythonType string `json:"python_type,omitempty"`
	Component  string `json:"component,omitempty"`
}

// isFileLike reports whether the server's schema for this parameter
// indicates a binary upload (spec.md §4.2: "schema indicates a binary
// type (blob/file)").
func (p ParameterInfo) isFileLike() bool {
	switch strings.ToLower(p.Component) {
	case "file", "image", "audio", "video", "uploadbutton", "gallery":
		return true
	}
	return strings.Contains(strings.ToLower(p.Type), "filedata") ||
		strings.Contains(strings.ToLower(p.Type), "blob")
}

// APIInfo is the server's view_api payload, split into the two endpoint
// maps spec.md §4.1 resolves against.
type APIInfo struct {
	NamedEndpoints   map[string]*EndpointInfo `json:"named_endpoints"`
	UnnamedEndpoints map[int]*EndpointInfo    `json:"unnamed_endpoints"`
}

// ResolvedEndpoint is C1's output: the fn_index, the endpoint's schema,
// and its dependency descriptor (skip_queue / zerogpu).
type ResolvedEndpoint struct {
	FnIndex      int
	EndpointPath string
	APIInfo      *EndpointInfo
	Dependency   Dependency
}

// Resolve maps a logical endpoint — a numeric fn_index or a "/name" path
// — to its internal fn_index and descriptor (spec.md §4.1). It has no
// side effects and mutates nothing in cfg or apiMap.
func Resolve(endpoint string, api *APIInfo, apiMap map[string]int, cfg *Config) (ResolvedEndpoint, error) {
	if api == nil {
		return ResolvedEndpoint{}, &NoAPIError{}
	}

	if fnIndex, ok := parseFnIndex(endpoint); ok {
		info, ok := api.UnnamedEndpoints[fnIndex]
		if !ok {
			return ResolvedEndpoint{}, &UnknownEndpointError{Endpoint: endpoint}
		}
		return ResolvedEndpoint{
			FnIndex:      fnIndex,
			EndpointPath: "/predict",
			APIInfo:      info,
			Dependency:   cfg.dependencyFor(fnIndex),
		}, nil
	}

	trimmed := strings.TrimPrefix(endpoint, "/")
	fnIndex, ok := apiMap[trimmed]
	if !ok {
		return ResolvedEndpoint{}, &UnknownEndpointError{Endpoint: endpoint}
	}
	info, ok := api.NamedEndpoints[trimmed]
	if !ok {
		return ResolvedEndpoint{}, &UnknownEndpointError{Endpoint: endpoint}
	}
	return ResolvedEndpoint{
		FnIndex:      fnIndex,
		EndpointPath: "/" + trimmed,
		APIInfo:      info,
		Dependency:   cfg.dependencyFor(fnIndex),
	}, nil
}

func parseFnIndex(endpoint string) (int, bool) {
	if endpoint == "" {
		return 0, false
	}
	n := 0
	for i, r := range endpoint {
		if r < '0' || r > '9' {
			if i == 0 {
				return 0, false
			}
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// BuildAPIMap derives the endpoint-name → fn_index map from the server's
// dependency list, mirroring how the JS client constructs apiMap out of
// config.dependencies at session-creation time (spec.md §3).
func BuildAPIMap(deps []DependencyConfig) map[string]int {
	out := make(map[string]int, len(deps))
	for i, d := range deps {
		if d.APIName != "" {
			out[strings.TrimPrefix(d.APIName, "/")] = i
		}
	}
	return out
}
