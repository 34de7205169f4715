package gradio

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved server configuration this core consumes
// (spec.md §6, "Configuration consumed"). Discovering it is out of
// scope for the core — a caller (the thin constructor facade) fetches
// and parses it — but the shape lives here because every other module
// reads fields off it.
type Config struct {
	Root         string             `json:"root" yaml:"root"`
	Path         string             `json:"path,omitempty" yaml:"path,omitempty"`
	Protocol     string             `json:"protocol" yaml:"protocol"`
	Version      string             `json:"version,omitempty" yaml:"version,omitempty"`
	Dependencies []DependencyConfig `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Components   []ComponentConfig  `json:"components,omitempty" yaml:"components,omitempty"`
	SpaceID      string             `json:"space_id,omitempty" yaml:"space_id,omitempty"`
	AuthRequired bool               `json:"auth_required,omitempty" yaml:"auth_required,omitempty"`
}

// DependencyConfig is one entry of config.dependencies as served by the
// app (spec.md §6).
type DependencyConfig struct {
	APIName   string `json:"api_name,omitempty" yaml:"api_name,omitempty"`
	SkipQueue bool   `json:"skip_queue,omitempty" yaml:"skip_queue,omitempty"`
	ZeroGPU   bool   `json:"zerogpu,omitempty" yaml:"zerogpu,omitempty"`
}

// ComponentConfig is one entry of config.components; the core only cares
// about component type when deciding whether a value is file-like, but
// the full shape is kept so callers can hand it through untouched.
type ComponentConfig struct {
	ID   int    `json:"id"`
	Type string `json:"type,omitempty"`
}

// Dependency is the per-fn_index descriptor spec.md §3 calls "Dependency
// descriptor": whether its queue may be skipped and the zerogpu
// auth-header hint. Version-gated quirks are decided from Config.Version,
// not stored here.
type Dependency struct {
	SkipQueue bool
	ZeroGPU   bool
}

func (c *Config) dependencyFor(fnIndex int) Dependency {
	if fnIndex < 0 || fnIndex >= len(c.Dependencies) {
		return Dependency{}
	}
	d := c.Dependencies[fnIndex]
	return Dependency{SkipQueue: d.SkipQueue, ZeroGPU: d.ZeroGPU}
}

// versionAtLeast implements the version-compare helper spec.md §9 asks
// be kept "behind a version-compare helper rather than sprinkled ifs" —
// used both for the WS hash-on-open back-compat quirk (< 3.6.0) and for
// whether a direct-transport reply's average_duration can be trusted
// (SPEC_FULL §5.1).
func versionAtLeast(version, floor string) bool {
	vp := parseVersionParts(version)
	fp := parseVersionParts(floor)
	for i := 0; i < 3; i++ {
		if vp[i] != fp[i] {
			return vp[i] > fp[i]
		}
	}
	return true
}

func parseVersionParts(v string) [3]int {
	var out [3]int
	v = strings.SplitN(v, "-", 2)[0]
	parts := strings.SplitN(v, ".", 3)
	for i := 0; i < len(parts) && i < 3; i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return out
		}
		out[i] = n
	}
	return out
}

// ClientOptions configures a Client at construction time. Unlike Config
// (server-reported, fetched by the constructor facade out of this core's
// scope), ClientOptions is caller-supplied and may be loaded from a YAML
// file, grounded on mrf-agent-racer/backend/internal/config.Load: a
// defaults struct is populated first so a partial file only overrides
// what it sets.
type ClientOptions struct {
	// HTTPTimeout bounds every non-streaming request (direct run, queue
	// join POST, reset POST, upload POST). Streaming reads (WS, SSE) are
	// bounded by the caller's context instead.
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// HeartbeatInterval is the first delay before a failed heartbeat
	// connection is retried; repeated failures back off exponentially up
	// to 30 times this value. The server dictates the heartbeat cadence
	// itself by holding the GET open.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// Token, when set, is sent as a bearer token on the plain HTTP
	// requests this core issues (config fetch, direct run, queue join,
	// queue data, reset, upload, heartbeat, component_server). The
	// multiplex stream GET and the WS dial do not carry it.
	Token string `yaml:"token,omitempty"`

	// Logger receives the warnings spec.md marks as non-propagating
	// (reset failure, stream-open failure with no registered callback).
	// Defaults to log.Default().
	Logger *log.Logger `yaml:"-"`

	// AuthHeaderProvider supplies the zerogpu cross-origin auth headers
	// described in spec.md §4.6. Nil means "never add the header", which
	// is correct for any caller that isn't embedded in a browser iframe.
	AuthHeaderProvider AuthHeaderProvider `yaml:"-"`
}

func defaultClientOptions() ClientOptions {
	return ClientOptions{
		HTTPTimeout:       30 * time.Second,
		HeartbeatInterval: 15 * time.Second,
		Logger:            log.Default(),
	}
}

// LoadOptionsFile reads a YAML file of ClientOptions, starting from the
// same defaults New would use so an empty or partial file is well-formed.
func LoadOptionsFile(path string) (*ClientOptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	opts := defaultClientOptions()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &opts, nil
}
