package gradio

import "testing"

func testAPI() *APIInfo {
	return &APIInfo{
		NamedEndpoints: map[string]*EndpointInfo{
			"predict": {Parameters: []ParameterInfo{{Label: "n", Type: "number"}}},
		},
		UnnamedEndpoints: map[int]*EndpointInfo{
			3: {Parameters: []ParameterInfo{{Label: "x"}}},
		},
	}
}

func TestResolveByName(t *testing.T) {
	cfg := &Config{Dependencies: []DependencyConfig{{APIName: "predict"}}}
	apiMap := BuildAPIMap(cfg.Dependencies)

	got, err := Resolve("/predict", testAPI(), apiMap, cfg)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.FnIndex != 0 || got.EndpointPath != "/predict" {
		t.Errorf("got %+v", got)
	}
}

func TestResolveByIndex(t *testing.T) {
	cfg := &Config{Dependencies: make([]DependencyConfig, 4)}
	got, err := Resolve("3", testAPI(), map[string]int{}, cfg)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.FnIndex != 3 || got.EndpointPath != "/predict" {
		t.Errorf("got %+v", got)
	}
}

func TestResolveUnknownEndpoint(t *testing.T) {
	cfg := &Config{}
	_, err := Resolve("/missing", testAPI(), map[string]int{}, cfg)
	if _, ok := err.(*UnknownEndpointError); !ok {
		t.Errorf("err = %T, want *UnknownEndpointError", err)
	}
}

func TestResolveNoAPI(t *testing.T) {
	_, err := Resolve("/predict", nil, map[string]int{}, &Config{})
	if _, ok := err.(*NoAPIError); !ok {
		t.Errorf("err = %T, want *NoAPIError", err)
	}
}

func TestParameterInfoIsFileLike(t *testing.T) {
	tests := []struct {
		name string
		p    ParameterInfo
		want bool
	}{
		{"image component", ParameterInfo{Component: "Image"}, true},
		{"textbox component", ParameterInfo{Component: "Textbox"}, false},
		{"filedata type", ParameterInfo{Type: "FileData"}, true},
		{"plain string type", ParameterInfo{Type: "str"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.isFileLike(); got != tt.want {
				t.Errorf("isFileLike() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVersionAtLeast(t *testing.T) {
	tests := []struct {
		version, floor string
		want           bool
	}{
		{"3.6.0", "3.6.0", true},
		{"3.5.9", "3.6.0", false},
		{"4.0.0", "3.6.0", true},
		{"3.6.0-beta1", "3.6.0", true},
	}
	for _, tt := range tests {
		if got := versionAtLeast(tt.version, tt.floor); got != tt.want {
			t.Errorf("versionAtLeast(%q, %q) = %v, want %v", tt.version, tt.floor, got, tt.want)
		}
	}
}
