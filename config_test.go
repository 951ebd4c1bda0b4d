package provreq

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfig(t *testing.T) {
	data := []byte(`{
		"name": "platform",
		"required_providers": {
			"aws": {"source": "hashicorp/aws", "version": ">= 4.0.0"},
			"mycloud": {"source": "example.com/corp/mycloud"}
		},
		"resources": ["aws_instance", "random_pet"],
		"required_core": [">= 1.3.0"],
		"children": {
			"network": {
				"required_providers": {
					"aws": {"source": "hashicorp/aws", "version": "~> 4.16"}
				}
			}
		}
	}`)

	root, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}

	if root.Name != "platform" {
		t.Errorf("Name = %q, want %q", root.Name, "platform")
	}
	if len(root.RequiredProviders) != 2 {
		t.Errorf("len(RequiredProviders) = %d, want 2", len(root.RequiredProviders))
	}
	if got := root.RequiredProviders["aws"].Version; got != ">= 4.0.0" {
		t.Errorf("aws version constraint = %q, want %q", got, ">= 4.0.0")
	}
	if got := root.RequiredProviders["mycloud"].Source; got != "example.com/corp/mycloud" {
		t.Errorf("mycloud source = %q, want %q", got, "example.com/corp/mycloud")
	}
	if len(root.Resources) != 2 {
		t.Errorf("len(Resources) = %d, want 2", len(root.Resources))
	}

	child, ok := root.Children["network"]
	if !ok {
		t.Fatal("child module network missing")
	}
	if got := child.RequiredProviders["aws"].Version; got != "~> 4.16" {
		t.Errorf("child aws constraint = %q, want %q", got, "~> 4.16")
	}
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{
			name:    "invalid json",
			input:   `{"name": `,
			wantMsg: "parse configuration",
		},
		{
			name:    "unknown field",
			input:   `{"name": "x", "providers": {}}`,
			wantMsg: "parse configuration",
		},
		{
			name:    "trailing data",
			input:   `{"name": "x"} {"name": "y"}`,
			wantMsg: "unexpected data after the module document",
		},
		{
			name:    "invalid local name",
			input:   `{"required_providers": {"AWS": {}}}`,
			wantMsg: "module <root>: invalid local name \"AWS\"",
		},
		{
			name:    "invalid source address",
			input:   `{"required_providers": {"aws": {"source": "too/many/parts/here"}}}`,
			wantMsg: "module <root>, provider \"aws\"",
		},
		{
			name:    "invalid version constraint",
			input:   `{"required_providers": {"aws": {"source": "hashicorp/aws", "version": "not-a-constraint"}}}`,
			wantMsg: `invalid version constraint "not-a-constraint"`,
		},
		{
			name:    "invalid required_core constraint",
			input:   `{"required_core": ["banana"]}`,
			wantMsg: `invalid required_core constraint "banana"`,
		},
		{
			name:    "invalid child call name",
			input:   `{"children": {"Bad Name": {}}}`,
			wantMsg: "module <root>: invalid child call name",
		},
		{
			name:    "null child",
			input:   `{"children": {"net": null}}`,
			wantMsg: `child module "net" is null`,
		},
		{
			name:    "nested error names the child path",
			input:   `{"children": {"net": {"required_providers": {"aws": {"version": "???"}}}}}`,
			wantMsg: "module <root>.net, provider \"aws\"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.input))
			if err == nil {
				t.Fatal("ParseConfig() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("ParseConfig() error = %q, want substring %q", err, tt.wantMsg)
			}
		})
	}
}

func TestParseConfig_EmptyModule(t *testing.T) {
	// A module with no requirements at all is valid; it just resolves to
	// nothing.
	root, err := ParseConfig([]byte(`{}`))
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if len(root.RequiredProviders) != 0 || len(root.Children) != 0 {
		t.Errorf("empty module parsed as %+v", root)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "module.json")
	content := `{"required_providers": {"random": {"source": "hashicorp/random"}}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	root, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if _, ok := root.RequiredProviders["random"]; !ok {
		t.Error("LoadConfig() dropped the random provider requirement")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("LoadConfig() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "read configuration") {
		t.Errorf("LoadConfig() error = %q, want read configuration context", err)
	}
}

func TestWalkModules_Order(t *testing.T) {
	// Children visit in call-name order, parents before children, so two
	// walks over the same tree see the identical sequence.
	root := &Module{
		Children: map[string]*Module{
			"zeta": {Children: map[string]*Module{
				"inner": {},
			}},
			"alpha": {},
		},
	}

	var visited []string
	walkModules(root, RootModuleName, func(path string, m *Module) {
		visited = append(visited, path)
	})

	want := []string{"<root>", "<root>.alpha", "<root>.zeta", "<root>.zeta.inner"}
	if len(visited) != len(want) {
		t.Fatalf("walk visited %v, want %v", visited, want)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Errorf("visit[%d] = %q, want %q", i, visited[i], want[i])
		}
	}
}

func TestChildPath(t *testing.T) {
	if got := childPath(RootModuleName, "network"); got != "<root>.network" {
		t.Errorf("childPath() = %q, want %q", got, "<root>.network")
	}
	if got := childPath("<root>.network", "subnets"); got != "<root>.network.subnets" {
		t.Errorf("childPath() = %q, want %q", got, "<root>.network.subnets")
	}
}
