package config

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/chatgraph/internal/ctxlog"
	"github.com/specialistvlad/chatgraph/internal/fsutil"
)

// Loader reads configuration from a path.
type Loader interface {
	Load(ctx context.Context, path string) (*Config, error)
}

// HCLLoader loads bot files written in HCL.
type HCLLoader struct {
	// Environ is consulted for overrides; nil means the process environment.
	Environ map[string]string
}

// Load implements Loader. An empty path yields the defaults plus overrides.
func (l *HCLLoader) Load(ctx context.Context, path string) (*Config, error) {
	logger := ctxlog.FromContext(ctx)
	cfg := Default()

	if path != "" {
		files, err := discover(path)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			logger.Warn("No .hcl bot files found in path, using defaults.", "path", path)
		}
		parser := hclparse.NewParser()
		for _, file := range files {
			if err := cfg.mergeFile(parser, file); err != nil {
				return nil, err
			}
			logger.Debug("Loaded bot file.", "file", file)
		}
	}

	if err := applyEnv(cfg, l.Environ); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("Configuration loaded.", "files", cfg.Files, "interceptors", len(cfg.Interceptors),
		"workers", cfg.Dispatcher.Workers, "max_redirects", cfg.Dispatcher.MaxRedirects)
	return cfg, nil
}

// Load is a convenience wrapper around HCLLoader using the process environment.
func Load(ctx context.Context, path string) (*Config, error) {
	return (&HCLLoader{}).Load(ctx, path)
}

func discover(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config path %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	files, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("failed to find bot files in %s: %w", path, err)
	}
	return files, nil
}

func (c *Config) mergeFile(parser *hclparse.Parser, path string) error {
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	var parsed hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}

	if d := parsed.Dispatcher; d != nil {
		if d.Workers != 0 {
			c.Dispatcher.Workers = d.Workers
		}
		if d.MaxRedirects != 0 {
			c.Dispatcher.MaxRedirects = d.MaxRedirects
		}
	}
	if r := parsed.Router; r != nil {
		c.Router = *r
	}
	if s := parsed.SocketIO; s != nil {
		if s.URL != "" {
			c.SocketIO.URL = s.URL
		}
		if s.Namespace != "" {
			c.SocketIO.Namespace = s.Namespace
		}
		if s.Event != "" {
			c.SocketIO.Event = s.Event
		}
	}
	c.Interceptors = append(c.Interceptors, parsed.Interceptors...)
	c.Files = append(c.Files, path)
	return nil
}

// Validate checks values that HCL decoding cannot.
func (c *Config) Validate() error {
	if c.Dispatcher.Workers < 1 {
		return fmt.Errorf("dispatcher: workers must be at least 1, got %d", c.Dispatcher.Workers)
	}
	if c.Dispatcher.MaxRedirects < 1 {
		return fmt.Errorf("dispatcher: max_redirects must be at least 1, got %d", c.Dispatcher.MaxRedirects)
	}
	if _, err := c.Router.TimeoutDuration(); err != nil {
		return fmt.Errorf("router: invalid timeout %q: %w", c.Router.Timeout, err)
	}

	seen := make(map[string]bool)
	for _, it := range c.Interceptors {
		if seen[it.Name] {
			return fmt.Errorf("interceptor %q: declared more than once", it.Name)
		}
		seen[it.Name] = true
		if it.Pattern == "" {
			return fmt.Errorf("interceptor %q: pattern must not be empty", it.Name)
		}
		set := 0
		if it.Action != "" {
			set++
		}
		if it.Redirect != "" {
			set++
		}
		if hasExpr(it.Reply) {
			set++
		}
		if set != 1 {
			return fmt.Errorf("interceptor %q: exactly one of action, reply or redirect is required", it.Name)
		}
	}
	return nil
}

// hasExpr reports whether an optional attribute was written. gohcl fills
// missing optional expressions with a static null.
func hasExpr(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	if len(expr.Variables()) > 0 {
		return true
	}
	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return true
	}
	return !v.IsNull()
}
