package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/3leaps/nimbusview/internal/appid"
	configassets "github.com/3leaps/nimbusview/internal/assets/config"
)

var (
	configMu    sync.RWMutex
	appConfig   *Config
	appIdentity *appid.Identity
	configFile  string
)

// Short aliases kept alongside the derived NIMBUSVIEW_<SECTION>_<KEY> names.
var envAliases = map[string]string{
	"HOST":             "server.host",
	"PORT":             "server.port",
	"READ_TIMEOUT":     "server.read_timeout",
	"WRITE_TIMEOUT":    "server.write_timeout",
	"IDLE_TIMEOUT":     "server.idle_timeout",
	"SHUTDOWN_TIMEOUT": "server.shutdown_timeout",
	"LOG_LEVEL":        "logging.level",
	"LOG_PROFILE":      "logging.profile",
	"URI":              "source.uri",
	"SAS_TOKEN":        "source.sas_token",
	"PAGE_SIZE":        "browse.page_size",
}

// Load builds the effective configuration and makes it current for GetConfig.
// Each override map is applied above every other layer, in order.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	configMu.Lock()
	if appIdentity == nil {
		appIdentity = appid.Get()
	}
	configMu.Unlock()

	v := viper.New()
	if err := ApplyDefaults(v); err != nil {
		return nil, err
	}

	file, err := mergeConfigFile(v)
	if err != nil {
		return nil, err
	}

	env, err := gfconfig.LoadEnvOverrides(getEnvSpecs())
	if err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	for key, val := range flatten("", env) {
		v.Set(key, val)
	}

	for _, o := range overrides {
		for key, val := range flatten("", o) {
			v.Set(key, val)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configMu.Lock()
	appConfig = &cfg
	configFile = file
	configMu.Unlock()

	return &cfg, nil
}

// GetConfig returns the configuration from the last successful Load, or nil.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// ConfigFileUsed returns the config file merged by the last Load, if any.
func ConfigFileUsed() string {
	configMu.RLock()
	defer configMu.RUnlock()
	return configFile
}

// ApplyDefaults registers the embedded defaults on v.
func ApplyDefaults(v *viper.Viper) error {
	var raw map[string]any
	if err := yaml.Unmarshal(configassets.Defaults, &raw); err != nil {
		return fmt.Errorf("parse embedded defaults: %w", err)
	}
	for key, val := range flatten("", raw) {
		v.SetDefault(key, val)
	}
	return nil
}

// DefaultKeys lists every configuration key in dotted form.
func DefaultKeys() []string {
	var raw map[string]any
	if err := yaml.Unmarshal(configassets.Defaults, &raw); err != nil {
		return nil
	}
	keys := make([]string, 0, 32)
	for k := range flatten("", raw) {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Dump renders cfg as YAML.
func Dump(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func mergeConfigFile(v *viper.Viper) (string, error) {
	configMu.RLock()
	id := appIdentity
	configMu.RUnlock()
	if id == nil {
		return "", nil
	}

	var candidates []string
	if root, err := findProjectRoot(); err == nil && root != "" {
		for _, ext := range []string{"yaml", "yml"} {
			candidates = append(candidates, filepath.Join(root, id.ConfigName+"."+ext))
		}
	}
	candidates = append(candidates, getUserConfigPaths()...)

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return "", fmt.Errorf("read config %s: %w", path, err)
		}
		return path, nil
	}
	return "", nil
}

// getEnvSpecs derives PREFIX_SECTION_KEY for every default key plus the
// short aliases. Aliases come last so they win when both are set.
func getEnvSpecs() []gfconfig.EnvVarSpec {
	configMu.RLock()
	id := appIdentity
	configMu.RUnlock()
	if id == nil {
		return []gfconfig.EnvVarSpec{}
	}

	types := defaultEnvTypes()
	prefix := id.EnvPrefix + "_"
	seen := make(map[string]bool)
	var specs []gfconfig.EnvVarSpec
	for _, key := range DefaultKeys() {
		name := prefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		specs = append(specs, gfconfig.EnvVarSpec{Name: name, Path: strings.Split(key, "."), Type: types[key]})
		seen[name] = true
	}

	aliases := make([]string, 0, len(envAliases))
	for a := range envAliases {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)
	for _, a := range aliases {
		name := prefix + a
		if seen[name] {
			continue
		}
		key := envAliases[a]
		specs = append(specs, gfconfig.EnvVarSpec{Name: name, Path: strings.Split(key, "."), Type: types[key]})
	}
	return specs
}

// defaultEnvTypes maps each key to the env parser matching its default.
// Durations stay strings; the decode hook parses them.
func defaultEnvTypes() map[string]gfconfig.EnvVarType {
	var raw map[string]any
	if err := yaml.Unmarshal(configassets.Defaults, &raw); err != nil {
		return nil
	}
	out := make(map[string]gfconfig.EnvVarType)
	for k, v := range flatten("", raw) {
		switch v.(type) {
		case int:
			out[k] = gfconfig.EnvInt
		case float64:
			out[k] = gfconfig.EnvFloat
		case bool:
			out[k] = gfconfig.EnvBool
		default:
			out[k] = gfconfig.EnvString
		}
	}
	return out
}

// getUserConfigPaths lists the per-user config file candidates in search
// order.
func getUserConfigPaths() []string {
	configMu.RLock()
	id := appIdentity
	configMu.RUnlock()
	if id == nil {
		return []string{}
	}
	return gfconfig.GetAppConfigPaths(id.ConfigName)
}

var projectMarkers = []string{"go.mod", ".git", "nimbusview.yaml"}

// findProjectRoot walks up from the working directory to the first directory
// holding a project marker. In CI an absolute workspace hint that contains
// the working directory bounds the walk.
func findProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	boundary := ciBoundary(cwd)
	dir := cwd
	for {
		for _, m := range projectMarkers {
			if _, err := os.Stat(filepath.Join(dir, m)); err == nil {
				return dir, nil
			}
		}
		if dir == boundary {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return cwd, nil
}

func ciBoundary(cwd string) string {
	if os.Getenv("CI") != "true" && os.Getenv("GITHUB_ACTIONS") != "true" {
		return ""
	}
	for _, name := range []string{"FULMEN_WORKSPACE_ROOT", "GITHUB_WORKSPACE", "CI_PROJECT_DIR", "WORKSPACE"} {
		hint := os.Getenv(name)
		if hint == "" || !filepath.IsAbs(hint) {
			continue
		}
		if st, err := os.Stat(hint); err != nil || !st.IsDir() {
			continue
		}
		rel, err := filepath.Rel(hint, cwd)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return filepath.Clean(hint)
	}
	return ""
}

// flatten turns nested maps into dotted keys.
func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range m {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := v.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = v
	}
	return out
}

// ErrNoSource indicates no container URI was configured or given.
var ErrNoSource = errors.New("no source URI configured (pass a URI or set source.uri)")
