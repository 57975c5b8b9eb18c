// loader.go implements the configuration loading lifecycle for the surf
// alert runner: UTC enforcement, .env loading, SSM secret resolution for
// deployed environments, envconfig processing, and validation.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"swellwatch/internal/types"
)

// SecretProvider is the seam between the loader and wherever secrets
// actually live. Deployed environments use the SSMProvider; local
// development passes nil and supplies secrets directly in the environment.
type SecretProvider interface {
	// ResolveSecrets maps parameter paths to decrypted plaintext values.
	ResolveSecrets(ctx context.Context, paths []string) (map[string]string, error)
}

// localEnv is the APP_ENV value that bypasses SSM resolution entirely.
const localEnv = "local"

// ssmPointerSuffix marks the environment variable holding a secret's SSM
// parameter path. DATABASE_URL_SSM_PARAM carries the path whose decrypted
// value becomes DATABASE_URL.
const ssmPointerSuffix = "_SSM_PARAM"

// secretEnvVars is the closed set of secrets the runner accepts through SSM.
// Each may be supplied directly, or indirectly through its _SSM_PARAM
// pointer variable. A pointer for any variable outside this list is ignored.
var secretEnvVars = []string{
	"DATABASE_URL",
	"CONDITIONS_API_KEY",
	"PUSH_GATEWAY_API_KEY",
	"OPENAI_API_KEY",
}

// loaderDeps holds the OS seams, injectable so tests can exercise the
// loader without mutating the real process environment.
type loaderDeps struct {
	lookupEnv func(key string) (string, bool)
	setEnv    func(key, value string) error
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
	}
}

// LoadConfig loads and validates the runner configuration.
//
// Order of operations: force UTC, load .env if present, resolve the known
// secret bindings through the provider (skipped when APP_ENV=local),
// process envconfig tags, attach build metadata, validate.
//
// The provider may be nil for local development. In any other environment a
// nil provider fails resolution as soon as a secret binding needs it.
func LoadConfig(provider SecretProvider) (*Config, error) {
	return loadConfigWithDeps(provider, defaultDeps())
}

func loadConfigWithDeps(provider SecretProvider, deps loaderDeps) (*Config, error) {
	// All trigger windows and cooldown math assume UTC.
	time.Local = time.UTC

	// Non-fatal if absent; never overrides variables already set.
	_ = godotenv.Load()

	appEnv, _ := deps.lookupEnv("APP_ENV")
	if appEnv != localEnv {
		if err := resolveSecretBindings(provider, deps); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigParse,
			"failed to process environment configuration", err)
	}

	cfg.Build = NewBuildInfo()

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigInvalid,
			"configuration validation failed", err)
	}

	return &cfg, nil
}

// resolveSecretBindings resolves the runner's known secrets from SSM. For
// each variable in secretEnvVars whose _SSM_PARAM pointer is set and whose
// target is not, the referenced parameter is fetched (one batch call) and
// injected under the target name so envconfig can pick it up.
//
// A target variable that is already set wins over its pointer; the priority
// chain is OS environment > .env > SSM. Any unresolvable binding is fatal:
// the runner must not start with a partial secret set.
func resolveSecretBindings(provider SecretProvider, deps loaderDeps) error {
	pathToTarget := make(map[string]string)
	var paths []string
	var targets []string

	for _, envVar := range secretEnvVars {
		if _, exists := deps.lookupEnv(envVar); exists {
			continue
		}
		path, ok := deps.lookupEnv(envVar + ssmPointerSuffix)
		if !ok || path == "" {
			continue
		}
		pathToTarget[path] = envVar
		paths = append(paths, path)
		targets = append(targets, envVar)
	}

	if len(paths) == 0 {
		return nil
	}

	if provider == nil {
		return types.NewAppErrorWithDetails(types.ErrCodeConfigSecretResolution,
			"a secret provider is required outside local environments", nil,
			map[string]any{"unresolved": strings.Join(targets, ", ")})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resolved, err := provider.ResolveSecrets(ctx, paths)
	if err != nil {
		return types.NewAppError(types.ErrCodeConfigSecretResolution,
			fmt.Sprintf("failed to resolve %d secrets", len(paths)), err)
	}

	var missing []string
	for _, path := range paths {
		value, ok := resolved[path]
		if !ok {
			missing = append(missing, pathToTarget[path])
			continue
		}
		if err := deps.setEnv(pathToTarget[path], value); err != nil {
			return types.NewAppError(types.ErrCodeConfigSecretResolution,
				fmt.Sprintf("failed to set resolved value for %s", pathToTarget[path]), err)
		}
	}
	if len(missing) > 0 {
		return types.NewAppErrorWithDetails(types.ErrCodeConfigSecretResolution,
			"secrets missing from the provider", nil,
			map[string]any{"unresolved": strings.Join(missing, ", ")})
	}

	return nil
}
