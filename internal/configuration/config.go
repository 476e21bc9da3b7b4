package configuration

import (
	"fmt"
	"os"
	"strings"

	"api/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

// Read assembles the runtime configuration in four layers, each overriding
// the previous one: baked-in defaults, the YAML file, environment variables,
// then defaults that depend on choices the other layers made.
func Read() models.Configuration {
	k := koanf.New(".")

	loadDefaults(k)
	loadConfigFile(k)
	loadEnvironment(k)
	loadConditionalDefaults(k)

	var config models.Configuration
	if err := k.UnmarshalWithConf("", &config, koanf.UnmarshalConf{Tag: "mapstructure"}); err != nil {
		zap.L().Fatal("Unable to decode config into struct", zap.Error(err))
	}

	if err := validator.New().Struct(config); err != nil {
		zap.L().Fatal("Invalid configuration", zap.Error(err))
	}

	return config
}

func loadDefaults(k *koanf.Koanf) {
	defaults := map[string]interface{}{
		"app.profile":                "default",
		"app.pending_session_expiry": 10,
		"app.session_expiry":         24,
		"app.reset_token_expiry":     5,
		"app.log_level":              "info",
		"app.port":                   8080,
		"app.attempt_retention_days": 90,

		"database.type": "postgres",
		"database.port": int32(5432),

		"notifier.smtp.enable_tls":      false,
		"notifier.smtp.skip_verify_tls": false,
	}

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		zap.L().Fatal("Failed to load default configuration", zap.Error(err))
	}
}

func loadConfigFile(k *koanf.Koanf) {
	path := os.Getenv("CONFIG_FILE_PATH")
	if path == "" {
		for _, candidate := range ConfigFileSearchPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path == "" {
		zap.L().Warn("No configuration file found")
		return
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		zap.L().Fatal("Fatal error loading config file", zap.String("path", path), zap.Error(err))
	}
	zap.L().Info("Read configuration from file " + path)
}

// Environment keys use double underscores as separators, so APP__PORT maps
// to app.port.
func loadEnvironment(k *koanf.Koanf) {
	err := k.Load(env.Provider("", ".", func(name string) string {
		return strings.ReplaceAll(strings.ToLower(name), "__", ".")
	}), nil)
	if err != nil {
		zap.L().Warn("Error loading environment variables", zap.Error(err))
	}

	normalizeArrayFields(k)
	expandAuthProviders(k)
}

// Koanf reads every environment value as a string, so list-valued fields
// arrive as "[a,b]" or space separated and need splitting before unmarshal.
func normalizeArrayFields(k *koanf.Koanf) {
	for _, field := range ArrayConfigFields {
		raw := k.String(field)
		if raw == "" {
			continue
		}
		if err := k.Set(field, splitList(raw)); err != nil {
			zap.L().Error("Error parsing array field", zap.String("field", field), zap.Error(err))
		}
	}
}

func splitList(raw string) []string {
	raw = strings.Trim(raw, "[]")
	var items []string
	if strings.Contains(raw, ",") {
		items = strings.Split(raw, ",")
	} else {
		items = strings.Fields(raw)
	}
	for i := range items {
		items[i] = strings.TrimSpace(items[i])
	}
	return items
}

// Auth providers arrive as a flat list of names plus per-provider variables
// of the form AUTH__PROVIDERS__<NAME>__<TYPE>__<ATTR>, a nesting koanf
// cannot discover on its own.
func expandAuthProviders(k *koanf.Koanf) {
	names := k.String("auth.providers.keys")
	if names == "" {
		return
	}

	for _, provider := range strings.Split(names, ",") {
		name := strings.ToUpper(provider)
		providerType := strings.ToUpper(os.Getenv(fmt.Sprintf("AUTH__PROVIDERS__%s__TYPE", name)))

		for _, attr := range AuthProviderKeys {
			value := os.Getenv(fmt.Sprintf("AUTH__PROVIDERS__%s__%s__%s", name, providerType, strings.ToUpper(attr)))
			if value == "" {
				continue
			}
			target := fmt.Sprintf("auth.providers.%s.%s.%s", provider, providerType, attr)
			if err := k.Set(target, value); err != nil {
				zap.L().Error("Failed to set provider attribute", zap.String("key", target), zap.Error(err))
			}
		}
	}

	// The keys list would collide with the providers map during unmarshal.
	k.Delete("auth.providers.keys")
}

func setIfMissing(k *koanf.Koanf, key string, value interface{}) {
	if !k.Exists(key) {
		_ = k.Set(key, value)
	}
}

func loadConditionalDefaults(k *koanf.Koanf) {
	if k.String("database.type") == "sqlite" {
		setIfMissing(k, "database.path", "loanpilot.db")
	}
	if k.String("events.type") == "gcp" {
		setIfMissing(k, "events.gcp.subscription_suffix", "-sub")
	}
}
