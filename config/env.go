package config

import (
	"os"
	"regexp"
)

// envVarPattern matches ${VAR} or ${VAR:default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// SubstituteEnvVars replaces ${VAR} or ${VAR:default} with environment
// variable values.
func SubstituteEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// SubstituteEnvVarsInConfig substitutes environment variables in cfg's
// string fields and in each fleet entry. customFormatters values are left
// as they are.
func SubstituteEnvVarsInConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Initiator = SubstituteEnvVars(cfg.Initiator)
	cfg.Blockchain.Key = SubstituteEnvVars(cfg.Blockchain.Key)
	cfg.StateManager = SubstituteEnvVars(cfg.StateManager)
	cfg.External.Host = SubstituteEnvVars(cfg.External.Host)
	cfg.External.Password = SubstituteEnvVars(cfg.External.Password)
	cfg.External.PubSubChannel = SubstituteEnvVars(cfg.External.PubSubChannel)
	cfg.Bus.URL = SubstituteEnvVars(cfg.Bus.URL)
	cfg.Bus.Username = SubstituteEnvVars(cfg.Bus.Username)
	cfg.Bus.Password = SubstituteEnvVars(cfg.Bus.Password)
	cfg.Bus.ClientID = SubstituteEnvVars(cfg.Bus.ClientID)
	cfg.Bus.Prefix = SubstituteEnvVars(cfg.Bus.Prefix)
	cfg.TopicRoot = SubstituteEnvVars(cfg.TopicRoot)
	for i, node := range cfg.Fleet {
		cfg.Fleet[i] = SubstituteEnvVars(node)
	}
}

// applyEnvironmentOverrides lets a short list of well-known environment
// variables win over both the file and the ${VAR} substitutions above,
// for the options most often flipped per-deployment without editing YAML.
func applyEnvironmentOverrides(cfg *Config) {
	if v := os.Getenv("EDGENET_INITIATOR"); v != "" {
		cfg.Initiator = v
	}
	if v := os.Getenv("EDGENET_BLOCKCHAIN_KEY"); v != "" {
		cfg.Blockchain.Key = v
	}
	if v := os.Getenv("EDGENET_BUS_URL"); v != "" {
		cfg.Bus.URL = v
	}
	if v := os.Getenv("EDGENET_STATE_MANAGER"); v != "" {
		cfg.StateManager = v
	}
	if v := os.Getenv("EDGENET_EXTERNAL_HOST"); v != "" {
		cfg.External.Host = v
	}
	if v := os.Getenv("EDGENET_EXTERNAL_PASSWORD"); v != "" {
		cfg.External.Password = v
	}
}
