package config

import (
	"fmt"

	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envMappings binds environment variables to koanf config paths.
var envMappings = map[string]string{
	"LLM_SERVER_URL":              "llm.url",
	"LLM_SERVER_PORT":             "llm.port",
	"LLM_API_ENDPOINT_COMPLETION": "llm.completion_path",
	"LLM_API_ENDPOINT_HEALTH":     "llm.health_path",
	"LLM_RETRY_MODE":              "llm.retry.mode",
	"RAG_PROJECT_PATH":            "retrieval.project_path",
	"RAG_COMMAND":                 "retrieval.command",
	"RAG_TIMEOUT_SECS":            "retrieval.timeout_secs",
	"PORT":                        "server.port",
	"CORS_ORIGIN":                 "server.cors_origin",
	"LOG_LEVEL":                   "log.level",
	"LOG_JSON":                    "log.json",
}

// applyEnv overlays mapped environment variables on top of cfg. The
// retrieval API key is read from the variable named by retrieval.api_key_env.
func applyEnv(cfg *AppConfig) (*AppConfig, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}
	keyEnv := cfg.Retrieval.APIKeyEnv
	if keyEnv == "" {
		keyEnv = Default().Retrieval.APIKeyEnv
	}
	err := k.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			// Empty variables leave the file or default value in place.
			if value == "" {
				return "", nil
			}
			if key == keyEnv {
				return "retrieval.api_key", value
			}
			if path, ok := envMappings[key]; ok {
				return path, value
			}
			return "", nil
		},
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	var out AppConfig
	if err := k.UnmarshalWithConf("", &out, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &out, nil
}
