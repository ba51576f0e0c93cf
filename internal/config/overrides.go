package config

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// TEXTCLASS_THRESHOLDS_FALLBACK or TEXTCLASS_MODEL_DIR.
const EnvPrefix = "TEXTCLASS"

// NewViper returns a viper instance that reads TEXTCLASS_* variables for
// dotted config keys.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ApplyOverrides copies every key set in v (flag or environment) over the
// file values.
func (c *Config) ApplyOverrides(v *viper.Viper) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	num := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}

	str("model.dir", &c.Model.Dir)
	str("model.model_file", &c.Model.ModelFile)
	str("model.vocab_file", &c.Model.VocabFile)
	str("model.label_file", &c.Model.LabelFile)
	str("model.shared_library", &c.Model.SharedLibrary)
	num("model.max_length", &c.Model.MaxLength)
	num("model.session_pool", &c.Model.SessionPool)
	num("model.intra_op_threads", &c.Model.IntraOpThreads)
	num("model.batch_workers", &c.Model.BatchWorkers)
	if v.IsSet("model.verify_labels") {
		c.Model.VerifyLabels = v.GetBool("model.verify_labels")
	}

	if v.IsSet("thresholds.fallback") {
		c.Thresholds.Fallback = v.GetFloat64("thresholds.fallback")
	}

	str("fallback.endpoint", &c.Fallback.Endpoint)
	str("fallback.token_url", &c.Fallback.TokenURL)
	str("fallback.client_id", &c.Fallback.ClientID)
	str("fallback.client_secret", &c.Fallback.ClientSecret)
	if v.IsSet("fallback.scopes") {
		c.Fallback.Scopes = v.GetStringSlice("fallback.scopes")
	}
	if v.IsSet("fallback.timeout") {
		c.Fallback.Timeout = v.GetDuration("fallback.timeout")
	}

	str("server.host", &c.Server.Host)
	num("server.port", &c.Server.Port)
	str("server.mode", &c.Server.Mode)
	num("server.rate_limit", &c.Server.RateLimit)

	str("log.level", &c.Log.Level)
	str("log.format", &c.Log.Format)

	str("db_path", &c.DBPath)
	str("trace_path", &c.TracePath)
	if v.IsSet("log_decisions") {
		c.LogDecisions = v.GetBool("log_decisions")
	}
	if v.IsSet("color_output") {
		c.ColorOutput = v.GetBool("color_output")
	}
}
