// Package config loads Warden configuration.
//
// Configuration is read from a YAML file decoded on top of Default, filled
// with defaults, overridden from the environment and validated:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("warden.yaml")
//
// # Environment Variable Overrides
//
// Variables are named WARDEN_SECTION_FIELD, for example:
//
//   - WARDEN_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - WARDEN_EVIDENCE_POSTGRES_URL overrides evidence.postgres.url
//   - WARDEN_POLICY_TENANT_RULES overrides policy.tenant_rules
//
// Values that fail to parse are ignored.
//
// # Validation
//
// Validate reports every problem at once as a ValidationError holding one
// FieldError per field, so operators fix a config file in a single pass.
//
// # Process Configuration
//
//	if err := config.Initialize(path); err != nil {
//	    return err
//	}
//	cfg := config.GetConfig()
//
// Prefer passing *Config explicitly; the process copy exists for the CLI.
package config
