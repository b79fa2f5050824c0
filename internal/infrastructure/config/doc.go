// Package config handles loading, validating and saving the WebUI wrapper configuration.
//
// This package manages:
//   - Loading configuration from YAML files (a missing file means defaults)
//   - Overriding with environment variables (WEBUI_*)
//   - Validation of required fields
//   - Atomic write-back of settings changed at runtime (window geometry etc.)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer config.Save("configs/config.yaml", cfg)
package config
