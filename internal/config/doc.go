// Package config handles configuration loading for cin-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	webhook:
//	  secret: "${CIN_WEBHOOK_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	harvester:
//	  cycle_interval: "10m"
//	  busy_wait: "30s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Database:
//
//	database:
//	  path: "/var/lib/cin/gateway.db"
//
// Webhook authentication:
//
//	webhook:
//	  secret: "${CIN_WEBHOOK_SECRET}"   # required
//
// Content generation:
//
//	generator:
//	  base_url: "http://localhost:11434/v1"
//	  api_key: "${CIN_API_KEY}"
//	  model: "qwen3:14b"
//	  timeout: "5m"
//
// Verification (off by default):
//
//	verifier:
//	  enabled: false
//
// Stale post cleanup:
//
//	cleanup:
//	  interval: "1h"
//	  max_age: "1h"
//
// Harvester:
//
//	harvester:
//	  enabled: false
//	  endpoint: "http://localhost:8080/webhook/update"
//	  cycle_interval: "10m"
//	  max_item_age: "24h"
//	  busy_wait: "30s"
//	  busy_max_tries: 10
//	  submit_interval: "1s"
//	  feeds:
//	    - url: "https://example.com/tech.xml"
//	      domain: "Technology"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
