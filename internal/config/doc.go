// Package config handles configuration loading for the inventory tools.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. Anything a file leaves out keeps its default.
//
// # Configuration File
//
// Default location (in order):
//
//  1. Path from INVENTORY_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/inventory/config.yaml (~/.config when unset)
//
// When no file exists the defaults are used as is. Files ending in .toml are
// decoded as TOML, anything else as YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	database:
//	  path: "${INVENTORY_DB}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string. The CLIs
// load a .env file from the working directory first.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	database:
//	  busy_timeout: "5s"
//	remote:
//	  dial_timeout: "10s"
//
// # Configuration Sections
//
// Storage backend (sqlite, memory or remote):
//
//	storage:
//	  backend: "sqlite"
//
// SQLite database (driver sqlite is pure Go, sqlite3 needs cgo):
//
//	database:
//	  driver: "sqlite"
//	  path: "/var/lib/inventory/inventory.db"
//	  busy_timeout: "5s"
//
// Remote inventory-server, used by the remote backend:
//
//	remote:
//	  addr: "localhost:50051"
//	  dial_timeout: "10s"
//
// Server listen address for inventory-server:
//
//	server:
//	  grpc_addr: "localhost:50051"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// The same file in TOML:
//
//	[storage]
//	backend = "remote"
//
//	[remote]
//	addr = "inventory.internal:50051"
package config
