// Package config loads runtime configuration for the taskkeeper CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Environment variables TASKKEEPER_* (see parseEnv).
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the API server
//	-t int      request timeout (seconds)
//	-d string   local database file
//	-s string   task scope (device|user)
//	-l string   log level
//
// # JSON schema
//
//	{
//	  "api_base_url": "http://localhost:8000",
//	  "request_timeout": "10s",
//	  "database_path": "taskkeeper.db",
//	  "device_secret": "",
//	  "task_scope": "device",
//	  "log_level": "info"
//	}
//
// # Environment
//
//	TASKKEEPER_API_URL, TASKKEEPER_REQUEST_TIMEOUT (e.g. "15s"),
//	TASKKEEPER_DB_PATH, TASKKEEPER_DEVICE_SECRET, TASKKEEPER_TASK_SCOPE,
//	TASKKEEPER_LOG_LEVEL
package config
