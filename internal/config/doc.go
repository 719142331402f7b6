// Package config loads the searchparams service configuration.
//
// The configuration lives in searchparams.json (comments and trailing
// commas allowed) or searchparams.yaml at the project root. Environment
// variables, optionally from a .env file, override the file.
//
// # Configuration File Structure
//
//	{
//	  // server, router or browser
//	  "provider": "router",
//	  "server": {
//	    "host": "localhost",
//	    "port": 8080,
//	    "readTimeout": "15s",
//	    "writeTimeout": "15s",
//	    "urlHeader": "X-URL"
//	  },
//	  "router": {"mode": "push"},
//	  "log": {"level": "info", "format": "text"},
//	  "metrics": {"enabled": true, "namespace": "searchparams", "path": "/metrics"},
//	  "tracing": {"enabled": false, "tracerName": "searchparams"},
//	}
//
// # Environment
//
//	SEARCHPARAMS_PROVIDER   overrides provider
//	SEARCHPARAMS_ADDR       overrides server host and port (host:port)
//	SEARCHPARAMS_LOG_LEVEL  overrides log.level
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.ApplyEnv(); err != nil {
//	    log.Fatal(err)
//	}
package config
