// Package config loads runtime settings for stepgraph programs from YAML
// or HCL files and turns them into engine limits, a checkpoint store and a
// logger.
//
// A YAML file:
//
//	execution:
//	  max_steps: 20
//	checkpoint:
//	  backend: redis
//	  addr: localhost:6379
//	  ttl: 24h
//	log:
//	  level: debug
//
// The same settings in HCL:
//
//	execution {
//	  max_steps = 20
//	}
//	checkpoint {
//	  backend = "redis"
//	  addr    = "localhost:6379"
//	  ttl     = "24h"
//	}
//	log {
//	  level = "debug"
//	}
package config
