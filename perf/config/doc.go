// Package config loads and validates kvlunge run configurations.
//
// A run is described in YAML or JSON:
//
//	name: "cache mix"
//	workers: 4
//	duration: 30s
//	targets:
//	  - { name: local, type: memory }
//	  - { name: remote, type: redis, address: "localhost:6379", prefix: "lt:" }
//	sequence: { mode: gaussian, lower: 0, upper: 100000, mean: 50000, stddev: 10000 }
//	values: { type: verified, length: 256 }
//	operations:
//	  - { kind: put, weight: 0.1 }
//	  - { kind: get, weight: 0.9 }
//	thresholds:
//	  HIT: ["p95 < 5ms"]
//
// LoadConfig checks the document against the JSON schema returned by
// Schema before decoding it.
package config
