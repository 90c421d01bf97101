// Package hclconfig implements config.Loader for HCL files.
//
// Any number of files may be given, directly or through directories. Every
// top-level block is optional and later files override the scalar settings
// of earlier ones, while node and relationship blocks accumulate:
//
//	server { listen = ":8080" }
//	log { level = "debug" format = "json" }
//	history { max_commands = 200 }
//	snapshot { path = "./data" }
//
//	node "gov" {
//	  type       = "institution"
//	  label      = "Government"
//	  properties = { budget = 1.5 }
//	}
//
//	relationship "gov" "tax" {
//	  kind   = "enacts"
//	  weight = 0.8
//	}
//
// Expressions may read the process environment through the env variable,
// for example listen = env.GRAPHMUT_LISTEN.
package hclconfig
