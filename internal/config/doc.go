// Package config defines the format-agnostic configuration model of the
// service: server, logging and history settings, an optional snapshot
// location, and a seed graph to load at startup.
//
// The Loader interface is implemented per format. The HCL implementation
// lives in internal/hclconfig.
package config
