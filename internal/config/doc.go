// Package config loads the bot configuration: the HCL bot file (dispatcher
// tuning, interceptors, router and socket.io endpoints) with environment
// overrides applied on top.
//
// A configuration path may name a single file or a directory; every .hcl
// file found under a directory is loaded in lexical order and merged. Singular
// blocks from later files replace earlier ones, interceptor blocks accumulate.
package config
