// Package mainboilerplate contains shared boilerplate for qtrix programs:
// parsing of flags, environment, and INI configuration; logging setup;
// dialing Etcd and opening a store; and serving diagnostics.
package mainboilerplate

// Version and BuildDate are populated at build time, using -ldflags "-X ...".
var (
	Version   = "development"
	BuildDate = "unknown"
)
