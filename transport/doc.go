// File: transport/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package transport implements the descriptor-owning endpoint shared by
// the TCP client and server: retry-until-complete send and receive over
// a non-blocking socket, with every suspension delegated to package
// poll. One algorithm serves both sides; client and server differ only
// in how they obtain connected descriptors.
package transport
