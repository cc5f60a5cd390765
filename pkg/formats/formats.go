// Package formats provides readers and writers for the compiled model
// format (MDL plus its MDX vertex stream), its ascii text form, and
// the binary/ascii walkmesh format (BWM).
package formats

// Note: the binary MDL codec lives in mdl.go / mdl_read.go / mdl_write.go
// Note: the MDX vertex-stream row layout lives in mdx.go
// Note: the ascii model codec lives in ascii.go / ascii_write.go
// Note: the walkmesh codec lives in bwm.go / bwm_read.go / bwm_write.go
