// Package plyio registers the PLY format with the mesh package. Reading and writing go
// through the C plyfile library, so the format is only compiled in with the plyfile build
// tag, with libplyfile on the linker path:
//
//	cc -c -o plyfile.o lib/plyfile.c && ar rcs libplyfile.a plyfile.o
//	CGO_LDFLAGS=-L<dir of libplyfile.a> go build -tags plyfile .
//
// Without the tag, .ply paths are reported as an unsupported format.
package plyio
