package domain

import "io"

// Part is one decoded file submission from a multipart body.
// Metadata is set when the part's boundary and header block are parsed
// and never changes afterwards.
type Part struct {
	Filename    string
	ContentType string
	// Path is the backing temp file the part body was streamed into.
	Path string
	Size int64
}

type FileMeta struct {
	Name          string
	ContentType   string
	ContentLength int64
}

type File struct {
	Meta FileMeta
	Body io.ReadCloser
}
