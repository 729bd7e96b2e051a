package formdata

import (
	"mime"
	"strings"

	"github.com/ansmelkov/filedrop/applications/server/bytesplit"
)

var crlf = []byte("\r\n")

// partHeader is the parsed fixed header block of one part.
type partHeader struct {
	filename    string
	contentType string
}

// parsePartHeader reads the two non-blank header lines of a part block:
// a Content-Disposition line carrying the filename and a Content-Type line.
// block holds the header bytes without the trailing blank line.
func parsePartHeader(block []byte) (partHeader, error) {
	var h partHeader

	lines := bytesplit.New(block, crlf, 0)

	disp, ok := lines.Next()
	if !ok {
		return h, &MalformedHeaderError{Reason: "missing disposition line"}
	}
	filename, err := parseDisposition(string(disp))
	if err != nil {
		return h, err
	}

	ct, ok := lines.Next()
	if !ok {
		return h, &MalformedHeaderError{Line: string(block), Reason: "missing content-type line"}
	}
	contentType, err := parseContentType(string(ct))
	if err != nil {
		return h, err
	}

	if rest, ok := lines.Next(); ok && len(rest) > 0 {
		return h, &MalformedHeaderError{Line: string(rest), Reason: "unexpected extra header line"}
	}

	h.filename = filename
	h.contentType = contentType

	return h, nil
}

func parseDisposition(line string) (string, error) {
	value, ok := headerValue(line, "Content-Disposition")
	if !ok {
		return "", &MalformedHeaderError{Line: line, Reason: "not a content-disposition line"}
	}

	disp, params, err := mime.ParseMediaType(value)
	if err != nil {
		return "", &MalformedHeaderError{Line: line, Reason: "unparseable disposition: " + err.Error()}
	}
	if disp != "form-data" {
		return "", &MalformedHeaderError{Line: line, Reason: "disposition is not form-data"}
	}

	filename, ok := params["filename"]
	if !ok || filename == "" {
		return "", &MalformedHeaderError{Line: line, Reason: "missing filename parameter"}
	}

	return filename, nil
}

func parseContentType(line string) (string, error) {
	value, ok := headerValue(line, "Content-Type")
	if !ok {
		return "", &MalformedHeaderError{Line: line, Reason: "not a content-type line"}
	}

	mediatype, _, err := mime.ParseMediaType(value)
	if err != nil {
		return "", &MalformedHeaderError{Line: line, Reason: "unparseable content type: " + err.Error()}
	}
	if !strings.Contains(mediatype, "/") {
		return "", &MalformedHeaderError{Line: line, Reason: "content type is not type/subtype"}
	}

	return mediatype, nil
}

// headerValue strips a case-insensitive "Name:" prefix and returns the
// trimmed remainder.
func headerValue(line, name string) (string, bool) {
	if len(line) < len(name)+1 || !strings.EqualFold(line[:len(name)], name) || line[len(name)] != ':' {
		return "", false
	}
	return strings.TrimSpace(line[len(name)+1:]), true
}
