package httpcore

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"os"
)

// multipartState accumulates the raw wire bytes of a multipart/form-data
// body as the Wire Codec streams them in, then parses the whole body on
// finish with the standard library's multipart reader. Text parts become
// in-memory arguments; file parts are written to temp files, matching
// spec.md §4.3's File Request contract. Nested multipart/mixed parts are
// recursed into.
type multipartState struct {
	boundary string
	buf      bytes.Buffer
	parts    []MultipartValue
}

func newMultipartState(boundary string) *multipartState {
	return &multipartState{boundary: boundary}
}

func (m *multipartState) write(chunk []byte) error {
	_, err := m.buf.Write(chunk)
	return err
}

func (m *multipartState) finish() error {
	parts, err := parseMultipart(bytes.NewReader(m.buf.Bytes()), m.boundary)
	if err != nil {
		return err
	}
	m.parts = parts
	return nil
}

func parseMultipart(r io.Reader, boundary string) ([]MultipartValue, error) {
	mr := multipart.NewReader(r, boundary)
	var out []MultipartValue
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		ct := part.Header.Get("Content-Type")
		if mt, params, perr := mime.ParseMediaType(ct); perr == nil && mt == "multipart/mixed" {
			nested, err := parseMultipart(part, params["boundary"])
			part.Close()
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
			continue
		}
		name := part.FormName()
		filename := part.FileName()
		if filename == "" {
			data, err := io.ReadAll(part)
			part.Close()
			if err != nil {
				return nil, err
			}
			out = append(out, MultipartValue{Name: name, ContentType: ct, Value: data})
			continue
		}
		f, err := os.CreateTemp("", "httpd-part-*")
		if err != nil {
			part.Close()
			return nil, err
		}
		_, copyErr := io.Copy(f, part)
		closeErr := f.Close()
		part.Close()
		if copyErr != nil {
			os.Remove(f.Name())
			return nil, copyErr
		}
		if closeErr != nil {
			os.Remove(f.Name())
			return nil, closeErr
		}
		out = append(out, MultipartValue{Name: name, Filename: filename, ContentType: ct, TempPath: f.Name()})
	}
	return out, nil
}
