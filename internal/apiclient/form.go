package apiclient

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

// Form is a binary multipart body. Passed as Options.Body it keeps its own
// boundary content type instead of the JSON default.
type Form struct {
	buf    bytes.Buffer
	w      *multipart.Writer
	closed bool
}

func NewForm() *Form {
	f := &Form{}
	f.w = multipart.NewWriter(&f.buf)
	return f
}

func (f *Form) AddField(name, value string) error {
	if f.closed {
		return fmt.Errorf("form already sent")
	}
	return f.w.WriteField(name, value)
}

// AddFile streams r into a file part. The part content type is sniffed from
// the leading bytes.
func (f *Form) AddFile(field, filename string, r io.Reader) error {
	if f.closed {
		return fmt.Errorf("form already sent")
	}
	br := bufio.NewReaderSize(r, 512)
	head, _ := br.Peek(512)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", http.DetectContentType(head))

	part, err := f.w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, br)
	return err
}

// Close writes the trailing boundary. Safe to call more than once.
func (f *Form) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	return f.w.Close()
}

func (f *Form) ContentType() string { return f.w.FormDataContentType() }

func (f *Form) Len() int { return f.buf.Len() }

func (f *Form) Read(p []byte) (int, error) { return f.buf.Read(p) }
