package httpx

import (
	"io"
	"mime/multipart"
)

// Upload exposes a multipart file part as a form.FileHandle.
type Upload struct {
	*multipart.FileHeader
}

func (u Upload) Name() string {
	return u.Filename
}

func (u Upload) ContentType() string {
	return u.Header.Get("Content-Type")
}

func (u Upload) Open() (io.ReadCloser, error) {
	return u.FileHeader.Open()
}
