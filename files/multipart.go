package files

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

const refPrefix = "file_"

// FromRequest collects the request's upload batch. Every multipart file
// field named "file_<ref>" becomes one upload addressable by <ref>.
func FromRequest(r *http.Request) (UploadBatch, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	var batch UploadBatch
	for field, headers := range r.MultipartForm.File {
		if !strings.HasPrefix(field, refPrefix) {
			continue
		}
		ref := strings.TrimPrefix(field, refPrefix)
		for _, fh := range headers {
			up, err := fromHeader(ref, fh)
			if err != nil {
				return nil, err
			}
			batch = append(batch, up)
			break // one upload per ref
		}
	}
	return batch, nil
}

// SingleFromForm reads one named file field, nil when absent.
func SingleFromForm(r *http.Request, field string) (*Upload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, nil
	}
	up, err := fromHeader(field, headers[0])
	if err != nil {
		return nil, err
	}
	return &up, nil
}

func fromHeader(ref string, fh *multipart.FileHeader) (Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return Upload{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Upload{}, err
	}

	return Upload{
		Ref:      ref,
		Name:     fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Encoding: fh.Header.Get("Content-Transfer-Encoding"),
		Data:     data,
	}, nil
}
