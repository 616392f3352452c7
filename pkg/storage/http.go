package storage

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/brimdata/zframe/zqe"
)

// HTTPEngine is a read-only engine for objects served over http and https.
type HTTPEngine struct {
	client *http.Client
}

var _ Engine = (*HTTPEngine)(nil)

func NewHTTP() *HTTPEngine {
	return &HTTPEngine{client: http.DefaultClient}
}

func (h *HTTPEngine) Get(ctx context.Context, u *URI) (Reader, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, zqe.ErrNotFound("%s", u)
		}
		return nil, errors.New(resp.Status)
	}
	return &httpReader{ReadCloser: resp.Body, size: resp.ContentLength}, nil
}

// httpReader streams a response body.  Random access is not supported.
type httpReader struct {
	io.ReadCloser
	size int64
}

func (*httpReader) ReadAt([]byte, int64) (int, error) { return 0, ErrNotSupported }

func (h *httpReader) Size() (int64, error) {
	if h.size < 0 {
		return 0, ErrNotSupported
	}
	return h.size, nil
}

func (*HTTPEngine) Put(_ context.Context, u *URI) (io.WriteCloser, error) {
	return nil, ErrNotSupported
}

func (*HTTPEngine) PutIfNotExists(context.Context, *URI, []byte) error {
	return ErrNotSupported
}

func (*HTTPEngine) Delete(_ context.Context, u *URI) error {
	return ErrNotSupported
}

func (*HTTPEngine) DeleteByPrefix(_ context.Context, u *URI) error {
	return ErrNotSupported
}

func (*HTTPEngine) Size(_ context.Context, u *URI) (int64, error) {
	return 0, ErrNotSupported
}

func (*HTTPEngine) Exists(_ context.Context, u *URI) (bool, error) {
	return false, ErrNotSupported
}

func (*HTTPEngine) List(ctx context.Context, u *URI) ([]Info, error) {
	return nil, ErrNotSupported
}
