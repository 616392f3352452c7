package storage

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/brimdata/zframe/pkg/s3io"
	"github.com/brimdata/zframe/zqe"
)

type S3Engine struct {
	client s3iface.S3API
}

var _ Engine = (*S3Engine)(nil)
var _ Stater = (*S3Engine)(nil)
var _ Sizer = (*s3io.Reader)(nil)

func NewS3() *S3Engine {
	return NewS3WithClient(s3io.NewClient(nil))
}

func NewS3WithClient(client s3iface.S3API) *S3Engine {
	return &S3Engine{client: client}
}

func (s *S3Engine) Get(ctx context.Context, u *URI) (Reader, error) {
	r, err := s3io.NewReader(ctx, u.String(), s.client)
	if err != nil {
		return nil, wrapErr(u, err)
	}
	return r, nil
}

func (s *S3Engine) Put(ctx context.Context, u *URI) (io.WriteCloser, error) {
	w, err := s3io.NewWriter(ctx, u.String(), s.client)
	if err != nil {
		return nil, wrapErr(u, err)
	}
	return w, nil
}

// PutIfNotExists checks for u and then writes it.  It is not atomic.
func (s *S3Engine) PutIfNotExists(ctx context.Context, u *URI, b []byte) error {
	ok, err := s.Exists(ctx, u)
	if err != nil {
		return err
	}
	if ok {
		return zqe.E(zqe.Exists, u.String())
	}
	w, err := s3io.NewWriter(ctx, u.String(), s.client)
	if err != nil {
		return wrapErr(u, err)
	}
	_, err = w.Write(b)
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	return wrapErr(u, err)
}

func (s *S3Engine) Delete(ctx context.Context, u *URI) error {
	return wrapErr(u, s3io.Remove(ctx, u.String(), s.client))
}

func (s *S3Engine) DeleteByPrefix(ctx context.Context, u *URI) error {
	return wrapErr(u, s3io.RemoveAll(ctx, u.String(), s.client))
}

func (s *S3Engine) Size(ctx context.Context, u *URI) (int64, error) {
	info, err := s3io.Stat(ctx, u.String(), s.client)
	if err != nil {
		return 0, wrapErr(u, err)
	}
	return info.Size, nil
}

func (s *S3Engine) Exists(ctx context.Context, u *URI) (bool, error) {
	ok, err := s3io.Exists(ctx, u.String(), s.client)
	return ok, wrapErr(u, err)
}

func (s *S3Engine) List(ctx context.Context, uri *URI) ([]Info, error) {
	entries, err := s3io.List(ctx, uri.String(), s.client)
	if err != nil {
		return nil, wrapErr(uri, err)
	}
	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, Info{
			Name:  e.Name,
			Size:  e.Size,
			IsDir: e.IsDir,
		})
	}
	return infos, nil
}

// Stat describes u.  S3 has no directories, so a key that is a prefix of
// other keys is reported as one.
func (s *S3Engine) Stat(ctx context.Context, u *URI) (Info, error) {
	info, err := s3io.Stat(ctx, u.String(), s.client)
	if err == nil {
		return Info{Name: u.Base(), Size: info.Size}, nil
	}
	if err := wrapErr(u, err); !zqe.IsNotFound(err) {
		return Info{}, err
	}
	entries, err := s3io.List(ctx, u.String(), s.client)
	if err != nil {
		return Info{}, wrapErr(u, err)
	}
	if len(entries) == 0 {
		return Info{}, zqe.E(zqe.NotFound, u.String())
	}
	return Info{Name: u.Base(), IsDir: true}, nil
}

func wrapErr(u *URI, err error) error {
	var reqerr awserr.RequestFailure
	if errors.As(err, &reqerr) && reqerr.StatusCode() == http.StatusNotFound {
		return zqe.E(zqe.NotFound, u.String())
	}
	return err
}
