// Package s3io reads, writes, and enumerates S3 objects addressed by
// s3://bucket/key paths.
package s3io

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

var ErrInvalidS3Path = errors.New("path is not a valid s3 location")

// uploader is an interface wrapper for s3manager.Uploader. This is only here
// for unit testing purposes.
type uploader interface {
	UploadWithContext(aws.Context, *s3manager.UploadInput, ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

// NewClient returns an S3 client configured from cfg and the environment.
func NewClient(cfg *aws.Config) s3iface.S3API {
	config := aws.NewConfig()
	config.MergeIn(cfg)
	sess := session.Must(session.NewSessionWithOptions(session.Options{
		Config:            *config,
		SharedConfigState: session.SharedConfigEnable,
	}))
	return s3.New(sess)
}

func IsS3Path(path string) bool {
	_, _, err := parsePath(path)
	return err == nil
}

func parsePath(path string) (bucket, key string, err error) {
	var u *url.URL
	u, err = url.Parse(path)
	if err != nil {
		return
	}
	if u.Scheme != "s3" {
		err = ErrInvalidS3Path
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	return
}

type Writer struct {
	ctx      context.Context
	writer   *io.PipeWriter
	uploader uploader
	bucket   string
	key      string
	once     sync.Once
	done     chan struct{}
	err      error
}

func NewWriter(ctx context.Context, path string, client s3iface.S3API, options ...func(*s3manager.Uploader)) (*Writer, error) {
	bucket, key, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	return &Writer{
		ctx:      ctx,
		bucket:   bucket,
		key:      key,
		uploader: s3manager.NewUploaderWithClient(client, options...),
		done:     make(chan struct{}),
	}, nil
}

func (w *Writer) init() {
	pr, pw := io.Pipe()
	w.writer = pw
	go func() {
		_, err := w.uploader.UploadWithContext(w.ctx, &s3manager.UploadInput{
			Bucket: aws.String(w.bucket),
			Key:    aws.String(w.key),
			Body:   pr,
		})
		w.err = err
		close(w.done)
		_ = pr.CloseWithError(err) // can ignore, return value will always be nil
	}()
}

func (w *Writer) Write(b []byte) (int, error) {
	w.once.Do(w.init)
	return w.writer.Write(b)
}

func (w *Writer) Close() error {
	// An empty object still needs an upload.
	w.once.Do(w.init)
	err := w.writer.Close()
	<-w.done
	if err != nil {
		return err
	}
	return w.err
}

type Info struct {
	Name  string
	Size  int64
	IsDir bool
}

func Stat(ctx context.Context, path string, client s3iface.S3API) (Info, error) {
	bucket, key, err := parsePath(path)
	if err != nil {
		return Info{}, err
	}
	out, err := client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Info{}, err
	}
	return Info{Name: key, Size: aws.Int64Value(out.ContentLength)}, nil
}

func Exists(ctx context.Context, path string, client s3iface.S3API) (bool, error) {
	_, err := Stat(ctx, path, client)
	if err != nil {
		var reqerr interface{ StatusCode() int }
		if errors.As(err, &reqerr) && reqerr.StatusCode() == 404 {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func Remove(ctx context.Context, path string, client s3iface.S3API) error {
	bucket, key, err := parsePath(path)
	if err != nil {
		return err
	}
	_, err = client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return err
}

// RemoveAll deletes every object whose key has path as a prefix.
func RemoveAll(ctx context.Context, path string, client s3iface.S3API) error {
	bucket, key, err := parsePath(path)
	if err != nil {
		return err
	}
	iter := s3manager.NewDeleteListIterator(client, &s3.ListObjectsInput{
		Bucket: aws.String(bucket),
		Prefix: aws.String(key),
	})
	return s3manager.NewBatchDeleteWithClient(client).Delete(ctx, iter)
}

// List returns the objects and common prefixes directly beneath the
// directory named by path.
func List(ctx context.Context, path string, client s3iface.S3API) ([]Info, error) {
	bucket, key, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	if key != "" && !strings.HasSuffix(key, "/") {
		key += "/"
	}
	var entries []Info
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Prefix:    aws.String(key),
		Delimiter: aws.String("/"),
	}
	err = client.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, p := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.StringValue(p.Prefix), key), "/")
			entries = append(entries, Info{Name: name, IsDir: true})
		}
		for _, obj := range page.Contents {
			entries = append(entries, Info{
				Name: strings.TrimPrefix(aws.StringValue(obj.Key), key),
				Size: aws.Int64Value(obj.Size),
			})
		}
		return true
	})
	return entries, err
}
