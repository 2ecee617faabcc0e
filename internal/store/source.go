package store

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Source is somewhere a serialized catalog can be read from.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

// FileSource reads a catalog from the local filesystem.
type FileSource struct {
	Path string
}

func (s FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(s.Path)
}

func (s FileSource) String() string { return s.Path }

// S3Client is the subset of the S3 API used to fetch catalogs.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads a catalog object from S3 or an S3-compatible store.
type S3Source struct {
	Client S3Client
	Bucket string
	Key    string
}

func (s S3Source) Open(ctx context.Context) (io.ReadCloser, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

func (s S3Source) String() string { return "s3://" + s.Bucket + "/" + s.Key }

// S3Options configures the client built for s3:// catalog locations.
type S3Options struct {
	Region   string
	Endpoint string
}

// NewS3Client builds an S3 client from the default AWS credential chain.
// A non-empty endpoint switches to path-style addressing for MinIO and friends.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// ParseSource turns a catalog location into a Source. Locations of the form
// s3://bucket/key are served by an S3 client built from opts; anything else
// is treated as a file path.
func ParseSource(ctx context.Context, location string, opts S3Options) (Source, error) {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		if location == "" {
			return nil, fmt.Errorf("catalog location is empty")
		}
		return FileSource{Path: location}, nil
	}

	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return nil, fmt.Errorf("invalid s3 location %q: want s3://bucket/key", location)
	}
	client, err := NewS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}
	return S3Source{Client: client, Bucket: bucket, Key: key}, nil
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// decompress sniffs the first bytes of r and unwraps gzip or zstd streams.
func decompress(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(zstdMagic))
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, err
	}

	switch {
	case bytes.HasPrefix(head, zstdMagic):
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case bytes.HasPrefix(head, gzipMagic):
		return gzip.NewReader(br)
	default:
		return io.NopCloser(br), nil
	}
}
