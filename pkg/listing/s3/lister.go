package s3

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/demolauncher/pkg/listing"
	"github.com/3leaps/demolauncher/pkg/urlpath"
)

// ListObjectsV2API is the subset of the S3 client used by Lister.
type ListObjectsV2API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Lister implements listing.Lister for S3 buckets.
type Lister struct {
	client  ListObjectsV2API
	root    bucketRoot
	maxKeys int
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ listing.Lister = (*Lister)(nil)

// New creates an S3 bucket lister. Requests are anonymous and are never
// retried.
func New(ctx context.Context, cfg Config) (*Lister, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	root, _ := parseBucketRoot(cfg.BucketRoot)

	awsCfg, err := loadAWSConfig(ctx, cfg, root)
	if err != nil {
		return nil, &listing.Error{Op: "new", Protocol: listing.ProtocolS3, URL: root.url, Err: err}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String(root.endpoint)
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}
	})

	return newLister(client, cfg, root), nil
}

// NewWithClient creates a lister over an existing ListObjectsV2 client.
func NewWithClient(client ListObjectsV2API, cfg Config) (*Lister, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	root, _ := parseBucketRoot(cfg.BucketRoot)
	return newLister(client, cfg, root), nil
}

func newLister(client ListObjectsV2API, cfg Config, root bucketRoot) *Lister {
	l := &Lister{
		client:  client,
		root:    root,
		maxKeys: clampMaxKeys(cfg.PageSize),
		logger:  cfg.Logger,
	}
	if cfg.RequestsPerSecond > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	return l
}

func loadAWSConfig(ctx context.Context, cfg Config, root bucketRoot) (aws.Config, error) {
	// AWS_CA_BUNDLE can only be applied to the loader's own client, so a
	// custom HTTPClient goes on the S3 options in New.
	return config.LoadDefaultConfig(ctx,
		config.WithRegion(resolveRegion(cfg.Region, root.region)),
		config.WithCredentialsProvider(aws.AnonymousCredentials{}),
		config.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	)
}

// BucketRoot returns the normalized bucket root URL.
func (l *Lister) BucketRoot() string { return l.root.url }

// Protocol returns listing.ProtocolS3.
func (l *Lister) Protocol() listing.Protocol { return listing.ProtocolS3 }

// List lists the folder at folderURL, which must lie under the bucket root.
func (l *Lister) List(ctx context.Context, folderURL string) (*listing.Result, error) {
	folderURL = urlpath.EnsureTrailingSlash(folderURL)
	if !urlpath.IsInsideRoot(folderURL, l.root.url) {
		return nil, listing.FetchError("list", listing.ProtocolS3, folderURL,
			fmt.Errorf("folder is outside bucket root %s", l.root.url))
	}
	prefix := strings.Trim(urlpath.TrimRootPrefix(folderURL, l.root.url), "/")
	return l.ListPrefix(ctx, prefix)
}

// ListPrefix lists the folder whose key prefix is prefixKey (no trailing
// slash; empty for the bucket root). All pages are fetched and merged.
func (l *Lister) ListPrefix(ctx context.Context, prefixKey string) (*listing.Result, error) {
	prefixKey = strings.Trim(prefixKey, "/")
	folder := l.root.url
	if prefixKey != "" {
		folder = l.root.url + prefixKey + "/"
	}

	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(l.root.bucket),
		Delimiter: aws.String("/"),
		MaxKeys:   aws.Int32(int32(l.maxKeys)),
	}
	self := ""
	if prefixKey != "" {
		self = prefixKey + "/"
		input.Prefix = aws.String(self)
	}

	var (
		entries []listing.Entry
		pages   int
		prev    string
	)
	for {
		if l.limiter != nil {
			if err := l.limiter.Wait(ctx); err != nil {
				return nil, listing.FetchError("list", listing.ProtocolS3, folder, err)
			}
		}

		out, err := l.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, l.wrapError(folder, err)
		}
		pages++

		for _, cp := range out.CommonPrefixes {
			key := aws.ToString(cp.Prefix)
			if key == "" || key == self {
				continue
			}
			name := urlpath.LastSegment(strings.Trim(strings.TrimPrefix(key, prefixKey), "/"))
			if name == "" {
				continue
			}
			entries = append(entries, listing.NewFolder(name, key))
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			name := urlpath.LastSegment(key)
			if !listing.IsAllowedFile(name) {
				continue
			}
			entries = append(entries, listing.NewFile(name, key))
		}

		token := aws.ToString(out.NextContinuationToken)
		if token == "" {
			break
		}
		if token == prev {
			return nil, listing.FetchError("list", listing.ProtocolS3, folder,
				fmt.Errorf("continuation token %q repeated", token))
		}
		prev = token
		input.ContinuationToken = aws.String(token)
	}

	listing.SortEntries(entries)
	result := &listing.Result{Folder: folder, Entries: entries}

	l.logger.Debug("listed s3 prefix",
		zap.String("bucket", l.root.bucket),
		zap.String("prefix", prefixKey),
		zap.Int("pages", pages),
		zap.Int("folders", result.FolderCount()),
		zap.Int("files", result.FileCount()),
	)
	return result, nil
}

// ChildURL returns bucketRoot + "/" + key for a folder entry.
func (l *Lister) ChildURL(_ string, e listing.Entry) (string, error) {
	if !e.IsFolder() {
		return "", listing.ErrNotAFolder
	}
	return l.join(e.RealID), nil
}

// FileURL returns the object URL for a file entry. A key that repeats the
// bucket root's own path is not doubled.
func (l *Lister) FileURL(_ string, e listing.Entry) (string, error) {
	key := e.RealID
	if l.root.path != "" && strings.HasPrefix(key, l.root.path+"/") {
		key = key[len(l.root.path)+1:]
	}
	return l.join(key), nil
}

func (l *Lister) join(key string) string {
	return strings.TrimRight(l.root.url, "/") + "/" + strings.TrimLeft(key, "/")
}

// wrapError maps SDK failures into listing fetch errors, keeping the S3 error
// code visible.
func (l *Lister) wrapError(folder string, err error) error {
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return listing.FetchError("list", listing.ProtocolS3, folder, fmt.Errorf("bucket %s not found: %w", l.root.bucket, err))
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return listing.FetchError("list", listing.ProtocolS3, folder, fmt.Errorf("%s: %w", apiErr.ErrorCode(), err))
	}
	return listing.FetchError("list", listing.ProtocolS3, folder, err)
}
