// Package s3 lists demo folders in a public S3 bucket (or an S3-compatible
// store) through ListObjectsV2 with a "/" delimiter.
package s3

import (
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Config configures an S3 bucket lister.
//
// BucketRoot is the public URL of the bucket itself. Two shapes are accepted:
//
//   - virtual-hosted AWS: https://<bucket>.s3.amazonaws.com/ or
//     https://<bucket>.s3.<region>.amazonaws.com/
//   - path-style: <scheme>://<host>/<bucket>/ (AWS path-style or any
//     S3-compatible endpoint such as MinIO)
//
// Requests are always anonymous and path-style.
type Config struct {
	// BucketRoot is the bucket URL (required).
	BucketRoot string

	// Region overrides the region derived from BucketRoot.
	// Defaults to us-east-1 when neither is available.
	Region string

	// PageSize is the MaxKeys value per request.
	// Zero uses DefaultMaxKeys. Values over 1000 are clamped.
	PageSize int

	// RequestsPerSecond paces page requests. Zero disables pacing.
	RequestsPerSecond float64

	// HTTPClient overrides the SDK's HTTP client.
	HTTPClient *http.Client

	// Logger receives debug output. Defaults to a no-op logger.
	Logger *zap.Logger
}

// DefaultMaxKeys is the default page size for list requests.
const DefaultMaxKeys = 1000

// MaxAllowedKeys is the maximum page size allowed by S3.
const MaxAllowedKeys = 1000

// DefaultAWSRegion is the fallback region for AWS S3 when not specified.
const DefaultAWSRegion = "us-east-1"

const awsHostSuffix = ".amazonaws.com"

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.BucketRoot == "" {
		return &ConfigError{Field: "BucketRoot", Message: "bucket root URL is required"}
	}
	if _, err := parseBucketRoot(c.BucketRoot); err != nil {
		return err
	}
	if c.RequestsPerSecond < 0 {
		return &ConfigError{Field: "RequestsPerSecond", Message: "must not be negative"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "s3 config: " + e.Field + ": " + e.Message
}

// bucketRoot is the parsed form of Config.BucketRoot.
type bucketRoot struct {
	// url is the normalized bucket root, ending in "/".
	url string

	// endpoint is the scheme and host requests are sent to.
	endpoint string

	bucket string

	// region is derived from a regional AWS host, if any.
	region string

	// path is the bucket root's own URL path without slashes ("" for
	// virtual-hosted roots, the bucket name for path-style roots).
	path string
}

func parseBucketRoot(raw string) (bucketRoot, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return bucketRoot{}, &ConfigError{Field: "BucketRoot", Message: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return bucketRoot{}, &ConfigError{Field: "BucketRoot", Message: "scheme must be http or https"}
	}
	if u.Host == "" {
		return bucketRoot{}, &ConfigError{Field: "BucketRoot", Message: "host is required"}
	}

	root := bucketRoot{path: strings.Trim(u.Path, "/")}
	host := strings.ToLower(u.Hostname())

	if bucket, region, ok := virtualHostedBucket(host); ok {
		if root.path != "" {
			return bucketRoot{}, &ConfigError{Field: "BucketRoot", Message: "virtual-hosted bucket root must not carry a path"}
		}
		root.bucket = bucket
		root.region = region
		if region == "" {
			root.endpoint = u.Scheme + "://s3" + awsHostSuffix
		} else {
			root.endpoint = u.Scheme + "://s3." + region + awsHostSuffix
		}
	} else {
		if root.path == "" || strings.Contains(root.path, "/") {
			return bucketRoot{}, &ConfigError{Field: "BucketRoot", Message: "path-style bucket root must be <endpoint>/<bucket>"}
		}
		root.bucket = root.path
		root.endpoint = u.Scheme + "://" + u.Host
		if r, ok := regionFromS3Host(host); ok {
			root.region = r
		}
	}

	root.url = strings.TrimRight(u.Scheme+"://"+u.Host+"/"+root.path, "/") + "/"
	return root, nil
}

// virtualHostedBucket splits "<bucket>.s3[.-]<region>.amazonaws.com".
func virtualHostedBucket(host string) (bucket, region string, ok bool) {
	if !strings.HasSuffix(host, awsHostSuffix) {
		return "", "", false
	}
	i := strings.Index(host, ".s3")
	if i <= 0 {
		return "", "", false
	}
	bucket = host[:i]
	region, _ = regionFromS3Host(host[i+1:])
	return bucket, region, true
}

// regionFromS3Host extracts the region from "s3.<region>.amazonaws.com" or
// "s3-<region>.amazonaws.com".
func regionFromS3Host(host string) (string, bool) {
	if !strings.HasSuffix(host, awsHostSuffix) {
		return "", false
	}
	rest := strings.TrimSuffix(host, awsHostSuffix)
	switch {
	case rest == "s3":
		return "", true
	case strings.HasPrefix(rest, "s3."):
		return strings.TrimPrefix(rest, "s3."), true
	case strings.HasPrefix(rest, "s3-"):
		return strings.TrimPrefix(rest, "s3-"), true
	}
	return "", false
}

// clampMaxKeys applies defaults and limits to page sizes.
func clampMaxKeys(requested int) int {
	if requested <= 0 {
		return DefaultMaxKeys
	}
	if requested > MaxAllowedKeys {
		return MaxAllowedKeys
	}
	return requested
}

// resolveRegion picks the region: explicit config, then the region encoded
// in the bucket host, then us-east-1.
func resolveRegion(cfgRegion, hostRegion string) string {
	if cfgRegion != "" {
		return cfgRegion
	}
	if hostRegion != "" {
		return hostRegion
	}
	return DefaultAWSRegion
}
