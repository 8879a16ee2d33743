// Package uploads hands out presigned PUT URLs for media in the R2 bucket.
package uploads

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bilgisen/tweetdesk/internal/apperr"
	"github.com/bilgisen/tweetdesk/internal/config"
	"github.com/bilgisen/tweetdesk/internal/logger"
	"github.com/google/uuid"
)

// Upload is a presigned PUT target. The client uploads with Content-Type set
// to the type it was signed for.
type Upload struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Presigner struct {
	client *s3.PresignClient
	bucket string
	ttl    time.Duration
	now    func() time.Time
	newID  func() string
}

// NewPresigner builds an S3 client for the R2 endpoint with path-style addressing
func NewPresigner(ctx context.Context, cfg *config.Config) (*Presigner, error) {
	if !cfg.UploadsEnabled() {
		return nil, apperr.Configuration("uploads.init", fmt.Errorf("R2 endpoint and credentials are not configured"))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.R2AccessKey, cfg.R2SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for R2: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.R2Endpoint)
		o.UsePathStyle = true
	})

	ttl := cfg.UploadURLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Presigner{
		client: s3.NewPresignClient(client),
		bucket: cfg.R2Bucket,
		ttl:    ttl,
		now:    time.Now,
		newID:  uuid.NewString,
	}, nil
}

// AllowedContentType accepts images and MP4 video
func AllowedContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "image/") || mediaType == "video/mp4"
}

// ObjectKey places an upload under uploads/YYYY/MM/ with a random name that
// keeps the original extension
func ObjectKey(at time.Time, id, filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	if len(ext) > 10 {
		ext = ""
	}
	return fmt.Sprintf("uploads/%04d/%02d/%s%s", at.Year(), int(at.Month()), id, ext)
}

// PresignPut signs a PUT for one new object
func (p *Presigner) PresignPut(ctx context.Context, filename, contentType string) (*Upload, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, apperr.Validation("uploads.presign", "filename is required")
	}
	if !AllowedContentType(contentType) {
		return nil, apperr.Validation("uploads.presign", "content type %q is not allowed", contentType)
	}

	now := p.now().UTC()
	key := ObjectKey(now, p.newID(), filename)

	req, err := p.client.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned PUT URL: %w", err)
	}

	logger.Get().Info().
		Str("bucket", p.bucket).
		Str("key", key).
		Dur("expiry", p.ttl).
		Msg("Generated presigned PUT URL")

	return &Upload{URL: req.URL, Key: key, ExpiresAt: now.Add(p.ttl)}, nil
}
