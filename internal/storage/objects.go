package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/mauv0809/finboard/internal/apperr"
	"github.com/mauv0809/finboard/internal/models"
	"go.uber.org/zap"
)

// ProgressFunc receives coarse upload milestones in percent.
type ProgressFunc func(percent int)

// Upload milestones. They mark stages of the upload, not bytes sent.
const (
	ProgressStarted  = 10
	ProgressRead     = 30
	ProgressSending  = 50
	ProgressComplete = 100
)

// UploadFile stores body at folder/name, overwriting any existing object,
// and makes it publicly readable. The whole body is read into memory first.
func (c *Client) UploadFile(ctx context.Context, name string, body io.Reader, contentType, folder string, onProgress ProgressFunc) (models.UploadResult, error) {
	report := func(p int) {
		if onProgress != nil {
			onProgress(p)
		}
	}

	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, "/") {
		return models.UploadResult{}, apperr.BadInput("invalid file name %q", name)
	}
	key := ObjectKey(folder, name)
	report(ProgressStarted)

	data, err := io.ReadAll(body)
	if err != nil {
		return models.UploadResult{}, fmt.Errorf("reading %s: %w", name, err)
	}
	report(ProgressRead)

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	report(ProgressSending)

	out, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        c.bucketPtr(),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		ACL:           types.ObjectCannedACL(publicReadACL),
	})
	if err != nil {
		return models.UploadResult{}, fmt.Errorf("uploading %s: %w", key, err)
	}
	report(ProgressComplete)

	c.logger.Info("uploaded object", zap.String("key", key), zap.Int("bytes", len(data)))
	return models.UploadResult{
		Location: c.ObjectURL(key),
		Bucket:   c.bucket,
		Key:      key,
		ETag:     strings.Trim(aws.ToString(out.ETag), `"`),
	}, nil
}

// ListFiles lists the files under folder. Folder markers are skipped.
// An empty folder yields an empty slice.
func (c *Client) ListFiles(ctx context.Context, folder string) ([]models.StoredFile, error) {
	res, err := c.ListFilesPage(ctx, folder)
	if err != nil {
		return nil, err
	}
	if res.Truncated {
		c.logger.Warn("listing truncated", zap.String("folder", folder), zap.Int("files", len(res.Files)))
	}
	return res.Files, nil
}

// ListFilesPage lists the files under folder following continuation tokens
// for at most the configured number of pages. Truncated reports whether
// keys were left unlisted.
func (c *Client) ListFilesPage(ctx context.Context, folder string) (models.ListResult, error) {
	res := models.ListResult{Files: []models.StoredFile{}}
	err := c.walk(ctx, folderPrefix(folder), c.maxPages, func(obj types.Object) {
		key := aws.ToString(obj.Key)
		if strings.HasSuffix(key, "/") {
			return
		}
		res.Files = append(res.Files, c.storedFile(key, aws.ToInt64(obj.Size), obj))
	}, &res.Truncated)
	if err != nil {
		return models.ListResult{}, err
	}
	return res, nil
}

// ListFolders lists the immediate sub-folders of parent.
func (c *Client) ListFolders(ctx context.Context, parent string) ([]string, error) {
	p := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket:    c.bucketPtr(),
		Prefix:    aws.String(folderPrefix(parent)),
		Delimiter: aws.String("/"),
		MaxKeys:   aws.Int32(pageSize),
	})

	folders := []string{}
	for pages := 0; p.HasMorePages() && pages < c.maxPages; pages++ {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing folders under %q: %w", parent, err)
		}
		for _, cp := range page.CommonPrefixes {
			folders = append(folders, strings.TrimSuffix(aws.ToString(cp.Prefix), "/"))
		}
	}
	return folders, nil
}

// walk visits every object under prefix, page by page. A maxPages of zero
// means no limit.
func (c *Client) walk(ctx context.Context, prefix string, maxPages int, visit func(types.Object), truncated *bool) error {
	p := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket:  c.bucketPtr(),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(pageSize),
	})

	pages := 0
	for p.HasMorePages() {
		if maxPages > 0 && pages == maxPages {
			if truncated != nil {
				*truncated = true
			}
			return nil
		}
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("listing %q: %w", prefix, err)
		}
		pages++
		for _, obj := range page.Contents {
			visit(obj)
		}
	}
	return nil
}

func (c *Client) storedFile(key string, size int64, obj types.Object) models.StoredFile {
	f := models.StoredFile{
		Key:  key,
		Name: BaseName(key),
		URL:  c.ObjectURL(key),
		Size: size,
	}
	if obj.LastModified != nil {
		t := *obj.LastModified
		f.LastModified = &t
	}
	return f
}

// GetFile returns the content of key.
func (c *Client) GetFile(ctx context.Context, key string) ([]byte, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: c.bucketPtr(),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, nil
}

// HeadFile describes key without fetching it.
func (c *Client) HeadFile(ctx context.Context, key string) (models.StoredFile, error) {
	out, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: c.bucketPtr(),
		Key:    aws.String(key),
	})
	if err != nil {
		return models.StoredFile{}, fmt.Errorf("head %s: %w", key, err)
	}
	return c.storedFile(key, aws.ToInt64(out.ContentLength), types.Object{LastModified: out.LastModified}), nil
}

// DeleteFile removes a single object.
func (c *Client) DeleteFile(ctx context.Context, key string) error {
	if key == "" {
		return apperr.BadInput("key is required")
	}
	if _, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: c.bucketPtr(),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	c.logger.Info("deleted object", zap.String("key", key))
	return nil
}

// DeleteFolder removes every object under prefix, including the folder
// marker, and returns how many objects were deleted.
func (c *Client) DeleteFolder(ctx context.Context, prefix string) (int, error) {
	p := folderPrefix(prefix)
	if p == "" {
		return 0, apperr.BadInput("refusing to delete the bucket root")
	}

	var keys []string
	if err := c.walk(ctx, p, 0, func(obj types.Object) {
		keys = append(keys, aws.ToString(obj.Key))
	}, nil); err != nil {
		return 0, err
	}

	deleted := 0
	var errs []error
	for start := 0; start < len(keys); start += deleteBatch {
		end := min(start+deleteBatch, len(keys))
		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
		}

		out, err := c.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: c.bucketPtr(),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return deleted, fmt.Errorf("deleting folder %s: %w", p, err)
		}
		deleted += len(ids) - len(out.Errors)
		for _, e := range out.Errors {
			errs = append(errs, fmt.Errorf("deleting %s: %s: %s",
				aws.ToString(e.Key), aws.ToString(e.Code), aws.ToString(e.Message)))
		}
	}

	c.logger.Info("deleted folder", zap.String("prefix", p), zap.Int("objects", deleted))
	return deleted, errors.Join(errs...)
}

// CreateFolder places a zero-byte marker at name/ so the prefix shows up as
// a folder.
func (c *Client) CreateFolder(ctx context.Context, name string) (string, error) {
	key := folderPrefix(name)
	if key == "" {
		return "", apperr.BadInput("folder name is required")
	}
	if _, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        c.bucketPtr(),
		Key:           aws.String(key),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
		ContentType:   aws.String(folderMarkerType),
	}); err != nil {
		return "", fmt.Errorf("creating folder %s: %w", key, err)
	}
	return key, nil
}
