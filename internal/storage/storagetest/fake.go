// Package storagetest provides an in-memory bucket implementing storage.API.
package storagetest

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

type Object struct {
	Data        []byte
	ContentType string
	ACL         types.ObjectCannedACL
	Modified    time.Time
}

// Bucket is a thread-safe in-memory bucket.
type Bucket struct {
	mu      sync.Mutex
	objects map[string]Object
	now     func() time.Time

	// ListCalls counts ListObjectsV2 calls.
	ListCalls int
	// Err, when set, is returned by every call.
	Err error
}

func NewBucket() *Bucket {
	return &Bucket{
		objects: map[string]Object{},
		now:     func() time.Time { return time.Date(2024, 4, 15, 12, 0, 0, 0, time.UTC) },
	}
}

// Put seeds an object.
func (b *Bucket) Put(key string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = Object{Data: data, Modified: b.now()}
}

// Object returns the stored object at key.
func (b *Bucket) Object(key string) (Object, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.objects[key]
	return o, ok
}

// Keys returns every key in lexical order.
func (b *Bucket) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sortedKeys()
}

func (b *Bucket) sortedKeys() []string {
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func notFound(key string) error {
	return &smithy.GenericAPIError{Code: "NoSuchKey", Message: "no such key: " + key}
}

func etag(data []byte) string {
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func (b *Bucket) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if b.Err != nil {
		return nil, b.Err
	}
	var data []byte
	if in.Body != nil {
		var err error
		if data, err = io.ReadAll(in.Body); err != nil {
			return nil, err
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[aws.ToString(in.Key)] = Object{
		Data:        data,
		ContentType: aws.ToString(in.ContentType),
		ACL:         in.ACL,
		Modified:    b.now(),
	}
	return &s3.PutObjectOutput{ETag: aws.String(etag(data))}, nil
}

func (b *Bucket) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if b.Err != nil {
		return nil, b.Err
	}
	o, ok := b.Object(aws.ToString(in.Key))
	if !ok {
		return nil, notFound(aws.ToString(in.Key))
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(o.Data)),
		ContentLength: aws.Int64(int64(len(o.Data))),
		ContentType:   aws.String(o.ContentType),
	}, nil
}

func (b *Bucket) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if b.Err != nil {
		return nil, b.Err
	}
	o, ok := b.Object(aws.ToString(in.Key))
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NotFound"}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(o.Data))),
		LastModified:  aws.Time(o.Modified),
		ETag:          aws.String(etag(o.Data)),
	}, nil
}

func (b *Bucket) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if b.Err != nil {
		return nil, b.Err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (b *Bucket) DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	if b.Err != nil {
		return nil, b.Err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := &s3.DeleteObjectsOutput{}
	for _, id := range in.Delete.Objects {
		delete(b.objects, aws.ToString(id.Key))
		out.Deleted = append(out.Deleted, types.DeletedObject{Key: id.Key})
	}
	return out, nil
}

// ListObjectsV2 honours Prefix, Delimiter, MaxKeys and continuation tokens.
// Tokens are the index of the next key.
func (b *Bucket) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if b.Err != nil {
		return nil, b.Err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ListCalls++

	prefix := aws.ToString(in.Prefix)
	delim := aws.ToString(in.Delimiter)
	maxKeys := int(aws.ToInt32(in.MaxKeys))
	if maxKeys <= 0 {
		maxKeys = 1000
	}
	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, &smithy.GenericAPIError{Code: "InvalidArgument", Message: "bad token"}
		}
		start = n
	}

	var matched []string
	seen := map[string]bool{}
	for _, k := range b.sortedKeys() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if delim != "" {
			rest := strings.TrimPrefix(k, prefix)
			if i := strings.Index(rest, delim); i >= 0 {
				cp := prefix + rest[:i+len(delim)]
				if !seen[cp] {
					seen[cp] = true
					matched = append(matched, cp)
				}
				continue
			}
		}
		matched = append(matched, k)
	}

	out := &s3.ListObjectsV2Output{Prefix: in.Prefix}
	end := min(start+maxKeys, len(matched))
	for _, k := range matched[min(start, len(matched)):end] {
		if seen[k] {
			out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(k)})
			continue
		}
		o := b.objects[k]
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(o.Data))),
			LastModified: aws.Time(o.Modified),
		})
	}
	out.KeyCount = aws.Int32(int32(end - min(start, len(matched))))
	if end < len(matched) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	} else {
		out.IsTruncated = aws.Bool(false)
	}
	return out, nil
}
