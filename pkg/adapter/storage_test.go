package adapter_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/openngo/sitecms/pkg/adapter"
	"github.com/openngo/sitecms/pkg/model"
)

func TestStorageUpload(t *testing.T) {
	bucket := os.Getenv("TEST_STORAGE_BUCKET")
	if bucket == "" {
		t.Skip("TEST_STORAGE_BUCKET must be set to run Cloud Storage tests")
	}

	ctx := context.Background()
	blob, err := adapter.NewStorage(ctx, adapter.StorageConfig{Bucket: bucket})
	gt.NoError(t, err)
	defer blob.Close()

	uploader := adapter.NewUploader(blob)
	path := adapter.GenerateFilePath("test", "hello world.txt")

	result, err := uploader.UploadFile(ctx, &adapter.File{
		Name:        "hello world.txt",
		ContentType: "text/plain",
		Reader:      strings.NewReader("hello"),
	}, path)
	gt.NoError(t, err)
	gt.S(t, result.URL).Contains(bucket)

	gt.NoError(t, uploader.DeleteFile(ctx, path))
	err = uploader.DeleteFile(ctx, path)
	gt.True(t, errors.Is(err, model.ErrNotFound))
}

func TestStorageRequiresBucket(t *testing.T) {
	_, err := adapter.NewStorage(context.Background(), adapter.StorageConfig{})
	gt.Error(t, err)
}
