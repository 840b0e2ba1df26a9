package adapter

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/openngo/sitecms/pkg/model"
)

// GenerateFilePath builds folder/<unix millis>-<name> where every rune of
// name outside [A-Za-z0-9.] becomes '-'. Two uploads of the same name into
// the same folder within one millisecond get the same path.
func GenerateFilePath(folder, fileName string) string {
	return generateFilePath(folder, fileName, time.Now())
}

func generateFilePath(folder, fileName string, now time.Time) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.':
			return r
		}
		return '-'
	}, fileName)

	return folder + "/" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + sanitized
}

// File is a client-held file to upload
type File struct {
	Name        string
	ContentType string
	// Size is the total number of bytes, or 0 when unknown.
	Size   int64
	Reader io.Reader
}

// Progress reports bytes moved so far
type Progress struct {
	BytesTransferred int64
	TotalBytes       int64
}

// Percent returns the completed share in [0, 100], or -1 if the total is
// unknown.
func (p Progress) Percent() float64 {
	if p.TotalBytes <= 0 {
		return -1
	}
	return float64(p.BytesTransferred) * 100 / float64(p.TotalBytes)
}

// UploadResult is the outcome of a successful upload
type UploadResult struct {
	Path string
	URL  string
}

// Upload is an in-flight upload started by Uploader.Start.
type Upload struct {
	progress chan Progress
	done     chan struct{}

	result *UploadResult
	err    error
}

// Progress returns a channel of progress events that is closed when the
// upload finishes. Events are dropped when the receiver falls behind.
func (x *Upload) Progress() <-chan Progress {
	return x.progress
}

// Done is closed when the upload has finished.
func (x *Upload) Done() <-chan struct{} {
	return x.done
}

// Wait blocks until the upload finishes. Failures wrap model.ErrTransport.
func (x *Upload) Wait() (*UploadResult, error) {
	<-x.done
	return x.result, x.err
}

const (
	defaultChunkSize      = 256 * 1024
	defaultProgressBuffer = 16
)

// Uploader moves files into a Blob
type Uploader struct {
	blob      Blob
	chunkSize int
}

type UploaderOption func(*Uploader)

// WithChunkSize sets how many bytes are written between progress events.
func WithChunkSize(n int) UploaderOption {
	return func(u *Uploader) {
		if n > 0 {
			u.chunkSize = n
		}
	}
}

func NewUploader(blob Blob, opts ...UploaderOption) *Uploader {
	u := &Uploader{
		blob:      blob,
		chunkSize: defaultChunkSize,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Start begins uploading file to path in the background. Canceling ctx
// aborts the transfer. There is no retry.
func (u *Uploader) Start(ctx context.Context, file *File, path string) *Upload {
	up := &Upload{
		progress: make(chan Progress, defaultProgressBuffer),
		done:     make(chan struct{}),
	}

	go func() {
		defer close(up.done)
		defer close(up.progress)

		if err := u.transfer(ctx, file, path, up); err != nil {
			up.err = goerr.Wrap(errors.Join(model.ErrTransport, err), "failed to upload file",
				goerr.V("path", path))
			return
		}
		up.result = &UploadResult{
			Path: path,
			URL:  u.blob.URL(path),
		}
	}()

	return up
}

func (u *Uploader) transfer(ctx context.Context, file *File, path string, up *Upload) error {
	if file == nil || file.Reader == nil {
		return goerr.New("no file content")
	}

	// canceling the writer context before Close discards a partial object
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := u.blob.NewWriter(wctx, path, file.ContentType)
	if err != nil {
		return err
	}
	abort := func(err error) error {
		cancel()
		_ = w.Close()
		return err
	}

	var written int64
	buf := make([]byte, u.chunkSize)
	for {
		n, readErr := file.Reader.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return abort(err)
			}
			written += int64(n)
			select {
			case up.progress <- Progress{BytesTransferred: written, TotalBytes: file.Size}:
			default:
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return abort(readErr)
		}
	}

	return w.Close()
}

// UploadFile uploads file to path and waits for the public URL.
func (u *Uploader) UploadFile(ctx context.Context, file *File, path string) (*UploadResult, error) {
	return u.Start(ctx, file, path).Wait()
}

// DeleteFile removes a previously uploaded file. It returns model.ErrNotFound
// if nothing is stored at path.
func (u *Uploader) DeleteFile(ctx context.Context, path string) error {
	if err := u.blob.Delete(ctx, path); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return err
		}
		return goerr.Wrap(errors.Join(model.ErrTransport, err), "failed to delete file", goerr.V("path", path))
	}
	return nil
}

// PathOf returns the storage path of a URL produced by this uploader.
func (u *Uploader) PathOf(fileURL string) (string, bool) {
	base := u.blob.URL("")
	if fileURL == "" || !strings.HasPrefix(fileURL, base) {
		return "", false
	}
	path := strings.TrimPrefix(fileURL, base)
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	return path, path != ""
}
