package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"rackcore/capacity"
	"rackcore/config"
)

// ContentType is the media type of rendered workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type FleetSource interface {
	FleetUtilization(ctx context.Context) ([]capacity.Utilization, error)
}

// ObjectPutter is the slice of *minio.Client the archiver uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// NewMinIOClient connects to the configured bucket, creating it if missing.
func NewMinIOClient(ctx context.Context, cfg *config.MinIOConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return client, nil
}

// Archiver periodically uploads a fleet utilization workbook.
type Archiver struct {
	source   FleetSource
	putter   ObjectPutter
	bucket   string
	siteID   string
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	wg       sync.WaitGroup
	logFn    func(format string, args ...any)
}

func NewArchiver(source FleetSource, putter ObjectPutter, bucket, siteID string, interval time.Duration) *Archiver {
	return &Archiver{
		source:   source,
		putter:   putter,
		bucket:   bucket,
		siteID:   siteID,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		logFn:    log.Printf,
	}
}

// ObjectKey is where a snapshot taken at t is stored.
func ObjectKey(siteID string, t time.Time) string {
	return fmt.Sprintf("%s/utilization/%s.xlsx", siteID, t.UTC().Format("2006/01/02/150405"))
}

// ArchiveOnce renders and uploads one snapshot, returning its object key.
func (a *Archiver) ArchiveOnce(ctx context.Context) (string, error) {
	rows, err := a.source.FleetUtilization(ctx)
	if err != nil {
		return "", fmt.Errorf("fleet utilization: %w", err)
	}
	now := a.now()
	var buf bytes.Buffer
	if err := WriteUtilizationXLSX(&buf, a.siteID, rows, now); err != nil {
		return "", fmt.Errorf("render workbook: %w", err)
	}
	key := ObjectKey(a.siteID, now)
	_, err = a.putter.PutObject(ctx, a.bucket, key, &buf, int64(buf.Len()), minio.PutObjectOptions{
		ContentType: ContentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}

func (a *Archiver) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case <-a.stopCh:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), a.interval)
				key, err := a.ArchiveOnce(ctx)
				cancel()
				if err != nil {
					a.logFn("report: archive: %v", err)
					continue
				}
				a.logFn("report: archived %s", key)
			}
		}
	}()
}

func (a *Archiver) Stop() {
	close(a.stopCh)
	a.wg.Wait()
}
