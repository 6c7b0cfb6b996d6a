package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"stocklink/core/storage"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// Archiver writes completed run reports to object storage so plan detail
// survives database retention.
type Archiver struct {
	client storage.Client
	bucket string
	logger *zap.Logger
}

// NewArchiver builds an archiver over the configured bucket.
func NewArchiver(client storage.Client, bucket string, logger *zap.Logger) *Archiver {
	return &Archiver{client: client, bucket: bucket, logger: logger}
}

type runReport struct {
	Run   *Run        `json:"run"`
	Items []*PlanItem `json:"items"`
}

// ArchiveRun serializes the run and its plan to a JSON object keyed by tenant
// and run id.
func (a *Archiver) ArchiveRun(ctx context.Context, run *Run, items []*PlanItem) error {
	if err := a.ensureBucket(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(runReport{Run: run, Items: items})
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}

	objectName := fmt.Sprintf("%s/%s.json", run.TenantID, run.ID)
	_, err = a.client.PutObject(ctx, a.bucket, objectName, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("put run report: %w", err)
	}

	a.logger.Info("run report archived",
		zap.String("run_id", run.ID.String()),
		zap.String("object", objectName))
	return nil
}

// FetchReport reads a previously archived run report back.
func (a *Archiver) FetchReport(ctx context.Context, tenantID, runID string) (*Run, []*PlanItem, error) {
	objectName := fmt.Sprintf("%s/%s.json", tenantID, runID)
	obj, err := a.client.GetObject(ctx, a.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("get run report: %w", err)
	}
	defer obj.Close()

	var report runReport
	if err := json.NewDecoder(obj).Decode(&report); err != nil {
		return nil, nil, fmt.Errorf("decode run report: %w", err)
	}
	return report.Run, report.Items, nil
}

func (a *Archiver) ensureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket: %w", err)
	}
	return nil
}
