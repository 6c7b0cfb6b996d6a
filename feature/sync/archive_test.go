package sync_test

import (
	"context"
	"testing"

	"stocklink/core/storage/mocks"
	syncfeature "stocklink/feature/sync"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func TestArchiveRun(t *testing.T) {
	run := &syncfeature.Run{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Status:   syncfeature.RunStatusCompleted,
	}
	objectName := run.TenantID.String() + "/" + run.ID.String() + ".json"

	t.Run("CreatesBucketOnFirstUse", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", mock.Anything, "reports").Return(false, nil)
		client.On("MakeBucket", mock.Anything, "reports", mock.Anything).Return(nil)
		client.On("PutObject", mock.Anything, "reports", objectName, mock.Anything, mock.Anything, mock.Anything).
			Return(minio.UploadInfo{}, nil)

		archiver := syncfeature.NewArchiver(client, "reports", zap.NewNop())
		err := archiver.ArchiveRun(context.Background(), run, nil)

		assert.NoError(t, err)
		client.AssertExpectations(t)
	})

	t.Run("ReusesExistingBucket", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", mock.Anything, "reports").Return(true, nil)
		client.On("PutObject", mock.Anything, "reports", objectName, mock.Anything, mock.Anything, mock.Anything).
			Return(minio.UploadInfo{}, nil)

		archiver := syncfeature.NewArchiver(client, "reports", zap.NewNop())
		err := archiver.ArchiveRun(context.Background(), run, nil)

		assert.NoError(t, err)
		client.AssertNotCalled(t, "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("PropagatesUploadError", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", mock.Anything, "reports").Return(true, nil)
		client.On("PutObject", mock.Anything, "reports", objectName, mock.Anything, mock.Anything, mock.Anything).
			Return(minio.UploadInfo{}, assert.AnError)

		archiver := syncfeature.NewArchiver(client, "reports", zap.NewNop())
		err := archiver.ArchiveRun(context.Background(), run, nil)

		assert.Error(t, err)
	})
}
