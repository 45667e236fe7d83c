package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/size-analysis/pkg/config"
)

func TestNewCOSStorage_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *COSConfig
		errPart string
	}{
		{"MissingBucket", &COSConfig{Region: "ap-guangzhou", SecretID: "id", SecretKey: "key"}, "bucket and region are required"},
		{"MissingRegion", &COSConfig{Bucket: "b", SecretID: "id", SecretKey: "key"}, "bucket and region are required"},
		{"MissingCredentials", &COSConfig{Bucket: "b", Region: "ap-guangzhou"}, "credentials are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, err := NewCOSStorage(tt.cfg)
			require.Error(t, err)
			assert.Nil(t, storage)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

func TestCOSStorage_GetURL(t *testing.T) {
	storage, err := NewCOSStorage(&COSConfig{
		Bucket:    "my-bucket",
		Region:    "ap-guangzhou",
		SecretID:  "test-id",
		SecretKey: "test-key",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://my-bucket.cos.ap-guangzhou.myqcloud.com/reports/size.ndjson", storage.GetURL("/reports/size.ndjson"))
}

func TestNewS3Storage(t *testing.T) {
	_, err := NewS3Storage(&S3Config{Bucket: "b", AccessKey: "a", SecretKey: "s"})
	assert.ErrorContains(t, err, "endpoint is required")

	_, err = NewS3Storage(&S3Config{Endpoint: "localhost:9000", Bucket: "b"})
	assert.ErrorContains(t, err, "access key and secret key are required")

	s, err := NewS3Storage(&S3Config{Endpoint: "localhost:9000", Bucket: "sizes", AccessKey: "a", SecretKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", s.region)
	assert.Equal(t, "http://localhost:9000/sizes/chrome/size.ndjson", s.GetURL("chrome/size.ndjson"))
}

func TestNewStorage(t *testing.T) {
	cos, err := NewStorage(&config.StorageConfig{
		Type: "cos", Bucket: "b", Region: "ap-guangzhou", SecretID: "id", SecretKey: "key",
	})
	require.NoError(t, err)
	assert.IsType(t, &COSStorage{}, cos)

	s3, err := NewStorage(&config.StorageConfig{
		Type: "s3", Endpoint: "localhost:9000", Bucket: "b", SecretID: "id", SecretKey: "key",
	})
	require.NoError(t, err)
	assert.IsType(t, &S3Storage{}, s3)

	local, err := NewStorage(&config.StorageConfig{Type: "local", LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, local)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.StorageConfig
		errPart string
	}{
		{"NilConfig", nil, "storage config is nil"},
		{"InvalidStorageType", &config.StorageConfig{Type: "ftp"}, "unsupported storage type"},
		{"COSMissingBucket", &config.StorageConfig{Type: "cos", Region: "r", SecretID: "i", SecretKey: "k"}, "COS bucket is required"},
		{"COSMissingRegion", &config.StorageConfig{Type: "cos", Bucket: "b", SecretID: "i", SecretKey: "k"}, "COS region is required"},
		{"COSMissingCredentials", &config.StorageConfig{Type: "cos", Bucket: "b", Region: "r"}, "COS credentials are required"},
		{"S3MissingEndpoint", &config.StorageConfig{Type: "s3", Bucket: "b"}, "S3 endpoint is required"},
		{"S3MissingCredentials", &config.StorageConfig{Type: "s3", Bucket: "b", Endpoint: "e"}, "S3 credentials are required"},
		{"LocalMissingPath", &config.StorageConfig{Type: "local"}, "local storage path is required"},
		{"ValidLocal", &config.StorageConfig{Type: "local", LocalPath: "/tmp/storage"}, ""},
		{"EmptyTypeIsLocal", &config.StorageConfig{LocalPath: "/tmp/storage"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.cfg)
			if tt.errPart == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}
