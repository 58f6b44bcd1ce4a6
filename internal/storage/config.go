package storage

import (
	"fmt"
	"time"
)

// DefaultPresignTTL bounds every presigned URL the service hands out.
const DefaultPresignTTL = 15 * time.Minute

// MinIOConfig holds MinIO connection configuration
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string
}

// S3Config holds AWS S3 configuration. Empty keys use the default credential chain.
type S3Config struct {
	Region    string
	Bucket    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// Config selects and configures the profile object store.
type Config struct {
	Driver     string // minio|s3
	PresignTTL time.Duration
	MinIO      MinIOConfig
	S3         S3Config
}

// Validate reports configuration the selected driver cannot start with.
func (c *Config) Validate() error {
	switch c.Driver {
	case "minio":
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			return fmt.Errorf("storage: minio endpoint and bucket are required")
		}
	case "s3":
		if c.S3.Region == "" || c.S3.Bucket == "" {
			return fmt.Errorf("storage: s3 region and bucket are required")
		}
	default:
		return fmt.Errorf("storage: unknown driver %q", c.Driver)
	}
	return nil
}
