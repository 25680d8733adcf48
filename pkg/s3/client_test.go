package s3

import (
	"context"
	"errors"
	"testing"

	"github.com/quocson95/ftpfleet/pkg/storage"
)

func TestNewClientRequiresSettings(t *testing.T) {
	tests := []storage.Settings{
		{},
		{S3Host: "http://localhost:9000", S3AccessKey: "k", S3Bucket: "b"},
		{S3Host: "http://localhost:9000", S3AccessKey: "k", S3SecretKey: "s"},
	}
	for _, s := range tests {
		if _, err := NewClientFromSettings(context.Background(), s); !errors.Is(err, ErrNotConfigured) {
			t.Errorf("Expected ErrNotConfigured for %+v, got %v", s, err)
		}
	}
}

func TestNewClient(t *testing.T) {
	c, err := NewClient(context.Background(), "http://localhost:9000", "access", "secret", "ftpfleet")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.bucket != "ftpfleet" {
		t.Errorf("Expected bucket ftpfleet, got %s", c.bucket)
	}
}
