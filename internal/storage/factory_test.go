package storage

import (
	"context"
	"testing"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/config"
)

func TestNewStoreFromConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("memory store", func(t *testing.T) {
		got, err := NewStoreFromConfig(ctx, config.StorageConfig{Type: "memory"})
		if err != nil {
			t.Fatalf("NewStoreFromConfig() error = %v", err)
		}
		if _, ok := got.(*MemoryStore); !ok {
			t.Errorf("NewStoreFromConfig() = %T, want *MemoryStore", got)
		}
	})

	t.Run("filesystem store", func(t *testing.T) {
		got, err := NewStoreFromConfig(ctx, config.StorageConfig{Type: "filesystem", FSRoot: t.TempDir()})
		if err != nil {
			t.Fatalf("NewStoreFromConfig() error = %v", err)
		}
		if _, ok := got.(*FileSystemStore); !ok {
			t.Errorf("NewStoreFromConfig() = %T, want *FileSystemStore", got)
		}
	})

	t.Run("filesystem store without root", func(t *testing.T) {
		if _, err := NewStoreFromConfig(ctx, config.StorageConfig{Type: "filesystem"}); err == nil {
			t.Error("NewStoreFromConfig() expected error for missing fs_root")
		}
	})

	t.Run("s3 store without bucket", func(t *testing.T) {
		if _, err := NewStoreFromConfig(ctx, config.StorageConfig{Type: "s3"}); err == nil {
			t.Error("NewStoreFromConfig() expected error for missing bucket")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := NewStoreFromConfig(ctx, config.StorageConfig{Type: "gcs"}); err == nil {
			t.Error("NewStoreFromConfig() expected error for unknown type")
		}
	})
}
