package infrastructure_test

import (
	"context"
	"testing"

	"github.com/JaimeStill/muse/internal/config"
	"github.com/JaimeStill/muse/internal/infrastructure"
	"github.com/JaimeStill/muse/pkg/database"
	"github.com/JaimeStill/muse/pkg/images"
	"github.com/JaimeStill/muse/pkg/publish"
	"github.com/JaimeStill/muse/pkg/storage"
)

const azuriteConnString = "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1;"

func validConfig() *config.Config {
	return &config.Config{
		Database: database.Config{
			Host:            "localhost",
			Port:            5432,
			Name:            "muse",
			User:            "muse",
			Password:        "muse",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: "15m",
			ConnTimeout:     "5s",
		},
		Storage: storage.Config{
			ContainerName:    "content",
			ConnectionString: azuriteConnString,
			LinkTTL:          "168h",
		},
		Images: images.Config{
			Backend:        images.BackendGemini,
			APIKey:         "test-key",
			Model:          "imagen-4.0-generate-001",
			OutputMIMEType: "image/png",
			MaxSize:        "10MB",
			Timeout:        "2m",
		},
		Version: "0.1.0",
	}
}

func TestNew(t *testing.T) {
	infra, err := infrastructure.New(context.Background(), validConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if infra.Lifecycle == nil || infra.Logger == nil {
		t.Error("lifecycle or logger is nil")
	}
	if infra.Database == nil || infra.Storage == nil || infra.Images == nil {
		t.Error("a system is nil")
	}
	if infra.Images.Model() != "imagen-4.0-generate-001" {
		t.Errorf("image model = %s", infra.Images.Model())
	}
	if infra.Publisher != nil {
		t.Error("publisher built while publishing is disabled")
	}
	if infra.Ready() {
		t.Error("Ready() before start")
	}

	conn := infra.Database.Connection()
	if conn == nil {
		t.Fatal("Database.Connection() returned nil")
	}
	conn.Close()
}

func TestNewWithPublishing(t *testing.T) {
	cfg := validConfig()
	enabled := true
	cfg.Publish = publish.Config{
		Enabled:     &enabled,
		AccountID:   "17841400000",
		AccessToken: "graph-token",
	}
	if err := cfg.Publish.Finalize(nil); err != nil {
		t.Fatal(err)
	}

	infra, err := infrastructure.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if infra.Publisher == nil {
		t.Error("publisher not built")
	}
	infra.Database.Connection().Close()
}

func TestNewInvalidStorageConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.ConnectionString = "not-a-connection-string"

	if _, err := infrastructure.New(context.Background(), cfg); err == nil {
		t.Fatal("expected error for invalid storage connection string")
	}
}
