package vault

import (
	"context"
	"path/filepath"
	"testing"

	"cmsbackup/internal/config"
)

func TestNewVaultFromConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.VaultConfig
		wantErr  bool
		wantType string
	}{
		{
			name:     "memory vault",
			cfg:      config.VaultConfig{Type: "memory"},
			wantType: "*vault.MemoryVault",
		},
		{
			name:     "filesystem vault",
			cfg:      config.VaultConfig{Type: "filesystem", FSVaultRoot: filepath.Join(t.TempDir(), "vault")},
			wantType: "*vault.FileSystemVault",
		},
		{
			name: "s3 vault with static credentials",
			cfg: config.VaultConfig{
				Type:        "s3",
				S3Bucket:    "cms-backups",
				S3Region:    "us-east-1",
				S3Endpoint:  "http://localhost:9000",
				S3AccessKey: "minio",
				S3SecretKey: "minio123",
				S3PathStyle: true,
			},
			wantType: "*vault.S3Vault",
		},
		{
			name:    "s3 vault without bucket",
			cfg:     config.VaultConfig{Type: "s3"},
			wantErr: true,
		},
		{
			name:    "filesystem vault without root",
			cfg:     config.VaultConfig{Type: "filesystem"},
			wantErr: true,
		},
		{
			name:    "unknown vault type",
			cfg:     config.VaultConfig{Type: "ftp"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewVaultFromConfig(context.Background(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewVaultFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if got != nil {
					t.Errorf("NewVaultFromConfig() = %T, want nil on error", got)
				}
				return
			}
			if typ := typeName(got); typ != tt.wantType {
				t.Errorf("NewVaultFromConfig() type = %s, want %s", typ, tt.wantType)
			}
		})
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *MemoryVault:
		return "*vault.MemoryVault"
	case *FileSystemVault:
		return "*vault.FileSystemVault"
	case *S3Vault:
		return "*vault.S3Vault"
	default:
		return "unknown"
	}
}
