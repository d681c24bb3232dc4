package database

import (
	"testing"

	"unilms_backend/internal/config"
)

func TestShouldMigrate(t *testing.T) {
	tests := []struct {
		name  string
		mode  string
		force bool
		want  bool
	}{
		{name: "debug模式默认迁移", mode: "debug", want: true},
		{name: "release模式默认跳过", mode: "release", want: false},
		{name: "release模式强制迁移", mode: "release", force: true, want: true},
		{name: "debug模式强制迁移", mode: "debug", force: true, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{ForceMigrate: tt.force}
			cfg.Server.Mode = tt.mode
			if got := ShouldMigrate(cfg); got != tt.want {
				t.Errorf("ShouldMigrate() = %v, want %v", got, tt.want)
			}
		})
	}
}
