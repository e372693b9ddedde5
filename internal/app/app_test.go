package app

import (
	"testing"

	"go.uber.org/fx"
)

func Test__CreateApp(t *testing.T) {
	t.Setenv("TELEGRAM_API_ID", "12345")
	t.Setenv("TELEGRAM_API_HASH", "hash")
	t.Setenv("STORE_PATH", t.TempDir()+"/database.json")
	t.Setenv("TELEGRAM_SESSION_DIR", t.TempDir())

	if err := fx.ValidateApp(CreateApp()); err != nil {
		t.Errorf("fx validation failed: %v", err)
	}
}
