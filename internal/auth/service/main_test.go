package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lockstead/authgate/pkg/cryptox"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "authgate-service-test")
	if err != nil {
		panic(err)
	}

	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))
	cryptox.GetPepper() // prime before parallel tests

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}
