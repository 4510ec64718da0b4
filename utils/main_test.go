package utils

import (
	"os"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/cppla/radiocms/config"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	config.Set(config.AppConfig{JWTSecret: "utils-test-secret"})
	os.Exit(m.Run())
}
