package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetZapLogger_Singleton(t *testing.T) {
	first := GetZapLogger()
	assert.NotNil(t, first)
	assert.Same(t, first, GetZapLogger())
}
