package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateProvider(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateProvider("ollama", ""))
	assert.NoError(t, v.ValidateProvider("hash", ""))
	assert.NoError(t, v.ValidateProvider("none", ""))
	assert.NoError(t, v.ValidateProvider("openai", "sk-test123"))

	assert.Error(t, v.ValidateProvider("openai", ""))
	assert.Error(t, v.ValidateProvider("openai", "invalid-key"))
	assert.Error(t, v.ValidateProvider("", ""))
}

func TestValidateSchedule(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		spec  string
		valid bool
	}{
		{"", true},
		{"*/15 * * * *", true},
		{"0 3 * * 1-5", true},
		{"@every 1h", true},
		{"0 0 3 * * *", false}, // seconds field not accepted
		{"nonsense", false},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			err := v.ValidateSchedule(tt.spec)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateAddr(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateAddr(""))
	assert.NoError(t, v.ValidateAddr(":9464"))
	assert.NoError(t, v.ValidateAddr("127.0.0.1:9464"))
	assert.Error(t, v.ValidateAddr("9464"))
}

func TestValidateThreshold(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateThreshold(0))
	assert.NoError(t, v.ValidateThreshold(-1))
	assert.NoError(t, v.ValidateThreshold(1))
	assert.Error(t, v.ValidateThreshold(1.01))
}

func TestValidateBackend(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateBackend("json"))
	assert.NoError(t, v.ValidateBackend("sqlite"))
	assert.Error(t, v.ValidateBackend("JSON"))
}
