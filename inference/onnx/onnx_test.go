package onnx

import (
	"testing"

	"github.com/nvr-ai/go-sentry/inference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Path = "models/ssd_mobilenet.onnx"
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "no path", mutate: func(c *Config) { c.Path = "" }},
		{name: "zero input", mutate: func(c *Config) { c.Input.X = 0 }},
		{name: "bad input type", mutate: func(c *Config) { c.InputType = "int8" }},
		{name: "no input name", mutate: func(c *Config) { c.InputName = "" }},
		{name: "missing output", mutate: func(c *Config) { delete(c.OutputNames, inference.OutputCount) }},
		{name: "no detections", mutate: func(c *Config) { c.MaxDetections = 0 }},
		{name: "bad provider", mutate: func(c *Config) { c.Providers.Backend = "tpu" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.OutputNames = map[inference.OutputName]string{}
			for k, v := range DefaultConfig().OutputNames {
				cfg.OutputNames[k] = v
			}
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())

			_, err := New(cfg, nil)
			assert.Error(t, err)
		})
	}
}

func TestEngine_NotAllocated(t *testing.T) {
	e, err := New(validConfig(), nil)
	require.NoError(t, err)

	in := inference.Input{Pixels: make([]uint8, 300*300*3), Width: 300, Height: 300, Channels: 3}
	err = e.Invoke(in)
	require.Error(t, err)
	assert.ErrorIs(t, err, inference.ErrInference)

	_, err = e.Output(inference.OutputBoxes)
	assert.ErrorIs(t, err, inference.ErrInference)

	assert.NoError(t, e.Close())
}
