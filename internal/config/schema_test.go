// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rollcall Contributors

package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollcall/rollcall/internal/config"
)

func TestGenerateSchema(t *testing.T) {
	schema, err := config.GenerateSchema()
	require.NoError(t, err)

	s := string(schema)
	assert.Contains(t, s, "Rollcall Configuration")
	assert.Contains(t, s, "token_secret")
	assert.Contains(t, s, "reset_link_base")
}

func TestValidateSchema(t *testing.T) {
	t.Run("valid file passes", func(t *testing.T) {
		require.NoError(t, config.ValidateFile("testdata/rollcall.yaml"))
	})

	t.Run("empty data rejected", func(t *testing.T) {
		require.Error(t, config.ValidateSchema(nil))
	})

	t.Run("malformed yaml rejected", func(t *testing.T) {
		require.Error(t, config.ValidateSchema([]byte("{: not yaml")))
	})

	t.Run("wrong type rejected", func(t *testing.T) {
		err := config.ValidateSchema([]byte("log:\n  level: 42\n"))
		require.Error(t, err)
	})
}
