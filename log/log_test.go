// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithContextFollowsRoot(t *testing.T) {
	prev := Root()
	defer SetDefault(prev)

	logger := WithContext("pkg", "registry")

	var buf bytes.Buffer
	SetDefault(NewLogger(NewJSONHandler(&buf, LevelDebug)))
	logger.With("pid", 1).Info("added pool", "gauge", "0x01")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "registry", record["pkg"])
	assert.Equal(t, "added pool", record["msg"])
	assert.Equal(t, float64(1), record["pid"])

	buf.Reset()
	logger.Trace("dropped")
	assert.Zero(t, buf.Len())
}

func TestFromLegacyLevel(t *testing.T) {
	assert.Equal(t, LevelInfo, FromLegacyLevel(3))
	assert.Equal(t, LevelDebug, FromLegacyLevel(4))
}
