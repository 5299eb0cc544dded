package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listing struct {
	Name   string `json:"name" yaml:"name"`
	Offset uint64 `json:"offset" yaml:"offset"`
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, []listing{{Name: "a.wav", Offset: 4096}}))

	out := buf.String()
	assert.Contains(t, out, `"name": "a.wav"`)
	assert.Contains(t, out, `"offset": 4096`)
}

func TestPrintYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintYAML(&buf, []listing{{Name: "a.wav", Offset: 4096}, {Name: "b.wav"}}))

	out := buf.String()
	assert.Contains(t, out, "- name: a.wav")
	assert.Contains(t, out, "  offset: 4096")
	assert.Contains(t, out, "- name: b.wav")
}
