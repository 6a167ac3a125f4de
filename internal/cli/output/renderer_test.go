package output_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbtcontracts/internal/cli/output"
)

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		name string
		mode output.Mode
		want output.Mode
	}{
		{name: "auto resolves to text", mode: output.ModeAuto, want: output.ModeText},
		{name: "empty defaults to auto", mode: "", want: output.ModeText},
		{name: "text", mode: output.ModeText, want: output.ModeText},
		{name: "json", mode: output.ModeJSON, want: output.ModeJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := output.NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, tt.mode)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestRendererWritesPlainToBuffers(t *testing.T) {
	var out, errOut bytes.Buffer
	r := output.NewRenderer(&out, &errOut, output.ModeAuto)

	r.Println("hello")
	r.Printf("%d violations\n", 3)
	r.Success("all contracts passed")
	r.Error("boom")

	// A buffer is not a TTY, so no escape sequences are emitted.
	assert.Equal(t, "hello\n3 violations\nall contracts passed\n", out.String())
	assert.Equal(t, "boom\n", errOut.String())
	assert.NotContains(t, out.String(), "\x1b[")
}

func TestRendererJSON(t *testing.T) {
	var out bytes.Buffer
	r := output.NewRenderer(&out, &bytes.Buffer{}, output.ModeJSON)

	require.NoError(t, r.JSON(map[string]int{"violations": 2}))

	var decoded map[string]int
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, 2, decoded["violations"])
}
