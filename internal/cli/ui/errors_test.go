package ui

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/conduit-lang/entityorm/internal/orm/crud"
	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

func TestFormatError(t *testing.T) {
	output := FormatError(ErrorOptions{
		Context:     "unknown entity type",
		Problem:     "cannot find entity type 'dpt'",
		Details:     []string{"domain scott"},
		Suggestions: []string{"dept"},
		NoColor:     true,
	})
	assert.Equal(t, "❌ UNKNOWN ENTITY TYPE: cannot find entity type 'dpt'\n   domain scott\n\n   Did you mean: dept?\n", output)

	assert.Equal(t, "❌ failed\n", FormatError(ErrorOptions{Problem: "failed", NoColor: true}))
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		context string
	}{
		{"contract violation", schema.ContractViolation("bad %s", "call"), "CONTRACT VIOLATION"},
		{"not found", fmt.Errorf("select: %w", crud.ErrNotFound), "NOT FOUND"},
		{"unique", crud.ErrUniqueViolation, "CONSTRAINT VIOLATION"},
		{"read only", fmt.Errorf("%w: log", crud.ErrReadOnly), "READ ONLY"},
		{"other", fmt.Errorf("boom"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			WriteError(&buf, tt.err, true)
			if tt.context == "" {
				assert.Equal(t, "❌ boom\n", buf.String())
				return
			}
			assert.Contains(t, buf.String(), "❌ "+tt.context+": ")
			assert.Contains(t, buf.String(), tt.err.Error())
		})
	}
}

func TestUnknownEntityTypeError(t *testing.T) {
	err := UnknownEntityTypeError("dpt", []string{"dept", "emp"})
	assert.Equal(t, "unknown entity type: cannot find entity type 'dpt'", err.Error())

	var buf bytes.Buffer
	WriteError(&buf, fmt.Errorf("schema: %w", err), true)
	assert.Equal(t, "❌ UNKNOWN ENTITY TYPE: cannot find entity type 'dpt'\n\n   Did you mean: dept?\n", buf.String())
}

func TestFormatSuccess(t *testing.T) {
	assert.Equal(t, "✓ created 4 tables", FormatSuccess("created 4 tables", true))

	var buf bytes.Buffer
	WriteSuccess(&buf, "done", true)
	assert.Equal(t, "✓ done\n", buf.String())
}
