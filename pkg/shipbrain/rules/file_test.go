package rules

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/event"
)

const sampleRules = `
rules:
  - id: slow_envia
    name: Slow Envia shipments
    trigger: shipment.delayed
    condition:
      carrier: envia
      daysInTransit: {gte: 7}
    action:
      type: create_alert
      params:
        severity: warning
        category: carrier_delay
    priority: 20
    confidence: 70
    autoExecute: true
  - id: returns
    trigger: shipment.updated
    when: status == returned
    action:
      type: log
    enabled: false
`

func TestDecode(t *testing.T) {
	rules, err := Decode(strings.NewReader(sampleRules))
	require.NoError(t, err)
	require.Len(t, rules, 2)

	slow := rules[0]
	assert.Equal(t, "slow_envia", slow.ID)
	assert.Equal(t, event.KindShipmentDelayed, slow.TriggerEvent)
	assert.True(t, slow.Enabled, "enabled defaults to true")
	assert.True(t, slow.AutoExecute)
	assert.Equal(t, 70.0, slow.Confidence)
	assert.Equal(t, "warning", slow.Action.Params["severity"])
	assert.Equal(t, OriginFile, slow.Origin)
	assert.True(t, slow.Matches(map[string]any{"carrier": "envia", "daysInTransit": 7}))
	assert.False(t, slow.Matches(map[string]any{"carrier": "envia", "daysInTransit": 6}))

	ret := rules[1]
	assert.False(t, ret.Enabled)
	assert.Equal(t, float64(DefaultConfidence), ret.Confidence)
	assert.True(t, ret.Matches(map[string]any{"status": "returned"}))
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bad yaml", "rules: [", "parse rules"},
		{"unknown key", "rules:\n  - id: a\n    trigger: shipment.updated\n    action: {type: log}\n    colour: red\n", "parse rules"},
		{"invalid rule", "rules:\n  - id: a\n    trigger: nope\n    action: {type: log}\n", "rules[0]"},
		{"duplicate", "rules:\n  - {id: a, trigger: shipment.updated, action: {type: log}}\n  - {id: a, trigger: shipment.updated, action: {type: log}}\n", "rules[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.in))
			assert.ErrorContains(t, err, tt.want)
		})
	}

	rules, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestEncode_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Defaults()))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	require.Len(t, decoded, len(Defaults()))
	for i, r := range Defaults() {
		assert.Equal(t, r.ID, decoded[i].ID)
		assert.Equal(t, r.TriggerEvent, decoded[i].TriggerEvent)
		assert.Equal(t, r.AutoExecute, decoded[i].AutoExecute)
		assert.Equal(t, r.Priority, decoded[i].Priority)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRules), 0o644))

	rules, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, rules, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "read rules file")
}
