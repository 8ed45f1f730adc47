package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decodeResponse(t *testing.T, out string) (CLIResponse, map[string]any) {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	data, _ := resp.Data.(map[string]any)
	return resp, data
}

func writeBatch(t *testing.T, dir string, b Batch) string {
	t.Helper()
	data, err := json.Marshal(b)
	require.NoError(t, err)
	path := filepath.Join(dir, "batch.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func sampleBatch(now time.Time) Batch {
	track := func(tn, status string, started time.Time) model.TrackingRecord {
		return model.TrackingRecord{
			TrackingNumber: tn,
			Carrier:        "Servientrega",
			Status:         status,
			LastUpdate:     now.Add(-time.Hour),
			Destination:    "Bogotá",
			Events: []model.TrackingEvent{
				{Timestamp: started, Description: "Guía generada"},
			},
		}
	}
	return Batch{
		Trackings: []model.TrackingRecord{
			track("INT123", "EN TRANSITO", now.Add(-8*24*time.Hour)),
			track("INT124", "ENTREGADO", now.Add(-3*24*time.Hour)),
		},
		Orders: []model.OrderRecord{{
			OrderNumber:    "ORD-9",
			TrackingNumber: "ONLY999",
			Customer:       model.Customer{Name: "Ana", Address: "Calle 1", City: "Cali"},
			Product:        model.Product{Name: "Lamp", Quantity: 1, Value: 90000},
			CreatedAt:      now.Add(-24 * time.Hour),
		}},
	}
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "shipbrain", cmd.Use)

	for _, name := range []string{"ingest", "analyze", "predict", "rules", "run", "export", "import"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	sub, _, err := cmd.Find([]string{"rules", "validate"})
	require.NoError(t, err)
	assert.Equal(t, "validate", sub.Name())
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	cfg := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, cfg)
	assert.Equal(t, "c", cfg.Shorthand)

	assert.NotNil(t, cmd.PersistentFlags().Lookup("store"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "rules", "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestLoadSettings(t *testing.T) {
	s, err := loadSettings(&RootOptions{StorePath: "/tmp/x.db", LogLevel: "debug"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", s.Storage.Driver)
	assert.Equal(t, "/tmp/x.db", s.Storage.Path)
	assert.Equal(t, "debug", s.Log.Level)

	_, err = loadSettings(&RootOptions{LogLevel: "loud"})
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = loadSettings(&RootOptions{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}

func TestLoadSettings_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shipbrain.yaml")
	require.NoError(t, os.WriteFile(path, []byte("unify:\n  delay_days: 3\n"), 0o644))

	s, err := loadSettings(&RootOptions{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Unify.DelayDays)
}

func TestIngestPredictExport(t *testing.T) {
	dir := t.TempDir()
	store := filepath.Join(dir, "state.db")
	batch := writeBatch(t, dir, sampleBatch(time.Now().UTC()))

	out, err := execute(t, "--store", store, "--format", "json", "ingest", batch)
	require.NoError(t, err)
	resp, data := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.EqualValues(t, 3, data["created"])
	assert.EqualValues(t, 0, data["pendingOrders"])

	// A second process sees the persisted registry.
	out, err = execute(t, "--store", store, "--format", "json", "predict", "INT124")
	require.NoError(t, err)
	resp, data = decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, data["shipmentId"])
	assert.Contains(t, data, "deliveryDays")

	out, err = execute(t, "--store", store, "predict", "INT123")
	require.NoError(t, err)
	assert.Contains(t, out, "INT123")
	assert.Contains(t, out, "delivery days")

	out, err = execute(t, "--store", store, "export")
	require.NoError(t, err)
	assert.Contains(t, out, "INT123")
	assert.Contains(t, out, "ONLY999")
}

func TestIngest_TextOutput(t *testing.T) {
	dir := t.TempDir()
	batch := writeBatch(t, dir, sampleBatch(time.Now().UTC()))

	out, err := execute(t, "ingest", batch)
	require.NoError(t, err)
	assert.Contains(t, out, "created 3")
	// INT123 is eight days in transit; the default delay rule fires.
	assert.Contains(t, out, "1 alerts raised")
}

func TestIngest_BadInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"shipments": []}`), 0o644))

	_, err := execute(t, "ingest", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "ingest", filepath.Join(dir, "absent.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestPredict_Unknown(t *testing.T) {
	_, err := execute(t, "predict", "NOPE")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestAnalyze(t *testing.T) {
	dir := t.TempDir()
	store := filepath.Join(dir, "state.db")
	batch := writeBatch(t, dir, sampleBatch(time.Now().UTC()))

	_, err := execute(t, "--store", store, "ingest", batch)
	require.NoError(t, err)

	out, err := execute(t, "--store", store, "--format", "json", "analyze")
	require.NoError(t, err)
	resp, data := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.EqualValues(t, 3, data["shipments"])

	out, err = execute(t, "--store", store, "analyze")
	require.NoError(t, err)
	assert.Contains(t, out, "3 shipments")
}

func TestRulesValidate(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		content  string
		wantCode int
		wantOut  string
	}{
		{
			name: "valid",
			content: `rules:
  - id: long_transit
    trigger: shipment.delayed
    when: daysInTransit > 10
    action:
      type: create_alert
      params: {severity: warning}
`,
			wantCode: ExitSuccess,
			wantOut:  "is valid (1 rules)",
		},
		{
			name: "invalid",
			content: `rules:
  - id: broken
    trigger: shipment.exploded
    action: {type: create_alert}
  - id: no_action
    trigger: shipment.delayed
`,
			wantCode: ExitFailure,
			wantOut:  "is invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			out, err := execute(t, "rules", "validate", path)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
			assert.Contains(t, out, tt.wantOut)
		})
	}
}

func TestRulesValidate_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: ["), 0o644))

	out, err := execute(t, "--format", "json", "rules", "validate", path)
	require.Error(t, err)
	resp, _ := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "rule file is invalid", resp.Error.Message)
}

func TestRulesList(t *testing.T) {
	out, err := execute(t, "rules", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "delayed_shipment_alert")
	assert.Contains(t, out, "delivered_notification")
}

func TestExportImport(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.db")
	dst := filepath.Join(dir, "dst.db")
	dump := filepath.Join(dir, "dump.json")
	batch := writeBatch(t, dir, sampleBatch(time.Now().UTC()))

	_, err := execute(t, "--store", src, "ingest", batch)
	require.NoError(t, err)
	_, err = execute(t, "--store", src, "export", "-o", dump)
	require.NoError(t, err)

	out, err := execute(t, "--store", dst, "import", dump)
	require.NoError(t, err)
	assert.Contains(t, out, "imported")

	out, err = execute(t, "--store", dst, "predict", "ONLY999")
	require.NoError(t, err)
	assert.Contains(t, out, "ONLY999")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "x", assert.AnError)))
	assert.ErrorIs(t, WrapExitError(ExitFailure, "x", assert.AnError), assert.AnError)
}
