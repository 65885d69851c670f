package out

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ggonzalez94/dotsign/internal/config"
	"github.com/ggonzalez94/dotsign/internal/model"
)

func TestRenderJSONSelectResultsOnly(t *testing.T) {
	env := model.Envelope{
		Version: "v1",
		Success: true,
		Data:    []map[string]any{{"genesis_hash": "0xaa", "spec_version": 5}},
		Meta:    model.EnvelopeMeta{Timestamp: time.Now()},
	}
	settings := config.Settings{OutputMode: "json", SelectFields: []string{"spec_version"}, ResultsOnly: true}
	var buf bytes.Buffer
	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var out []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if len(out) != 1 || out[0]["spec_version"].(float64) != 5 {
		t.Fatalf("unexpected output: %s", buf.String())
	}
	if _, ok := out[0]["genesis_hash"]; ok {
		t.Fatalf("field projection failed: %s", buf.String())
	}
}

func TestRenderPlain(t *testing.T) {
	env := model.Envelope{
		Version:  "v1",
		Success:  true,
		Data:     []map[string]any{{"name": "Polkadot", "ss58_format": 0}},
		Warnings: []string{"metadata refresh skipped"},
		Meta:     model.EnvelopeMeta{Timestamp: time.Now()},
	}
	var buf bytes.Buffer
	if err := Render(&buf, env, config.Settings{OutputMode: "plain"}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "name=Polkadot") {
		t.Fatalf("unexpected plain output: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "warning: metadata refresh skipped") {
		t.Fatalf("expected warning line: %s", buf.String())
	}
}

func TestRenderPlainDisclosureRows(t *testing.T) {
	env := model.Envelope{
		Success: true,
		Data: []model.DisclosureRow{
			{Kind: "heading", Value: "Transaction Approval Request from https://app.example"},
			{Kind: "fee", Label: "Estimated Fee", Value: "0.0157 DOT"},
		},
	}
	var buf bytes.Buffer
	if err := Render(&buf, env, config.Settings{OutputMode: "plain", ResultsOnly: true}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	want := "Transaction Approval Request from https://app.example\nEstimated Fee: 0.0157 DOT\n"
	if buf.String() != want {
		t.Fatalf("unexpected rows output: %q", buf.String())
	}
}

func TestRenderPlainDisclosureRowsEscapesLineBreaks(t *testing.T) {
	env := model.Envelope{
		Success: true,
		Data: []model.DisclosureRow{
			{Kind: "argument", Label: "Remark", Value: "hi\nEstimated Fee: 0.0001 DOT\x1b[8m"},
			{Kind: "fee", Label: "Estimated Fee", Value: "500 DOT"},
		},
	}
	var buf bytes.Buffer
	if err := Render(&buf, env, config.Settings{OutputMode: "plain", ResultsOnly: true}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	want := "Remark: hi\\nEstimated Fee: 0.0001 DOT\\x1b[8m\nEstimated Fee: 500 DOT\n"
	if buf.String() != want {
		t.Fatalf("unexpected rows output: %q", buf.String())
	}
}

func TestRenderPlainError(t *testing.T) {
	env := model.Envelope{Error: &model.ErrorBody{Code: 15, Type: "declined", Message: "User declined the signing request."}}
	var buf bytes.Buffer
	if err := Render(&buf, env, config.Settings{OutputMode: "plain"}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if buf.String() != "error 15 (declined): User declined the signing request.\n" {
		t.Fatalf("unexpected error output: %q", buf.String())
	}
}
