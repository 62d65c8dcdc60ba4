package protocol

import (
	"encoding/json"
	"net/url"
	"strings"
	"testing"
)

func TestServerMessageShapes(t *testing.T) {
	p := Partial("hello")
	if p.Type != MessageTypePartial || p.IsFinal {
		t.Errorf("Unexpected partial message: %+v", p)
	}

	f := Final("hello world")
	if f.Type != MessageTypeFinal || !f.IsFinal {
		t.Errorf("Unexpected final message: %+v", f)
	}
}

func TestServerMessageJSON(t *testing.T) {
	data, err := json.Marshal(Final("done"))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	want := `{"type":"final","text":"done","is_final":true}`
	if string(data) != want {
		t.Errorf("Expected %s, got %s", want, string(data))
	}

	// Partials must carry an explicit is_final=false.
	data, _ = json.Marshal(Partial("wip"))
	if !strings.Contains(string(data), `"is_final":false`) {
		t.Errorf("Partial message missing is_final=false: %s", string(data))
	}
}

func TestParseStreamParams(t *testing.T) {
	query := url.Values{}
	query.Set("session_id", "abc-123")
	query.Set("language", "en")

	params := ParseStreamParams(query)
	if params.SessionID != "abc-123" {
		t.Errorf("Expected session id abc-123, got %s", params.SessionID)
	}
	if params.Language != "en" {
		t.Errorf("Expected language en, got %s", params.Language)
	}
}

func TestParseStreamParamsAutoLanguage(t *testing.T) {
	for _, lang := range []string{"auto", "AUTO", ""} {
		query := url.Values{}
		query.Set("language", lang)

		params := ParseStreamParams(query)
		if params.Language != "" {
			t.Errorf("Expected empty language for %q, got %s", lang, params.Language)
		}
	}
}

func TestParseStreamParamsGeneratesSessionID(t *testing.T) {
	first := ParseStreamParams(url.Values{})
	second := ParseStreamParams(url.Values{})

	if first.SessionID == "" {
		t.Fatal("Expected generated session id")
	}
	if first.SessionID == second.SessionID {
		t.Error("Expected unique generated session ids")
	}
}

func TestValidateSessionID(t *testing.T) {
	if err := ValidateSessionID("ok-id"); err != nil {
		t.Errorf("Unexpected error for valid id: %v", err)
	}
	if err := ValidateSessionID(""); err == nil {
		t.Error("Expected error for empty id")
	}
	if err := ValidateSessionID(strings.Repeat("x", 200)); err == nil {
		t.Error("Expected error for oversized id")
	}
}
