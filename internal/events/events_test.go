package events

import "testing"

func TestNewASREventRoundTrip(t *testing.T) {
	ev, err := NewASREvent("corr-1", ASRData{Text: "hello", Confidence: 0.9, IsFinal: true, SegmentID: "seg-1"})
	if err != nil {
		t.Fatalf("NewASREvent: %v", err)
	}
	if err := Validate(ev); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if ev.CorrelationID != "corr-1" {
		t.Fatalf("correlation id = %q, want corr-1", ev.CorrelationID)
	}
}

func TestValidateRejectsUnknownType(t *testing.T) {
	ev := Event{Type: "bogus", CorrelationID: "c", Data: []byte(`{}`)}
	if err := Validate(ev); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestValidateRejectsMalformedData(t *testing.T) {
	ev := Event{Type: TypeASR, CorrelationID: "c", Data: []byte(`{"unexpectedField": true}`)}
	if err := Validate(ev); err == nil {
		t.Fatal("expected error for malformed data")
	}
}

func TestValidateRejectsEmptyData(t *testing.T) {
	ev := Event{Type: TypeStatus, CorrelationID: "c"}
	if err := Validate(ev); err == nil {
		t.Fatal("expected error for empty data")
	}
}

func TestValidateCommandKnownAndUnknown(t *testing.T) {
	valid := CommandEnvelope{Command: CommandStopListening, Params: []byte(`{"correlationId":"c"}`)}
	if err := ValidateCommand(valid); err != nil {
		t.Fatalf("ValidateCommand: %v", err)
	}

	unknown := CommandEnvelope{Command: "doSomethingElse", Params: []byte(`{}`)}
	if err := ValidateCommand(unknown); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestValidateCommandClearHistoryAllowsEmptyParams(t *testing.T) {
	c := CommandEnvelope{Command: CommandClearHistory}
	if err := ValidateCommand(c); err != nil {
		t.Fatalf("ValidateCommand: %v", err)
	}
}

func TestDecodeParams(t *testing.T) {
	c := CommandEnvelope{
		Command: CommandStartListening,
		Params:  []byte(`{"sourceLanguage":"en","targetLanguage":"ja","correlationId":"c1"}`),
	}
	var p StartListeningParams
	if err := DecodeParams(c, &p); err != nil {
		t.Fatalf("DecodeParams: %v", err)
	}
	if p.SourceLanguage != "en" || p.TargetLanguage != "ja" || p.CorrelationID != "c1" {
		t.Fatalf("unexpected params: %+v", p)
	}
}
