package triage_test

import (
	"testing"

	"github.com/kisaansahayak/sahayak/internal/triage"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  triage.Decision
	}{
		{
			"prose around json",
			`Sure, here it is: {"dhenu_needed": true, "dhenu_question": "soil pH for wheat"}`,
			triage.Decision{Decoded: true, Needed: true, Question: "soil pH for wheat"},
		},
		{"plain prose", "I think the farmer should ask an expert.", triage.Undecodable},
		{"empty", "   ", triage.Undecodable},
		{
			"fenced",
			"```json\n{\"dhenu_needed\": false, \"dhenu_question\": \"\"}\n```",
			triage.Decision{Decoded: true},
		},
		{
			"question trimmed",
			`{"dhenu_needed":true,"dhenu_question":"  aphids on mustard  "}`,
			triage.Decision{Decoded: true, Needed: true, Question: "aphids on mustard"},
		},
		{
			"truthy string",
			`{"dhenu_needed":"yes","dhenu_question":"x"}`,
			triage.Decision{Decoded: true, Needed: true, Question: "x"},
		},
		{
			"non-string question",
			`{"dhenu_needed":1,"dhenu_question":42}`,
			triage.Decision{Decoded: true, Needed: true},
		},
		{"two objects", `{"dhenu_needed": true} and {"dhenu_question": "x"}`, triage.Undecodable},
		{"broken json", `{"dhenu_needed": tru`, triage.Undecodable},
		{"missing keys", `{}`, triage.Decision{Decoded: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := triage.Decode(tt.reply); got != tt.want {
				t.Errorf("Decode(%q) = %+v, want %+v", tt.reply, got, tt.want)
			}
		})
	}
}

func TestConsult(t *testing.T) {
	if triage.Undecodable.Consult() {
		t.Error("Undecodable.Consult() = true, want false")
	}
	if (triage.Decision{Decoded: true, Needed: true}).Consult() {
		t.Error("Consult() with empty question = true, want false")
	}
	if !(triage.Decision{Decoded: true, Needed: true, Question: "q"}).Consult() {
		t.Error("Consult() = false, want true")
	}
}
