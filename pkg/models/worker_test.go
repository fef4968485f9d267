package models

import (
	"reflect"
	"testing"
	"time"
)

func TestWorkerType_Valid(t *testing.T) {
	tests := []struct {
		name   string
		worker WorkerType
		want   bool
	}{
		{"policy is valid", WorkerPolicy, true},
		{"agriculture is valid", WorkerAgriculture, true},
		{"sustainability is valid", WorkerSustainability, true},
		{"translator is valid", WorkerTranslator, true},
		{"empty string is invalid", WorkerType(""), false},
		{"uppercase is invalid", WorkerType("POLICY"), false},
		{"unknown is invalid", WorkerType("weather"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.worker.Valid(); got != tt.want {
				t.Errorf("WorkerType(%q).Valid() = %v, want %v", tt.worker, got, tt.want)
			}
		})
	}
}

func TestSortWorkers(t *testing.T) {
	ws := []WorkerType{WorkerTranslator, WorkerSustainability, WorkerPolicy, WorkerAgriculture}
	SortWorkers(ws)

	want := []WorkerType{WorkerAgriculture, WorkerPolicy, WorkerSustainability, WorkerTranslator}
	if !reflect.DeepEqual(ws, want) {
		t.Errorf("SortWorkers = %v, want %v", ws, want)
	}
}

func TestResultStatus_Failed(t *testing.T) {
	tests := []struct {
		status ResultStatus
		want   bool
	}{
		{StatusOK, false},
		{StatusLowConfidence, false},
		{StatusTimeout, true},
		{StatusError, true},
	}

	for _, tt := range tests {
		if got := tt.status.Failed(); got != tt.want {
			t.Errorf("%s.Failed() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestSeasonFor(t *testing.T) {
	tests := []struct {
		month time.Month
		want  Season
	}{
		{time.January, SeasonRabi},
		{time.April, SeasonZaid},
		{time.May, SeasonZaid},
		{time.June, SeasonKharif},
		{time.October, SeasonKharif},
		{time.November, SeasonRabi},
	}

	for _, tt := range tests {
		got := SeasonFor(time.Date(2026, tt.month, 10, 0, 0, 0, 0, time.UTC))
		if got != tt.want {
			t.Errorf("SeasonFor(%s) = %s, want %s", tt.month, got, tt.want)
		}
	}
}
