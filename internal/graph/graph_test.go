package graph

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ShayCichocki/krishi/pkg/models"
)

const (
	agri   = models.WorkerAgriculture
	policy = models.WorkerPolicy
	sust   = models.WorkerSustainability
	trans  = models.WorkerTranslator
)

func TestBuild_UnknownWorker(t *testing.T) {
	g := New()
	err := g.Build([]models.WorkerType{"weather"}, nil)
	if err == nil {
		t.Fatal("expected error for unknown worker type")
	}
}

func TestBuild_SelfDependency(t *testing.T) {
	g := New()
	err := g.Build([]models.WorkerType{agri}, map[models.WorkerType][]models.WorkerType{
		agri: {agri},
	})
	if !errors.Is(err, ErrCycleDetected) {
		t.Errorf("Build() error = %v, want ErrCycleDetected", err)
	}
}

func TestBuild_Cycle(t *testing.T) {
	g := New()
	err := g.Build([]models.WorkerType{agri, sust, policy}, map[models.WorkerType][]models.WorkerType{
		sust:   {agri},
		policy: {sust},
		agri:   {policy},
	})
	if !errors.Is(err, ErrCycleDetected) {
		t.Errorf("Build() error = %v, want ErrCycleDetected", err)
	}
}

func TestBuild_IgnoresDependenciesOutsideRequiredSet(t *testing.T) {
	g := New()
	err := g.Build([]models.WorkerType{sust}, map[models.WorkerType][]models.WorkerType{
		sust: {agri},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if deps := g.GetDependencies(sust); len(deps) != 0 {
		t.Errorf("GetDependencies(sustainability) = %v, want none", deps)
	}
	if g.Size() != 1 {
		t.Errorf("Size() = %d, want 1", g.Size())
	}
}

func TestBatches(t *testing.T) {
	tests := []struct {
		name     string
		required []models.WorkerType
		deps     map[models.WorkerType][]models.WorkerType
		want     [][]models.WorkerType
	}{
		{
			name:     "independent workers share one batch",
			required: []models.WorkerType{policy, agri},
			want:     [][]models.WorkerType{{agri, policy}},
		},
		{
			name:     "sustainability waits for agriculture",
			required: []models.WorkerType{agri, policy, sust},
			deps:     map[models.WorkerType][]models.WorkerType{sust: {agri}},
			want:     [][]models.WorkerType{{agri, policy}, {sust}},
		},
		{
			name:     "chain produces one batch per link",
			required: []models.WorkerType{trans, sust, agri},
			deps: map[models.WorkerType][]models.WorkerType{
				sust:  {agri},
				trans: {sust},
			},
			want: [][]models.WorkerType{{agri}, {sust}, {trans}},
		},
		{
			name:     "diamond",
			required: []models.WorkerType{agri, policy, sust, trans},
			deps: map[models.WorkerType][]models.WorkerType{
				policy: {agri},
				sust:   {agri},
				trans:  {policy, sust},
			},
			want: [][]models.WorkerType{{agri}, {policy, sust}, {trans}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			if err := g.Build(tt.required, tt.deps); err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			got, err := g.Batches()
			if err != nil {
				t.Fatalf("Batches() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Batches() = %v, want %v", got, tt.want)
			}
			assertDependenciesEarlier(t, got, tt.deps)
		})
	}
}

// assertDependenciesEarlier checks that every worker's dependencies sit in a
// strictly earlier batch.
func assertDependenciesEarlier(t *testing.T, batches [][]models.WorkerType, deps map[models.WorkerType][]models.WorkerType) {
	t.Helper()
	index := make(map[models.WorkerType]int)
	for i, b := range batches {
		for _, w := range b {
			index[w] = i
		}
	}
	for w, ds := range deps {
		wi, ok := index[w]
		if !ok {
			continue
		}
		for _, d := range ds {
			di, ok := index[d]
			if !ok {
				continue
			}
			if di >= wi {
				t.Errorf("%s (batch %d) depends on %s (batch %d)", w, wi, d, di)
			}
		}
	}
}

func TestGetDependents(t *testing.T) {
	g := New()
	err := g.Build([]models.WorkerType{agri, policy, sust}, map[models.WorkerType][]models.WorkerType{
		sust:   {agri},
		policy: {agri},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	got := g.GetDependents(agri)
	want := []models.WorkerType{policy, sust}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GetDependents(agriculture) = %v, want %v", got, want)
	}
}
