package service

import (
	"context"
	"errors"
	"testing"
)

type fakeService struct {
	name  string
	err   error
	order *[]string
	run   bool
}

func (f *fakeService) Run() { f.run = true }
func (f *fakeService) Shutdown(context.Context) error {
	*f.order = append(*f.order, f.name)
	return f.err
}
func (f *fakeService) String() string { return f.name }

func TestGroup(t *testing.T) {
	var order []string
	boom := errors.New("boom")
	a := &fakeService{name: "a", order: &order}
	b := &fakeService{name: "b", order: &order, err: boom}
	c := &fakeService{name: "c", order: &order, err: context.Canceled}

	var g Group
	g.Add(a, b, c, "not runnable")
	g.Start()
	if !a.run || !b.run || !c.run {
		t.Fatalf("not all services were started")
	}

	err := g.Shutdown(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if len(order) != 3 || order[0] != "c" || order[2] != "a" {
		t.Errorf("wrong shutdown order %v", order)
	}
}

func TestGroupShutdownClean(t *testing.T) {
	var g Group
	if err := g.Shutdown(context.Background()); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
