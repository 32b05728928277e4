//go:build integration

package graph

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	tcneo4j "github.com/testcontainers/testcontainers-go/modules/neo4j"
	"go.uber.org/zap"

	"github.com/nidhogg/cerebro-cortex/internal/memory"
)

var testStore *Store

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tcneo4j.Run(ctx, "neo4j:5-community", tcneo4j.WithoutAuthentication())
	if err != nil {
		fmt.Fprintf(os.Stderr, "start neo4j: %v\n", err)
		os.Exit(1)
	}
	uri, err := container.BoltUrl(ctx)
	if err != nil {
		container.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "neo4j bolt url: %v\n", err)
		os.Exit(1)
	}
	testStore, err = NewStore(uri, "", "", zap.NewNop())
	if err == nil {
		err = testStore.EnsureSchema(ctx)
	}
	if err != nil {
		container.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "neo4j store: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	testStore.Close(ctx)
	container.Terminate(ctx)
	os.Exit(code)
}

func tenant() string { return "t-" + uuid.New().String()[:8] }

func TestMergeKeepsMaxWeight(t *testing.T) {
	ctx := context.Background()
	tn := tenant()

	l1, err := testStore.EnsureLink(ctx, tn, "a", "b", memory.LinkSemantic, 0.4, memory.OriginUser, "")
	if err != nil {
		t.Fatal(err)
	}
	if l1.ID == "" || l1.ActivationCount != 0 || l1.Origin != memory.OriginUser {
		t.Errorf("created = %+v", l1)
	}
	l2, err := testStore.EnsureLink(ctx, tn, "a", "b", memory.LinkSemantic, 0.8, memory.OriginUser, "again")
	if err != nil {
		t.Fatal(err)
	}
	if l2.ID != l1.ID || l2.Weight != 0.8 || l2.ActivationCount != 1 || l2.Evidence != "again" {
		t.Errorf("merged = %+v", l2)
	}
	l3, _ := testStore.EnsureLink(ctx, tn, "a", "b", memory.LinkSemantic, 0.1, memory.OriginUser, "")
	if l3.Weight != 0.8 || l3.Evidence != "again" {
		t.Errorf("lower weight should not win: %+v", l3)
	}

	// Same endpoints in another tenant are separate.
	other, _ := testStore.EnsureLink(ctx, tenant(), "a", "b", memory.LinkSemantic, 0.2, memory.OriginUser, "")
	if other.ID == l1.ID {
		t.Error("link shared across tenants")
	}
}

func TestStrengthenCapsAtOne(t *testing.T) {
	ctx := context.Background()
	tn := tenant()
	testStore.EnsureLink(ctx, tn, "a", "b", memory.LinkCausal, 0.97, memory.OriginSystem, "")

	ok, err := testStore.StrengthenLink(ctx, tn, "a", "b", 0.05)
	if err != nil || !ok {
		t.Fatalf("StrengthenLink = %v, %v", ok, err)
	}
	links, err := testStore.LinksTouching(ctx, tn, []string{"b"})
	if err != nil || len(links) != 1 {
		t.Fatalf("links = %v, %v", links, err)
	}
	if links[0].Weight != 1.0 || links[0].ActivationCount != 1 {
		t.Errorf("link = %+v", links[0])
	}
	if ok, _ := testStore.StrengthenLink(ctx, tn, "b", "a", 0.05); ok {
		t.Error("reverse direction should not match")
	}
}

func TestNeighborsDegreeStats(t *testing.T) {
	ctx := context.Background()
	tn := tenant()
	testStore.EnsureLink(ctx, tn, "hub", "x", memory.LinkSemantic, 0.3, memory.OriginUser, "")
	testStore.EnsureLink(ctx, tn, "y", "hub", memory.LinkCausal, 0.9, memory.OriginUser, "")
	testStore.EnsureLink(ctx, tn, "x", "y", memory.LinkCausal, 0.5, memory.OriginUser, "")

	nbs, err := testStore.GetNeighbors(ctx, tn, "hub", nil, 0)
	if err != nil || len(nbs) != 2 {
		t.Fatalf("neighbors = %v, %v", nbs, err)
	}
	if nbs[0].ID != "y" || nbs[0].Type != memory.LinkCausal {
		t.Errorf("strongest first: %+v", nbs[0])
	}
	if typed, _ := testStore.GetNeighbors(ctx, tn, "hub", []memory.LinkType{memory.LinkSemantic}, 0); len(typed) != 1 || typed[0].ID != "x" {
		t.Errorf("typed = %v", typed)
	}
	if strong, _ := testStore.GetNeighbors(ctx, tn, "hub", nil, 0.5); len(strong) != 1 {
		t.Errorf("min weight = %v", strong)
	}
	if d, err := testStore.GetDegree(ctx, tn, "hub"); err != nil || d != 2 {
		t.Errorf("degree = %d, %v", d, err)
	}
	if d, _ := testStore.GetDegree(ctx, tn, "nobody"); d != 0 {
		t.Errorf("unknown degree = %d", d)
	}

	total, byType, err := testStore.LinkStats(ctx, tn)
	if err != nil || total != 3 || byType[memory.LinkCausal] != 2 || byType[memory.LinkSemantic] != 1 {
		t.Errorf("stats = %d %v %v", total, byType, err)
	}
}

func TestSpreadOverNeo4j(t *testing.T) {
	ctx := context.Background()
	tn := tenant()
	testStore.EnsureLink(ctx, tn, "seed", "mid", memory.LinkSemantic, 1, memory.OriginSystem, "")
	testStore.EnsureLink(ctx, tn, "mid", "far", memory.LinkSemantic, 1, memory.OriginSystem, "")

	res, err := memory.NewSpreader(testStore, zap.NewNop()).Spread(ctx, tn, []string{"seed"}, memory.DefaultActivationOpts())
	if err != nil {
		t.Fatal(err)
	}
	if res.Value("mid") <= res.Value("far") || res.Value("far") == 0 {
		t.Errorf("activation mid=%v far=%v", res.Value("mid"), res.Value("far"))
	}
}
