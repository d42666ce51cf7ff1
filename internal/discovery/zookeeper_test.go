package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/danmuck/scramctl/internal/testutil/testlog"
	"github.com/go-zookeeper/zk"
)

type fakeLister struct {
	path     string
	children []string
	err      error
}

func (f *fakeLister) Children(path string) ([]string, *zk.Stat, error) {
	f.path = path
	return f.children, &zk.Stat{NumChildren: int32(len(f.children))}, f.err
}

func TestParseServerInfo(t *testing.T) {
	testlog.Start(t)
	got := ParseServerInfo([]string{
		"serverUri=auth1.internal:7443;version=2.1;sequence=0000000007",
		"serverUri=[::1]:7444;sequence=0000000008",
		"serverUri=no-port;sequence=1",
		"serverUri=auth2:0",
		"garbage",
		"version=2.1",
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 endpoints, got %+v", got)
	}
	if got[0].Host != "auth1.internal" || got[0].Port != 7443 || got[0].Attrs["version"] != "2.1" {
		t.Fatalf("unexpected first endpoint: %+v", got[0])
	}
	if got[1].Addr() != "[::1]:7444" {
		t.Fatalf("unexpected ipv6 addr: %s", got[1].Addr())
	}
}

func TestResolveListsNamespace(t *testing.T) {
	testlog.Start(t)
	lister := &fakeLister{children: []string{
		"serverUri=a:1;sequence=1",
		"serverUri=b:2;sequence=2",
		"serverUri=c:3;sequence=3",
	}}
	r := NewResolver(lister, Config{Namespace: "/auth/"})
	endpoints, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if lister.path != "/auth" {
		t.Fatalf("unexpected path %q", lister.path)
	}
	seen := map[string]bool{}
	for _, ep := range endpoints {
		seen[ep.Addr()] = true
	}
	if len(seen) != 3 || !seen["a:1"] || !seen["b:2"] || !seen["c:3"] {
		t.Fatalf("unexpected endpoints: %+v", endpoints)
	}
}

func TestResolveFailures(t *testing.T) {
	testlog.Start(t)
	r := NewResolver(&fakeLister{children: []string{"junk"}}, Config{})
	if _, err := r.Resolve(context.Background()); !errors.Is(err, ErrNoEndpoints) {
		t.Fatalf("expected ErrNoEndpoints, got %v", err)
	}

	r = NewResolver(&fakeLister{err: zk.ErrNoNode}, Config{})
	if _, err := r.Resolve(context.Background()); !errors.Is(err, zk.ErrNoNode) {
		t.Fatalf("expected zk.ErrNoNode in chain, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Resolve(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if _, err := Dial(Config{}); !errors.Is(err, ErrNoZooKeepers) {
		t.Fatalf("expected ErrNoZooKeepers, got %v", err)
	}
}

func TestParseHosts(t *testing.T) {
	testlog.Start(t)
	got := ParseHosts(" zk1:2181, ,zk2:2181,")
	if len(got) != 2 || got[0] != "zk1:2181" || got[1] != "zk2:2181" {
		t.Fatalf("unexpected hosts: %v", got)
	}
}
