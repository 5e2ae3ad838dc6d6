// Command slabcached runs the slab allocator and rebalancer with its admin
// surface bound to a TCP address, loading tunables from an optional YAML
// config file (slab.LoadConfig) and persisting automove decisions to an
// embedded journal when one is configured.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"

	"github.com/cachecore/slabcache/admin"
	"github.com/cachecore/slabcache/hk"
	"github.com/cachecore/slabcache/journal"
	"github.com/cachecore/slabcache/slab"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file (defaults used if empty)")
		addr       = flag.String("listen", ":8080", "admin HTTP listen address")
		authSecret = flag.String("auth-secret", "", "HMAC secret for bearer-token auth; empty disables auth")
		journalDB  = flag.String("journal", "", "path to a buntdb file recording automove decisions; empty disables the journal")
	)
	flag.Parse()

	cfg := slab.DefaultConfig()
	if *configPath != "" {
		loaded, err := slab.LoadConfig(*configPath)
		if err != nil {
			glog.Fatalf("slabcached: loading config %s: %v", *configPath, err)
		}
		cfg = loaded
	}

	go hk.DefaultHK.Run()
	defer hk.DefaultHK.Stop()

	a := slab.New(cfg, nil)
	m := a.StartMaintenance(nil, "slabcached")
	defer m.Stop()

	if *journalDB != "" {
		j, err := journal.Open(*journalDB, 0)
		if err != nil {
			glog.Fatalf("slabcached: opening journal %s: %v", *journalDB, err)
		}
		defer j.Close()
		a.SetDecisionSink(j)
	}

	var auth *admin.Authenticator
	if *authSecret != "" {
		auth = admin.NewAuthenticator(*authSecret)
	}
	srv := admin.NewServer(a, auth)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	glog.Infof("slabcached: admin surface listening on %s", *addr)
	if err := srv.ListenAndServe(ctx, *addr); err != nil {
		glog.Fatalf("slabcached: admin server exited: %v", err)
	}
}
