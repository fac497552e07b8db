package main

import (
	"context"
	"flag"
	"net/http"

	"github.com/plan-systems/klog"

	"stellarid/internal/api"
	"stellarid/internal/config"
	"stellarid/internal/crypto"
	"stellarid/internal/signer"
	"stellarid/internal/vault"
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	if err := config.Init(); err != nil {
		klog.Fatalf("failed to load config: %v", err)
	}

	store, err := vault.OpenStore(config.GetDataDir())
	if err != nil {
		klog.Fatalf("failed to open account store at %s: %v", config.GetDataDir(), err)
	}
	defer store.Close()

	manager := vault.NewManager(store, vault.Options{
		CipherParams:      crypto.DefaultParams,
		MinPasswordLength: config.GetMinPasswordLength(),
		Signer:            signer.New(config.GetServerSalt()),
	})
	if err := manager.LoadAccounts(); err != nil {
		klog.Fatalf("failed to load accounts: %v", err)
	}
	klog.Infof("loaded %d account(s) from %s", len(manager.List()), config.GetDataDir())

	if config.GetDemoAccount() {
		if _, err := manager.EnsureDemoAccount(context.Background()); err != nil {
			klog.Warningf("failed to provision demo account: %v", err)
		}
	}

	router := api.SetupRouter(manager)

	addr := ":" + config.GetPort()
	klog.Infof("confirmation surface listening on %s for %s", addr, config.GetTrustedOrigin())
	if err := http.ListenAndServe(addr, router); err != nil {
		klog.Fatalf("server stopped: %v", err)
	}
}
