// Command stpd is the reference host process for pkg/stpengine: it
// owns the raw BPDU sockets, watches link state over netlink, exposes
// the management API, and keeps the protocol core's scheduler ticking
// for a real Linux bridge. None of this process's code feeds back
// into the engine's own decisions — it only calls the public API and
// implements the callback table.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thelastdreamer/spantree/pkg/audit"
	"github.com/thelastdreamer/spantree/pkg/hostlink"
	"github.com/thelastdreamer/spantree/pkg/hostnet"
	"github.com/thelastdreamer/spantree/pkg/mgmtapi"
	"github.com/thelastdreamer/spantree/pkg/stpconfig"
	"github.com/thelastdreamer/spantree/pkg/stpengine"
)

const version = "0.1.0"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			fmt.Printf("stpd v%s\n", version)
			return
		case "help", "--help", "-h":
			printHelp()
			return
		}
	}
	run()
}

func printHelp() {
	fmt.Println("stpd - IEEE 802.1Q spanning-tree daemon")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  stpd -config <path>   run the daemon against a config file")
	fmt.Println("  stpd version          print the daemon version")
	fmt.Println("  stpd help             print this message")
}

func run() {
	fs := flag.NewFlagSet("stpd", flag.ExitOnError)
	configFile := fs.String("config", "/etc/stpd/config.yaml", "path to configuration file")
	logLevel := fs.String("log-level", "info", "logrus level: debug, info, warn, error")
	fs.Parse(os.Args[1:])

	log := logrus.New()
	if lvl, err := logrus.ParseLevel(*logLevel); err == nil {
		log.SetLevel(lvl)
	}
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := stpconfig.Load(*configFile)
	if err != nil {
		log.WithError(err).Fatal("loading configuration")
	}

	store, err := audit.Open(cfg.Audit.DatabasePath)
	if err != nil {
		log.WithError(err).Fatal("opening audit database")
	}
	defer store.Close()

	bridgeAddr, err := cfg.BridgeAddressBytes()
	if err != nil {
		log.WithError(err).Fatal("parsing bridge address")
	}

	sockets := make([]*hostnet.Socket, len(cfg.Ports))
	for _, p := range cfg.Ports {
		sock, err := hostnet.NewSocket(p.Interface)
		if err != nil {
			log.WithError(err).WithField("interface", p.Interface).Fatal("opening raw bpdu socket")
		}
		sockets[p.Index] = sock
		defer sock.Close()
	}

	callbacks := newHostCallbacks(log, sockets, store, nil)

	bridge, err := stpengine.NewBridge(len(cfg.Ports), cfg.MstiCount, callbacks, bridgeAddr, cfg.Version())
	if err != nil {
		log.WithError(err).Fatal("creating bridge")
	}

	mgmt := mgmtapi.NewServer(bridge, store, mgmtapi.Config{
		ListenAddr: cfg.Mgmt.ListenAddr,
		JWTSecret:  cfg.Mgmt.JWTSecret,
		TokenTTL:   time.Duration(cfg.Mgmt.TokenTTLMins) * time.Minute,
	})
	callbacks.mgmt = mgmt

	for _, vm := range cfg.Vlans {
		if err := bridge.SetVlanToMstid(vm.VID, vm.MSTID, time.Now()); err != nil {
			log.WithError(err).WithField("vid", vm.VID).Warn("failed to map vlan")
		}
	}
	if cfg.MstConfigName != "" {
		bridge.SetMstConfigName(cfg.MstConfigName, time.Now())
	}
	bridge.SetMstConfigRevision(cfg.MstRevision, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, p := range cfg.Ports {
		go receiveLoop(ctx, log, bridge, sockets[p.Index], p.Index)
	}

	watcher, err := hostlink.NewWatcher(linkSlavesFromConfig(cfg))
	if err != nil {
		log.WithError(err).Warn("link-state watcher unavailable, relying on initial port-enable only")
	} else {
		defer watcher.Close()
		go linkEventLoop(ctx, log, bridge, cfg, watcher)
	}

	for _, p := range cfg.Ports {
		if err := bridge.OnPortEnabled(p.Index, 0, true, time.Now()); err != nil {
			log.WithError(err).WithField("port", p.Index).Warn("failed to enable port")
		}
	}

	go tickLoop(ctx, bridge)

	go func() {
		log.WithField("addr", cfg.Mgmt.ListenAddr).Info("management api listening")
		if err := mgmt.ListenAndServe(); err != nil {
			log.WithError(err).Error("management api stopped")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	cancel()
	mgmt.Shutdown()
}

// tickLoop drives the scheduler's timer-dependent transitions once a
// second even absent any BPDU or link event, matching 802.1Q's
// one-second tick (802.1Q section 13.37).
func tickLoop(ctx context.Context, bridge *stpengine.Bridge) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			bridge.OnOneSecondTick(now)
		}
	}
}

func receiveLoop(ctx context.Context, log *logrus.Logger, bridge *stpengine.Bridge, sock *hostnet.Socket, port int) {
	if sock == nil {
		return
	}
	buf := make([]byte, 1600)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		payload, _, err := sock.ReadBPDU(buf)
		if err != nil {
			log.WithError(err).WithField("port", port).Debug("bpdu read error")
			continue
		}
		if err := bridge.OnBpduReceived(port, payload, time.Now()); err != nil {
			log.WithError(err).WithField("port", port).Warn("rejecting bpdu")
		}
	}
}

func linkEventLoop(ctx context.Context, log *logrus.Logger, bridge *stpengine.Bridge, cfg *stpconfig.BridgeConfig, watcher *hostlink.Watcher) {
	indexByIface := make(map[string]int, len(cfg.Ports))
	for _, p := range cfg.Ports {
		indexByIface[p.Interface] = p.Index
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events():
			if !ok {
				return
			}
			port, known := indexByIface[ev.Interface]
			if !known {
				continue
			}
			var err error
			if ev.Up {
				err = bridge.OnPortEnabled(port, 0, true, time.Now())
			} else {
				err = bridge.OnPortDisabled(port, time.Now())
			}
			if err != nil {
				log.WithError(err).WithField("port", port).Warn("failed to apply link event")
			}
		}
	}
}

func linkSlavesFromConfig(cfg *stpconfig.BridgeConfig) []hostlink.SlavePort {
	slaves := make([]hostlink.SlavePort, len(cfg.Ports))
	for i, p := range cfg.Ports {
		slaves[i] = hostlink.SlavePort{Interface: p.Interface, Index: p.Index}
	}
	return slaves
}
