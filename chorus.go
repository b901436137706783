// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"runtime/pprof"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/chorusfm/chorus/library"
	"github.com/chorusfm/chorus/logger"
	"github.com/chorusfm/chorus/mpris"
	"github.com/chorusfm/chorus/mpvplayer"
	"github.com/chorusfm/chorus/playback"
	"github.com/chorusfm/chorus/player"
	"github.com/chorusfm/chorus/relay"
	"github.com/chorusfm/chorus/remote"
	"github.com/chorusfm/chorus/store"
)

var osExit = os.Exit  // A variable to allow mocking os.Exit in tests
var headlessMode bool // This can be set to true during tests
var testMode bool     // This can be set to true during tests, too

const DEVELOPMENT = "development"

// Name is the client name we report to the library server
var Name string = "chorus"

// Version is the program version; usually set from BuildInfo
var Version string = DEVELOPMENT

// return codes:
// 0 - OK
// 1 - generic errors
// 2 - main config errors
func main() {
	help := flag.Bool("help", false, "Print usage")
	enableMpris := flag.Bool("mpris", false, "Enable MPRIS2")
	headless := flag.Bool("headless", false, "run without the TUI; playback and remote control stay up")
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to `file`")
	memprofile := flag.String("memprofile", "", "write memory profile to `file`")
	configFile := flag.String("config", "", "use config `file`")
	version := flag.Bool("version", false, "print the chorus version and exit")

	flag.Parse()
	if *help {
		fmt.Printf("USAGE: %s <args> [[user:token@]server:port]\n", os.Args[0])
		flag.Usage()
		osExit(0)
	}
	if Version == DEVELOPMENT {
		if bi, ok := debug.ReadBuildInfo(); ok {
			Version = bi.Main.Version
		}
	}
	if *version {
		fmt.Printf("chorus %s", Version)
		osExit(0)
	}

	// cpu/memprofile code straight from https://pkg.go.dev/runtime/pprof
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	// config gathering
	if len(flag.Args()) > 0 {
		parseConfig()
	}

	if err := readConfig(configFile); err != nil {
		if configFile == nil {
			fmt.Fprintf(os.Stderr, "Failed to read configuration: configuration file is nil\n")
		} else {
			fmt.Fprintf(os.Stderr, "Failed to read configuration from file '%s': %v\n", *configFile, err)
		}
		osExit(2)
	}

	logger := logger.Init()

	// init mpv engine
	eng, err := mpvplayer.NewPlayer(logger)
	if err != nil {
		fmt.Println("Unable to initialize mpv. Is mpv installed?")
		osExit(1)
	}

	// local progress journal; playback works without it
	var journal player.Journal
	var journalStore *store.Store
	if js, jerr := openJournal(); jerr != nil {
		logger.PrintError("progress journal", jerr)
	} else {
		journal = js
		journalStore = js
	}

	pbStore := playback.NewStore()

	connection := library.Init(logger)
	connection.SetClientInfo(Name, Version)
	connection.Username = viper.GetString("auth.username")
	connection.Token = viper.GetString("auth.token")
	connection.Host = viper.GetString("server.host")

	sess := player.NewSession(eng, pbStore, connection, journal, logger, player.DefaultTimings())

	deviceID := uuid.NewString()
	deviceName := viper.GetString("device.name")
	if deviceName == "" {
		if host, herr := os.Hostname(); herr == nil {
			deviceName = host
		} else {
			deviceName = "chorus"
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// relay: optional embedded hub, optional client connection
	relayURL := viper.GetString("relay.url")
	if listen := viper.GetString("relay.listen"); listen != "" {
		hub := relay.NewHub(logger)
		go func() {
			if herr := hub.ListenAndServe(ctx, listen); herr != nil && herr != http.ErrServerClosed {
				logger.PrintError("relay hub", herr)
			}
		}()
		if relayURL == "" {
			relayURL = "ws://" + listen
		}
	}
	sessionKey := viper.GetString("relay.session")
	if sessionKey == "" {
		sessionKey = viper.GetString("auth.username")
	}

	rt := remote.DefaultTimings()
	runner := remote.NewRunner(pbStore, sess.Local(), logger, deviceID, sess.Post, rt)

	var relayClient *relay.Client
	var coordinator *remote.Coordinator
	if relayURL != "" {
		relayClient = relay.NewClient(relayURL, sessionKey, deviceID, deviceName, logger)
		coordinator = remote.NewCoordinator(pbStore, relayClient, runner, sess.Local(), logger, deviceID, deviceName, sess.Post, rt)
		sess.AttachRemote(runner, coordinator)
	} else {
		// no peers to arbitrate with, this device always plays
		sess.AttachRemote(runner, nil)
		pbStore.SetActivePlayer(true)
	}

	sess.Start()
	if relayClient != nil {
		go relayClient.Run(ctx)
		coordinator.Start()
	}

	// init mpris2 player control (linux only but fails gracefully on other systems)
	var mprisBridge *mpris.Bridge
	if *enableMpris {
		var commander mpris.Commander
		if coordinator != nil {
			commander = coordinator
		}
		mprisBridge, err = mpris.Register(sess, pbStore, commander, sess.Do, logger)
		if err != nil {
			fmt.Printf("Unable to register MPRIS with DBUS: %s\n", err)
			fmt.Println("Try running without MPRIS")
			osExit(1)
		}
		defer mprisBridge.Close()
	}

	if testMode {
		fmt.Println("Running in test mode for testing.")
		osExit(0x23420001)
		return
	}

	if headlessMode {
		fmt.Println("Running in headless mode for testing.")
		osExit(0)
		return
	}

	if *headless {
		logger.SetTee(os.Stderr)
		logger.Printf("chorus %s up (device %s); press ^C to exit", Version, deviceName)
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
	} else {
		ui := InitTui(pbStore, sess, runner, coordinator, logger, deviceID, deviceName)
		if uerr := ui.Run(); uerr != nil {
			panic(uerr)
		}
	}

	cancel()
	if coordinator != nil {
		coordinator.Stop()
	}
	if relayClient != nil {
		_ = relayClient.Close()
	}
	sess.Shutdown()
	if journalStore != nil {
		_ = journalStore.Close()
	}

	if *memprofile != "" {
		f, ferr := os.Create(*memprofile)
		if ferr != nil {
			log.Fatal("could not create memory profile: ", ferr)
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal("could not write memory profile: ", err)
		}
	}
}

// openJournal puts the sqlite progress journal under the user data
// dir unless the config points elsewhere.
func openJournal() (*store.Store, error) {
	path := viper.GetString("client.journal")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, ".local", "share", "chorus", "progress.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return store.Open(path)
}
