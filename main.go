package main

import (
	"context"
	"embed"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/wailsapp/wails/v3/pkg/application"

	"leclasseur/backend"
	"leclasseur/backend/localserver"
	"leclasseur/backend/reload"
	"leclasseur/backend/trigger"
	"leclasseur/backend/updater"
)

// Any files in the frontend/dist folder are embedded into the binary and
// served to the webview.
//
//go:embed all:frontend/dist
var assets embed.FS

// manifestURL can be set at build time with
// -ldflags "-X main.manifestURL=https://..." and wins over the config file.
var manifestURL string

const maxLocalConns = 32

func main() {
	// .env is only present in development checkouts
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found")
	}

	configService := backend.NewConfigService(backend.DefaultConfigPath())
	cfg := configService.GetConfig()
	if err := backend.InitLog(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Warnf("keeping default logging: %v", err)
	}
	if manifestURL == "" {
		manifestURL = cfg.ManifestURL
	}

	host := backend.NewDesktopHost(cfg.InstallDirName)
	hub := reload.NewHub()

	extensionUpdater, err := updater.New(host, hub)
	if err != nil {
		fatal(err)
	}

	poller := backend.NewPoller(extensionUpdater, host, backend.WithInterval(cfg.Interval()))
	wizardService := backend.NewWizardService(host, host, poller, manifestURL)
	updaterService := backend.NewUpdaterService(host, hub)

	// 'Services' are bound to the frontend, their exported methods are
	// callable from JavaScript.
	app := application.New(application.Options{
		Name:        "LeClasseur Extension",
		Description: "Installs the LeClasseur Chrome extension and keeps it up to date",
		Services: []application.Service{
			application.NewService(wizardService),
			application.NewService(configService),
			application.NewService(updaterService),
		},
		Assets: application.AssetOptions{
			Handler: application.AssetFileServerFS(assets),
		},
		Mac: application.MacOptions{
			ApplicationShouldTerminateAfterLastWindowClosed: true,
		},
	})

	// Set the app instance in the host so it can emit events
	host.SetApp(app)

	app.Window.NewWithOptions(application.WebviewWindowOptions{
		Title: "LeClasseur Extension",
		Mac: application.MacWindow{
			InvisibleTitleBarHeight: 50,
			Backdrop:                application.MacBackdropTranslucent,
			TitleBar:                application.MacTitleBarHiddenInset,
		},
		BackgroundColour: application.NewRGB(27, 38, 54),
		URL:              "/",
		Width:            520,
		Height:           720,
	})

	// The extension listens on the reload server, the web app calls the
	// trigger server. Neither is required for the wizard to work.
	ctx, cancel := context.WithCancel(context.Background())
	serversDone := make(chan struct{})
	go func() {
		defer close(serversDone)
		err := localserver.RunAll(ctx,
			localserver.Endpoint{Name: "reload", Addr: cfg.ReloadAddr, Handler: hub, MaxConns: maxLocalConns},
			localserver.Endpoint{Name: "trigger", Addr: cfg.TriggerAddr, Handler: trigger.NewServer(host, hub).Handler(), MaxConns: maxLocalConns},
		)
		if err != nil {
			log.Errorf("local servers: %v. Extension reload won't work.", err)
		}
	}()

	// Run the application. This blocks until the application has been exited.
	err = app.Run()

	poller.Stop()
	hub.Close()
	cancel()
	<-serversDone

	if err != nil {
		fatal(err)
	}
}
