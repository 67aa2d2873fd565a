package main

import (
	"embed"
	"log"
	"os"

	"github.com/chazu/facepick/pkg/pick"
	"github.com/chazu/facepick/pkg/server"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	app := NewApp(Config{
		GeometryURL: os.Getenv("FACEPICK_GEOMETRY_URL"),
		Tints:       pick.DefaultTints,
		Delay:       server.DefaultDelay,
	})

	err := wails.Run(&options.App{
		Title:  "facepick",
		Width:  1024,
		Height: 768,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 27, G: 38, B: 54, A: 1},
		OnStartup:        app.startup,
		OnShutdown:       app.shutdown,
		Bind: []interface{}{
			app,
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
