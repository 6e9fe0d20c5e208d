// Command c4m is a dev CLI for clap4me maintenance and debugging tasks.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/browser"
	"go.uber.org/zap"

	clapbrowser "github.com/ibeckermayer/clap4me/internal/browser"
	"github.com/ibeckermayer/clap4me/internal/config"
	"github.com/ibeckermayer/clap4me/internal/logging"
	"github.com/ibeckermayer/clap4me/internal/vision"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "bot-test":
		runBotTest()
	case "open":
		if len(os.Args) < 3 {
			fmt.Println("Usage: c4m open <config|data|cache>")
			os.Exit(1)
		}
		runOpen(os.Args[2])
	case "locate":
		if len(os.Args) < 4 {
			fmt.Println("Usage: c4m locate <screenshot> <template> [threshold]")
			os.Exit(1)
		}
		runLocate(os.Args[2], os.Args[3], os.Args[4:])
	case "shot":
		if len(os.Args) < 4 {
			fmt.Println("Usage: c4m shot <url> <out.png> [full]")
			os.Exit(1)
		}
		runShot(os.Args[2], os.Args[3], len(os.Args) > 4 && os.Args[4] == "full")
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: c4m <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  bot-test                       Open bot.sannysoft.com to audit browser fingerprint")
	fmt.Println("  open config                    Open config file in default editor")
	fmt.Println("  open data                      Open data directory (visited links, history)")
	fmt.Println("  open cache                     Open cache directory in file explorer")
	fmt.Println("  locate <shot> <tmpl> [thresh]  Match a button template against a saved screenshot")
	fmt.Println("  shot <url> <out.png> [full]    Save a viewport (or full-page) screenshot of url")
}

func loadConfig() *config.Config {
	cfg, err := config.Load("")
	if err != nil {
		log.Printf("Could not load config (%v), using defaults", err)
		return config.Default()
	}
	return cfg
}

func runBotTest() {
	logger := logging.NewConsole()
	logger.Info("Opening bot.sannysoft.com with stealth browser options...")

	cfg := loadConfig()
	cfg.Browser.Headless = false // so you can see it

	ctx := context.Background()
	sess, err := clapbrowser.Launch(ctx, cfg.Browser, cfg.Feed.UserAgent, logger)
	if err != nil {
		log.Fatalf("Failed to launch browser: %v", err)
	}
	defer sess.Close()

	page, err := sess.NewPage(ctx)
	if err != nil {
		log.Fatalf("Failed to open tab: %v", err)
	}
	if err := page.Navigate(ctx, "https://bot.sannysoft.com"); err != nil {
		log.Printf("Failed to navigate: %v", err)
	}

	fmt.Println("Press Enter to end program...")
	fmt.Scanln()

	logger.Info("Done.")
}

func runOpen(target string) {
	var path string
	var err error

	switch target {
	case "config":
		path, err = config.ConfigPath()
	case "data":
		path, err = config.DataDir()
	case "cache":
		path, err = config.CacheDir()
	default:
		fmt.Printf("Unknown target: %s\n", target)
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Failed to get path: %v", err)
	}

	if err := browser.OpenFile(path); err != nil {
		log.Fatalf("Failed to open: %v", err)
	}
}

func runLocate(shotPath, tmplPath string, rest []string) {
	cfg := loadConfig()
	threshold := cfg.Templates.ClapThreshold
	if len(rest) > 0 {
		v, err := strconv.ParseFloat(rest[0], 64)
		if err != nil {
			log.Fatalf("Invalid threshold %q: %v", rest[0], err)
		}
		threshold = v
	}

	img, err := vision.Open(shotPath)
	if err != nil {
		log.Fatalf("Failed to read screenshot: %v", err)
	}
	tmpl, err := vision.LoadTemplate(tmplPath)
	if err != nil {
		log.Fatalf("Failed to read template: %v", err)
	}

	start := time.Now()
	matcher := vision.NewMatcher()
	if cfg.Templates.Exhaustive {
		matcher = &vision.Matcher{}
	}
	m, err := matcher.Best(img, tmpl.Gray)
	if err != nil {
		log.Fatalf("Match failed: %v", err)
	}
	c := m.Center()

	fmt.Printf("screenshot: %dx%d  template: %dx%d  took: %v\n", img.W, img.H, tmpl.Gray.W, tmpl.Gray.H, time.Since(start).Round(time.Millisecond))
	fmt.Printf("best score: %.4f at (%d, %d), click point (%d, %d)\n", m.Score, m.X, m.Y, c.X, c.Y)
	if m.Score >= threshold {
		fmt.Printf("MATCH (threshold %.2f)\n", threshold)
	} else {
		fmt.Printf("no match (threshold %.2f)\n", threshold)
		os.Exit(2)
	}
}

func runShot(url, out string, full bool) {
	logger := logging.NewConsole()
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	sess, err := clapbrowser.Launch(ctx, cfg.Browser, cfg.Feed.UserAgent, logger)
	if err != nil {
		log.Fatalf("Failed to launch browser: %v", err)
	}
	defer sess.Close()

	page, err := sess.NewPage(ctx)
	if err != nil {
		log.Fatalf("Failed to open tab: %v", err)
	}
	defer page.Close()

	if err := page.Navigate(ctx, url); err != nil {
		log.Fatalf("Failed to navigate: %v", err)
	}
	time.Sleep(cfg.Timing.PageLoadMax.Duration)

	img, err := page.Screenshot(ctx, full)
	if err != nil {
		log.Fatalf("Failed to capture: %v", err)
	}
	if err := imaging.Save(img, out); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}
	logger.Info("Saved screenshot", zap.String("path", out), zap.Bool("full", full))
}
