package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/rustcc-bot/qbot-gateway/internal/auth"
	"github.com/rustcc-bot/qbot-gateway/internal/config"
	"github.com/rustcc-bot/qbot-gateway/internal/controller"
	"github.com/rustcc-bot/qbot-gateway/internal/qqapi"
	"github.com/rustcc-bot/qbot-gateway/internal/scraper"
	"github.com/rustcc-bot/qbot-gateway/internal/webhook"
	"github.com/rustcc-bot/qbot-gateway/internal/wsengine"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting qbot-gateway...")

	authGroup := wsengine.NewAuthGroup()
	quit := make(chan struct{})

	var runners []func(ctx context.Context) error

	if cfg.Production.Enabled {
		runner, err := buildEngine("production", qqapi.ProductionBaseURL, cfg.AppID, cfg.ClientSecret,
			cfg.Production.NewsChannelID, cfg.Production.WebhookListenAddr, authGroup, quit)
		if err != nil {
			log.Fatalf("Failed to initialize production engine: %v", err)
		}
		runners = append(runners, runner)
	}

	if cfg.Sandbox.Enabled {
		runner, err := buildEngine("sandbox", qqapi.SandboxBaseURL, cfg.AppID, cfg.ClientSecret,
			cfg.Sandbox.NewsChannelID, "", authGroup, quit)
		if err != nil {
			log.Fatalf("Failed to initialize sandbox engine: %v", err)
		}
		runners = append(runners, runner)
	}

	if len(runners) == 0 {
		log.Fatalf("Neither production nor sandbox engine is enabled; nothing to run")
	}

	ctx := context.Background()
	errCh := make(chan error, len(runners))
	var wg sync.WaitGroup
	for _, run := range runners {
		wg.Add(1)
		go func(run func(ctx context.Context) error) {
			defer wg.Done()
			errCh <- run(ctx)
		}(run)
	}

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var quitOnce sync.Once
	go func() {
		<-sigChan
		log.Println("Received shutdown signal, closing engines...")
		quitOnce.Do(func() { close(quit) })
		<-sigChan
		log.Println("Received second shutdown signal, forcing exit")
		os.Exit(1)
	}()

	wg.Wait()
	close(errCh)

	fatal := false
	for err := range errCh {
		if err != nil {
			log.Printf("engine terminated with error: %v", err)
			fatal = true
		}
	}

	if fatal {
		os.Exit(101)
	}
	os.Exit(0)
}

// buildEngine wires one engine instance (production or sandbox) and
// returns a runner function closing over its transport choice.
func buildEngine(name, baseURL, appID, clientSecret, newsChannelID, webhookListenAddr string, authGroup *wsengine.AuthGroup, quit <-chan struct{}) (func(ctx context.Context) error, error) {
	authorizer, err := auth.New(context.Background(), "https://bots.qq.com", appID, clientSecret)
	if err != nil {
		return nil, err
	}

	apiClient := qqapi.NewHTTPClient(baseURL, appID, authorizer)
	scr := scraper.New()
	ctrl := controller.New(apiClient, scr, newsChannelID, log.New(os.Stdout, "["+name+"-controller] ", log.LstdFlags))

	if webhookListenAddr != "" {
		server := webhook.New(webhook.Config{
			ListenAddr: webhookListenAddr,
			Secret:     clientSecret,
			Handler:    ctrl,
			Logger:     log.New(os.Stdout, "["+name+"-webhook] ", log.LstdFlags),
		})
		return func(ctx context.Context) error {
			return server.Run(ctx, quit)
		}, nil
	}

	engine := wsengine.New(wsengine.Config{
		Name:       name,
		GatewayURL: apiClient.GetGatewayURL,
		Authorizer: authorizer,
		AuthGroup:  authGroup,
		Handler:    ctrl,
		Logger:     log.New(os.Stdout, "["+name+"-ws] ", log.LstdFlags),
	})
	return func(ctx context.Context) error {
		return engine.Run(ctx, quit)
	}, nil
}
