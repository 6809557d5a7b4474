package main

import (
	"context"
	"fmt"
	"github.com/asaskevich/EventBus"
	"github.com/maxaizer/jobfeed/internal/bot"
	"github.com/maxaizer/jobfeed/internal/clients/gemini"
	"github.com/maxaizer/jobfeed/internal/config"
	"github.com/maxaizer/jobfeed/internal/logger"
	"github.com/maxaizer/jobfeed/internal/metrics"
	"github.com/maxaizer/jobfeed/internal/repositories"
	"github.com/maxaizer/jobfeed/internal/services"
	"github.com/maxaizer/jobfeed/internal/sources"
	log "github.com/sirupsen/logrus"
	"os/signal"
	"syscall"
)

type rateLimited interface {
	sources.Source
	SetRateLimit(maxRequestsPerSecond float32)
}

func buildSource(cfg config.SourceConfig) (rateLimited, error) {
	switch cfg.Kind {
	case config.SourceKindHTML:
		return sources.NewHTMLBoard(sources.HTMLBoardConfig{
			Name:                cfg.Name,
			Company:             cfg.Company,
			URL:                 cfg.URL,
			ItemSelector:        cfg.ItemSelector,
			LinkSelector:        cfg.LinkSelector,
			TitleSelector:       cfg.TitleSelector,
			LocationSelector:    cfg.LocationSelector,
			DescriptionSelector: cfg.DescriptionSelector,
			Timeout:             cfg.Timeout,
		})
	case config.SourceKindWorkday:
		return sources.NewWorkday(sources.WorkdayConfig{
			Name:          cfg.Name,
			Company:       cfg.Company,
			APIURL:        cfg.APIURL,
			SiteURL:       cfg.SiteURL,
			SearchText:    cfg.SearchText,
			AppliedFacets: cfg.Facets(),
			Timeout:       cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

func buildRegistry(cfgs []config.SourceConfig) (*sources.Registry, error) {
	built := make([]sources.Source, 0, len(cfgs))
	for _, cfg := range cfgs {
		source, err := buildSource(cfg)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", cfg.Name, err)
		}
		source.SetRateLimit(cfg.MaxRequestsPerSecond)
		built = append(built, source)
	}
	return sources.NewRegistry(built...)
}

func buildAdvisor(ctx context.Context, cfg config.AdvisorConfig) (services.Advisor, func()) {
	if !cfg.Active() {
		log.Info("source failure diagnosis is disabled")
		return services.NopAdvisor{}, func() {}
	}

	aiClient, err := gemini.NewClient(ctx, cfg.AIKey, gemini.Model(cfg.Model), gemini.Options{
		Temperature:     0.1,
		MaxOutputTokens: 1000,
		JSONResponse:    true,
	})
	if err != nil {
		log.Fatalf("can't create AI client: %v", err)
	}
	aiClient.SetMinuteRateLimit(cfg.MaxRequestsPerMinute)
	aiClient.SetDayRateLimit(cfg.MaxRequestsPerDay)

	closeClient := func() {
		if err := aiClient.Close(); err != nil {
			log.Warnf("failed to close AI client: %v", err)
		}
	}
	return services.NewDiagnosisService(aiClient, cfg.Timeout, cfg.CacheTTL), closeClient
}

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Get()

	logger.Setup(ctx, cfg.Logger)
	defer logger.Cleanup()

	metrics.StartMetricsServer(cfg.Metrics.Address)

	dbContext, err := repositories.NewDbContext(cfg.DB.ConnectionString)
	if err != nil {
		log.Fatalf("can't create db context: %v", err)
	}
	defer dbContext.Close()

	if err = dbContext.Migrate(); err != nil {
		log.Fatalf("can't migrate db context: %v", err)
	}

	postings := repositories.NewPostingsRepository(dbContext.DB)

	registry, err := buildRegistry(cfg.Sources)
	if err != nil {
		log.Fatalf("can't create sources: %v", err)
	}
	log.Infof("registered sources: %v", registry.Modules())

	advisor, closeAdvisor := buildAdvisor(ctx, cfg.Advisor)
	defer closeAdvisor()

	bus := EventBus.New()

	ingestion := services.NewIngestionService(registry, postings, services.NewTagger(cfg.Classifier.Categories), advisor, bus)

	scheduler, err := services.NewIngestionScheduler(ingestion, cfg.Ingest.Schedule)
	if err != nil {
		log.Fatalf("can't create scheduler: %v", err)
	}

	var tgbot *bot.Bot
	if cfg.Notifier.Enabled() {
		tgbot, err = bot.NewBot(cfg.Notifier.TgToken, bus, scheduler, registry,
			bot.Options{ChatID: cfg.Notifier.ChatID, FailuresOnly: cfg.Notifier.FailuresOnly})
		if err != nil {
			log.Fatalf("can't create bot: %v", err)
		}
		go tgbot.Run()
	}

	scheduler.Start()
	if cfg.Ingest.RunOnStart {
		go scheduler.RunOnce()
	}

	<-ctx.Done()

	log.Info("Shutting down services...")
	scheduler.Stop()
	if tgbot != nil {
		tgbot.Stop()
	}
	log.Info("Services stopped.")
}
