// cmd/docverify-pipeline/main.go

// docverify-pipeline runs one document image through the verification
// graph and prints the routing decision.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"agentic-apps/internal/common/aws"
	"agentic-apps/internal/common/config"
	"agentic-apps/internal/common/database"
	"agentic-apps/internal/common/logger"
	"agentic-apps/internal/common/observability"
	"agentic-apps/internal/docverify"
	"agentic-apps/internal/docverify/audit"
	"agentic-apps/internal/docverify/extract"
	"agentic-apps/internal/docverify/notify"
	"agentic-apps/internal/docverify/placecheck"
	"agentic-apps/internal/docverify/reflection"
	"agentic-apps/internal/docverify/storage"
	"agentic-apps/pkg/registry"
)

// ==========================
// Logger adapters
// ==========================

type extractLogger struct{ logger.Logger }

func (a *extractLogger) With(fields map[string]interface{}) extract.Logger {
	return &extractLogger{a.Logger.With(fields)}
}

type storageLogger struct{ logger.Logger }

func (a *storageLogger) With(fields map[string]interface{}) storage.Logger {
	return &storageLogger{a.Logger.With(fields)}
}

type placecheckLogger struct{ logger.Logger }

func (a *placecheckLogger) With(fields map[string]interface{}) placecheck.Logger {
	return &placecheckLogger{a.Logger.With(fields)}
}

type reflectionLogger struct{ logger.Logger }

func (a *reflectionLogger) With(fields map[string]interface{}) reflection.Logger {
	return &reflectionLogger{a.Logger.With(fields)}
}

type auditLogger struct{ logger.Logger }

func (a *auditLogger) With(fields map[string]interface{}) audit.Logger {
	return &auditLogger{a.Logger.With(fields)}
}

type notifyLogger struct{ logger.Logger }

func (a *notifyLogger) With(fields map[string]interface{}) notify.Logger {
	return &notifyLogger{a.Logger.With(fields)}
}

func main() {
	imagePath := flag.String("image", "", "path to the document image (required)")
	task := flag.String("task", "", "override the verification instruction")
	runID := flag.String("run-id", "", "run identifier (generated when empty)")
	flag.Parse()

	if *imagePath == "" {
		fmt.Fprintln(os.Stderr, "usage: docverify-pipeline -image <path> [-task <text>] [-run-id <id>]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	p, cleanup := buildPipeline(cfg, obs, log)
	defer cleanup()

	imageBase64, err := extract.EncodeImage(*imagePath)
	if err != nil {
		log.Error("failed to read document image", map[string]interface{}{
			"path":  *imagePath,
			"error": err.Error(),
		})
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := p.Run(ctx, docverify.Request{
		RunID:       *runID,
		Task:        *task,
		ImageBase64: imageBase64,
		ImageMIME:   extract.DetectMIME(*imagePath),
	})
	if err != nil {
		log.Error("verification run failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	fmt.Printf("Run:        %s\n", result.RunID)
	fmt.Printf("Decision:   %s\n", result.Decision)
	fmt.Printf("Confidence: %.2f\n", result.Confidence)
	fmt.Printf("Assessment: %s\n", result.Assessment)
}

func buildPipeline(cfg *config.Config, obs *observability.Observability, log logger.Logger) (*docverify.Pipeline, func()) {
	extractCfg := extract.LoadConfig()
	extractCfg.BaseURL = cfg.APIs.Vision.BaseURL
	extractCfg.APIKey = cfg.APIs.Vision.APIKey
	extractCfg.Model = cfg.APIs.Vision.Model
	if cfg.APIs.Vision.Timeout > 0 {
		extractCfg.Timeout = config.GetDuration(cfg.APIs.Vision.Timeout)
	}
	if cfg.Pipeline.ExtractionRetries > 0 {
		extractCfg.MaxRetries = cfg.Pipeline.ExtractionRetries
	}
	if cfg.Pipeline.MaxTokens > 0 {
		extractCfg.MaxTokens = cfg.Pipeline.MaxTokens
	}
	if cfg.Pipeline.Temperature > 0 {
		extractCfg.Temperature = float32(cfg.Pipeline.Temperature)
	}
	extractHandler := extract.NewHandler(extractCfg, &extractLogger{log})

	reflectionCfg := reflection.LoadConfig()
	reflectionCfg.BaseURL = cfg.APIs.Reasoning.BaseURL
	reflectionCfg.APIKey = cfg.APIs.Reasoning.APIKey
	reflectionCfg.Model = cfg.APIs.Reasoning.Model
	if cfg.APIs.Reasoning.Timeout > 0 {
		reflectionCfg.Timeout = config.GetDuration(cfg.APIs.Reasoning.Timeout)
	}
	if cfg.Pipeline.ReflectionAttempts > 0 {
		reflectionCfg.MaxAttempts = cfg.Pipeline.ReflectionAttempts
	}
	reflectionHandler := reflection.NewHandler(reflectionCfg, &reflectionLogger{log})

	// the document archive is best-effort, so a dead cluster only warns
	var archiveHandler *storage.Handler
	if search, err := database.NewOpenSearch(cfg.Database.OpenSearch); err != nil {
		log.Warn("document archive unavailable", map[string]interface{}{"error": err.Error()})
		archiveHandler = storage.NewHandler(cfg.Pipeline.DocumentIndex, nil, &storageLogger{log})
	} else {
		archiveHandler = storage.NewHandler(cfg.Pipeline.DocumentIndex, search.Client, &storageLogger{log})
	}

	reg := registry.Default()
	if cfg.Pipeline.RegistryPath != "" {
		loaded, err := registry.LoadRegistry(cfg.Pipeline.RegistryPath)
		if err != nil {
			log.Warn("facility registry load failed, using built-in registry", map[string]interface{}{
				"path":  cfg.Pipeline.RegistryPath,
				"error": err.Error(),
			})
		} else {
			reg = loaded
		}
	}
	verifyHandler := placecheck.NewHandler(reg, &placecheckLogger{log})

	p := docverify.NewPipeline(docverify.Options{
		ApprovalThreshold: cfg.Pipeline.ApprovalThreshold,
		MaxSteps:          cfg.Pipeline.MaxSteps,
	}, extractHandler, archiveHandler, verifyHandler, reflectionHandler, log).
		WithObservability(obs)

	cleanup := func() {}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if pg, err := database.NewPostgres(cfg.Database.Postgres); err != nil {
		log.Warn("decision audit unavailable", map[string]interface{}{"error": err.Error()})
	} else {
		store := audit.NewStore(pg.GetDB(), &auditLogger{log})
		if err := store.EnsureSchema(ctx); err != nil {
			log.Warn("decision audit schema setup failed", map[string]interface{}{"error": err.Error()})
			pg.Close()
		} else {
			p = p.WithAuditor(store)
			cleanup = func() { pg.Close() }
		}
	}

	if notifier := buildNotifier(ctx, cfg, log); notifier != nil {
		p = p.WithNotifier(notifier)
	}

	return p, cleanup
}

func buildNotifier(ctx context.Context, cfg *config.Config, log logger.Logger) *notify.Notifier {
	if !cfg.Notifications.Email.Enabled && !cfg.Notifications.SMS.Enabled {
		return nil
	}

	var email notify.EmailSender
	if cfg.Notifications.Email.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			log.Warn("email notifications unavailable", map[string]interface{}{"error": err.Error()})
		} else {
			email = sesClient
		}
	}

	var sms notify.SMSPublisher
	if cfg.Notifications.SMS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			log.Warn("sms notifications unavailable", map[string]interface{}{"error": err.Error()})
		} else {
			sms = snsClient
		}
	}

	if email == nil && sms == nil {
		return nil
	}

	return notify.NewNotifier(notify.Config{
		EmailEnabled: cfg.Notifications.Email.Enabled,
		FromEmail:    cfg.Notifications.Email.FromEmail,
		Reviewers:    cfg.Notifications.Email.Reviewers,
		SMSEnabled:   cfg.Notifications.SMS.Enabled,
		PhoneNumbers: cfg.Notifications.SMS.PhoneNumbers,
	}, email, sms, &notifyLogger{log})
}
