// Package bootstrap wires configuration into the review service and its
// workers.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/audit"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/conditions"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/directory"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/messaging"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/collaborators/notify"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/auth"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/aws"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/config"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/database"
	commonhttp "github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/http"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/logger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/repository"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/review"
)

// App holds the infrastructure clients and the review service built from config.
type App struct {
	Config        *config.Config
	Logger        logger.Logger
	Postgres      *database.PostgresClient
	Redis         *database.RedisClient
	Elasticsearch *database.ElasticsearchClient
	Service       *review.Service
}

// Build connects the collaborators named in cfg. Clients are opened lazily;
// use Ready to check connectivity.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: log}

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return nil, err
	}
	app.Postgres = pg

	app.Redis = database.NewRedis(cfg.Database.Redis)

	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Elasticsearch = es

	notifier, err := newNotifier(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	snsClient, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create sns client: %w", err)
	}

	cacheTTL := config.GetDuration(cfg.Review.DirectoryCacheTTL)
	keycloak := cfg.Auth.Keycloak

	internalUsers := directory.NewCachedDirectory(
		directory.NewPostgresDirectory(pg.DB), app.Redis.Client, directory.PrefixInternal, cacheTTL, log)
	externalUsers := directory.NewCachedDirectory(
		directory.NewKeycloakDirectory(auth.NewKeycloakClient(keycloak.URL, keycloak.Realm, keycloak.ClientID, keycloak.ClientSecret, 0)),
		app.Redis.Client, directory.PrefixExternal, cacheTTL, log)

	conditionsClient := commonhttp.NewClient(config.GetDuration(cfg.Integrations.Conditions.Timeout))

	app.Service = review.NewService(review.Dependencies{
		Store:         repository.NewPostgresStore(pg.DB),
		Conditions:    conditions.NewHTTPCalculator(cfg.Integrations.Conditions.BaseURL, conditionsClient),
		Notifier:      notifier,
		Audit:         audit.NewElasticsearchRecorder(es.Client, cfg.Database.Elasticsearch.AuditIndex),
		InternalUsers: internalUsers,
		ExternalUsers: externalUsers,
		Bus:           messaging.NewSNSPublisher(snsClient, cfg.Integrations.AWS.SNS.PdfPreviewTopicARN),
		Logger:        log,
	}, review.Config{
		AmendmentResponsePeriod: cfg.AmendmentResponsePeriod(),
		BaseURL:                 cfg.Notifications.BaseURL,
	})

	return app, nil
}

func newNotifier(ctx context.Context, cfg *config.Config) (notify.Sender, error) {
	n := cfg.Notifications
	switch strings.ToLower(n.Provider) {
	case "smtp":
		smtp := cfg.Integrations.SMTP
		dialer := notify.NewSMTPDialer(smtp.Host, smtp.Port, smtp.Username, smtp.Password, smtp.UseTLS)
		return notify.NewSMTPSender(dialer, n.FromEmail, n.FromName), nil
	case "ses", "":
		sesClient, err := aws.NewSESClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("failed to create ses client: %w", err)
		}
		return notify.NewSESSender(sesClient, n.FromEmail, n.FromName), nil
	default:
		return nil, fmt.Errorf("unknown notification provider %q", n.Provider)
	}
}

// Ready pings the stores the review operations cannot run without.
func (a *App) Ready(ctx context.Context) error {
	if err := a.Postgres.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if err := a.Elasticsearch.Ping(ctx); err != nil {
		return fmt.Errorf("elasticsearch: %w", err)
	}
	return nil
}

// Close releases every client opened by Build.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("Failed to close redis", map[string]interface{}{"error": err.Error()})
		}
	}
	if a.Postgres != nil {
		if err := a.Postgres.Close(); err != nil {
			a.Logger.Warn("Failed to close postgres", map[string]interface{}{"error": err.Error()})
		}
	}
}
