package main

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/holvi-cloud/holvi/authz"
	s3backend "github.com/holvi-cloud/holvi/backend/s3"
	"github.com/holvi-cloud/holvi/internal/config"
	"github.com/holvi-cloud/holvi/notify"
	"github.com/holvi-cloud/holvi/provision"
	"github.com/holvi-cloud/holvi/reconciler"
	"github.com/holvi-cloud/holvi/store"
	boltstore "github.com/holvi-cloud/holvi/store/bolt"
	dynamostore "github.com/holvi-cloud/holvi/store/dynamo"
	"github.com/holvi-cloud/holvi/telemetry"
	"github.com/holvi-cloud/holvi/types"
)

// app holds the wired components every command needs. Construction is the
// only place AWS clients and config are resolved; commands just use it.
type app struct {
	cfg      *config.Config
	logger   *telemetry.Logger
	store    store.Store
	notifier notify.Notifier
	service  *provision.Service
	engine   *reconciler.Engine
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return nil, err
	}

	logger := telemetry.NewLogger(cfg.OTEL.ServiceName)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var st store.Store
	if cfg.LocalDir != "" {
		st, err = boltstore.New(cfg.LocalDir)
		if err != nil {
			return nil, err
		}
	} else {
		st = dynamostore.New(dynamodb.NewFromConfig(awsCfg), cfg.AWS.Table)
	}

	be := s3backend.New(awss3.NewFromConfig(awsCfg), cfg.AWS.Region, cfg.AWS.CallTimeout)

	notifiers := []notify.Notifier{notify.NewLog(logger.Logger)}
	if cfg.Notify.TopicARN != "" {
		notifiers = append(notifiers, notify.NewSNS(sns.NewFromConfig(awsCfg), cfg.Notify.TopicARN))
	}
	if cfg.Notify.QueueURL != "" {
		notifiers = append(notifiers, notify.NewSQS(sqs.NewFromConfig(awsCfg), cfg.Notify.QueueURL))
	}
	notifier := notify.NewMulti(notifiers...)

	resolver := authz.NewResolver(authz.Config{
		HelperGroup:     cfg.Authz.HelperGroup,
		AuthorityGroup:  cfg.Authz.AuthorityGroup,
		AuthorityEmails: cfg.Authz.AdminEmails,
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		notifier: notifier,
		service:  provision.NewService(st, be, notifier, resolver, logger, cfg.Environment),
		engine:   reconciler.New(st, be, notifier, logger),
	}, nil
}

// Close releases the store and notification channels.
func (a *app) Close() {
	if err := a.notifier.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("notifier close failed")
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("store close failed")
	}
}

// actor builds the acting identity from the persistent flags.
func actor() (types.Identity, error) {
	if identityID == "" || identityEmail == "" {
		return types.Identity{}, fmt.Errorf("--identity-id and --email are required")
	}
	return types.Identity{
		ID:     identityID,
		Email:  identityEmail,
		Groups: identityGrps,
	}, nil
}
