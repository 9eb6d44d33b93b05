// Package gcp builds Google Cloud clients from explicit configuration.
package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// Config selects the project and credentials. An empty CredentialsFile falls back to
// application default credentials.
type Config struct {
	ProjectID       string
	CredentialsFile string
}

func (c Config) clientOptions() []option.ClientOption {
	if c.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(c.CredentialsFile)}
}

// NewFirebaseApp creates a Firebase App instance.
func NewFirebaseApp(ctx context.Context, cfg Config) (*firebase.App, error) {
	var appCfg *firebase.Config
	if cfg.ProjectID != "" {
		appCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}
	return firebase.NewApp(ctx, appCfg, cfg.clientOptions()...)
}

// InitFirebaseAuth initializes the Firebase App and returns an Auth client. The client both
// verifies operator tokens and manages workspace admin identities.
func InitFirebaseAuth(ctx context.Context, cfg Config) (*firebaseauth.Client, error) {
	app, err := NewFirebaseApp(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app [%w]", err)
	}

	fbAuth, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase auth [%w]", err)
	}
	return fbAuth, nil
}

// NewStorageClient creates a Cloud Storage client for migration bundles.
func NewStorageClient(ctx context.Context, cfg Config) (*storage.Client, error) {
	client, err := storage.NewClient(ctx, cfg.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("init gcs client: %w", err)
	}
	return client, nil
}
