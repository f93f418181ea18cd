package openfga

import (
	"context"
	"fmt"
	"log/slog"

	"calshare/internal/config"

	"github.com/openfga/go-sdk/client"
	"github.com/openfga/go-sdk/credentials"
)

// Client wraps the OpenFGA SDK client. It mirrors grant state for external
// consumers; the resolver never reads from it, so revocation stays
// synchronous even when a mirror write lags or fails.
type Client struct {
	fga    *client.OpenFgaClient
	config config.OpenFGAConfig
}

func NewClient(cfg config.OpenFGAConfig) (*Client, error) {
	if !cfg.Enabled {
		slog.Info("OpenFGA mirror is disabled")
		return &Client{config: cfg}, nil
	}

	fgaClient, err := client.NewSdkClient(&client.ClientConfiguration{
		ApiHost: cfg.APIHost,
		StoreId: cfg.StoreID,
		Credentials: &credentials.Credentials{
			Method: credentials.CredentialsMethodApiToken,
			Config: &credentials.Config{
				ApiToken: cfg.APIToken,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenFGA client: %w", err)
	}

	c := &Client{
		fga:    fgaClient,
		config: cfg,
	}

	if err := c.verifyConnection(); err != nil {
		return nil, fmt.Errorf("failed to verify OpenFGA connection: %w", err)
	}

	slog.Info("OpenFGA client initialized",
		"store_id", cfg.StoreID, "model_id", cfg.ModelID)

	return c, nil
}

func (c *Client) verifyConnection() error {
	if !c.config.Enabled {
		return nil
	}

	ctx := context.Background()

	response, err := c.fga.GetStore(ctx).Execute()
	if err != nil {
		return fmt.Errorf("failed to get store: %w", err)
	}

	if response.Id != c.config.StoreID {
		return fmt.Errorf("store ID mismatch: expected %s, got %s",
			c.config.StoreID, response.Id)
	}

	modelResponse, err := c.fga.ReadAuthorizationModel(ctx).Execute()
	if err != nil {
		return fmt.Errorf("failed to read authorization model: %w", err)
	}

	if modelResponse.AuthorizationModel.Id != c.config.ModelID {
		slog.Warn("authorization model ID mismatch",
			"expected", c.config.ModelID,
			"actual", modelResponse.AuthorizationModel.Id)
	}

	return nil
}

// IsEnabled returns whether OpenFGA mirroring is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled && c.fga != nil
}

// Close releases the client. The SDK has no Close, so we drop the reference.
func (c *Client) Close() {
	if c.fga != nil {
		c.fga = nil
	}
}

// WriteTuple creates a relationship tuple in OpenFGA.
func (c *Client) WriteTuple(ctx context.Context, userID, relation, objectType, objectID string) error {
	if !c.IsEnabled() {
		return nil
	}

	body := client.ClientWriteRequest{
		Writes: []client.ClientTupleKey{
			{
				User:     fmt.Sprintf("user:%s", userID),
				Relation: relation,
				Object:   fmt.Sprintf("%s:%s", objectType, objectID),
			},
		},
	}

	_, err := c.fga.Write(ctx).Body(body).Execute()
	if err != nil {
		slog.Error("OpenFGA write failed",
			"user", userID,
			"relation", relation,
			"object", fmt.Sprintf("%s:%s", objectType, objectID),
			"error", err)
		return err
	}

	return nil
}

// DeleteTuple removes a relationship tuple from OpenFGA. A delete against a
// tuple that was never written is reported by the server as an error; callers
// that revoke idempotently should tolerate it.
func (c *Client) DeleteTuple(ctx context.Context, userID, relation, objectType, objectID string) error {
	if !c.IsEnabled() {
		return nil
	}

	body := client.ClientWriteRequest{
		Deletes: []client.ClientTupleKeyWithoutCondition{
			{
				User:     fmt.Sprintf("user:%s", userID),
				Relation: relation,
				Object:   fmt.Sprintf("%s:%s", objectType, objectID),
			},
		},
	}

	_, err := c.fga.Write(ctx).Body(body).Execute()
	if err != nil {
		slog.Error("OpenFGA delete failed",
			"user", userID,
			"relation", relation,
			"object", fmt.Sprintf("%s:%s", objectType, objectID),
			"error", err)
		return err
	}

	return nil
}
