package clients

import (
	"context"
	"fmt"

	"github.com/mcdev12/quizclient/go/internal/models"
)

const (
	createGameEndpoint = "/creategame"
	joinGameEndpoint   = "/joingame"
)

// LobbyClient performs the one-shot create and join calls that precede a session.
type LobbyClient struct {
	*BaseClient
}

func NewLobbyClient(baseURL string) *LobbyClient {
	client := &LobbyClient{
		BaseClient: NewBaseClient(baseURL),
	}
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("Accept", "application/json")
	return client
}

type createGameResponse struct {
	Code string `json:"code"`
}

type joinGameRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type joinGameResponse struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// CreateSession asks the server for a new game and returns the host identity.
func (c *LobbyClient) CreateSession(ctx context.Context) (models.SessionIdentity, error) {
	var resp createGameResponse
	if err := c.PostJSON(ctx, createGameEndpoint, nil, &resp); err != nil {
		return models.SessionIdentity{}, fmt.Errorf("failed to create game: %w", err)
	}
	return models.NewHostIdentity(resp.Code)
}

// JoinSession registers name in the game with the given code and returns the player
// identity. The server may normalize the code or the name.
func (c *LobbyClient) JoinSession(ctx context.Context, code, name string) (models.SessionIdentity, error) {
	if _, err := models.NewPlayerIdentity(code, name); err != nil {
		return models.SessionIdentity{}, err
	}

	var resp joinGameResponse
	if err := c.PostJSON(ctx, joinGameEndpoint, joinGameRequest{Code: code, Name: name}, &resp); err != nil {
		return models.SessionIdentity{}, fmt.Errorf("failed to join game %s: %w", code, err)
	}
	if resp.Code == "" {
		resp.Code = code
	}
	if resp.Name == "" {
		resp.Name = name
	}
	return models.NewPlayerIdentity(resp.Code, resp.Name)
}
