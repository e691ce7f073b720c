package api

import (
	"context"
	"fmt"
	"net/http"
)

// Thin data-access wrappers over the backend's CRUD endpoints. These
// carry no logic beyond the authenticated transport in do.

func (c *Client) Profile(ctx context.Context) (*UserProfile, error) {
	var profile UserProfile
	if err := c.do(ctx, http.MethodGet, "/api/profile", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *Client) UpdateProfile(ctx context.Context, update *UserProfile) (*UserProfile, error) {
	var profile UserProfile
	if err := c.do(ctx, http.MethodPatch, "/api/profile", update, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *Client) Organizations(ctx context.Context) ([]Organization, error) {
	var orgs []Organization
	if err := c.do(ctx, http.MethodGet, "/api/organizations", nil, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

func (c *Client) CreateOrganization(ctx context.Context, org *Organization) (*Organization, error) {
	var created Organization
	if err := c.do(ctx, http.MethodPost, "/api/organizations", org, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) DeleteOrganization(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/organizations/"+id, nil, nil)
}

func (c *Client) Agents(ctx context.Context) ([]Agent, error) {
	var agents []Agent
	if err := c.do(ctx, http.MethodGet, "/api/agents", nil, &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

func (c *Client) CreateAgent(ctx context.Context, agent *Agent) (*Agent, error) {
	var created Agent
	if err := c.do(ctx, http.MethodPost, "/api/agents", agent, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateAgent(ctx context.Context, id string, update *Agent) (*Agent, error) {
	var agent Agent
	if err := c.do(ctx, http.MethodPatch, "/api/agents/"+id, update, &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

func (c *Client) DeleteAgent(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/agents/"+id, nil, nil)
}

func (c *Client) Workspaces(ctx context.Context) ([]Workspace, error) {
	var workspaces []Workspace
	if err := c.do(ctx, http.MethodGet, "/api/workspaces", nil, &workspaces); err != nil {
		return nil, err
	}
	return workspaces, nil
}

func (c *Client) Workspace(ctx context.Context, id string) (*Workspace, error) {
	var workspace Workspace
	if err := c.do(ctx, http.MethodGet, "/api/workspaces/"+id, nil, &workspace); err != nil {
		return nil, err
	}
	return &workspace, nil
}

func (c *Client) CreateWorkspace(ctx context.Context, workspace *Workspace) (*Workspace, error) {
	var created Workspace
	if err := c.do(ctx, http.MethodPost, "/api/workspaces", workspace, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateWorkspace(ctx context.Context, id string, update *Workspace) (*Workspace, error) {
	var workspace Workspace
	if err := c.do(ctx, http.MethodPatch, "/api/workspaces/"+id, update, &workspace); err != nil {
		return nil, err
	}
	return &workspace, nil
}

func (c *Client) DeleteWorkspace(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/workspaces/"+id, nil, nil)
}

func (c *Client) ChatSessions(ctx context.Context, workspaceID string) ([]ChatSession, error) {
	var sessions []ChatSession
	path := fmt.Sprintf("/api/workspaces/%s/sessions", workspaceID)
	if err := c.do(ctx, http.MethodGet, path, nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *Client) CreateChatSession(ctx context.Context, workspaceID string) (*ChatSession, error) {
	var session ChatSession
	path := fmt.Sprintf("/api/workspaces/%s/sessions", workspaceID)
	if err := c.do(ctx, http.MethodPost, path, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) DeleteChatSession(ctx context.Context, workspaceID, sessionID string) error {
	path := fmt.Sprintf("/api/workspaces/%s/sessions/%s", workspaceID, sessionID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) WorkspaceFiles(ctx context.Context, workspaceID string) ([]WorkspaceFile, error) {
	var files []WorkspaceFile
	path := fmt.Sprintf("/api/workspaces/%s/files", workspaceID)
	if err := c.do(ctx, http.MethodGet, path, nil, &files); err != nil {
		return nil, err
	}
	return files, nil
}

func (c *Client) DeleteWorkspaceFile(ctx context.Context, workspaceID, fileID string) error {
	path := fmt.Sprintf("/api/workspaces/%s/files/%s", workspaceID, fileID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) Workflows(ctx context.Context) ([]Workflow, error) {
	var workflows []Workflow
	if err := c.do(ctx, http.MethodGet, "/api/workflows", nil, &workflows); err != nil {
		return nil, err
	}
	return workflows, nil
}

func (c *Client) CreateWorkflow(ctx context.Context, workflow *Workflow) (*Workflow, error) {
	var created Workflow
	if err := c.do(ctx, http.MethodPost, "/api/workflows", workflow, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateWorkflow(ctx context.Context, id string, update *Workflow) (*Workflow, error) {
	var workflow Workflow
	if err := c.do(ctx, http.MethodPatch, "/api/workflows/"+id, update, &workflow); err != nil {
		return nil, err
	}
	return &workflow, nil
}

func (c *Client) DeleteWorkflow(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/workflows/"+id, nil, nil)
}

func (c *Client) MCPConnections(ctx context.Context) ([]MCPConnection, error) {
	var conns []MCPConnection
	if err := c.do(ctx, http.MethodGet, "/api/mcp/connections", nil, &conns); err != nil {
		return nil, err
	}
	return conns, nil
}

func (c *Client) CreateMCPConnection(ctx context.Context, conn *MCPConnection) (*MCPConnection, error) {
	var created MCPConnection
	if err := c.do(ctx, http.MethodPost, "/api/mcp/connections", conn, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) DeleteMCPConnection(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/mcp/connections/"+id, nil, nil)
}

func (c *Client) MCPResources(ctx context.Context, connectionID string) ([]MCPResource, error) {
	var resources []MCPResource
	path := fmt.Sprintf("/api/mcp/connections/%s/resources", connectionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resources); err != nil {
		return nil, err
	}
	return resources, nil
}

func (c *Client) MCPWorkspaceAccess(ctx context.Context, workspaceID string) ([]MCPWorkspaceAccess, error) {
	var access []MCPWorkspaceAccess
	path := fmt.Sprintf("/api/workspaces/%s/mcp-access", workspaceID)
	if err := c.do(ctx, http.MethodGet, path, nil, &access); err != nil {
		return nil, err
	}
	return access, nil
}

func (c *Client) GrantMCPWorkspaceAccess(ctx context.Context, grant *MCPWorkspaceAccess) (*MCPWorkspaceAccess, error) {
	var created MCPWorkspaceAccess
	path := fmt.Sprintf("/api/workspaces/%s/mcp-access", grant.WorkspaceID)
	if err := c.do(ctx, http.MethodPost, path, grant, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) RevokeMCPWorkspaceAccess(ctx context.Context, workspaceID, accessID string) error {
	path := fmt.Sprintf("/api/workspaces/%s/mcp-access/%s", workspaceID, accessID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}
