package github

import (
	"context"
	"fmt"
	"strings"
)

// AddIssueToProject adds an issue to a project board and returns the new
// item id.
func (c *Client) AddIssueToProject(ctx context.Context, token, projectID, issueNodeID string) (string, error) {
	mutation := `
mutation($projectId: ID!, $contentId: ID!) {
  addProjectV2ItemById(input: {projectId: $projectId, contentId: $contentId}) {
    item { id }
  }
}`
	var resp struct {
		AddProjectV2ItemByID struct {
			Item struct {
				ID string `json:"id"`
			} `json:"item"`
		} `json:"addProjectV2ItemById"`
	}
	vars := map[string]any{"projectId": projectID, "contentId": issueNodeID}
	if err := c.doGraphQL(ctx, token, mutation, vars, &resp); err != nil {
		return "", fmt.Errorf("add issue to project: %w", err)
	}
	return resp.AddProjectV2ItemByID.Item.ID, nil
}

const projectFieldsQuery = `
query($projectId: ID!) {
  node(id: $projectId) {
    ... on ProjectV2 {
      fields(first: 50) {
        nodes {
          ... on ProjectV2FieldCommon { id name dataType }
          ... on ProjectV2SingleSelectField {
            options { id name }
          }
        }
      }
    }
  }
}`

type projectField struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	DataType string `json:"dataType"`
	Options  []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"options"`
}

func (c *Client) getProjectFields(ctx context.Context, token, projectID string) ([]projectField, error) {
	var resp struct {
		Node struct {
			Fields struct {
				Nodes []projectField `json:"nodes"`
			} `json:"fields"`
		} `json:"node"`
	}
	if err := c.doGraphQL(ctx, token, projectFieldsQuery, map[string]any{"projectId": projectID}, &resp); err != nil {
		return nil, fmt.Errorf("get project fields: %w", err)
	}
	return resp.Node.Fields.Nodes, nil
}

func findField(fields []projectField, name string) (*projectField, bool) {
	for i := range fields {
		if strings.EqualFold(fields[i].Name, name) {
			return &fields[i], true
		}
	}
	return nil, false
}

func (c *Client) setSingleSelect(ctx context.Context, token, projectID, itemID string, field *projectField, optionName string) error {
	var optionID string
	for _, opt := range field.Options {
		if strings.EqualFold(opt.Name, optionName) {
			optionID = opt.ID
			break
		}
	}
	if optionID == "" {
		return fmt.Errorf("field %q has no option %q: %w", field.Name, optionName, ErrNotFound)
	}

	mutation := `
mutation($projectId: ID!, $itemId: ID!, $fieldId: ID!, $optionId: String!) {
  updateProjectV2ItemFieldValue(input: {
    projectId: $projectId, itemId: $itemId, fieldId: $fieldId,
    value: {singleSelectOptionId: $optionId}
  }) {
    projectV2Item { id }
  }
}`
	vars := map[string]any{
		"projectId": projectID, "itemId": itemID,
		"fieldId": field.ID, "optionId": optionID,
	}
	return c.doGraphQL(ctx, token, mutation, vars, nil)
}

// UpdateItemStatusByName moves a project item to the named status column.
// The status name is matched case-insensitively against the Status field's
// options.
func (c *Client) UpdateItemStatusByName(ctx context.Context, token, projectID, itemID, statusName string) error {
	fields, err := c.getProjectFields(ctx, token, projectID)
	if err != nil {
		return err
	}
	statusField, ok := findField(fields, "Status")
	if !ok {
		return fmt.Errorf("project has no Status field: %w", ErrNotFound)
	}
	if err := c.setSingleSelect(ctx, token, projectID, itemID, statusField, statusName); err != nil {
		return fmt.Errorf("set status %q: %w", statusName, err)
	}
	c.logger.Info("Project item status updated", "item", itemID, "status", statusName)
	return nil
}

// SetIssueMetadata sets the board fields attached to a recommendation.
// Fields missing from the project are skipped; the first write failure is
// returned.
func (c *Client) SetIssueMetadata(ctx context.Context, token, projectID, itemID string, meta IssueMetadata) error {
	fields, err := c.getProjectFields(ctx, token, projectID)
	if err != nil {
		return err
	}

	if meta.Priority != "" {
		if f, ok := findField(fields, "Priority"); ok {
			if err := c.setSingleSelect(ctx, token, projectID, itemID, f, meta.Priority); err != nil {
				return fmt.Errorf("set priority: %w", err)
			}
		}
	}
	if meta.Size != "" {
		if f, ok := findField(fields, "Size"); ok {
			if err := c.setSingleSelect(ctx, token, projectID, itemID, f, meta.Size); err != nil {
				return fmt.Errorf("set size: %w", err)
			}
		}
	}
	if meta.EstimateHours > 0 {
		if f, ok := findField(fields, "Estimate"); ok {
			if err := c.setFieldValue(ctx, token, projectID, itemID, f.ID, map[string]any{"number": meta.EstimateHours}); err != nil {
				return fmt.Errorf("set estimate: %w", err)
			}
		}
	}
	if meta.StartDate != "" {
		if f, ok := findField(fields, "Start date"); ok {
			if err := c.setFieldValue(ctx, token, projectID, itemID, f.ID, map[string]any{"date": meta.StartDate}); err != nil {
				return fmt.Errorf("set start date: %w", err)
			}
		}
	}
	if meta.TargetDate != "" {
		if f, ok := findField(fields, "Target date"); ok {
			if err := c.setFieldValue(ctx, token, projectID, itemID, f.ID, map[string]any{"date": meta.TargetDate}); err != nil {
				return fmt.Errorf("set target date: %w", err)
			}
		}
	}
	return nil
}

func (c *Client) setFieldValue(ctx context.Context, token, projectID, itemID, fieldID string, value map[string]any) error {
	mutation := `
mutation($projectId: ID!, $itemId: ID!, $fieldId: ID!, $value: ProjectV2FieldValue!) {
  updateProjectV2ItemFieldValue(input: {
    projectId: $projectId, itemId: $itemId, fieldId: $fieldId, value: $value
  }) {
    projectV2Item { id }
  }
}`
	vars := map[string]any{
		"projectId": projectID, "itemId": itemID,
		"fieldId": fieldID, "value": value,
	}
	return c.doGraphQL(ctx, token, mutation, vars, nil)
}

const projectItemsQuery = `
query($projectId: ID!, $cursor: String) {
  node(id: $projectId) {
    ... on ProjectV2 {
      items(first: 100, after: $cursor) {
        pageInfo { hasNextPage endCursor }
        nodes {
          id
          fieldValueByName(name: "Status") {
            ... on ProjectV2ItemFieldSingleSelectValue { name }
          }
          content {
            ... on Issue { id number title }
          }
        }
      }
    }
  }
}`

type projectItemsResponse struct {
	Node struct {
		Items struct {
			PageInfo struct {
				HasNextPage bool   `json:"hasNextPage"`
				EndCursor   string `json:"endCursor"`
			} `json:"pageInfo"`
			Nodes []struct {
				ID               string `json:"id"`
				FieldValueByName struct {
					Name string `json:"name"`
				} `json:"fieldValueByName"`
				Content struct {
					ID     string `json:"id"`
					Number int    `json:"number"`
					Title  string `json:"title"`
				} `json:"content"`
			} `json:"nodes"`
		} `json:"items"`
	} `json:"node"`
}

// GetProjectItems fetches every item of a project with its resolved status.
// Items without issue content (draft cards, PRs) are skipped.
func (c *Client) GetProjectItems(ctx context.Context, token, projectID string) ([]ProjectItem, error) {
	var items []ProjectItem
	var cursor *string
	for {
		var resp projectItemsResponse
		vars := map[string]any{"projectId": projectID}
		if cursor != nil {
			vars["cursor"] = *cursor
		}
		if err := c.doGraphQL(ctx, token, projectItemsQuery, vars, &resp); err != nil {
			return nil, fmt.Errorf("get project items: %w", err)
		}
		for _, node := range resp.Node.Items.Nodes {
			if node.Content.Number == 0 {
				continue
			}
			items = append(items, ProjectItem{
				ItemID:      node.ID,
				IssueNumber: node.Content.Number,
				IssueNodeID: node.Content.ID,
				Title:       node.Content.Title,
				Status:      node.FieldValueByName.Name,
			})
		}
		if !resp.Node.Items.PageInfo.HasNextPage {
			break
		}
		end := resp.Node.Items.PageInfo.EndCursor
		cursor = &end
	}
	return items, nil
}

// GetProjectRepository returns the owner and name of the first repository
// linked to a project.
func (c *Client) GetProjectRepository(ctx context.Context, token, projectID string) (owner, repo string, err error) {
	query := `
query($projectId: ID!) {
  node(id: $projectId) {
    ... on ProjectV2 {
      repositories(first: 1) {
        nodes { name owner { login } }
      }
    }
  }
}`
	var resp struct {
		Node struct {
			Repositories struct {
				Nodes []struct {
					Name  string `json:"name"`
					Owner struct {
						Login string `json:"login"`
					} `json:"owner"`
				} `json:"nodes"`
			} `json:"repositories"`
		} `json:"node"`
	}
	if err := c.doGraphQL(ctx, token, query, map[string]any{"projectId": projectID}, &resp); err != nil {
		return "", "", fmt.Errorf("get project repository: %w", err)
	}
	nodes := resp.Node.Repositories.Nodes
	if len(nodes) == 0 {
		return "", "", fmt.Errorf("project has no linked repository: %w", ErrNotFound)
	}
	return nodes[0].Owner.Login, nodes[0].Name, nil
}
