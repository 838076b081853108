package github

import (
	"context"
	"encoding/json"
	"fmt"

	gh "github.com/google/go-github/v82/github"
	multierror "github.com/hashicorp/go-multierror"
	"github.com/shurcooL/githubv4"

	"github.com/firewatchhq/firewatch/internal/domain/port/driven"
)

// SubmitReview submits a pull request review.
// event must be one of "APPROVE", "REQUEST_CHANGES", or "COMMENT".
func (c *Client) SubmitReview(ctx context.Context, repo string, number int, event, body string) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}

	review := &gh.PullRequestReviewRequest{
		Event: gh.Ptr(event),
	}
	// GitHub rejects APPROVE with an explicit empty body.
	if body != "" || event != "APPROVE" {
		review.Body = gh.Ptr(body)
	}

	_, resp, err := c.rest.PullRequests.CreateReview(ctx, owner, name, number, review)
	if err != nil {
		return fmt.Errorf("submitting review for %s#%d: %w", repo, number, classifyREST(err))
	}

	logRateLimit(resp, repo+"/create-review", 0, 1)
	return nil
}

// EditPullRequest applies metadata changes to a pull request. Every
// populated field of the edit is its own API call; failures are collected so
// one rejected sub-edit does not stop the rest from being applied.
func (c *Client) EditPullRequest(ctx context.Context, repo string, number int, edit driven.PREdit) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}
	if edit.Empty() {
		return nil
	}

	var merr *multierror.Error

	if edit.Title != nil || edit.Body != nil || edit.Base != nil {
		update := &gh.PullRequest{Title: edit.Title, Body: edit.Body}
		if edit.Base != nil {
			update.Base = &gh.PullRequestBranch{Ref: edit.Base}
		}
		if _, _, err := c.rest.PullRequests.Edit(ctx, owner, name, number, update); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("updating title/body/base: %w", classifyREST(err)))
		}
	}

	if edit.Draft != nil {
		if err := c.setDraft(ctx, repo, number, *edit.Draft); err != nil {
			merr = multierror.Append(merr, err)
		}
	}

	if len(edit.AddLabels) > 0 {
		if _, _, err := c.rest.Issues.AddLabelsToIssue(ctx, owner, name, number, edit.AddLabels); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("adding labels: %w", classifyREST(err)))
		}
	}
	for _, label := range edit.RemoveLabels {
		if _, err := c.rest.Issues.RemoveLabelForIssue(ctx, owner, name, number, label); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("removing label %q: %w", label, classifyREST(err)))
		}
	}

	if len(edit.AddReviewers) > 0 {
		req := gh.ReviewersRequest{Reviewers: edit.AddReviewers}
		if _, _, err := c.rest.PullRequests.RequestReviewers(ctx, owner, name, number, req); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("requesting reviewers: %w", classifyREST(err)))
		}
	}
	if len(edit.RemoveReviewers) > 0 {
		req := gh.ReviewersRequest{Reviewers: edit.RemoveReviewers}
		if _, err := c.rest.PullRequests.RemoveReviewers(ctx, owner, name, number, req); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("removing reviewers: %w", classifyREST(err)))
		}
	}

	if len(edit.AddAssignees) > 0 {
		if _, _, err := c.rest.Issues.AddAssignees(ctx, owner, name, number, edit.AddAssignees); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("adding assignees: %w", classifyREST(err)))
		}
	}
	if len(edit.RemoveAssignees) > 0 {
		if _, _, err := c.rest.Issues.RemoveAssignees(ctx, owner, name, number, edit.RemoveAssignees); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("removing assignees: %w", classifyREST(err)))
		}
	}

	if edit.Milestone != nil {
		req := &gh.IssueRequest{Milestone: edit.Milestone}
		if _, _, err := c.rest.Issues.Edit(ctx, owner, name, number, req); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("setting milestone: %w", classifyREST(err)))
		}
	} else if edit.ClearMilestone {
		if err := c.clearMilestone(ctx, owner, name, number); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("clearing milestone: %w", err))
		}
	}

	return merr.ErrorOrNil()
}

// clearMilestone sends the PATCH by hand. Removing a milestone requires an
// explicit JSON null, which IssueRequest's omitempty field cannot express.
func (c *Client) clearMilestone(ctx context.Context, owner, name string, number int) error {
	u := fmt.Sprintf("repos/%s/%s/issues/%d", owner, name, number)
	req, err := c.rest.NewRequest("PATCH", u, json.RawMessage(`{"milestone":null}`))
	if err != nil {
		return err
	}
	if _, err := c.rest.Do(ctx, req, nil); err != nil {
		return classifyREST(err)
	}
	return nil
}

// setDraft toggles draft state through GraphQL; the REST edit endpoint has
// no draft field.
func (c *Client) setDraft(ctx context.Context, repo string, number int, draft bool) error {
	prID, err := c.FetchPullRequestID(ctx, repo, number)
	if err != nil {
		return err
	}

	if draft {
		var m struct {
			ConvertPullRequestToDraft struct {
				PullRequest struct {
					IsDraft bool
				}
			} `graphql:"convertPullRequestToDraft(input: $input)"`
		}
		input := githubv4.ConvertPullRequestToDraftInput{PullRequestID: githubv4.ID(prID)}
		return c.mutate(ctx, fmt.Sprintf("converting %s#%d to draft", repo, number), &m, input)
	}

	var m struct {
		MarkPullRequestReadyForReview struct {
			PullRequest struct {
				IsDraft bool
			}
		} `graphql:"markPullRequestReadyForReview(input: $input)"`
	}
	input := githubv4.MarkPullRequestReadyForReviewInput{PullRequestID: githubv4.ID(prID)}
	return c.mutate(ctx, fmt.Sprintf("marking %s#%d ready for review", repo, number), &m, input)
}
