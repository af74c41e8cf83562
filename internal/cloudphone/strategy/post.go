package strategy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"cloudphone/internal/cloudphone/cloudphoneerr"
	"cloudphone/internal/cloudphone/executor"
	"cloudphone/pkg/cloudphone"
)

const postLaunchDelay = 3 * time.Second

// Post publishes one or two pieces of content after login (spec §4.5
// "Post"): bring the app to the foreground, validate media reachability
// up front, then submit+poll each post in order.
type Post struct{}

func (Post) Name() cloudphone.WorkflowType { return cloudphone.WorkflowPost }
func (Post) RequiresLogin() bool           { return true }

func (Post) GetPostLoginState(job cloudphone.PhoneJob, cfg cloudphone.WorkflowConfig) cloudphone.State {
	return cloudphone.StatePreparePost
}

func (Post) GetStateHandler(state cloudphone.State) (executor.HandlerFunc, bool) {
	switch state {
	case cloudphone.StatePreparePost:
		return handlePreparePost, true
	case cloudphone.StatePublishPost1:
		return handlePublishPost1, true
	case cloudphone.StatePollPost1:
		return handlePollPost1, true
	case cloudphone.StatePublishPost2:
		return handlePublishPost2, true
	case cloudphone.StatePollPost2:
		return handlePollPost2, true
	default:
		return nil, false
	}
}

func (Post) GetRetryableStates() map[cloudphone.State]bool {
	return map[cloudphone.State]bool{
		cloudphone.StatePreparePost:  true,
		cloudphone.StatePublishPost1: true,
		cloudphone.StatePublishPost2: true,
	}
}

func (Post) GetTotalSteps() int { return 5 }

// handlePreparePost brings the target app to the foreground and waits
// the fixed launch delay before the first publish (spec §4.5 "bring
// target app to foreground and wait a fixed launch delay (~3s)").
func handlePreparePost(ctx context.Context, ec *executor.Context) error {
	err := ec.WithRetry(ctx, cloudphone.StatePreparePost, true, func() error {
		return ec.Client.StartApp(ctx, ec.EnvID, ec.Config.PackageName)
	})
	if err != nil {
		return err
	}
	if serr := ec.SleepWithAbort(ctx, postLaunchDelay); serr != nil {
		return serr
	}
	if len(ec.Account().Posts) == 0 {
		ec.TransitionTo(cloudphone.StateDone)
		return nil
	}
	ec.TransitionTo(cloudphone.StatePublishPost1)
	return nil
}

func handlePublishPost1(ctx context.Context, ec *executor.Context) error {
	return publishPostAt(ctx, ec, 0, cloudphone.StatePublishPost1, cloudphone.StatePollPost1)
}

func handlePollPost1(ctx context.Context, ec *executor.Context) error {
	return pollPublishAt(ctx, ec, "post1", cloudphone.StatePublishPost2)
}

func handlePublishPost2(ctx context.Context, ec *executor.Context) error {
	return publishPostAt(ctx, ec, 1, cloudphone.StatePublishPost2, cloudphone.StatePollPost2)
}

func handlePollPost2(ctx context.Context, ec *executor.Context) error {
	return pollPublishAt(ctx, ec, "post2", cloudphone.StateDone)
}

func publishPostAt(ctx context.Context, ec *executor.Context, index int, submitState, pollState cloudphone.State) error {
	posts := ec.Account().Posts
	if index >= len(posts) {
		ec.TransitionTo(cloudphone.StateDone)
		return nil
	}
	post := posts[index]
	if err := validateMediaURLs(ctx, post.MediaURLs); err != nil {
		return err
	}

	var taskID string
	err := ec.WithRetry(ctx, submitState, true, func() error {
		var callErr error
		taskID, callErr = publishPost(ctx, ec, post)
		return callErr
	})
	if err != nil {
		return err
	}
	ec.Store.SetTaskID(ec.EnvID, fmt.Sprintf("post%d", index+1), taskID)
	ec.TransitionTo(pollState)
	return nil
}

func pollPublishAt(ctx context.Context, ec *executor.Context, stage string, nextOnSuccess cloudphone.State) error {
	job := ec.Job()
	rec, err := ec.PollTask(ctx, job.TaskIDs[stage], executor.TaskCategoryPublish)
	if err != nil {
		return err
	}
	if rec.Status != cloudphone.TaskCompleted {
		return fmt.Errorf("publish %s failed: %s", stage, rec.FailDesc)
	}
	if nextOnSuccess == cloudphone.StatePublishPost2 && len(job.Account.Posts) < 2 {
		nextOnSuccess = cloudphone.StateDone
	}
	ec.TransitionTo(nextOnSuccess)
	return nil
}

func publishPost(ctx context.Context, ec *executor.Context, post cloudphone.Post) (string, error) {
	if ec.Config.Platform == cloudphone.PlatformReddit {
		if post.Type == cloudphone.PostTypeVideo {
			return ec.Client.RedditPublishVideo(ctx, ec.EnvID, post.Description, post.MediaURLs)
		}
		return ec.Client.RedditPublishImage(ctx, ec.EnvID, post.Description, post.MediaURLs)
	}
	if post.Type == cloudphone.PostTypeVideo {
		return ec.Client.InstagramPublishReelsVideo(ctx, ec.EnvID, post.Description, post.MediaURLs)
	}
	return ec.Client.InstagramPublishReelsImages(ctx, ec.EnvID, post.Description, post.MediaURLs)
}

const mediaCheckTimeout = 10 * time.Second

// validateMediaURLs HEAD-checks every media URL before the publish RPC
// fires (spec §4.5/§7): applied uniformly to video and image posts,
// resolving the spec's Open Question in favor of the stricter, uniform
// behavior (see DESIGN.md).
func validateMediaURLs(ctx context.Context, urls []string) error {
	httpClient := &http.Client{Timeout: mediaCheckTimeout}
	var unreachable []string
	for _, u := range urls {
		if !isReachable(ctx, httpClient, u) {
			unreachable = append(unreachable, u)
		}
	}
	if len(unreachable) > 0 {
		return cloudphoneerr.MediaUnreachable(unreachable)
	}
	return nil
}

func isReachable(ctx context.Context, httpClient *http.Client, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
