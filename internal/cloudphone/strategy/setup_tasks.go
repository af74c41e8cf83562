// Package strategy supplies the four concrete post-login behaviors
// (spec §4.5, C5): Warmup, Post, Setup, and Custom. Each implements
// executor.Strategy, so this package depends on executor rather than
// the reverse, avoiding the import cycle a shared interface defined in
// either concrete package would create.
package strategy

import (
	"strings"

	"cloudphone/pkg/cloudphone"
)

// setupTask is one entry in the shared profile-configuration palette
// (spec §4.5 "rename → display name → profile picture → bio → post1 →
// post2 → highlight → private → 2FA"). Setup walks every gated task in
// fixed order; Custom walks only the user-selected subset, in the
// user-specified order.
type setupTask struct {
	Name        string
	SubmitState cloudphone.State
	PollState   cloudphone.State
	Gate        func(cloudphone.SetupData) bool
	Params      func(cloudphone.SetupData) map[string]string
}

var setupPalette = []setupTask{
	{
		Name: "renameUsername", SubmitState: cloudphone.StateRenameUsername, PollState: cloudphone.StatePollRenameUsername,
		Gate:   func(d cloudphone.SetupData) bool { return d.NewUsername != "" },
		Params: func(d cloudphone.SetupData) map[string]string { return map[string]string{"newUsername": d.NewUsername} },
	},
	{
		Name: "editDisplayName", SubmitState: cloudphone.StateEditDisplayName, PollState: cloudphone.StatePollEditDisplayName,
		Gate:   func(d cloudphone.SetupData) bool { return d.NewDisplayName != "" },
		Params: func(d cloudphone.SetupData) map[string]string { return map[string]string{"newDisplayName": d.NewDisplayName} },
	},
	{
		Name: "profilePicture", SubmitState: cloudphone.StateProfilePicture, PollState: cloudphone.StatePollProfilePicture,
		Gate:   func(d cloudphone.SetupData) bool { return d.ProfilePictureURL != "" },
		Params: func(d cloudphone.SetupData) map[string]string { return map[string]string{"profilePictureUrl": d.ProfilePictureURL} },
	},
	{
		Name: "bio", SubmitState: cloudphone.StateBio, PollState: cloudphone.StatePollBio,
		Gate:   func(d cloudphone.SetupData) bool { return d.Bio != "" },
		Params: func(d cloudphone.SetupData) map[string]string { return map[string]string{"bio": d.Bio} },
	},
	{
		Name: "post1", SubmitState: cloudphone.StateSetupPost1, PollState: cloudphone.StatePollSetupPost1,
		Gate:   func(d cloudphone.SetupData) bool { return len(d.Posts) > 0 },
		Params: func(d cloudphone.SetupData) map[string]string { return postParams(d.Posts[0]) },
	},
	{
		Name: "post2", SubmitState: cloudphone.StateSetupPost2, PollState: cloudphone.StatePollSetupPost2,
		Gate:   func(d cloudphone.SetupData) bool { return len(d.Posts) > 1 },
		Params: func(d cloudphone.SetupData) map[string]string { return postParams(d.Posts[1]) },
	},
	{
		Name: "highlight", SubmitState: cloudphone.StateHighlight, PollState: cloudphone.StatePollHighlight,
		Gate: func(d cloudphone.SetupData) bool { return d.HighlightTitle != "" || d.HighlightCoverURL != "" },
		Params: func(d cloudphone.SetupData) map[string]string {
			return map[string]string{"highlightTitle": d.HighlightTitle, "highlightCoverUrl": d.HighlightCoverURL}
		},
	},
	{
		Name: "private", SubmitState: cloudphone.StatePrivate, PollState: cloudphone.StatePollPrivate,
		Gate:   func(d cloudphone.SetupData) bool { return d.Private },
		Params: func(d cloudphone.SetupData) map[string]string { return map[string]string{} },
	},
	{
		Name: "2fa", SubmitState: cloudphone.StateEnable2FA, PollState: cloudphone.StatePollEnable2FA,
		Gate:   func(d cloudphone.SetupData) bool { return d.Enable2FA },
		Params: func(d cloudphone.SetupData) map[string]string { return map[string]string{} },
	},
}

func postParams(p cloudphone.Post) map[string]string {
	return map[string]string{
		"type":        string(p.Type),
		"description": p.Description,
		"mediaUrls":   strings.Join(p.MediaURLs, ","),
	}
}

func setupTaskByName(name string) (setupTask, bool) {
	for _, t := range setupPalette {
		if t.Name == name {
			return t, true
		}
	}
	return setupTask{}, false
}

func paletteOrder() []string {
	order := make([]string, len(setupPalette))
	for i, t := range setupPalette {
		order[i] = t.Name
	}
	return order
}

func setupDataOf(account cloudphone.Account) cloudphone.SetupData {
	if account.Setup == nil {
		return cloudphone.SetupData{}
	}
	return *account.Setup
}

// effectiveSequence resolves order (a list of palette task names) to
// the concrete tasks that are actually gated-on for this job: both a
// flow identifier configured in cfg.SetupFlowIDs and the task's own
// data predicate must hold (spec §4.5 "gated on having both a flow
// identifier configured and the corresponding setup data present.
// Missing gate = skip to next").
func effectiveSequence(order []string, cfg cloudphone.WorkflowConfig, data cloudphone.SetupData) []setupTask {
	var out []setupTask
	for _, name := range order {
		task, ok := setupTaskByName(name)
		if !ok {
			continue
		}
		if cfg.SetupFlowIDs[task.Name] == "" {
			continue
		}
		if !task.Gate(data) {
			continue
		}
		out = append(out, task)
	}
	return out
}

func firstTaskState(order []string, cfg cloudphone.WorkflowConfig, data cloudphone.SetupData) cloudphone.State {
	seq := effectiveSequence(order, cfg, data)
	if len(seq) == 0 {
		return cloudphone.StateDone
	}
	return seq[0].SubmitState
}

func nextTaskState(order []string, cfg cloudphone.WorkflowConfig, data cloudphone.SetupData, currentName string) cloudphone.State {
	seq := effectiveSequence(order, cfg, data)
	for i, t := range seq {
		if t.Name == currentName {
			if i+1 < len(seq) {
				return seq[i+1].SubmitState
			}
			return cloudphone.StateDone
		}
	}
	return cloudphone.StateDone
}
